// Package doorlog persists door transitions and tracks the current status
// of each door.
package doorlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/saaga0h/doorpi/internal/occupancy"
	"github.com/saaga0h/doorpi/pkg/postgres"
)

// Store reads and writes the door_status table
type Store struct {
	pg     postgres.Client
	logger *slog.Logger
}

var _ occupancy.EventLog = (*Store)(nil)

// NewStore creates a store on top of a connected Postgres client
func NewStore(pg postgres.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pg: pg, logger: logger}
}

// Append records a door transition
func (s *Store) Append(ctx context.Context, location string, e occupancy.Event) error {
	query := `
		INSERT INTO door_status (location, timestamp, status)
		VALUES ($1, $2, $3)
	`

	if _, err := s.pg.Exec(ctx, query, location, e.Timestamp, e.Closed); err != nil {
		return fmt.Errorf("failed to insert door event: %w", err)
	}

	s.logger.Debug("Stored door event",
		"location", location,
		"timestamp_ns", e.Timestamp,
		"closed", e.Closed)

	return nil
}

// EventsBetween returns the events with start < timestamp < end, oldest first
func (s *Store) EventsBetween(ctx context.Context, location string, start, end int64) ([]occupancy.Event, error) {
	query := `
		SELECT timestamp, status
		FROM door_status
		WHERE location = $1 AND timestamp > $2 AND timestamp < $3
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.pg.Query(ctx, query, location, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query door events: %w", err)
	}
	defer rows.Close()

	var events []occupancy.Event
	for rows.Next() {
		var e occupancy.Event
		if err := rows.Scan(&e.Timestamp, &e.Closed); err != nil {
			return nil, fmt.Errorf("failed to scan door event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate door events: %w", err)
	}

	return events, nil
}

// LatestAtOrBefore returns the most recent event with timestamp <= t. The
// boolean is false when the location has no such event.
func (s *Store) LatestAtOrBefore(ctx context.Context, location string, t int64) (occupancy.Event, bool, error) {
	query := `
		SELECT timestamp, status
		FROM door_status
		WHERE location = $1 AND timestamp <= $2
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`

	row, err := s.pg.QueryRow(ctx, query, location, t)
	if err != nil {
		return occupancy.Event{}, false, fmt.Errorf("failed to query latest door event: %w", err)
	}

	var e occupancy.Event
	if err := row.Scan(&e.Timestamp, &e.Closed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return occupancy.Event{}, false, nil
		}
		return occupancy.Event{}, false, fmt.Errorf("failed to scan latest door event: %w", err)
	}

	return e, true, nil
}

// Latest returns the most recent event for location
func (s *Store) Latest(ctx context.Context, location string) (occupancy.Event, bool, error) {
	return s.LatestAtOrBefore(ctx, location, math.MaxInt64)
}
