package doorlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/saaga0h/doorpi/internal/occupancy"
	"github.com/saaga0h/doorpi/pkg/redis"
)

// Status is the current state of one door
type Status struct {
	Location  string `json:"location"`
	Known     bool   `json:"known"`
	Closed    bool   `json:"closed"`
	Timestamp int64  `json:"timestamp_ns,omitempty"`
}

// Since returns the time of the last transition
func (s Status) Since() time.Time {
	return time.Unix(0, s.Timestamp)
}

// Latest is the read the cache falls back to
type Latest interface {
	Latest(ctx context.Context, location string) (occupancy.Event, bool, error)
}

// StatusCache keeps the latest status of each door in a Redis hash and
// falls back to the event log when the hash is missing.
type StatusCache struct {
	redis  redis.Client
	log    Latest
	ttl    time.Duration
	logger *slog.Logger
}

// NewStatusCache creates a cache. A zero ttl leaves hashes without expiry.
func NewStatusCache(redisClient redis.Client, log Latest, ttl time.Duration, logger *slog.Logger) *StatusCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusCache{
		redis:  redisClient,
		log:    log,
		ttl:    ttl,
		logger: logger,
	}
}

// Update stores e as the current status of location
func (c *StatusCache) Update(ctx context.Context, location string, e occupancy.Event) error {
	key := redis.DoorStatusKey(location)

	fields := map[string]interface{}{
		"closed":    strconv.FormatBool(e.Closed),
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
	if err := c.redis.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("failed to write door status: %w", err)
	}

	if c.ttl > 0 {
		if err := c.redis.Expire(ctx, key, c.ttl); err != nil {
			return fmt.Errorf("failed to set door status TTL: %w", err)
		}
	}

	return nil
}

// Current returns the status of location. Cache failures are logged and
// answered from the event log; a location with no events is reported as
// not Known.
func (c *StatusCache) Current(ctx context.Context, location string) (Status, error) {
	key := redis.DoorStatusKey(location)

	fields, err := c.redis.HGetAll(ctx, key)
	switch {
	case err == nil:
		status, perr := parseStatus(location, fields)
		if perr == nil {
			return status, nil
		}
		c.logger.Warn("Discarding malformed door status", "key", key, "error", perr)
	case !errors.Is(err, redis.ErrKeyNotFound):
		c.logger.Warn("Failed to read door status from cache", "key", key, "error", err)
	}

	e, found, err := c.log.Latest(ctx, location)
	if err != nil {
		return Status{}, fmt.Errorf("failed to load latest door event: %w", err)
	}
	if !found {
		return Status{Location: location}, nil
	}

	if err := c.Update(ctx, location, e); err != nil {
		c.logger.Warn("Failed to refill door status cache", "key", key, "error", err)
	}

	return Status{
		Location:  location,
		Known:     true,
		Closed:    e.Closed,
		Timestamp: e.Timestamp,
	}, nil
}

func parseStatus(location string, fields map[string]string) (Status, error) {
	closed, err := strconv.ParseBool(fields["closed"])
	if err != nil {
		return Status{}, fmt.Errorf("invalid closed field: %w", err)
	}
	ts, err := strconv.ParseInt(fields["timestamp"], 10, 64)
	if err != nil {
		return Status{}, fmt.Errorf("invalid timestamp field: %w", err)
	}
	return Status{
		Location:  location,
		Known:     true,
		Closed:    closed,
		Timestamp: ts,
	}, nil
}
