package doorlog

import (
	"context"
	"math"
	"slices"
	"sync"

	"github.com/saaga0h/doorpi/internal/occupancy"
)

// Memory is an in-process event log with the same query semantics as Store.
// It backs tests and single-binary demos.
type Memory struct {
	mu     sync.RWMutex
	events map[string][]occupancy.Event
}

var _ occupancy.EventLog = (*Memory)(nil)

// NewMemory returns an empty log
func NewMemory() *Memory {
	return &Memory{events: make(map[string][]occupancy.Event)}
}

// Append inserts e keeping each location ordered by timestamp. Events with
// equal timestamps keep insertion order.
func (m *Memory) Append(ctx context.Context, location string, e occupancy.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.events[location]
	i, _ := slices.BinarySearchFunc(log, e.Timestamp+1, func(x occupancy.Event, t int64) int {
		switch {
		case x.Timestamp < t:
			return -1
		case x.Timestamp > t:
			return 1
		}
		return 0
	})
	m.events[location] = slices.Insert(log, i, e)
	return nil
}

func (m *Memory) EventsBetween(ctx context.Context, location string, start, end int64) ([]occupancy.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []occupancy.Event
	for _, e := range m.events[location] {
		if e.Timestamp > start && e.Timestamp < end {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) LatestAtOrBefore(ctx context.Context, location string, t int64) (occupancy.Event, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log := m.events[location]
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Timestamp <= t {
			return log[i], true, nil
		}
	}
	return occupancy.Event{}, false, nil
}

func (m *Memory) Latest(ctx context.Context, location string) (occupancy.Event, bool, error) {
	return m.LatestAtOrBefore(ctx, location, math.MaxInt64)
}
