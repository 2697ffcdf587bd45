package doorlog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/doorpi/internal/occupancy"
	"github.com/saaga0h/doorpi/pkg/redis"
	"github.com/saaga0h/doorpi/pkg/redis/redistest"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failingLog struct{}

func (failingLog) Latest(ctx context.Context, location string) (occupancy.Event, bool, error) {
	return occupancy.Event{}, false, errors.New("database unavailable")
}

func TestStatusCache_UpdateThenCurrent(t *testing.T) {
	ctx := context.Background()
	fake := redistest.New()
	cache := NewStatusCache(fake, NewMemory(), time.Hour, discard())

	require.NoError(t, cache.Update(ctx, "front", occupancy.Event{Timestamp: 42, Closed: true}))

	key := redis.DoorStatusKey("front")
	assert.Equal(t, map[string]string{"closed": "true", "timestamp": "42"}, fake.Hashes[key])
	assert.Equal(t, time.Hour, fake.TTLs[key])

	status, err := cache.Current(ctx, "front")
	require.NoError(t, err)
	assert.Equal(t, Status{Location: "front", Known: true, Closed: true, Timestamp: 42}, status)
}

func TestStatusCache_MissFallsBackAndRefills(t *testing.T) {
	ctx := context.Background()
	fake := redistest.New()
	log := NewMemory()
	require.NoError(t, log.Append(ctx, "front", occupancy.Event{Timestamp: 10, Closed: true}))
	require.NoError(t, log.Append(ctx, "front", occupancy.Event{Timestamp: 20, Closed: false}))

	cache := NewStatusCache(fake, log, 0, discard())

	status, err := cache.Current(ctx, "front")
	require.NoError(t, err)
	assert.Equal(t, Status{Location: "front", Known: true, Closed: false, Timestamp: 20}, status)

	key := redis.DoorStatusKey("front")
	assert.Equal(t, "20", fake.Hashes[key]["timestamp"])
	_, hasTTL := fake.TTLs[key]
	assert.False(t, hasTTL)
}

func TestStatusCache_UnknownLocation(t *testing.T) {
	cache := NewStatusCache(redistest.New(), NewMemory(), time.Hour, discard())

	status, err := cache.Current(context.Background(), "garage")
	require.NoError(t, err)
	assert.Equal(t, Status{Location: "garage"}, status)
}

func TestStatusCache_MalformedHashIgnored(t *testing.T) {
	ctx := context.Background()
	fake := redistest.New()
	fake.Hashes[redis.DoorStatusKey("front")] = map[string]string{"closed": "maybe"}

	log := NewMemory()
	require.NoError(t, log.Append(ctx, "front", occupancy.Event{Timestamp: 5, Closed: true}))

	status, err := NewStatusCache(fake, log, 0, discard()).Current(ctx, "front")
	require.NoError(t, err)
	assert.True(t, status.Closed)
	assert.Equal(t, int64(5), status.Timestamp)
}

func TestStatusCache_RedisDown(t *testing.T) {
	ctx := context.Background()
	fake := redistest.New()
	fake.Err = errors.New("connection refused")

	log := NewMemory()
	require.NoError(t, log.Append(ctx, "front", occupancy.Event{Timestamp: 7, Closed: false}))

	status, err := NewStatusCache(fake, log, 0, discard()).Current(ctx, "front")
	require.NoError(t, err)
	assert.True(t, status.Known)
	assert.False(t, status.Closed)

	assert.Error(t, NewStatusCache(fake, log, 0, discard()).Update(ctx, "front", occupancy.Event{}))
}

func TestStatusCache_LogFailure(t *testing.T) {
	_, err := NewStatusCache(redistest.New(), failingLog{}, 0, discard()).Current(context.Background(), "front")
	assert.Error(t, err)
}

func TestStatus_Since(t *testing.T) {
	s := Status{Timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).UnixNano()}
	assert.True(t, s.Since().Equal(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)))
}
