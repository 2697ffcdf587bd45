package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/doorpi/internal/doorlog"
	"github.com/saaga0h/doorpi/internal/occupancy"
	"github.com/saaga0h/doorpi/pkg/config"
	"github.com/saaga0h/doorpi/pkg/mqtt/mqtttest"
	"github.com/saaga0h/doorpi/pkg/redis"
	"github.com/saaga0h/doorpi/pkg/redis/redistest"
)

type failingStore struct {
	*doorlog.Memory
}

func (failingStore) Append(ctx context.Context, location string, e occupancy.Event) error {
	return errors.New("disk full")
}

type harness struct {
	agent *Agent
	mqtt  *mqtttest.Fake
	redis *redistest.Fake
	log   *doorlog.Memory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		mqtt:  mqtttest.New(),
		redis: redistest.New(),
		log:   doorlog.NewMemory(),
	}
	cfg := config.NewConfig()
	cfg.ServiceName = "door-agent"
	h.agent = NewAgent(h.mqtt, h.redis, h.log, cfg, discard())
	return h
}

func reading(location string, ts int64, closed bool) *Reading {
	return &Reading{
		Location:      location,
		OriginalTopic: "automation/raw/door/" + location,
		Event:         occupancy.Event{Timestamp: ts, Closed: closed},
	}
}

func TestAgent_ProcessStoresTransitionsOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	before := testutil.ToFloat64(h.agent.metrics.readings.WithLabelValues("front", resultDuplicate))

	steps := []struct {
		ts         int64
		closed     bool
		wantStored bool
	}{
		{100, false, true},
		{200, false, false},
		{300, true, true},
		{400, true, false},
		{500, false, true},
	}
	for _, s := range steps {
		stored, err := h.agent.Process(ctx, reading("front", s.ts, s.closed))
		require.NoError(t, err)
		assert.Equal(t, s.wantStored, stored, "ts %d", s.ts)
	}

	events, err := h.log.EventsBetween(ctx, "front", 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, []occupancy.Event{
		{Timestamp: 100, Closed: false},
		{Timestamp: 300, Closed: true},
		{Timestamp: 500, Closed: false},
	}, events)

	assert.Equal(t, map[string]string{"closed": "false", "timestamp": "500"},
		h.redis.Hashes[redis.DoorStatusKey("front")])

	after := testutil.ToFloat64(h.agent.metrics.readings.WithLabelValues("front", resultDuplicate))
	assert.Equal(t, 2.0, after-before)

	published := h.mqtt.Published()
	require.Len(t, published, 3)
	last := published[2]
	assert.Equal(t, "automation/sensor/door/front", last.Topic)
	assert.True(t, last.Retained)

	var trigger TriggerPayload
	require.NoError(t, json.Unmarshal(last.Payload, &trigger))
	assert.Equal(t, TriggerPayload{Location: "front", Closed: false, State: "open", Timestamp: 500}, trigger)
}

func TestAgent_LateReadingIsDropped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	before := testutil.ToFloat64(h.agent.metrics.readings.WithLabelValues("front", resultStale))

	steps := []struct {
		ts         int64
		closed     bool
		wantStored bool
	}{
		{100, true, true},
		{200, false, true},
		{150, true, false},
		{200, true, true},
	}
	for _, s := range steps {
		stored, err := h.agent.Process(ctx, reading("front", s.ts, s.closed))
		require.NoError(t, err)
		assert.Equal(t, s.wantStored, stored, "ts %d", s.ts)
	}

	events, err := h.log.EventsBetween(ctx, "front", 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, []occupancy.Event{
		{Timestamp: 100, Closed: true},
		{Timestamp: 200, Closed: false},
		{Timestamp: 200, Closed: true},
	}, events)

	assert.Equal(t, map[string]string{"closed": "true", "timestamp": "200"},
		h.redis.Hashes[redis.DoorStatusKey("front")])

	after := testutil.ToFloat64(h.agent.metrics.readings.WithLabelValues("front", resultStale))
	assert.Equal(t, 1.0, after-before)
	assert.Len(t, h.mqtt.Published(), 3)
}

func TestAgent_FirstClosedReadingIsStored(t *testing.T) {
	h := newHarness(t)

	stored, err := h.agent.Process(context.Background(), reading("front", 100, true))
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestAgent_LocationsAreIndependent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.agent.Process(ctx, reading("front", 100, false))
	require.NoError(t, err)
	stored, err := h.agent.Process(ctx, reading("back", 150, false))
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestAgent_StoreFailureSkipsPublish(t *testing.T) {
	h := newHarness(t)
	cfg := config.NewConfig()
	agent := NewAgent(h.mqtt, h.redis, failingStore{doorlog.NewMemory()}, cfg, discard())

	stored, err := agent.Process(context.Background(), reading("front", 100, false))
	assert.Error(t, err)
	assert.False(t, stored)
	assert.Empty(t, h.mqtt.Published())
}

func TestAgent_CacheFailureStillStores(t *testing.T) {
	h := newHarness(t)
	h.redis.Err = errors.New("connection refused")

	stored, err := h.agent.Process(context.Background(), reading("front", 100, false))
	require.NoError(t, err)
	assert.True(t, stored)
	assert.Len(t, h.mqtt.Published(), 1)
}

func TestAgent_StartSubscribesAndHandles(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.agent.Start(ctx) }()

	require.Eventually(t, func() bool {
		return h.mqtt.Deliver("automation/raw/door/+", "automation/raw/door/front",
			[]byte(`{"data":{"state":"open","timestamp_ns":1700000000000000000}}`))
	}, time.Second, 10*time.Millisecond)

	// Unparseable messages are dropped
	h.mqtt.Deliver("automation/raw/door/+", "automation/raw/door/front", []byte(`{`))

	cancel()
	require.NoError(t, <-done)
	assert.True(t, h.mqtt.IsConnected())

	e, found, err := h.log.Latest(context.Background(), "front")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, occupancy.Event{Timestamp: 1700000000000000000, Closed: false}, e)

	require.NoError(t, h.agent.Stop())
	assert.False(t, h.mqtt.IsConnected())
}

func TestAgent_StartFailsWithoutBroker(t *testing.T) {
	h := newHarness(t)
	h.mqtt.ConnectErr = errors.New("refused")

	assert.Error(t, h.agent.Start(context.Background()))
}
