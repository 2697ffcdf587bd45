package executor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/doorpi/e2e/internal/scenario"
	"github.com/saaga0h/doorpi/internal/doorlog"
	"github.com/saaga0h/doorpi/pkg/mqtt"
	"github.com/saaga0h/doorpi/pkg/mqtt/mqtttest"
	"github.com/saaga0h/doorpi/pkg/redis"
	"github.com/saaga0h/doorpi/pkg/redis/redistest"
)

func newTestRunner(t *testing.T) (*Runner, *mqtttest.Fake, *redistest.Fake) {
	t.Helper()
	m := mqtttest.New()
	require.NoError(t, m.Connect(context.Background()))
	rc := redistest.New()

	r := NewRunner(m, rc, doorlog.NewMemory(), 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.settle = 0
	return r, m, rc
}

func TestRunner_Run(t *testing.T) {
	r, m, rc := newTestRunner(t)
	rc.Hashes[redis.DoorStatusKey("front")] = map[string]string{"closed": "true"}

	zero := 0
	s := &scenario.Scenario{
		Name:     "no agent",
		Location: "front",
		Events:   []scenario.DoorEvent{{Time: 0, State: "open"}},
		Expectations: []scenario.Expectation{
			{Time: 0, RedisField: "closed", Expected: "false"},
			{Time: 0, EventCount: &zero},
		},
	}

	result, timeline, err := r.Run(context.Background(), s)
	require.NoError(t, err)

	// the stale status is cleared and nothing consumes the readings
	assert.False(t, result.Passed)
	assert.Equal(t, 1, result.PassedCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Contains(t, result.Expectations[0].Reason, "not found")
	require.Len(t, timeline, 3)
	assert.Equal(t, "sensor", timeline[0].Layer)

	published := m.Published()
	require.Len(t, published, 2)
	for _, p := range published {
		assert.Equal(t, mqtt.RawDoorTopic("front"), p.Topic)
	}

	var first struct {
		Data struct {
			State       string `json:"state"`
			TimestampNs int64  `json:"timestamp_ns"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(published[0].Payload, &first))
	assert.Equal(t, "closed", first.Data.State, "priming reading is the opposite state")
	assert.Positive(t, first.Data.TimestampNs)
}

func TestRunner_CapturesTriggers(t *testing.T) {
	r, m, _ := newTestRunner(t)

	s := &scenario.Scenario{
		Name:     "capture",
		Location: "front",
		Events:   []scenario.DoorEvent{{Time: 0, State: "closed"}},
		Expectations: []scenario.Expectation{{
			Time:    0,
			Topic:   mqtt.DoorTriggerTopic("front"),
			Payload: map[string]interface{}{"closed": true},
		}},
	}

	result, _, err := r.Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FailedCount)
	assert.Contains(t, result.Expectations[0].Reason, "no messages")

	require.True(t, m.Deliver(mqtt.DoorTriggerTopic("front"), mqtt.DoorTriggerTopic("front"), []byte(`{"closed":true}`)))
	captured := r.Captured()
	require.NotEmpty(t, captured)
	assert.JSONEq(t, `{"closed":true}`, string(captured[len(captured)-1].Payload))
}

func TestRunner_CancelledContext(t *testing.T) {
	r, _, _ := newTestRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &scenario.Scenario{
		Name:         "late",
		Location:     "front",
		Events:       []scenario.DoorEvent{{Time: 60, State: "open"}},
		Expectations: []scenario.Expectation{{Time: 61, RedisField: "closed", Expected: "false"}},
	}

	_, _, err := r.Run(ctx, s)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitUntil(t *testing.T) {
	start := time.Now()
	require.NoError(t, WaitUntil(context.Background(), start, 0, 1))

	// 2s scaled by 100 is 20ms
	require.NoError(t, WaitUntil(context.Background(), start, 2, 100))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestOppositeState(t *testing.T) {
	assert.Equal(t, "open", oppositeState("closed"))
	assert.Equal(t, "open", oppositeState("OFF"))
	assert.Equal(t, "closed", oppositeState("open"))
	assert.Equal(t, "closed", oppositeState("on"))
}
