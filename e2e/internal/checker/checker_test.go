package checker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/doorpi/e2e/internal/scenario"
	"github.com/saaga0h/doorpi/internal/doorlog"
	"github.com/saaga0h/doorpi/internal/occupancy"
	"github.com/saaga0h/doorpi/pkg/redis"
	"github.com/saaga0h/doorpi/pkg/redis/redistest"
)

func TestMatchesExpectation(t *testing.T) {
	tests := []struct {
		name     string
		actual   interface{}
		expected interface{}
		want     bool
	}{
		{"equal strings", "closed", "closed", true},
		{"different strings", "open", "closed", false},
		{"bools", true, true, true},
		{"bool type mismatch", "true", true, false},
		{"numbers", 1.0, 1, true},
		{"regex", "front", "~^fr~", true},
		{"regex miss", "back", "~^fr~", false},
		{"greater than", 1.7e18, ">1e18", true},
		{"less or equal", 5.0, "<=4", false},
		{"numeric string comparison", "42", ">=42", true},
		{"nested map", map[string]interface{}{"a": "b", "c": 1.0}, map[string]interface{}{"a": "b"}, true},
		{"missing key", map[string]interface{}{"a": "b"}, map[string]interface{}{"z": "b"}, false},
		{"nil both", nil, nil, true},
		{"nil actual", nil, "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := MatchesExpectation(tt.actual, tt.expected)
			assert.Equal(t, tt.want, got, reason)
		})
	}
}

func TestCheckTrigger_UsesLatestMessage(t *testing.T) {
	exp := scenario.Expectation{
		Topic:   "automation/sensor/door/front",
		Payload: map[string]interface{}{"state": "closed", "closed": true},
	}
	messages := []CapturedMessage{
		{Topic: "automation/sensor/door/front", Payload: json.RawMessage(`{"state":"open","closed":false}`)},
		{Topic: "automation/sensor/door/back", Payload: json.RawMessage(`{"state":"open","closed":false}`)},
		{Topic: "automation/sensor/door/front", Payload: json.RawMessage(`{"state":"closed","closed":true}`)},
	}

	ok, reason, _ := CheckTrigger(exp, messages)
	assert.True(t, ok, reason)

	ok, _, _ = CheckTrigger(exp, messages[:2])
	assert.False(t, ok)

	ok, _, _ = CheckTrigger(exp, nil)
	assert.False(t, ok)
}

func TestCheckStatusField(t *testing.T) {
	fake := redistest.New()
	exp := scenario.Expectation{RedisField: "closed", Expected: "true"}

	ok, _, _ := CheckStatusField(context.Background(), fake, "front", exp)
	assert.False(t, ok)

	require.NoError(t, fake.HSet(context.Background(), redis.DoorStatusKey("front"),
		map[string]interface{}{"closed": "true", "timestamp": "1"}))

	ok, reason, _ := CheckStatusField(context.Background(), fake, "front", exp)
	assert.True(t, ok, reason)
}

func TestCheckEventCount(t *testing.T) {
	ctx := context.Background()
	log := doorlog.NewMemory()
	require.NoError(t, log.Append(ctx, "front", occupancy.Event{Timestamp: 1, Closed: false}))
	require.NoError(t, log.Append(ctx, "front", occupancy.Event{Timestamp: 2, Closed: true}))

	two := 2
	ok, reason, actual := CheckEventCount(ctx, log, "front", 0, scenario.Expectation{EventCount: &two})
	assert.True(t, ok, reason)
	assert.Equal(t, 2, actual)

	three := 3
	ok, _, _ = CheckEventCount(ctx, log, "front", 0, scenario.Expectation{EventCount: &three})
	assert.False(t, ok)

	one := 1
	ok, reason, _ = CheckEventCount(ctx, log, "front", 1, scenario.Expectation{EventCount: &one})
	assert.True(t, ok, reason)
}
