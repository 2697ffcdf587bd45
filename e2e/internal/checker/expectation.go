package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/saaga0h/doorpi/e2e/internal/scenario"
	"github.com/saaga0h/doorpi/internal/occupancy"
	"github.com/saaga0h/doorpi/pkg/redis"
)

// CapturedMessage is an MQTT message seen during a run
type CapturedMessage struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
	Elapsed float64         `json:"elapsed"`
}

// EventReader reads the door event log
type EventReader interface {
	EventsBetween(ctx context.Context, location string, start, end int64) ([]occupancy.Event, error)
}

// CheckTrigger matches the latest message on exp.Topic against exp.Payload
func CheckTrigger(exp scenario.Expectation, messages []CapturedMessage) (bool, string, interface{}) {
	var latest *CapturedMessage
	for i := range messages {
		if messages[i].Topic == exp.Topic {
			latest = &messages[i]
		}
	}
	if latest == nil {
		return false, fmt.Sprintf("no messages found for topic %q", exp.Topic), nil
	}

	var payload interface{}
	if err := json.Unmarshal(latest.Payload, &payload); err != nil {
		return false, fmt.Sprintf("payload is not JSON: %v", err), string(latest.Payload)
	}

	ok, reason := MatchesExpectation(payload, exp.Payload)
	return ok, reason, payload
}

// CheckStatusField compares one field of the door status hash
func CheckStatusField(ctx context.Context, client redis.Client, location string, exp scenario.Expectation) (bool, string, interface{}) {
	fields, err := client.HGetAll(ctx, redis.DoorStatusKey(location))
	if errors.Is(err, redis.ErrKeyNotFound) {
		return false, fmt.Sprintf("status for %q not found in Redis", location), nil
	}
	if err != nil {
		return false, fmt.Sprintf("Redis error: %v", err), nil
	}

	value, ok := fields[exp.RedisField]
	if !ok {
		return false, fmt.Sprintf("field %q not set", exp.RedisField), fields
	}

	matched, reason := MatchesExpectation(value, exp.Expected)
	return matched, reason, value
}

// CheckEventCount compares the number of transitions logged after since
func CheckEventCount(ctx context.Context, log EventReader, location string, since int64, exp scenario.Expectation) (bool, string, interface{}) {
	events, err := log.EventsBetween(ctx, location, since, math.MaxInt64)
	if err != nil {
		return false, fmt.Sprintf("event log error: %v", err), nil
	}

	if len(events) != *exp.EventCount {
		return false, fmt.Sprintf("expected %d events, got %d", *exp.EventCount, len(events)), len(events)
	}
	return true, "", len(events)
}
