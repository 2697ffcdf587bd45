package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/saaga0h/doorpi/e2e/internal/checker"
	"github.com/saaga0h/doorpi/e2e/internal/reporter"
	"github.com/saaga0h/doorpi/e2e/internal/scenario"
	"github.com/saaga0h/doorpi/pkg/mqtt"
	"github.com/saaga0h/doorpi/pkg/redis"
)

// Runner plays a scenario against a running door agent
type Runner struct {
	mqtt      mqtt.Client
	redis     redis.Client
	log       checker.EventReader
	timeScale int
	settle    time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	start    time.Time
	since    int64
	captured []checker.CapturedMessage
}

// NewRunner creates a runner on top of connected clients. timeScale divides
// every scenario offset.
func NewRunner(mqttClient mqtt.Client, redisClient redis.Client, log checker.EventReader, timeScale int, logger *slog.Logger) *Runner {
	return &Runner{
		mqtt:      mqttClient,
		redis:     redisClient,
		log:       log,
		timeScale: timeScale,
		settle:    2 * time.Second,
		logger:    logger,
	}
}

// Run executes a scenario and checks its expectations
func (r *Runner) Run(ctx context.Context, s *scenario.Scenario) (*scenario.TestResult, []reporter.TimelineEvent, error) {
	r.logger.Info("Starting scenario", "name", s.Name, "location", s.Location)

	if err := r.redis.Del(ctx, redis.DoorStatusKey(s.Location)); err != nil {
		r.logger.Warn("Failed to clear door status", "location", s.Location, "error", err)
	}

	if err := r.mqtt.Subscribe(mqtt.DoorTriggerTopic(s.Location), 1, r.capture); err != nil {
		return nil, nil, fmt.Errorf("failed to subscribe to trigger topic: %w", err)
	}

	// Put the door in the opposite state so the first scripted event is a
	// transition whatever an earlier run left behind
	if len(s.Events) > 0 {
		prime := scenario.DoorEvent{State: oppositeState(s.Events[0].State)}
		if err := r.publish(s.Location, prime); err != nil {
			return nil, nil, fmt.Errorf("failed to publish priming event: %w", err)
		}
	}

	// Let the retained trigger and the priming event settle before the clock starts
	select {
	case <-time.After(r.settle):
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	r.mu.Lock()
	r.start = time.Now()
	r.since = r.start.UnixNano() - 1
	r.captured = nil
	r.mu.Unlock()

	start := r.start
	var timeline []reporter.TimelineEvent

	for _, event := range s.Events {
		if err := WaitUntil(ctx, start, event.Time, r.timeScale); err != nil {
			return nil, nil, err
		}
		elapsed := GetElapsed(start)

		if err := r.publish(s.Location, event); err != nil {
			return nil, nil, fmt.Errorf("failed to publish event: %w", err)
		}

		desc := event.State
		if event.Description != "" {
			desc = fmt.Sprintf("%s (%s)", event.State, event.Description)
		}
		r.logger.Info("Published door event", "elapsed", elapsed, "state", event.State)
		timeline = append(timeline, reporter.TimelineEvent{
			Elapsed:     elapsed,
			Layer:       "sensor",
			Description: desc,
		})
	}

	expectations := make([]scenario.Expectation, len(s.Expectations))
	copy(expectations, s.Expectations)
	sort.SliceStable(expectations, func(i, j int) bool {
		return expectations[i].Time < expectations[j].Time
	})

	var results []scenario.ExpectationResult
	for _, exp := range expectations {
		if err := WaitUntil(ctx, start, exp.Time, r.timeScale); err != nil {
			return nil, nil, err
		}
		elapsed := GetElapsed(start)

		passed, reason, actual := r.check(ctx, s.Location, exp)
		results = append(results, scenario.ExpectationResult{
			Expectation: exp,
			Passed:      passed,
			Reason:      reason,
			Actual:      actual,
		})

		if passed {
			r.logger.Info("Expectation passed", "layer", exp.Layer(), "elapsed", elapsed)
		} else {
			r.logger.Warn("Expectation failed", "layer", exp.Layer(), "elapsed", elapsed, "reason", reason)
		}

		timeline = append(timeline, reporter.TimelineEvent{
			Elapsed:     elapsed,
			Layer:       exp.Layer(),
			Description: describe(exp),
			Success:     passed,
			IsCheck:     true,
		})
	}

	result := &scenario.TestResult{
		Scenario:     s,
		StartTime:    start,
		EndTime:      time.Now(),
		Expectations: results,
	}
	for _, res := range results {
		if res.Passed {
			result.PassedCount++
		} else {
			result.FailedCount++
		}
	}
	result.Passed = result.FailedCount == 0

	return result, timeline, nil
}

func (r *Runner) check(ctx context.Context, location string, exp scenario.Expectation) (bool, string, interface{}) {
	switch exp.Layer() {
	case "mqtt":
		return checker.CheckTrigger(exp, r.Captured())
	case "redis":
		return checker.CheckStatusField(ctx, r.redis, location, exp)
	default:
		if r.log == nil {
			return false, "event log not configured", nil
		}
		return checker.CheckEventCount(ctx, r.log, location, r.since, exp)
	}
}

func (r *Runner) publish(location string, event scenario.DoorEvent) error {
	payload, err := json.Marshal(map[string]interface{}{
		"data": map[string]interface{}{
			"state":        event.State,
			"timestamp_ns": time.Now().UnixNano(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	return r.mqtt.Publish(mqtt.RawDoorTopic(location), 1, false, payload)
}

func (r *Runner) capture(msg mqtt.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var elapsed float64
	if !r.start.IsZero() {
		elapsed = GetElapsed(r.start)
	}
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())

	r.captured = append(r.captured, checker.CapturedMessage{
		Topic:   msg.Topic(),
		Payload: payload,
		Elapsed: elapsed,
	})
}

// Captured returns the trigger messages seen since the scenario started
func (r *Runner) Captured() []checker.CapturedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]checker.CapturedMessage, len(r.captured))
	copy(out, r.captured)
	return out
}

// SaveCapture writes the captured messages as JSON
func (r *Runner) SaveCapture(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(r.Captured(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal capture: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write capture: %w", err)
	}
	return nil
}

func oppositeState(state string) string {
	switch strings.ToLower(state) {
	case "closed", "off":
		return "open"
	default:
		return "closed"
	}
}

func describe(exp scenario.Expectation) string {
	if exp.Description != "" {
		return exp.Description
	}
	switch exp.Layer() {
	case "mqtt":
		return exp.Topic
	case "redis":
		return fmt.Sprintf("%s = %s", exp.RedisField, exp.Expected)
	default:
		return fmt.Sprintf("event_count = %d", *exp.EventCount)
	}
}
