package scenario

import (
	"fmt"
	"strings"
)

var validStates = map[string]bool{
	"closed": true,
	"open":   true,
	"on":     true,
	"off":    true,
}

// ValidateScenario performs validation checks on a loaded scenario
func ValidateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}

	if s.Location == "" {
		return fmt.Errorf("location is required")
	}
	if strings.ContainsAny(s.Location, "/+#") {
		return fmt.Errorf("location %q must be a single topic level", s.Location)
	}

	if err := validateEvents(s.Events); err != nil {
		return fmt.Errorf("events validation failed: %w", err)
	}

	if err := validateExpectations(s.Expectations); err != nil {
		return fmt.Errorf("expectations validation failed: %w", err)
	}

	return nil
}

func validateEvents(events []DoorEvent) error {
	if len(events) == 0 {
		return fmt.Errorf("at least one event is required")
	}

	for i, event := range events {
		if event.Time < 0 {
			return fmt.Errorf("event %d: time cannot be negative", i)
		}
		if i > 0 && event.Time < events[i-1].Time {
			return fmt.Errorf("event %d: events must be in time order", i)
		}
		if !validStates[strings.ToLower(event.State)] {
			return fmt.Errorf("event %d: unknown state %q", i, event.State)
		}
	}

	return nil
}

func validateExpectations(expectations []Expectation) error {
	if len(expectations) == 0 {
		return fmt.Errorf("at least one expectation is required")
	}

	for i, exp := range expectations {
		if exp.Time < 0 {
			return fmt.Errorf("expectation %d: time cannot be negative", i)
		}

		targets := 0
		if exp.Topic != "" {
			targets++
		}
		if exp.RedisField != "" {
			targets++
		}
		if exp.EventCount != nil {
			targets++
		}
		if targets != 1 {
			return fmt.Errorf("expectation %d: exactly one of topic, redis_field or event_count is required", i)
		}

		if exp.Topic != "" && len(exp.Payload) == 0 {
			return fmt.Errorf("expectation %d: topic expectations require a payload", i)
		}
		if exp.EventCount != nil && *exp.EventCount < 0 {
			return fmt.Errorf("expectation %d: event_count cannot be negative", i)
		}
	}

	return nil
}
