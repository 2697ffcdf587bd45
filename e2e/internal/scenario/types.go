package scenario

import "time"

// Scenario is a scripted sequence of door readings and the outcomes they
// should produce
type Scenario struct {
	Name         string        `yaml:"name" json:"name"`
	Description  string        `yaml:"description" json:"description"`
	Location     string        `yaml:"location" json:"location"`
	Events       []DoorEvent   `yaml:"events" json:"events"`
	Expectations []Expectation `yaml:"expectations" json:"expectations"`
}

// DoorEvent is a raw reading published at Time seconds from start
type DoorEvent struct {
	Time        int    `yaml:"time" json:"time"`
	State       string `yaml:"state" json:"state"` // closed, open, on, off
	Description string `yaml:"description" json:"description"`
}

// Expectation is checked at Time seconds from start. Exactly one of Topic,
// RedisField and EventCount selects what is checked.
type Expectation struct {
	Time        int    `yaml:"time" json:"time"`
	Description string `yaml:"description" json:"description"`

	// Latest message on the trigger topic, matched field by field
	Topic   string                 `yaml:"topic,omitempty" json:"topic,omitempty"`
	Payload map[string]interface{} `yaml:"payload,omitempty" json:"payload,omitempty"`

	// Field of the door status hash
	RedisField string `yaml:"redis_field,omitempty" json:"redis_field,omitempty"`
	Expected   string `yaml:"expected,omitempty" json:"expected,omitempty"`

	// Number of logged transitions for the location
	EventCount *int `yaml:"event_count,omitempty" json:"event_count,omitempty"`
}

// Layer names the store an expectation inspects
func (e *Expectation) Layer() string {
	switch {
	case e.Topic != "":
		return "mqtt"
	case e.RedisField != "":
		return "redis"
	default:
		return "postgres"
	}
}

// TestResult represents the outcome of running a scenario
type TestResult struct {
	Scenario     *Scenario           `json:"scenario"`
	StartTime    time.Time           `json:"start_time"`
	EndTime      time.Time           `json:"end_time"`
	Passed       bool                `json:"passed"`
	PassedCount  int                 `json:"passed_count"`
	FailedCount  int                 `json:"failed_count"`
	Expectations []ExpectationResult `json:"expectations"`
}

// ExpectationResult represents the result of checking a single expectation
type ExpectationResult struct {
	Expectation Expectation `json:"expectation"`
	Passed      bool        `json:"passed"`
	Reason      string      `json:"reason,omitempty"`
	Actual      interface{} `json:"actual,omitempty"`
}
