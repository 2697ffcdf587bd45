package sensor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/saaga0h/doorpi/internal/occupancy"
	"github.com/saaga0h/doorpi/pkg/mqtt"
)

// ErrInvalidReading is wrapped by every parse failure
var ErrInvalidReading = errors.New("invalid door reading")

// Processor handles parsing of raw door messages
type Processor struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewProcessor creates a new message processor
func NewProcessor(logger *slog.Logger) *Processor {
	return &Processor{
		logger: logger,
		now:    time.Now,
	}
}

// Reading is a parsed door message
type Reading struct {
	Location      string
	OriginalTopic string
	Event         occupancy.Event
}

// State returns "closed" or "open"
func (r *Reading) State() string {
	return stateName(r.Event.Closed)
}

// TriggerPayload is published after a transition has been stored
type TriggerPayload struct {
	Location  string `json:"location"`
	Closed    bool   `json:"closed"`
	State     string `json:"state"`
	Timestamp int64  `json:"timestamp_ns"`
}

// ParseMessage parses a raw door message.
// Topic pattern: automation/raw/door/{location}
//
// The payload is {"data": {...}} or the bare object. The status is read from
// "state" (closed, open, on, off; on means open) or a boolean "closed". The
// time comes from "timestamp_ns", then an RFC 3339 "timestamp", then the
// receive time.
func (p *Processor) ParseMessage(topic string, payload []byte) (*Reading, error) {
	sensorType, location, err := mqtt.ParseSensorTopic(topic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReading, err)
	}
	if sensorType != "door" {
		return nil, fmt.Errorf("%w: unexpected sensor type %q", ErrInvalidReading, sensorType)
	}

	// Nanosecond timestamps do not fit a float64
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var rawData map[string]interface{}
	if err := dec.Decode(&rawData); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON: %v", ErrInvalidReading, err)
	}

	// Messages are normally wrapped in {"data": {...}}
	data, ok := rawData["data"].(map[string]interface{})
	if !ok {
		data = rawData
	}

	closed, err := parseClosed(data)
	if err != nil {
		return nil, err
	}

	ts, err := p.parseTimestamp(data)
	if err != nil {
		return nil, err
	}

	reading := &Reading{
		Location:      location,
		OriginalTopic: topic,
		Event:         occupancy.Event{Timestamp: ts, Closed: closed},
	}

	p.logger.Debug("Parsed door message",
		"location", location,
		"state", reading.State(),
		"timestamp_ns", ts)

	return reading, nil
}

// BuildTriggerPayload creates the payload announcing a stored transition
func (p *Processor) BuildTriggerPayload(r *Reading) ([]byte, error) {
	data, err := json.Marshal(TriggerPayload{
		Location:  r.Location,
		Closed:    r.Event.Closed,
		State:     r.State(),
		Timestamp: r.Event.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trigger payload: %w", err)
	}
	return data, nil
}

func parseClosed(data map[string]interface{}) (bool, error) {
	if s, ok := data["state"].(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "closed", "off":
			return true, nil
		case "open", "on":
			return false, nil
		default:
			return false, fmt.Errorf("%w: unknown state %q", ErrInvalidReading, s)
		}
	}

	if c, ok := data["closed"].(bool); ok {
		return c, nil
	}

	return false, fmt.Errorf("%w: missing state", ErrInvalidReading)
}

func (p *Processor) parseTimestamp(data map[string]interface{}) (int64, error) {
	if n, ok := data["timestamp_ns"].(json.Number); ok {
		ts, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: invalid timestamp_ns %q", ErrInvalidReading, n)
		}
		return ts, nil
	}

	if s, ok := data["timestamp"].(string); ok && s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid timestamp %q", ErrInvalidReading, s)
		}
		return t.UnixNano(), nil
	}

	return p.now().UnixNano(), nil
}

func stateName(closed bool) string {
	if closed {
		return "closed"
	}
	return "open"
}
