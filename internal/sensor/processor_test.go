package sensor

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/doorpi/internal/occupancy"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var receivedAt = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

func newTestProcessor() *Processor {
	p := NewProcessor(discard())
	p.now = func() time.Time { return receivedAt }
	return p
}

func TestProcessor_ParseMessage(t *testing.T) {
	tests := []struct {
		name     string
		topic    string
		payload  string
		want     occupancy.Event
		location string
	}{
		{
			name:     "wrapped closed",
			topic:    "automation/raw/door/front",
			payload:  `{"data":{"state":"closed","timestamp_ns":1700000000123456789}}`,
			want:     occupancy.Event{Timestamp: 1700000000123456789, Closed: true},
			location: "front",
		},
		{
			name:     "bare open",
			topic:    "automation/raw/door/back",
			payload:  `{"state":"open","timestamp_ns":1700000000000000001}`,
			want:     occupancy.Event{Timestamp: 1700000000000000001, Closed: false},
			location: "back",
		},
		{
			name:     "binary sensor on means open",
			topic:    "automation/raw/door/front",
			payload:  `{"data":{"state":"ON","timestamp":"2024-03-04T11:59:00Z"}}`,
			want:     occupancy.Event{Timestamp: receivedAt.Add(-time.Minute).UnixNano(), Closed: false},
			location: "front",
		},
		{
			name:     "binary sensor off means closed",
			topic:    "automation/raw/door/front",
			payload:  `{"data":{"state":"off"}}`,
			want:     occupancy.Event{Timestamp: receivedAt.UnixNano(), Closed: true},
			location: "front",
		},
		{
			name:     "boolean closed field",
			topic:    "automation/raw/door/garage",
			payload:  `{"closed":true}`,
			want:     occupancy.Event{Timestamp: receivedAt.UnixNano(), Closed: true},
			location: "garage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := newTestProcessor().ParseMessage(tt.topic, []byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.location, r.Location)
			assert.Equal(t, tt.topic, r.OriginalTopic)
			assert.Equal(t, tt.want, r.Event)
		})
	}
}

func TestProcessor_ParseMessage_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"bad topic", "automation/raw/door", `{"state":"open"}`},
		{"wrong sensor type", "automation/raw/motion/front", `{"state":"open"}`},
		{"not json", "automation/raw/door/front", `open`},
		{"unknown state", "automation/raw/door/front", `{"state":"ajar"}`},
		{"missing state", "automation/raw/door/front", `{"data":{"battery":90}}`},
		{"fractional timestamp", "automation/raw/door/front", `{"state":"open","timestamp_ns":1.5}`},
		{"bad rfc3339", "automation/raw/door/front", `{"state":"open","timestamp":"yesterday"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestProcessor().ParseMessage(tt.topic, []byte(tt.payload))
			assert.True(t, errors.Is(err, ErrInvalidReading), "got %v", err)
		})
	}
}

func TestProcessor_BuildTriggerPayload(t *testing.T) {
	r := &Reading{
		Location: "front",
		Event:    occupancy.Event{Timestamp: 1700000000123456789, Closed: false},
	}

	data, err := newTestProcessor().BuildTriggerPayload(r)
	require.NoError(t, err)

	var got map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&got))

	assert.Equal(t, "front", got["location"])
	assert.Equal(t, false, got["closed"])
	assert.Equal(t, "open", got["state"])
	assert.Equal(t, json.Number("1700000000123456789"), got["timestamp_ns"])
}
