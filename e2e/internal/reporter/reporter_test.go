package reporter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/doorpi/e2e/internal/scenario"
)

func sampleResult() *scenario.TestResult {
	two := 2
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return &scenario.TestResult{
		Scenario:    &scenario.Scenario{Name: "door transitions", Location: "front"},
		StartTime:   start,
		EndTime:     start.Add(95 * time.Second),
		PassedCount: 2,
		FailedCount: 1,
		Expectations: []scenario.ExpectationResult{
			{
				Expectation: scenario.Expectation{EventCount: &two},
				Passed:      false,
				Reason:      "expected 2 events, got 1",
			},
			{
				Expectation: scenario.Expectation{
					Topic:   "automation/sensor/door/front",
					Payload: map[string]interface{}{"state": "open", "closed": false},
				},
				Passed: true,
			},
			{
				Expectation: scenario.Expectation{RedisField: "closed", Expected: "false"},
				Passed:      true,
			},
		},
	}
}

func TestGenerateTimeline(t *testing.T) {
	events := []TimelineEvent{
		{Elapsed: 0.01, Layer: "sensor", Description: "open"},
		{Elapsed: 2.5, Layer: "mqtt", Description: "trigger", IsCheck: true, Success: true},
		{Elapsed: 3, Layer: "postgres", Description: "count", IsCheck: true},
	}

	out := GenerateTimeline(sampleResult(), events)

	assert.Contains(t, out, "Scenario: door transitions")
	assert.Contains(t, out, "Duration: 1m 35.0s")
	assert.Contains(t, out, "→ sensor")
	assert.Contains(t, out, "✓ mqtt")
	assert.Contains(t, out, "✗ postgres")
	assert.Contains(t, out, "✓ automation/sensor/door/front: closed=false, state=open")
	assert.Contains(t, out, "✗ event_count: expected 2 events, got 1")
	assert.Contains(t, out, "1 TEST(S) FAILED")

	// layers print in pipeline order
	assert.Less(t, strings.Index(out, "Layer: mqtt"), strings.Index(out, "Layer: redis"))
	assert.Less(t, strings.Index(out, "Layer: redis"), strings.Index(out, "Layer: postgres"))
}

func TestSaveSummary(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "summary.json")
	require.NoError(t, SaveSummary(sampleResult(), p))

	data, err := os.ReadFile(p)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(1), decoded["failed_count"])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestSaveTimeline(t *testing.T) {
	p := filepath.Join(t.TempDir(), "timelines", "door.txt")
	require.NoError(t, SaveTimeline("hello\n", p))

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}
