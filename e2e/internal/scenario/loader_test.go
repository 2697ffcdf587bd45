package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenario = `
name: open then close
location: e2e-front
events:
  - time: 0
    state: open
  - time: 1
    state: open
    description: duplicate is dropped
  - time: 2
    state: closed
expectations:
  - time: 4
    topic: automation/sensor/door/e2e-front
    payload:
      state: closed
      closed: true
  - time: 4
    redis_field: closed
    expected: "true"
  - time: 4
    event_count: 2
`

func TestLoadScenarioFromBytes(t *testing.T) {
	s, err := LoadScenarioFromBytes([]byte(validScenario))
	require.NoError(t, err)

	assert.Equal(t, "e2e-front", s.Location)
	require.Len(t, s.Events, 3)
	assert.Equal(t, "closed", s.Events[2].State)
	require.Len(t, s.Expectations, 3)
	assert.Equal(t, "mqtt", s.Expectations[0].Layer())
	assert.Equal(t, "redis", s.Expectations[1].Layer())
	assert.Equal(t, "postgres", s.Expectations[2].Layer())
	require.NotNil(t, s.Expectations[2].EventCount)
	assert.Equal(t, 2, *s.Expectations[2].EventCount)
}

func TestLoadScenario_BundledFiles(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, p := range paths {
		_, err := LoadScenario(p)
		assert.NoError(t, err, p)
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{"no name", func(s string) string { return strings.Replace(s, "name: open then close", "", 1) }, "name"},
		{"bad location", func(s string) string { return strings.Replace(s, "location: e2e-front", "location: a/b", 1) }, "location"},
		{"bad state", func(s string) string { return strings.Replace(s, "state: closed\nexpectations", "state: ajar\nexpectations", 1) }, "unknown state"},
		{"unordered events", func(s string) string { return strings.Replace(s, "time: 2\n    state: closed", "time: 0\n    state: closed", 1) }, "time order"},
		{"two targets", func(s string) string {
			return strings.Replace(s, "redis_field: closed", "redis_field: closed\n    event_count: 1", 1)
		}, "exactly one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenarioFromBytes([]byte(tt.mutate(validScenario)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
