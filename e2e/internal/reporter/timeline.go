package reporter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/saaga0h/doorpi/e2e/internal/scenario"
)

// TimelineEvent represents a single event in the timeline
type TimelineEvent struct {
	Elapsed     float64
	Layer       string
	Description string
	Success     bool // ignored unless IsCheck
	IsCheck     bool
}

var layerOrder = map[string]int{"mqtt": 0, "redis": 1, "postgres": 2}

// GenerateTimeline creates a human-readable timeline of a scenario run
func GenerateTimeline(result *scenario.TestResult, events []TimelineEvent) string {
	var sb strings.Builder

	duration := result.EndTime.Sub(result.StartTime)

	sb.WriteString("╔══════════════════════════════════════════════════════════╗\n")
	sb.WriteString(fmt.Sprintf("║  Scenario: %-46s║\n", truncate(result.Scenario.Name, 46)))
	sb.WriteString(fmt.Sprintf("║  Location: %-46s║\n", truncate(result.Scenario.Location, 46)))
	sb.WriteString(fmt.Sprintf("║  Duration: %-46s║\n", formatDuration(duration)))
	sb.WriteString("╚══════════════════════════════════════════════════════════╝\n\n")

	for _, event := range events {
		icon := "→"
		if event.IsCheck {
			icon = mark(event.Success)
		}

		sb.WriteString(fmt.Sprintf("[%7.2fs] %s %-9s: %s\n",
			event.Elapsed,
			icon,
			event.Layer,
			event.Description,
		))
	}

	sb.WriteString("\n=== Expectations ===\n")

	byLayer := make(map[string][]scenario.ExpectationResult)
	for _, res := range result.Expectations {
		layer := res.Expectation.Layer()
		byLayer[layer] = append(byLayer[layer], res)
	}

	layers := make([]string, 0, len(byLayer))
	for layer := range byLayer {
		layers = append(layers, layer)
	}
	sort.Slice(layers, func(i, j int) bool { return layerOrder[layers[i]] < layerOrder[layers[j]] })

	for _, layer := range layers {
		sb.WriteString(fmt.Sprintf("Layer: %s\n", layer))
		for _, res := range byLayer[layer] {
			sb.WriteString(fmt.Sprintf("  %s %s", mark(res.Passed), target(res.Expectation)))
			if !res.Passed {
				sb.WriteString(fmt.Sprintf(": %s", res.Reason))
			} else if conditions := conditions(res.Expectation); conditions != "" {
				sb.WriteString(fmt.Sprintf(": %s", conditions))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	status := "✓ ALL TESTS PASSED"
	if result.FailedCount > 0 {
		status = fmt.Sprintf("✗ %d TEST(S) FAILED", result.FailedCount)
	}

	sb.WriteString("╔══════════════════════════════════════════════════════════╗\n")
	sb.WriteString("║  SUMMARY                                                 ║\n")
	sb.WriteString(fmt.Sprintf("║  Passed: %-48d║\n", result.PassedCount))
	sb.WriteString(fmt.Sprintf("║  Failed: %-48d║\n", result.FailedCount))
	sb.WriteString(fmt.Sprintf("║  Status: %-48s║\n", status))
	sb.WriteString("╚══════════════════════════════════════════════════════════╝\n")

	return sb.String()
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func target(exp scenario.Expectation) string {
	switch exp.Layer() {
	case "mqtt":
		return exp.Topic
	case "redis":
		return exp.RedisField
	default:
		return "event_count"
	}
}

// conditions lists what a passed expectation matched, keys sorted
func conditions(exp scenario.Expectation) string {
	switch exp.Layer() {
	case "mqtt":
		keys := make([]string, 0, len(exp.Payload))
		for k := range exp.Payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, exp.Payload[k]))
		}
		return strings.Join(parts, ", ")
	case "redis":
		return exp.Expected
	default:
		return fmt.Sprintf("%d", *exp.EventCount)
	}
}

// formatDuration formats a duration as human-readable string
func formatDuration(d time.Duration) string {
	seconds := d.Seconds()
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}

	minutes := int(seconds / 60)
	remainingSeconds := seconds - float64(minutes*60)
	return fmt.Sprintf("%dm %.1fs", minutes, remainingSeconds)
}

// truncate truncates a string to maxLen characters
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
