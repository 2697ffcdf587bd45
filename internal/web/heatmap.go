package web

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/saaga0h/doorpi/internal/occupancy"
)

const (
	hoursPerDay = 24
	daysPerWeek = 7
)

// Cell is one hour of the weekly heatmap
type Cell struct {
	Label     string
	Luminance int
}

// Day is one row of the heatmap
type Day struct {
	Name  string
	Date  string
	Cells []Cell
}

// weekBounds returns local midnight of the Monday on or before now and of
// the Monday after it. The span is not always 168 hours across DST changes.
func weekBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	now = now.In(loc)
	back := (int(now.Weekday()) + 6) % 7
	y, m, d := now.Date()
	monday := time.Date(y, m, d-back, 0, 0, 0, 0, loc)
	next := time.Date(y, m, d-back+7, 0, 0, 0, 0, loc)
	return monday, next
}

// cellFor renders one slot. Past slots show the truncated percentage and a
// lightness between 50 and 100; slots that have not happened show marker.
func cellFor(s occupancy.Slot, marker string) Cell {
	if s.Future {
		return Cell{Label: marker, Luminance: 100}
	}
	return Cell{
		Label:     strconv.Itoa(int(math.Trunc(s.Probability * 100))),
		Luminance: 100 - int(math.Trunc(s.Probability*50)),
	}
}

// heatmap lays hourly slots out as one row per day starting at monday
func heatmap(slots []occupancy.Slot, monday time.Time, marker string) []Day {
	days := make([]Day, 0, daysPerWeek)
	for d := 0; d < daysPerWeek; d++ {
		date := time.Date(monday.Year(), monday.Month(), monday.Day()+d, 0, 0, 0, 0, monday.Location())
		day := Day{
			Name:  date.Weekday().String()[:3],
			Date:  date.Format("2006-01-02"),
			Cells: make([]Cell, 0, hoursPerDay),
		}
		for h := 0; h < hoursPerDay; h++ {
			i := d*hoursPerDay + h
			if i >= len(slots) {
				break
			}
			day.Cells = append(day.Cells, cellFor(slots[i], marker))
		}
		days = append(days, day)
	}
	return days
}

// parseMarker turns the configured sentinel into a JSON number when it is
// numeric and leaves it a string otherwise.
func parseMarker(s string) interface{} {
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}

func markerLabel(marker interface{}) string {
	switch v := marker.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
