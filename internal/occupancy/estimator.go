package occupancy

import (
	"fmt"
	"slices"
)

// Event is a single door state transition as stored in the log.
// Closed is true when the door closed, false when it opened.
type Event struct {
	Timestamp int64 `json:"timestamp_ns"`
	Closed    bool  `json:"closed"`
}

// Window describes the queried time range split into equal-width slots.
type Window struct {
	Start int64
	End   int64
	Slots int
}

// SlotWidth returns the width of a single slot in nanoseconds.
// The division truncates, so the last boundary may fall short of End
// by up to Slots-1 nanoseconds.
func (w Window) SlotWidth() int64 {
	if w.Slots <= 0 {
		return 0
	}
	return (w.End - w.Start) / int64(w.Slots)
}

// Validate checks the window bounds and slot count
func (w Window) Validate() error {
	if w.Slots <= 0 {
		return fmt.Errorf("%w: slot count must be positive, got %d", ErrInvalidWindow, w.Slots)
	}
	if w.End <= w.Start {
		return fmt.Errorf("%w: end %d is not after start %d", ErrInvalidWindow, w.End, w.Start)
	}
	if w.End-w.Start <= 0 {
		return fmt.Errorf("%w: span from %d to %d overflows int64", ErrInvalidWindow, w.Start, w.End)
	}
	return nil
}

// Slot is the estimate for one slot of a window.
type Slot struct {
	Probability float64 `json:"probability"`
	Future      bool    `json:"future"`
}

// Or returns the probability, or sentinel if the slot has not happened yet.
func (s Slot) Or(sentinel float64) float64 {
	if s.Future {
		return sentinel
	}
	return s.Probability
}

// Values maps slots to caller values, substituting future for slots that
// have not happened yet and applying convert to the rest.
func Values[T any](slots []Slot, future T, convert func(float64) T) []T {
	out := make([]T, len(slots))
	for i, s := range slots {
		if s.Future {
			out[i] = future
			continue
		}
		out[i] = convert(s.Probability)
	}
	return out
}

// FuturePolicy selects which slots receive the future sentinel.
type FuturePolicy int

const (
	// FutureAfterNow marks every slot whose closing boundary is at or after now.
	FutureAfterNow FuturePolicy = iota
	// FutureExactNow marks only a slot whose closing boundary equals now.
	// Later slots are computed with the door assumed closed after now.
	FutureExactNow
)

// String returns the policy name used in configuration and query strings
func (p FuturePolicy) String() string {
	switch p {
	case FutureAfterNow:
		return "after_now"
	case FutureExactNow:
		return "exact_now"
	default:
		return fmt.Sprintf("FuturePolicy(%d)", int(p))
	}
}

// ParseFuturePolicy parses a policy name as produced by String.
func ParseFuturePolicy(s string) (FuturePolicy, error) {
	switch s {
	case "", "after_now":
		return FutureAfterNow, nil
	case "exact_now":
		return FutureExactNow, nil
	default:
		return FutureAfterNow, fmt.Errorf("unknown future policy %q (must be after_now or exact_now)", s)
	}
}

// Estimate computes, for each slot of w, the fraction of the slot during which
// the door was open.
//
// events must hold the transitions strictly inside (w.Start, w.End) in
// ascending timestamp order; boundaryClosed is the state in effect at w.Start.
// Time after now is treated as closed, and slots selected by policy are
// reported as Future. Estimate is a pure function of its arguments.
func Estimate(events []Event, boundaryClosed bool, w Window, now int64, policy FuturePolicy) ([]Slot, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := validateEvents(events, w); err != nil {
		return nil, err
	}

	marks := merge(events, w, now)

	st := sweepState{
		prevClosed: boundaryClosed,
		prevTime:   w.Start,
	}
	slots := make([]Slot, 0, w.Slots)
	for _, m := range marks {
		var slot *Slot
		st, slot = step(st, m, now, policy)
		if slot != nil {
			slots = append(slots, *slot)
		}
	}

	return slots, nil
}

func validateEvents(events []Event, w Window) error {
	for i, e := range events {
		if e.Timestamp <= w.Start || e.Timestamp >= w.End {
			return fmt.Errorf("%w: event %d at %d not inside (%d, %d)",
				ErrEventOutsideWindow, i, e.Timestamp, w.Start, w.End)
		}
		if i > 0 && e.Timestamp < events[i-1].Timestamp {
			return fmt.Errorf("%w: event %d at %d precedes %d",
				ErrUnsortedEvents, i, e.Timestamp, events[i-1].Timestamp)
		}
	}
	return nil
}

// markKind orders marks that share a timestamp.
type markKind int

const (
	markEvent markKind = iota
	markNow
	markBoundary
)

type mark struct {
	at     int64
	kind   markKind
	closed bool
}

// merge builds the sweep sequence: real events, the synthetic now mark and
// one boundary mark per slot, ordered by time then kind. The sort is stable
// so events sharing a timestamp keep their input order.
func merge(events []Event, w Window, now int64) []mark {
	marks := make([]mark, 0, len(events)+w.Slots+1)
	for _, e := range events {
		marks = append(marks, mark{at: e.Timestamp, kind: markEvent, closed: e.Closed})
	}

	if now < w.Start {
		now = w.Start
	}
	marks = append(marks, mark{at: now, kind: markNow, closed: true})

	width := w.SlotWidth()
	for i := 1; i <= w.Slots; i++ {
		marks = append(marks, mark{at: w.Start + width*int64(i), kind: markBoundary})
	}

	slices.SortStableFunc(marks, func(a, b mark) int {
		if a.at != b.at {
			if a.at < b.at {
				return -1
			}
			return 1
		}
		return int(a.kind) - int(b.kind)
	})
	return marks
}
