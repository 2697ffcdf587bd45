package occupancy

import "errors"

var (
	// ErrInvalidWindow is returned for a non-positive slot count or an empty window
	ErrInvalidWindow = errors.New("invalid window")

	// ErrUnsortedEvents is returned when events are not in ascending timestamp order
	ErrUnsortedEvents = errors.New("events not sorted by timestamp")

	// ErrEventOutsideWindow is returned when an event does not lie strictly inside the window
	ErrEventOutsideWindow = errors.New("event outside window")

	// ErrWindowTooLarge is returned when a request exceeds the configured slot or duration limits
	ErrWindowTooLarge = errors.New("window too large")
)
