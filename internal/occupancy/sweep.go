package occupancy

// sweepState is the accumulator threaded through the sweep.
type sweepState struct {
	prevClosed bool
	prevTime   int64
	open       int64
	closed     int64
}

// attribute credits the time since prevTime to the state held over it.
func (s sweepState) attribute(t int64) sweepState {
	delta := t - s.prevTime
	if s.prevClosed {
		s.closed += delta
	} else {
		s.open += delta
	}
	return s
}

// ratio is the open fraction accumulated since the last boundary. A zero
// width accumulation reports the state in effect at that instant.
func (s sweepState) ratio() float64 {
	total := s.open + s.closed
	if total == 0 {
		if s.prevClosed {
			return 0
		}
		return 1
	}
	return float64(s.open) / float64(total)
}

// step applies one mark to the state. It returns the slot emitted when m is
// a boundary mark, nil otherwise.
func step(s sweepState, m mark, now int64, policy FuturePolicy) (sweepState, *Slot) {
	switch m.kind {
	case markEvent, markNow:
		// Repeated status carries no transition; the split point stays put.
		if m.closed == s.prevClosed {
			return s, nil
		}
		s = s.attribute(m.at)
		s.prevClosed = m.closed
		s.prevTime = m.at
		return s, nil

	case markBoundary:
		s = s.attribute(m.at)

		var slot Slot
		if isFuture(m.at, now, policy) {
			slot.Future = true
		} else {
			slot.Probability = s.ratio()
		}

		s.open, s.closed = 0, 0
		s.prevTime = m.at
		return s, &slot
	}

	return s, nil
}

func isFuture(boundary, now int64, policy FuturePolicy) bool {
	if policy == FutureExactNow {
		return boundary == now
	}
	return boundary >= now
}
