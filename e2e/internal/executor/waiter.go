package executor

import (
	"context"
	"time"
)

// WaitUntil blocks until targetSeconds after start, scaled down by
// timeScale, or until ctx is done.
func WaitUntil(ctx context.Context, start time.Time, targetSeconds int, timeScale int) error {
	if timeScale < 1 {
		timeScale = 1
	}

	target := start.Add(time.Duration(targetSeconds) * time.Second / time.Duration(timeScale))
	wait := time.Until(target)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetElapsed returns elapsed seconds since start
func GetElapsed(start time.Time) float64 {
	return time.Since(start).Seconds()
}
