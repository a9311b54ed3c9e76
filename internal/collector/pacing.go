package collector

import (
	"context"
	"math/rand/v2"
	"time"
)

// TimerPauser sleeps on a timer.
type TimerPauser struct{}

// Pause waits for delay or until ctx is done.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// UniformDelay draws delays uniformly from [Min, Max].
type UniformDelay struct {
	Min time.Duration
	Max time.Duration
}

// Next returns a random delay within the bounds.
func (u UniformDelay) Next() time.Duration {
	lo, hi := u.Min, u.Max
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}
