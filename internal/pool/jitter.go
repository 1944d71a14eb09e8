package pool

import (
	"context"
	"math/rand/v2"
	"time"
)

// Jitter yields the delay inserted before each fetch.
type Jitter interface {
	Next() time.Duration
}

// UniformJitter draws delays uniformly from [0, Max].
type UniformJitter struct {
	Max time.Duration
}

// Next returns a random delay no larger than Max.
func (j UniformJitter) Next() time.Duration {
	if j.Max <= 0 {
		return 0
	}
	return rand.N(j.Max + 1)
}

// pause sleeps for delay or until ctx is done.
func pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
