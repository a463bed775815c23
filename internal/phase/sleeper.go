package phase

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultInterval is the fixed pause between convergence checks.
const DefaultInterval = time.Minute

// Sleeper blocks for a duration. It is injected so tests can run poll loops
// without real delays.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealSleeper sleeps on a timer and returns early if ctx is cancelled.
type RealSleeper struct{}

// Sleep waits for d or until ctx is done.
func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleeperOrReal(s Sleeper) Sleeper {
	if s == nil {
		return RealSleeper{}
	}
	return s
}

// ConstantBackOff returns the fixed-interval policy used by both protocol variants.
func ConstantBackOff(d time.Duration) backoff.BackOff {
	return backoff.NewConstantBackOff(d)
}
