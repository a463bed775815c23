package phase

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/roach88/drill/internal/fault"
	"github.com/roach88/drill/internal/outcome"
)

// Check observes backend state once. It reports whether the awaited
// condition holds and the value associated with it. An error aborts the wait.
type Check[T any] func(ctx context.Context) (bool, T, error)

// Nudge is an optional action performed between failed checks to push the
// backend toward the awaited state. Its outcome follows the phase abort policy.
type Nudge func(ctx context.Context) (outcome.Outcome, error)

// Poller waits for asynchronous backend state to converge.
//
// The wait blocks the whole run: no other actor makes progress while one
// actor is being polled.
type Poller struct {
	Logger  *slog.Logger
	Sleeper Sleeper

	// NewBackOff supplies the delay policy between checks. Defaults to a
	// constant DefaultInterval. A policy returning backoff.Stop ends the
	// wait with an EXHAUSTED error.
	NewBackOff func() backoff.BackOff

	// MaxAttempts bounds the number of checks. Zero means unbounded: the
	// operator aborts the process if the backend never converges.
	MaxAttempts int
}

// NewPoller creates an unbounded poller with real sleeps at interval.
func NewPoller(logger *slog.Logger, interval time.Duration) *Poller {
	return &Poller{
		Logger:  loggerOrDiscard(logger),
		Sleeper: RealSleeper{},
		NewBackOff: func() backoff.BackOff {
			return ConstantBackOff(interval)
		},
	}
}

// Await repeats check until it succeeds, running nudge and sleeping between
// failed checks. what names the awaited condition in logs and errors.
func Await[T any](ctx context.Context, p *Poller, what string, check Check[T], nudge Nudge) (T, error) {
	var zero T

	logger := loggerOrDiscard(p.Logger)
	b := ConstantBackOff(DefaultInterval)
	if p.NewBackOff != nil {
		b = p.NewBackOff()
	}
	b.Reset()

	for attempt := 1; ; attempt++ {
		ok, v, err := check(ctx)
		if err != nil {
			return zero, err
		}
		if ok {
			if attempt > 1 {
				logger.Info("converged", "condition", what, "checks", attempt)
			}
			return v, nil
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return zero, fault.New(fault.CodeExhausted, "%s: not reached after %d checks", what, attempt)
		}

		if nudge != nil {
			o, err := nudge(ctx)
			if err != nil {
				return zero, err
			}
			if o.Aborts() {
				return zero, AbortError(o)
			}
			if o.Kind != outcome.Success {
				logger.Debug("nudge not applied", "condition", what, "outcome", o.String(), "message", o.Message)
			}
		}

		d := b.NextBackOff()
		if d == backoff.Stop {
			return zero, fault.New(fault.CodeExhausted, "%s: poll policy stopped after %d checks", what, attempt)
		}
		logger.Info("waiting", "condition", what, "check", attempt, "wait", d)
		if err := sleeperOrReal(p.Sleeper).Sleep(ctx, d); err != nil {
			return zero, fault.Wrap(fault.CodeInterrupted, err, "%s: wait cancelled", what)
		}
	}
}
