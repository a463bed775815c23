// Package phase runs protocol phases over actors and waits for asynchronous
// backend state to converge.
//
// A phase visits every actor strictly in order, one at a time. Each visit
// produces an outcome: success and benign duplicates proceed, recoverable
// rejections are logged and proceed (or are retried a bounded number of
// times), and fatal rejections or invocation failures abort the run with a
// *fault.RunError. Nothing is rolled back; backend actions are idempotent or
// harmless to repeat on a fresh run.
package phase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cenkalti/backoff/v5"

	"github.com/roach88/drill/internal/fault"
	"github.com/roach88/drill/internal/outcome"
)

// Action performs one phase step for one actor. A non-nil error aborts the
// run; return Skip to record that the actor had nothing to do.
type Action func(ctx context.Context, actor string) (outcome.Outcome, error)

// Phase names a phase and its per-actor retry budget.
type Phase struct {
	Name string

	// Retries bounds how many times a RecoverableRejection is retried for
	// one actor. Zero means recoverable rejections are logged and skipped;
	// a positive budget promotes a persistent rejection to fatal.
	Retries int
}

// Summary counts what happened to each actor in one phase.
type Summary struct {
	Phase   string
	Actors  int
	Skipped int
	Retries int
	Counts  map[outcome.Kind]int
}

// SkipError reports that an action had nothing to do for an actor.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "skipped: " + e.Reason
}

// Skip returns an error the runner counts as a skip instead of an abort.
func Skip(format string, args ...any) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// Runner executes phases sequentially.
type Runner struct {
	Logger  *slog.Logger
	Sleeper Sleeper

	// NewBackOff supplies the delay policy between retries. Defaults to
	// a constant DefaultInterval.
	NewBackOff func() backoff.BackOff
}

// NewRunner creates a runner with real sleeps and a one-minute retry interval.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{Logger: loggerOrDiscard(logger), Sleeper: RealSleeper{}}
}

func loggerOrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}

func (r *Runner) backOff() backoff.BackOff {
	if r.NewBackOff != nil {
		return r.NewBackOff()
	}
	return ConstantBackOff(DefaultInterval)
}

// RunPhase applies action to every actor in order.
func (r *Runner) RunPhase(ctx context.Context, p Phase, actors []string, action Action) (Summary, error) {
	sum := Summary{Phase: p.Name, Actors: len(actors), Counts: map[outcome.Kind]int{}}
	log := loggerOrDiscard(r.Logger)
	log.Info("phase started", "phase", p.Name, "actors", len(actors))

	for _, actor := range actors {
		if err := ctx.Err(); err != nil {
			return sum, fault.Wrap(fault.CodeInterrupted, err, "run cancelled").At(p.Name, actor)
		}

		o, retries, err := r.runActor(ctx, p, actor, action)
		sum.Retries += retries
		if err != nil {
			var skip *SkipError
			if errors.As(err, &skip) {
				sum.Skipped++
				log.Info("actor skipped", "phase", p.Name, "actor", actor, "reason", skip.Reason)
				continue
			}
			log.Error("phase aborted", "phase", p.Name, "actor", actor, "error", err)
			return sum, annotate(err, p.Name, actor)
		}

		sum.Counts[o.Kind]++
		switch o.Kind {
		case outcome.Success:
			log.Debug("actor done", "phase", p.Name, "actor", actor)
		case outcome.BenignDuplicate:
			log.Info("already applied", "phase", p.Name, "actor", actor, "rule", o.Rule)
		case outcome.RecoverableRejection:
			log.Warn("rejected, continuing", "phase", p.Name, "actor", actor, "rule", o.Rule, "message", o.Message)
		default:
			err := AbortError(o).At(p.Name, actor)
			log.Error("phase aborted", "phase", p.Name, "actor", actor, "outcome", o.String(), "message", o.Message)
			return sum, err
		}
	}

	log.Info("phase finished", "phase", p.Name,
		"success", sum.Counts[outcome.Success],
		"duplicate", sum.Counts[outcome.BenignDuplicate],
		"rejected", sum.Counts[outcome.RecoverableRejection],
		"skipped", sum.Skipped,
	)
	return sum, nil
}

func (r *Runner) runActor(ctx context.Context, p Phase, actor string, action Action) (outcome.Outcome, int, error) {
	b := r.backOff()
	b.Reset()

	for attempt := 0; ; attempt++ {
		o, err := action(ctx, actor)
		if err != nil {
			return o, attempt, err
		}
		if o.Kind != outcome.RecoverableRejection || p.Retries == 0 {
			return o, attempt, nil
		}
		if attempt >= p.Retries {
			return o, attempt, &fault.RunError{
				Code:    fault.CodeRuleRejection,
				Message: fmt.Sprintf("still rejected after %d retries: %s", p.Retries, o.Message),
			}
		}

		d := b.NextBackOff()
		if d == backoff.Stop {
			return o, attempt, fault.New(fault.CodeExhausted, "retry policy stopped after %d attempts", attempt+1)
		}
		loggerOrDiscard(r.Logger).Warn("rejected, retrying", "phase", p.Name, "actor", actor,
			"attempt", attempt+1, "of", p.Retries, "message", o.Message, "wait", d)
		if err := sleeperOrReal(r.Sleeper).Sleep(ctx, d); err != nil {
			return o, attempt, fault.Wrap(fault.CodeInterrupted, err, "run cancelled")
		}
	}
}

// AbortError converts an aborting outcome to the matching run error.
func AbortError(o outcome.Outcome) *fault.RunError {
	code := fault.CodeRuleRejection
	switch {
	case o.Kind == outcome.InvocationFailure:
		code = fault.CodeInvocationFailure
	case o.Rule == outcome.AuthorizationRule.Name:
		code = fault.CodeAuthorization
	}
	msg := o.String()
	if o.Message != "" {
		msg += ": " + o.Message
	}
	return &fault.RunError{Code: code, Message: msg}
}

// annotate attaches phase and actor to a RunError, or wraps a foreign error
// as an invocation failure.
func annotate(err error, phaseName, actor string) error {
	var re *fault.RunError
	if errors.As(err, &re) {
		return re.At(phaseName, actor)
	}
	return fault.Wrap(fault.CodeInvocationFailure, err, "unexpected error").At(phaseName, actor)
}
