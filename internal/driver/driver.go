// Package driver composes the phase runner, poller, join view and decision
// engine into the two protocol variants: office election and squad playoff.
//
// All run state (actors, the joined squad view, player_to_squad, proposals)
// lives on a Run value threaded through the phases. Phases execute strictly
// in order; the first error ends the run.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/roach88/drill/internal/backend"
	"github.com/roach88/drill/internal/config"
	"github.com/roach88/drill/internal/decide"
	"github.com/roach88/drill/internal/fault"
	"github.com/roach88/drill/internal/joinview"
	"github.com/roach88/drill/internal/outcome"
	"github.com/roach88/drill/internal/phase"
	"github.com/roach88/drill/internal/store"
)

// Protocol selects the phase sequence.
type Protocol string

const (
	Election Protocol = "election"
	Playoff  Protocol = "playoff"
)

// DefaultCandidacyRetries bounds retries of a rejected candidacy.
const DefaultCandidacyRetries = 3

// Journal records every backend call. *store.Store implements it.
type Journal interface {
	RecordInvocation(ctx context.Context, inv store.Invocation) error
}

// Options configures a run.
type Options struct {
	Config   config.RunConfig
	Settings config.Settings
	Invoker  backend.Invoker
	Logger   *slog.Logger

	// Sleeper defaults to phase.RealSleeper.
	Sleeper phase.Sleeper

	// Journal is optional. RunID tags journal entries.
	Journal Journal
	RunID   string

	// Work enables the optional bulk work phase of the election.
	Work bool

	// MaxPolls bounds every convergence wait. Zero waits forever.
	MaxPolls int

	// CandidacyRetries defaults to DefaultCandidacyRetries.
	CandidacyRetries int
}

// ActorState is everything the run has learned about one actor.
type ActorState struct {
	Name    string
	CharID  uint64
	Role    int
	Balance backend.Asset
	Staked  backend.Asset

	// Squad is valid when InSquad is true.
	Squad   uint64
	InSquad bool
}

// ProposalSet maps proposal id to its raw table record.
type ProposalSet map[uint64]backend.Record

// Decision is one random choice, recorded in draw order.
type Decision struct {
	Phase string
	Actor string
	What  string
	Value string
}

// Run is the state of one protocol run.
type Run struct {
	cfg     config.RunConfig
	net     config.Network
	opts    Options
	log     *slog.Logger
	cmd     backend.Command
	tables  backend.Tables
	joiner  joinview.Joiner
	engine  *decide.Engine
	runner  *phase.Runner
	poller  *phase.Poller
	journal Journal
	runID   string

	seq   int64
	phase string

	Actors        []*ActorState
	byName        map[string]*ActorState
	View          *joinview.View
	PlayerToSquad map[string]uint64
	Proposals     ProposalSet
	Decisions     []Decision
	Summaries     []phase.Summary
}

// New validates options and prepares a run. No backend call is made.
func New(opts Options) (*Run, error) {
	if opts.Invoker == nil {
		return nil, fault.New(fault.CodeConfiguration, "no backend invoker")
	}
	names, err := opts.Config.ActorNames()
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	interval := opts.Settings.PollInterval
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	if opts.Settings.StakeDays <= 0 {
		opts.Settings.StakeDays = config.DefaultStakeDays
	}
	if opts.CandidacyRetries <= 0 {
		opts.CandidacyRetries = DefaultCandidacyRetries
	}
	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = phase.RealSleeper{}
	}
	newBackOff := func() backoff.BackOff { return phase.ConstantBackOff(interval) }

	r := &Run{
		cfg:     opts.Config,
		net:     opts.Config.Network(),
		opts:    opts,
		log:     logger,
		cmd:     backend.Command{Prefix: opts.Config.Backend},
		engine:  decide.New(opts.Config.Seed),
		journal: opts.Journal,
		runID:   opts.RunID,
		runner:  &phase.Runner{Logger: logger, Sleeper: sleeper, NewBackOff: newBackOff},
		poller: &phase.Poller{
			Logger:      logger,
			Sleeper:     sleeper,
			NewBackOff:  newBackOff,
			MaxAttempts: opts.MaxPolls,
		},
		byName:        make(map[string]*ActorState, len(names)),
		PlayerToSquad: map[string]uint64{},
		Proposals:     ProposalSet{},
	}
	r.tables = backend.Tables{
		Invoker: backend.InvokerFunc(func(ctx context.Context, command string) backend.Result {
			return r.query(ctx, "", command)
		}),
		Command: r.cmd,
	}
	r.joiner = joinview.Joiner{Fetcher: r.tables, Contract: r.net.Game}

	for _, n := range names {
		a := &ActorState{Name: n, Balance: backend.Asset{Symbol: r.net.Symbol}}
		r.Actors = append(r.Actors, a)
		r.byName[n] = a
	}
	return r, nil
}

// Actor returns the state of a named actor.
func (r *Run) Actor(name string) (*ActorState, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// Names returns the actor names in processing order.
func (r *Run) Names() []string {
	names := make([]string, len(r.Actors))
	for i, a := range r.Actors {
		names[i] = a.Name
	}
	return names
}

// Execute runs the phase sequence of p.
func (r *Run) Execute(ctx context.Context, p Protocol) error {
	var steps []step
	switch p {
	case Election:
		steps = r.electionSteps()
	case Playoff:
		steps = r.playoffSteps()
	default:
		return fault.New(fault.CodeConfiguration, "unknown protocol %q", p)
	}

	start := time.Now()
	r.log.Info("run started", "protocol", string(p), "network", r.net.Name,
		"actors", len(r.Actors), "seed", r.cfg.Seed, "run_id", r.runID)
	for _, s := range steps {
		r.phase = s.name
		if err := s.run(ctx); err != nil {
			return err
		}
	}
	r.log.Info("run completed", "protocol", string(p), "calls", r.seq,
		"draws", r.engine.Draws(), "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

type step struct {
	name string
	run  func(ctx context.Context) error
}

// perActor wraps a per-actor action as a step.
func (r *Run) perActor(name string, retries int, action phase.Action) step {
	return step{name: name, run: func(ctx context.Context) error {
		sum, err := r.runner.RunPhase(ctx, phase.Phase{Name: name, Retries: retries}, r.Names(), action)
		r.Summaries = append(r.Summaries, sum)
		return err
	}}
}

// once wraps a whole-run action as a step.
func (r *Run) once(name string, fn func(ctx context.Context) error) step {
	return step{name: name, run: func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return fault.Wrap(fault.CodeInterrupted, err, "run cancelled").At(name, "")
		}
		r.log.Info("phase started", "phase", name)
		if err := fn(ctx); err != nil {
			r.log.Error("phase aborted", "phase", name, "error", err)
			var re *fault.RunError
			if errors.As(err, &re) {
				return re.At(name, "")
			}
			return fault.Wrap(fault.CodeInvocationFailure, err, "unexpected error").At(name, "")
		}
		r.log.Info("phase finished", "phase", name)
		return nil
	}}
}

// invoke runs one classified command for actor and journals it.
func (r *Run) invoke(ctx context.Context, actor, command string, rules outcome.RuleSet) (outcome.Outcome, error) {
	res, seq := r.exec(ctx, actor, command)
	if res.Interrupted() {
		return outcome.Outcome{Kind: outcome.InvocationFailure}, fault.Wrap(fault.CodeInterrupted, res.Err, "run cancelled")
	}
	o := outcome.Classify(rules, res.Output, res.ExitStatus)

	r.log.Debug("classified", "phase", r.phase, "actor", actor, "seq", seq,
		"outcome", o.String(), "exit", res.ExitStatus, "output", res.Output)
	if o.Kind != outcome.Success {
		r.log.Info("backend replied", "phase", r.phase, "actor", actor,
			"outcome", o.String(), "message", o.Message)
	}

	if err := r.record(ctx, seq, actor, command, res, o.Kind.String(), o.Rule); err != nil {
		return o, err
	}
	if o.Kind == outcome.InvocationFailure && res.Err != nil {
		r.log.Error("invocation failed", "phase", r.phase, "actor", actor, "error", res.Err)
	}
	return o, nil
}

// query runs an unclassified read command (table page, balance) and journals it.
func (r *Run) query(ctx context.Context, actor, command string) backend.Result {
	res, seq := r.exec(ctx, actor, command)
	if res.Interrupted() {
		return res
	}
	r.log.Debug("queried", "phase", r.phase, "actor", actor, "seq", seq, "exit", res.ExitStatus)
	if err := r.record(ctx, seq, actor, command, res, "Query", ""); err != nil {
		return backend.Result{Output: res.Output, ExitStatus: -1, Err: err}
	}
	return res
}

func (r *Run) exec(ctx context.Context, actor, command string) (backend.Result, int64) {
	r.seq++
	r.log.Debug("invoke", "phase", r.phase, "actor", actor, "seq", r.seq, "command", command)
	return r.opts.Invoker.Invoke(ctx, command), r.seq
}

func (r *Run) record(ctx context.Context, seq int64, actor, command string, res backend.Result, kind, rule string) error {
	if r.journal == nil {
		return nil
	}
	err := r.journal.RecordInvocation(ctx, store.Invocation{
		RunID:      r.runID,
		Seq:        seq,
		Phase:      r.phase,
		Actor:      actor,
		Command:    command,
		Output:     res.Output,
		ExitStatus: res.ExitStatus,
		Outcome:    kind,
		Rule:       rule,
	})
	if err != nil {
		return fault.Wrap(fault.CodeInvocationFailure, err, "journal call %d", seq)
	}
	return nil
}

// decided records a random choice.
func (r *Run) decided(actor, what string, value any) {
	d := Decision{Phase: r.phase, Actor: actor, What: what, Value: fmt.Sprint(value)}
	r.Decisions = append(r.Decisions, d)
	r.log.Debug("decided", "phase", d.Phase, "actor", actor, "what", what, "value", d.Value)
}

func (r *Run) state(actor string) (*ActorState, error) {
	a, ok := r.byName[actor]
	if !ok {
		return nil, fault.New(fault.CodeConsistency, "unknown actor %q", actor)
	}
	return a, nil
}

// worse returns the more severe of two non-aborting outcomes.
func worse(a, b outcome.Outcome) outcome.Outcome {
	if b.Kind > a.Kind {
		return b
	}
	return a
}
