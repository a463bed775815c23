package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/drill/internal/backend"
	"github.com/roach88/drill/internal/config"
	"github.com/roach88/drill/internal/driver"
	"github.com/roach88/drill/internal/harness"
	"github.com/roach88/drill/internal/outcome"
	"github.com/roach88/drill/internal/phase"
	"github.com/roach88/drill/internal/store"
)

const runArgsUsage = "<backend-prefix> <account> <pubkey> <variant> <actor-prefix> <n> <faction> <seed>"

// RunOptions holds flags for the election and playoff commands.
type RunOptions struct {
	*RootOptions
	Work         bool
	Journal      string
	Script       string
	PollInterval time.Duration
	StakeDays    int
	MaxPolls     int

	// Sleeper overrides real sleeps (for testing).
	Sleeper phase.Sleeper

	// IDGenerator overrides the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator store.IDGenerator
}

// RunReport is the result of one protocol run.
type RunReport struct {
	RunID    string        `json:"run_id,omitempty"`
	Protocol string        `json:"protocol"`
	Network  string        `json:"network"`
	Seed     int64         `json:"seed"`
	Phases   []PhaseReport `json:"phases"`
	Actors   []ActorReport `json:"actors"`
}

// PhaseReport counts per-actor results of one phase.
type PhaseReport struct {
	Phase     string `json:"phase"`
	Success   int    `json:"success"`
	Duplicate int    `json:"duplicate"`
	Rejected  int    `json:"rejected"`
	Skipped   int    `json:"skipped"`
	Retries   int    `json:"retries"`
}

// ActorReport is the final state of one actor.
type ActorReport struct {
	Name    string `json:"name"`
	CharID  uint64 `json:"char_id"`
	Role    int    `json:"role"`
	Balance string `json:"balance"`
	Staked  string `json:"staked,omitempty"`
	Squad   uint64 `json:"squad,omitempty"`
}

// NewElectionCommand creates the election command.
func NewElectionCommand(rootOpts *RootOptions) *cobra.Command {
	return newElectionCommand(&RunOptions{RootOptions: rootOpts})
}

func newElectionCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "election " + runArgsUsage,
		Short: "Run the office-election protocol",
		Long: `Create and register N actors, give each a character, a faction and a
role, wait for their token balances, then register candidacies, vote for
one holder of every role and stake a tenth of each balance.

Example:
  drill election "cleos -u http://127.0.0.1:8888" ctl EOS6MRy... 0 drill 3 1 0
  drill election --work --journal ./drill.db "cleos" ctl EOS6MRy... 1 load 50 2 42`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProtocol(opts, driver.Election, cmd, args)
		},
	}
	addRunFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.Work, "work", false, "run the bulk work phase before joining factions")
	return cmd
}

// NewPlayoffCommand creates the playoff command.
func NewPlayoffCommand(rootOpts *RootOptions) *cobra.Command {
	return newPlayoffCommand(&RunOptions{RootOptions: rootOpts})
}

func newPlayoffCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playoff " + runArgsUsage,
		Short: "Run the squad-playoff protocol",
		Long: `Create and register N actors with base roles, wait until the backend
assigns every actor to a squad, let some actors propose a member ranking
and have every actor vote on one proposal of its squad.

Example:
  drill playoff "cleos -u http://127.0.0.1:8888" ctl EOS6MRy... 0 play 5 3 7`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProtocol(opts, driver.Playoff, cmd, args)
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

func addRunFlags(cmd *cobra.Command, opts *RunOptions) {
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "record the run in this SQLite journal (env DRILL_JOURNAL)")
	cmd.Flags().StringVar(&opts.Script, "script", "", "rehearse against a scripted backend (YAML or CUE)")
	cmd.Flags().DurationVar(&opts.PollInterval, "poll-interval", config.DefaultPollInterval, "pause between convergence checks (env DRILL_POLL_INTERVAL)")
	cmd.Flags().IntVar(&opts.StakeDays, "stake-days", config.DefaultStakeDays, "stake duration in days (env DRILL_STAKE_DAYS)")
	cmd.Flags().IntVar(&opts.MaxPolls, "max-polls", 0, "bound every convergence wait (0 waits forever)")
}

// settings loads environment settings and applies explicitly set flags.
func (o *RunOptions) settings(cmd *cobra.Command) (config.Settings, error) {
	s, err := config.LoadSettings()
	if err != nil {
		return config.Settings{}, err
	}
	if cmd.Flags().Changed("journal") {
		s.JournalPath = o.Journal
	}
	if cmd.Flags().Changed("poll-interval") {
		if o.PollInterval <= 0 {
			return config.Settings{}, fmt.Errorf("--poll-interval must be positive, got %s", o.PollInterval)
		}
		s.PollInterval = o.PollInterval
	}
	if cmd.Flags().Changed("stake-days") {
		if o.StakeDays <= 0 {
			return config.Settings{}, fmt.Errorf("--stake-days must be positive, got %d", o.StakeDays)
		}
		s.StakeDays = o.StakeDays
	}
	return s, nil
}

func runProtocol(opts *RunOptions, p driver.Protocol, cmd *cobra.Command, args []string) error {
	cfg, err := config.Parse(args)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid arguments", err)
	}
	settings, err := opts.settings(cmd)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid settings", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	ctx := commandContext(cmd)

	invoker, scripted, err := opts.invoker()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load script", err)
	}

	dopts := driver.Options{
		Config:   cfg,
		Settings: settings,
		Invoker:  invoker,
		Logger:   logger,
		Sleeper:  opts.Sleeper,
		Work:     opts.Work,
		MaxPolls: opts.MaxPolls,
	}

	var st *store.Store
	if settings.JournalPath != "" {
		logger.Info("opening journal", "path", settings.JournalPath)
		st, err = store.Open(settings.JournalPath)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to open journal", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()

		gen := opts.IDGenerator
		if gen == nil {
			gen = store.UUIDv7Generator{}
		}
		dopts.RunID = gen.Generate()
		dopts.Journal = st
		err = st.BeginRun(context.WithoutCancel(ctx), store.Run{
			ID:       dopts.RunID,
			Protocol: string(p),
			Network:  cfg.Network().Name,
			Seed:     cfg.Seed,
			Actors:   cfg.Actors,
		})
		if err != nil {
			return WrapExitError(ExitFailure, "failed to journal run", err)
		}
	}

	run, err := driver.New(dopts)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to prepare run", err)
	}
	runErr := run.Execute(ctx, p)

	if st != nil {
		// Journal bookkeeping outlives cancellation so an interrupted run is
		// still recorded as failed.
		if err := st.FinishRun(context.WithoutCancel(ctx), dopts.RunID, runErr); err != nil {
			logger.Error("failed to finish journaled run", "run_id", dopts.RunID, "error", err)
		}
	}
	if scripted != nil {
		logUnscripted(logger, scripted)
	}
	if runErr != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("%s run failed", p), runErr)
	}

	report := newRunReport(dopts.RunID, p, cfg, run)
	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return f.Success(report)
	}
	writeRunReport(cmd.OutOrStdout(), report)
	return nil
}

// invoker returns the scripted backend when --script is set, otherwise a
// shell invoker.
func (o *RunOptions) invoker() (backend.Invoker, *harness.Backend, error) {
	if o.Script == "" {
		return backend.ExecInvoker{}, nil, nil
	}
	script, err := harness.LoadScript(o.Script)
	if err != nil {
		return nil, nil, err
	}
	b := harness.NewBackend(script)
	return b, b, nil
}

func logUnscripted(logger *slog.Logger, b *harness.Backend) {
	for _, c := range b.Unscripted() {
		logger.Warn("command not covered by script", "command", c)
	}
}

func newRunReport(runID string, p driver.Protocol, cfg config.RunConfig, run *driver.Run) RunReport {
	r := RunReport{
		RunID:    runID,
		Protocol: string(p),
		Network:  cfg.Network().Name,
		Seed:     cfg.Seed,
		Phases:   make([]PhaseReport, 0, len(run.Summaries)),
		Actors:   make([]ActorReport, 0, len(run.Actors)),
	}
	for _, s := range run.Summaries {
		r.Phases = append(r.Phases, PhaseReport{
			Phase:     s.Phase,
			Success:   s.Counts[outcome.Success],
			Duplicate: s.Counts[outcome.BenignDuplicate],
			Rejected:  s.Counts[outcome.RecoverableRejection],
			Skipped:   s.Skipped,
			Retries:   s.Retries,
		})
	}
	for _, a := range run.Actors {
		ar := ActorReport{
			Name:    a.Name,
			CharID:  a.CharID,
			Role:    a.Role,
			Balance: a.Balance.String(),
		}
		if a.Staked.Positive() {
			ar.Staked = a.Staked.String()
		}
		if a.InSquad {
			ar.Squad = a.Squad
		}
		r.Actors = append(r.Actors, ar)
	}
	return r
}

func writeRunReport(w io.Writer, r RunReport) {
	header := fmt.Sprintf("%s run on %s completed (seed %d)", r.Protocol, r.Network, r.Seed)
	if r.RunID != "" {
		header += ", journaled as " + r.RunID
	}
	fmt.Fprintln(w, header)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Phases ===")
	for _, p := range r.Phases {
		fmt.Fprintf(w, "  %-18s success=%d duplicate=%d rejected=%d skipped=%d",
			p.Phase, p.Success, p.Duplicate, p.Rejected, p.Skipped)
		if p.Retries > 0 {
			fmt.Fprintf(w, " retries=%d", p.Retries)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Actors ===")
	for _, a := range r.Actors {
		line := fmt.Sprintf("  %-12s char=%d role=%d balance=%s", a.Name, a.CharID, a.Role, a.Balance)
		if a.Staked != "" {
			line += " staked=" + a.Staked
		}
		if a.Squad != 0 {
			line += fmt.Sprintf(" squad=%d", a.Squad)
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}
