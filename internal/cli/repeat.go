package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/drill/internal/backend"
	"github.com/roach88/drill/internal/config"
	"github.com/roach88/drill/internal/fault"
	"github.com/roach88/drill/internal/outcome"
	"github.com/roach88/drill/internal/phase"
	"github.com/roach88/drill/internal/template"
)

// repeatRules treat an existing account as already applied, so repeat can
// re-run a batch of account creations.
var repeatRules = outcome.Benign(`name is already taken`)

// RepeatOptions holds flags for the repeat command.
type RepeatOptions struct {
	*RootOptions
	Script string

	// Invoker overrides the backend (for testing).
	Invoker backend.Invoker
}

// RepeatResult is one name visited by repeat.
type RepeatResult struct {
	Name    string `json:"name"`
	Outcome string `json:"outcome"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewRepeatCommand creates the repeat command.
func NewRepeatCommand(rootOpts *RootOptions) *cobra.Command {
	return newRepeatCommand(&RepeatOptions{RootOptions: rootOpts})
}

func newRepeatCommand(opts *RepeatOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repeat <backend-prefix> <start-name> <count> <template>",
		Short: "Run one command template over a range of actor names",
		Long: `Run a command template once per actor name, replacing every %% with the
name. Names start at start-name and advance its last six letters like an
odometer (aaaaaa, aaaaab, ... aaaaaz, aaaaba).

Already-applied and rejected commands are reported and the loop continues;
an authorization failure, backend error or crashed process stops it.

Example:
  drill repeat "cleos -u http://127.0.0.1:8888" drillaaaaaa 10 "push action playgame claim '{\"player\":\"%%\"}' -p %%@active"`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepeat(opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.Script, "script", "", "rehearse against a scripted backend (YAML or CUE)")

	return cmd
}

func runRepeat(opts *RepeatOptions, cmd *cobra.Command, args []string) error {
	cfg, err := config.ParseRepeat(args)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid arguments", err)
	}
	names, err := cfg.Names()
	if err != nil {
		return WrapExitError(ExitFailure, "invalid arguments", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	invoker := opts.Invoker
	if invoker == nil {
		ro := &RunOptions{Script: opts.Script}
		inv, scripted, err := ro.invoker()
		if err != nil {
			return WrapExitError(ExitFailure, "failed to load script", err)
		}
		invoker = inv
		if scripted != nil {
			defer logUnscripted(logger, scripted)
		}
	}

	ctx := commandContext(cmd)
	tmpl := backend.Command{Prefix: cfg.Backend}.Template(cfg.Template)

	results := make([]RepeatResult, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return WrapExitError(ExitFailure, "repeat interrupted",
				fault.Wrap(fault.CodeInterrupted, err, "run cancelled").At("repeat", name))
		}

		command := template.Render(tmpl, name)
		logger.Debug("invoking", "actor", name, "command", command)
		res := invoker.Invoke(ctx, command)
		logger.Debug("invoked", "actor", name, "exit", res.ExitStatus, "output", strings.TrimSpace(res.Output))
		if res.Interrupted() {
			return WrapExitError(ExitFailure, "repeat interrupted",
				fault.Wrap(fault.CodeInterrupted, res.Err, "run cancelled").At("repeat", name))
		}

		o := outcome.Classify(repeatRules, res.Output, res.ExitStatus)
		results = append(results, RepeatResult{Name: name, Outcome: o.String(), Rule: o.Rule, Message: o.Message})

		switch o.Kind {
		case outcome.Success:
		case outcome.BenignDuplicate:
			logger.Info("already applied", "actor", name, "rule", o.Rule)
		case outcome.RecoverableRejection:
			logger.Warn("rejected, continuing", "actor", name, "rule", o.Rule, "message", o.Message)
		default:
			if res.Err != nil {
				logger.Error("invocation failed", "actor", name, "error", res.Err)
			}
			return WrapExitError(ExitFailure, "repeat aborted", phase.AbortError(o).At("repeat", name))
		}
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return f.Success(results)
	}
	w := cmd.OutOrStdout()
	for _, r := range results {
		line := fmt.Sprintf("%-12s %s", r.Name, r.Outcome)
		if r.Message != "" {
			line += ": " + r.Message
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
