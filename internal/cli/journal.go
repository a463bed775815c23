package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/drill/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database string
}

// JournalEntry is one journaled backend call.
type JournalEntry struct {
	Seq        int64  `json:"seq"`
	Phase      string `json:"phase"`
	Actor      string `json:"actor,omitempty"`
	Command    string `json:"command"`
	ExitStatus int    `json:"exit_status"`
	Outcome    string `json:"outcome"`
	Rule       string `json:"rule,omitempty"`
	Output     string `json:"output,omitempty"`
}

// JournalRun is one run and, when requested, its calls.
type JournalRun struct {
	ID       string             `json:"id"`
	Protocol string             `json:"protocol"`
	Network  string             `json:"network"`
	Seed     int64              `json:"seed"`
	Actors   int                `json:"actors"`
	Status   string             `json:"status"`
	Error    string             `json:"error,omitempty"`
	LastSeq  int64              `json:"last_seq"`
	Summary  []store.PhaseCount `json:"summary,omitempty"`
	Calls    []JournalEntry     `json:"calls,omitempty"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal [run-id]",
		Short: "Show journaled runs",
		Long: `List the runs recorded in a journal, or show every backend call of one run
with a per-phase outcome summary.

Examples:
  drill journal --db ./drill.db
  drill journal --db ./drill.db 019283a4-...
  drill journal --db ./drill.db 019283a4-... --verbose --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return listJournal(opts, cmd)
			}
			return showJournalRun(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func openJournal(path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to open journal", err)
	}
	return st, nil
}

func listJournal(opts *JournalOptions, cmd *cobra.Command) error {
	st, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := commandContext(cmd)
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list runs", err)
	}

	out := make([]JournalRun, 0, len(runs))
	for _, r := range runs {
		jr := journalRun(r)
		if jr.LastSeq, err = st.LastSeq(ctx, r.ID); err != nil {
			return WrapExitError(ExitFailure, "failed to list runs", err)
		}
		out = append(out, jr)
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return f.Success(out)
	}

	w := cmd.OutOrStdout()
	if len(out) == 0 {
		fmt.Fprintln(w, "No runs journaled.")
		return nil
	}
	for _, r := range out {
		fmt.Fprintf(w, "%s  %-9s %-9s %-8s seed=%d actors=%d calls=%d\n",
			r.ID, r.Protocol, r.Network, r.Status, r.Seed, r.Actors, r.LastSeq)
	}
	return nil
}

func showJournalRun(opts *JournalOptions, cmd *cobra.Command, runID string) error {
	ctx := commandContext(cmd)
	st, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	r, err := st.ReadRun(ctx, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitFailure, fmt.Sprintf("no journaled run %q", runID))
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read run", err)
	}

	invs, err := st.ReadInvocations(ctx, runID)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read invocations", err)
	}
	summary, err := st.SummarizeRun(ctx, runID)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to summarize run", err)
	}

	out := journalRun(r)
	out.Summary = summary
	if n := len(invs); n > 0 {
		out.LastSeq = invs[n-1].Seq
	}
	out.Calls = make([]JournalEntry, 0, len(invs))
	for _, inv := range invs {
		e := JournalEntry{
			Seq:        inv.Seq,
			Phase:      inv.Phase,
			Actor:      inv.Actor,
			Command:    inv.Command,
			ExitStatus: inv.ExitStatus,
			Outcome:    inv.Outcome,
			Rule:       inv.Rule,
		}
		if opts.Verbose {
			e.Output = inv.Output
		}
		out.Calls = append(out.Calls, e)
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return f.Success(out)
	}
	writeJournalRun(cmd.OutOrStdout(), out)
	return nil
}

func journalRun(r store.Run) JournalRun {
	return JournalRun{
		ID:       r.ID,
		Protocol: r.Protocol,
		Network:  r.Network,
		Seed:     r.Seed,
		Actors:   r.Actors,
		Status:   r.Status,
		Error:    r.Error,
	}
}

func writeJournalRun(w io.Writer, r JournalRun) {
	fmt.Fprintf(w, "Run: %s\n", r.ID)
	fmt.Fprintf(w, "Protocol: %s on %s, seed %d, %d actors\n", r.Protocol, r.Network, r.Seed, r.Actors)
	fmt.Fprintf(w, "Status: %s\n", r.Status)
	if r.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", r.Error)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Calls ===")
	if len(r.Calls) == 0 {
		fmt.Fprintln(w, "  (no calls)")
	}
	for _, c := range r.Calls {
		who := c.Actor
		if who == "" {
			who = "-"
		}
		fmt.Fprintf(w, "  [%d] %s %s %s\n", c.Seq, c.Phase, who, outcomeLabel(c.Outcome, c.Rule))
		if c.Output != "" {
			fmt.Fprintf(w, "       $ %s\n", c.Command)
			for _, line := range strings.Split(strings.TrimRight(c.Output, "\n"), "\n") {
				fmt.Fprintf(w, "       %s\n", line)
			}
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Summary ===")
	for _, s := range r.Summary {
		fmt.Fprintf(w, "  %-18s %-22s %d\n", s.Phase, s.Outcome, s.Count)
	}
}

func outcomeLabel(o, rule string) string {
	if rule == "" || strings.Contains(o, "(") {
		return o
	}
	return fmt.Sprintf("%s(%s)", o, rule)
}
