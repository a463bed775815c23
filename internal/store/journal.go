package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/drill/internal/payload"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one journaled protocol run.
type Run struct {
	ID       string
	Protocol string
	Network  string
	Seed     int64
	Actors   int
	Status   string
	Error    string
}

// Invocation is one journaled backend call.
type Invocation struct {
	ID         string
	RunID      string
	Seq        int64
	Phase      string
	Actor      string
	Command    string
	Output     string
	ExitStatus int
	Outcome    string
	Rule       string
}

// BeginRun inserts r with StatusRunning. r.ID must be set.
func (s *Store) BeginRun(ctx context.Context, r Run) error {
	if r.ID == "" {
		return fmt.Errorf("begin run: empty id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, protocol, network, seed, actors, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.Protocol, r.Network, r.Seed, r.Actors, StatusRunning)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun records the terminal status of a run. runErr may be nil.
func (s *Store) FinishRun(ctx context.Context, runID string, runErr error) error {
	status, msg := StatusCompleted, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ? WHERE id = ?
	`, status, msg, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}

// RecordInvocation appends inv to its run. When inv.ID is empty it is
// derived from (run, seq, command). Uses ON CONFLICT(id) DO NOTHING, so
// recording the same invocation twice is a no-op.
func (s *Store) RecordInvocation(ctx context.Context, inv Invocation) error {
	if inv.ID == "" {
		id, err := payload.InvocationID(inv.RunID, inv.Seq, inv.Command)
		if err != nil {
			return fmt.Errorf("record invocation: %w", err)
		}
		inv.ID = id
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invocations
		(id, run_id, seq, phase, actor, command, output, exit_status, outcome, rule)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		inv.ID,
		inv.RunID,
		inv.Seq,
		inv.Phase,
		inv.Actor,
		inv.Command,
		inv.Output,
		inv.ExitStatus,
		inv.Outcome,
		inv.Rule,
	)
	if err != nil {
		return fmt.Errorf("record invocation: %w", err)
	}
	return nil
}

// ReadRun retrieves a run by id. Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, protocol, network, seed, actors, status, error
		FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.Protocol, &r.Network, &r.Seed, &r.Actors, &r.Status, &r.Error)
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns every run ordered by id, which for UUIDv7 ids is start order.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, protocol, network, seed, actors, status, error
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Protocol, &r.Network, &r.Seed, &r.Actors, &r.Status, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadInvocations returns a run's invocations ordered by seq.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadInvocations(ctx context.Context, runID string) ([]Invocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, seq, phase, actor, command, output, exit_status, outcome, rule
		FROM invocations
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	invs := []Invocation{}
	for rows.Next() {
		var inv Invocation
		if err := rows.Scan(&inv.ID, &inv.RunID, &inv.Seq, &inv.Phase, &inv.Actor,
			&inv.Command, &inv.Output, &inv.ExitStatus, &inv.Outcome, &inv.Rule); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		invs = append(invs, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return invs, nil
}

// PhaseCount is the number of invocations per outcome in one phase.
type PhaseCount struct {
	Phase   string
	Outcome string
	Count   int
}

// SummarizeRun counts a run's invocations by phase and outcome, ordered by
// the first invocation of each pair.
func (s *Store) SummarizeRun(ctx context.Context, runID string) ([]PhaseCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT phase, outcome, COUNT(*), MIN(seq) AS first_seq
		FROM invocations
		WHERE run_id = ?
		GROUP BY phase, outcome
		ORDER BY first_seq ASC, outcome COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("summarize run: %w", err)
	}
	defer rows.Close()

	counts := []PhaseCount{}
	for rows.Next() {
		var (
			c     PhaseCount
			first int64
		)
		if err := rows.Scan(&c.Phase, &c.Outcome, &c.Count, &first); err != nil {
			return nil, fmt.Errorf("scan phase count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate phase counts: %w", err)
	}
	return counts, nil
}
