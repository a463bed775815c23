package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/drill/internal/store"
	"github.com/roach88/drill/internal/testutil"
)

const electionScript = "testdata/scripts/election_ready.yaml"

func electionArgs(extra ...string) []string {
	args := []string{"election", "--script", electionScript}
	args = append(args, extra...)
	return append(args, "cleos", "ctl", testKey, "0", "drill", "2", "1", "0")
}

func TestElection_WrongArgumentCount(t *testing.T) {
	_, stderr, code := execute(t, context.Background(), "election", "cleos", "ctl")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "Error [CONFIGURATION]")
	assert.Contains(t, stderr, "expected 8 arguments, got 2")
}

func TestElection_InvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"short key", []string{"cleos", "ctl", "EOSshort", "0", "drill", "2", "1", "0"}, "public key"},
		{"variant", []string{"cleos", "ctl", testKey, "9", "drill", "2", "1", "0"}, "variant"},
		{"faction", []string{"cleos", "ctl", testKey, "0", "drill", "2", "5", "0"}, "faction"},
		{"count", []string{"cleos", "ctl", testKey, "0", "drill", "0", "1", "0"}, "actor count"},
		{"seed", []string{"cleos", "ctl", testKey, "0", "drill", "2", "1", "x"}, "seed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := execute(t, context.Background(), append([]string{"election"}, tt.args...)...)
			assert.Equal(t, ExitFailure, code)
			assert.Contains(t, stderr, "CONFIGURATION")
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestElection_InvalidFlagSettings(t *testing.T) {
	_, stderr, code := execute(t, context.Background(), electionArgs("--poll-interval", "0s")...)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "--poll-interval must be positive")
}

func TestElection_MissingScript(t *testing.T) {
	_, stderr, code := execute(t, context.Background(),
		"election", "--script", "testdata/scripts/nope.yaml",
		"cleos", "ctl", testKey, "0", "drill", "2", "1", "0")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "failed to load script")
}

func TestElection_ScriptedRun(t *testing.T) {
	stdout, stderr, code := execute(t, context.Background(), electionArgs()...)
	require.Equal(t, ExitSuccess, code, stderr)

	assert.Contains(t, stdout, "election run on local completed (seed 0)")
	assert.Contains(t, stdout, "create-accounts")
	assert.Contains(t, stdout, "duplicate=2")
	assert.Contains(t, stdout, "char=11 role=3 balance=100.0000 PLAY staked=10.0000 PLAY")
	assert.Contains(t, stdout, "char=12 role=7 balance=100.0000 PLAY staked=10.0000 PLAY")

	// The scripted backend covers every command the run issues.
	assert.NotContains(t, stderr, "command not covered by script")
	assert.Contains(t, stderr, "run completed")
}

func TestElection_ScriptedRunJSON(t *testing.T) {
	stdout, stderr, code := execute(t, context.Background(), electionArgs("--format", "json")...)
	require.Equal(t, ExitSuccess, code, stderr)

	var resp struct {
		Status string    `json:"status"`
		Data   RunReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "election", resp.Data.Protocol)
	assert.Equal(t, "local", resp.Data.Network)
	assert.Empty(t, resp.Data.RunID)

	require.Len(t, resp.Data.Actors, 2)
	assert.Equal(t, "drillaaaaaa", resp.Data.Actors[0].Name)
	assert.Equal(t, "drillaaaaab", resp.Data.Actors[1].Name)

	require.NotEmpty(t, resp.Data.Phases)
	assert.Equal(t, "create-accounts", resp.Data.Phases[0].Phase)
	assert.Equal(t, 2, resp.Data.Phases[0].Duplicate)
}

func TestElection_StakeDaysFlagOverridesEnv(t *testing.T) {
	_, stderr, code := execute(t, context.Background(), electionArgs("--stake-days", "7", "-v")...)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stderr, `\"days\":7`)
}

func TestElection_Journaled(t *testing.T) {
	db := filepath.Join(t.TempDir(), "drill.db")
	_, stderr, code := execute(t, context.Background(), electionArgs("--journal", db)...)
	require.Equal(t, ExitSuccess, code, stderr)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	runs, err := st.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.StatusCompleted, runs[0].Status)
	assert.Equal(t, "election", runs[0].Protocol)
	assert.Equal(t, 2, runs[0].Actors)

	invs, err := st.ReadInvocations(ctx, runs[0].ID)
	require.NoError(t, err)
	require.NotEmpty(t, invs)
	assert.Equal(t, int64(1), invs[0].Seq)
	assert.Equal(t, "create-accounts", invs[0].Phase)
	assert.Equal(t, "BenignDuplicate", invs[0].Outcome)
}

func TestElection_Interrupted(t *testing.T) {
	db := filepath.Join(t.TempDir(), "drill.db")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, stderr, code := execute(t, ctx, electionArgs("--journal", db)...)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "INTERRUPTED")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.StatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "INTERRUPTED")
}

func TestElection_FailureJSON(t *testing.T) {
	stdout, _, code := execute(t, context.Background(), "--format", "json", "election", "cleos")
	assert.Equal(t, ExitFailure, code)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONFIGURATION", resp.Error.Code)
}

func TestElection_InjectedSleeperAndRunID(t *testing.T) {
	t.Setenv("DRILL_JOURNAL", "")
	t.Setenv("DRILL_POLL_INTERVAL", "")
	t.Setenv("DRILL_STAKE_DAYS", "")

	sleeper := testutil.NewFakeSleeper()
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Sleeper:     sleeper,
		IDGenerator: store.NewFixedGenerator("run-0001"),
	}
	cmd := newElectionCommand(opts)
	var out, errb bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errb)
	cmd.SetArgs([]string{
		"--script", "testdata/scripts/election_slow_balance.yaml",
		"--journal", filepath.Join(t.TempDir(), "drill.db"),
		"--poll-interval", "5s",
		"cleos", "ctl", testKey, "0", "drill", "2", "1", "0",
	})

	require.NoError(t, cmd.Execute(), errb.String())
	assert.Contains(t, out.String(), "journaled as run-0001")

	// Only the first actor waits: the second balance query already succeeds.
	assert.Equal(t, []time.Duration{5 * time.Second}, sleeper.Slept())
}

func TestPlayoff_ScriptedRun(t *testing.T) {
	stdout, stderr, code := execute(t, context.Background(),
		"playoff", "--script", "testdata/scripts/playoff_ready.yaml",
		"cleos", "ctl", testKey, "0", "drill", "2", "1", "7")
	require.Equal(t, ExitSuccess, code, stderr)

	assert.Contains(t, stdout, "playoff run on local completed (seed 7)")
	assert.Contains(t, stdout, "char=11 role=1 balance=0.0000 PLAY squad=1")
	assert.Contains(t, stdout, "char=12 role=2 balance=0.0000 PLAY squad=1")
	assert.Contains(t, stdout, "voteprop")
	assert.Contains(t, stdout, "skipped=2")
}
