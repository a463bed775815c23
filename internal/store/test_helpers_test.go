package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// beginTestRun inserts a run with minimal required fields.
func beginTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	err := s.BeginRun(context.Background(), Run{
		ID:       id,
		Protocol: "election",
		Network:  "local",
		Seed:     0,
		Actors:   3,
	})
	if err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
}

// createTestInvocation creates an invocation with minimal required fields.
func createTestInvocation(runID string, seq int64, phase, actor string) Invocation {
	return Invocation{
		RunID:   runID,
		Seq:     seq,
		Phase:   phase,
		Actor:   actor,
		Command: "cleos push action playgame " + phase + " '{}' -p " + actor + "@active",
		Outcome: "Success",
	}
}
