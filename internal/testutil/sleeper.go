// Package testutil provides deterministic stand-ins for time and the backend.
package testutil

import (
	"context"
	"sync"
	"time"
)

// FakeSleeper records requested sleeps and advances a logical clock instead
// of blocking, so poll loops run instantly under test.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeSleeper struct {
	mu      sync.Mutex
	slept   []time.Duration
	elapsed time.Duration

	// OnSleep, if set, runs after each recorded sleep. Tests use it to
	// change scripted backend state "while" the caller waits.
	OnSleep func(n int)
}

// NewFakeSleeper creates a sleeper whose logical clock starts at zero.
func NewFakeSleeper() *FakeSleeper {
	return &FakeSleeper{}
}

// Sleep records d. It returns ctx.Err() if the context is already done.
func (s *FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.slept = append(s.slept, d)
	s.elapsed += d
	n := len(s.slept)
	hook := s.OnSleep
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

// Count returns how many sleeps were requested.
func (s *FakeSleeper) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slept)
}

// Slept returns a copy of every requested duration in order.
func (s *FakeSleeper) Slept() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.slept...)
}

// Elapsed returns the total logical time slept.
func (s *FakeSleeper) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Reset clears recorded sleeps and the logical clock.
func (s *FakeSleeper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slept = nil
	s.elapsed = 0
}
