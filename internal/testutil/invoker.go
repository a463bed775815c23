package testutil

import (
	"context"
	"sync"

	"github.com/roach88/drill/internal/backend"
)

// RecordingInvoker answers every command with Respond and keeps the
// commands it saw, in order.
//
// Thread-safety: RecordingInvoker is safe for concurrent use via internal mutex.
type RecordingInvoker struct {
	mu       sync.Mutex
	commands []string

	// Respond produces the result for a command. If nil, every command
	// succeeds with empty output.
	Respond func(command string) backend.Result
}

// Invoke implements backend.Invoker.
func (r *RecordingInvoker) Invoke(_ context.Context, command string) backend.Result {
	r.mu.Lock()
	r.commands = append(r.commands, command)
	respond := r.Respond
	r.mu.Unlock()

	if respond == nil {
		return backend.Result{}
	}
	return respond(command)
}

// Commands returns a copy of every command received.
func (r *RecordingInvoker) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}
