package harness

import (
	"context"
	"sync"

	"github.com/roach88/drill/internal/backend"
)

// UnscriptedExit is the exit status of a command no rule matches.
const UnscriptedExit = 127

// Call is one recorded invocation of the scripted backend.
type Call struct {
	Seq     int64
	Command string

	// Rule is the name of the rule that answered, empty for the default
	// or unscripted response.
	Rule string

	Output string
	Exit   int
}

// Backend answers commands from a Script and records every call.
// It implements backend.Invoker.
//
// Thread-safety: Backend is safe for concurrent use via internal mutex.
type Backend struct {
	mu     sync.Mutex
	script *Script
	used   []int
	calls  []Call
}

// NewBackend creates a backend for a compiled script.
func NewBackend(script *Script) *Backend {
	return &Backend{
		script: script,
		used:   make([]int, len(script.Rules)),
	}
}

// Invoke implements backend.Invoker.
func (b *Backend) Invoke(ctx context.Context, command string) backend.Result {
	if err := ctx.Err(); err != nil {
		return backend.Result{ExitStatus: -1, Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	call := Call{Seq: int64(len(b.calls) + 1), Command: command}
	resp, rule := b.answer(command)
	call.Rule = rule
	call.Output = resp.Output
	call.Exit = resp.Exit
	b.calls = append(b.calls, call)

	return backend.Result{Output: resp.Output, ExitStatus: resp.Exit}
}

func (b *Backend) answer(command string) (Response, string) {
	for i, r := range b.script.Rules {
		if !r.pattern.MatchString(command) {
			continue
		}
		n := b.used[i]
		b.used[i]++
		if n >= len(r.Responses) {
			n = len(r.Responses) - 1
		}
		return r.Responses[n], r.Name
	}
	if b.script.Default != nil {
		return *b.script.Default, ""
	}
	return Response{Output: "drill: command not scripted\n", Exit: UnscriptedExit}, ""
}

// Calls returns a copy of every call made so far, in order.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// Unscripted returns the commands that fell through to exit status 127.
func (b *Backend) Unscripted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []string
	for _, c := range b.calls {
		if c.Rule == "" && c.Exit == UnscriptedExit {
			out = append(out, c.Command)
		}
	}
	return out
}
