// Package backend is the boundary to the external chain CLI.
//
// The rest of drill treats the backend as "command line in, text and exit
// status out". Invoker is that boundary; ExecInvoker runs real processes and
// the harness package provides a scripted stand-in. Table snapshots and
// currency balances are decoded here into typed values so the join and
// classification logic never sees the wire format.
package backend

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// killGrace bounds how long Invoke waits for output pipes after the context
// kills the shell, in case the backend left children holding them open.
const killGrace = 2 * time.Second

// Result is the captured result of one command.
type Result struct {
	// Output is combined stdout and stderr.
	Output string

	// ExitStatus is the process exit code, or -1 if the process could not
	// be started or was terminated by a signal.
	ExitStatus int

	// Err carries the start or wait error, if any, for diagnostics.
	Err error
}

// Interrupted reports whether the command was cut short by cancellation of
// the caller's context.
func (r Result) Interrupted() bool {
	return errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded)
}

// Invoker executes one backend command line.
type Invoker interface {
	Invoke(ctx context.Context, command string) Result
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, command string) Result

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, command string) Result {
	return f(ctx, command)
}

// ExecInvoker runs commands through a shell so that backend prefixes with
// their own flags and quoting work unchanged.
type ExecInvoker struct {
	// Shell defaults to "/bin/sh".
	Shell string
}

// Invoke runs command with `sh -c` and captures combined output.
func (e ExecInvoker) Invoke(ctx context.Context, command string) Result {
	shell := e.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.WaitDelay = killGrace
	out, err := cmd.CombinedOutput()
	res := Result{Output: string(out)}
	if err == nil {
		return res
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		// CommandContext killed the child; that is the caller's doing, not
		// the backend's.
		res.ExitStatus = -1
		res.Err = fmt.Errorf("%w: %v", ctxErr, err)
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			res.ExitStatus = -1
			res.Err = fmt.Errorf("terminated by signal %v", ws.Signal())
			return res
		}
		res.ExitStatus = exitErr.ExitCode()
		return res
	}

	res.ExitStatus = -1
	res.Err = err
	return res
}

// Command prefixes every backend command with the invocation prefix, e.g.
// "cleos -u http://127.0.0.1:8888".
type Command struct {
	Prefix string
}

func (c Command) join(parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if p := strings.TrimSpace(c.Prefix); p != "" {
		all = append(all, p)
	}
	all = append(all, parts...)
	return strings.Join(all, " ")
}

// Template prefixes a free-form command template.
func (c Command) Template(tmpl string) string {
	return c.join(tmpl)
}

// CreateAccount returns a create-account command template; the actor name
// is the single placeholder.
func (c Command) CreateAccount(controller, publicKey string) string {
	return c.join("create", "account", controller, "%%", publicKey, publicKey)
}

// PushAction returns a push-action command template with two placeholders:
// the JSON payload and the signing actor, in that order.
func (c Command) PushAction(contract, action string) string {
	return c.join("push", "action", contract, action, "'%%'", "-p", "%%@active")
}

// GetTable returns the command that fetches one page of a contract table.
func (c Command) GetTable(contract, table string, limit int, lower string) string {
	cmd := c.join("get", "table", contract, contract, table, "--limit", fmt.Sprint(limit))
	if lower != "" {
		cmd += " -L " + lower
	}
	return cmd
}

// GetBalance returns a balance query template; the actor name is the single placeholder.
func (c Command) GetBalance(tokenContract, symbol string) string {
	return c.join("get", "currency", "balance", tokenContract, "%%", symbol)
}
