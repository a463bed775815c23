// Package fault defines the error taxonomy shared by every phase of a drill run.
//
// Errors are not aggregated or deferred: each phase decides continue/skip/abort
// at the point of classification and returns a *RunError only when the run
// must stop. Benign duplicates and recoverable rejections never become errors.
package fault

import (
	"errors"
	"fmt"
)

// Code categorizes run errors.
type Code string

const (
	// CodeConfiguration indicates invalid CLI input, detected before any backend call.
	CodeConfiguration Code = "CONFIGURATION"

	// CodeAuthorization indicates the controlling account lacks a required permission.
	CodeAuthorization Code = "AUTHORIZATION"

	// CodeRuleRejection indicates a backend rule rejection the phase treats as fatal.
	CodeRuleRejection Code = "RULE_REJECTION"

	// CodeInvocationFailure indicates the backend process crashed, was killed,
	// or produced output nothing could classify.
	CodeInvocationFailure Code = "INVOCATION_FAILURE"

	// CodeConsistency indicates two independently fetched views disagree.
	CodeConsistency Code = "CONSISTENCY"

	// CodeExhausted indicates a bounded budget ran out (actor names, poll attempts, retries).
	CodeExhausted Code = "EXHAUSTED"

	// CodeInterrupted indicates the operator cancelled the run.
	CodeInterrupted Code = "INTERRUPTED"
)

// RunError is a fatal condition that aborts the whole run.
type RunError struct {
	Code    Code
	Phase   string
	Actor   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Phase != "" && e.Actor != "":
		msg = fmt.Sprintf("%s (phase=%s, actor=%s)", msg, e.Phase, e.Actor)
	case e.Phase != "":
		msg = fmt.Sprintf("%s (phase=%s)", msg, e.Phase)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RunError) Unwrap() error {
	return e.Err
}

// New creates a RunError without phase context.
func New(code Code, format string, args ...any) *RunError {
	return &RunError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a RunError around an underlying error.
func Wrap(code Code, err error, format string, args ...any) *RunError {
	return &RunError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// At returns a copy of e annotated with phase and actor, keeping any context
// already present.
func (e *RunError) At(phase, actor string) *RunError {
	c := *e
	if c.Phase == "" {
		c.Phase = phase
	}
	if c.Actor == "" {
		c.Actor = actor
	}
	return &c
}

// CodeOf returns the code of the first RunError in err's chain, or "" if none.
func CodeOf(err error) Code {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
