package client

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying the final outcome of a Call. Match with
// errors.Is.
var (
	// ErrUnknownTarget means no dependency target with that name is configured.
	ErrUnknownTarget = errors.New("unknown dependency target")

	// ErrDependencyUnavailable means the circuit is open and no attempt was made.
	ErrDependencyUnavailable = errors.New("dependency unavailable: circuit open")

	// ErrTimeout means the call exceeded its time budget.
	ErrTimeout = errors.New("dependency call timed out")

	// ErrValidationRejected means the dependency rejected the request with a
	// non-retryable status. The call fails fast without retries.
	ErrValidationRejected = errors.New("dependency rejected request")

	// ErrDependencyError means retries were exhausted on a retryable failure.
	ErrDependencyError = errors.New("dependency error: retries exhausted")
)

// CallError is the classified failure returned by Call. It wraps one of the
// sentinel errors above plus the underlying cause of the last attempt.
type CallError struct {
	Target   string
	Method   string
	Path     string
	Status   int // last response status, 0 if none received
	Attempts int // attempts actually made
	Class    error
	cause    error
}

func (e *CallError) Error() string {
	msg := fmt.Sprintf("%s %s %s: %v (attempts=%d", e.Target, e.Method, e.Path, e.Class, e.Attempts)
	if e.Status > 0 {
		msg += fmt.Sprintf(", status=%d", e.Status)
	}
	msg += ")"
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap exposes both the classification sentinel and the underlying cause.
func (e *CallError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Class}
	}
	return []error{e.Class, e.cause}
}
