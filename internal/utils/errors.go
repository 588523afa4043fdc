package utils

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying expected failure modes of the control loop.
var (
	// ErrNotFound reports a lookup for an unknown service or incident.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID reports an attempt to create an entity with an id already in use.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrInvalidTransition reports a backward or skip-state incident transition.
	// It is an invariant violation, never coerced.
	ErrInvalidTransition = errors.New("invalid incident transition")
	// ErrBusy reports a remediation already in flight for the service. Expected,
	// non-fatal; callers log and drop for the current cycle.
	ErrBusy = errors.New("remediation already in flight")
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}
