package jnicheck

import (
	"errors"
	"fmt"
)

// Lifecycle errors.
var (
	ErrUnknownContext = errors.New("unknown call context")
	ErrDuplicateEnv   = errors.New("env already bound to a live context")
	ErrNullEnv        = errors.New("env is null")
	ErrNotInitialized = errors.New("checker not initialized")
)

// Consistency errors reported through the invariant handler.
var (
	ErrCriticalUnderflow = errors.New("critical region depth below zero")
	ErrNoFrame           = errors.New("no local frame")
	ErrBadDescriptor     = errors.New("cached descriptor is malformed")
)

// InvariantError is an internal consistency failure of the checker. It
// means the checker's own state can no longer be trusted.
type InvariantError struct {
	Op        string
	ContextID uint64
	Err       error
}

func (e *InvariantError) Error() string {
	if e.ContextID == 0 {
		return fmt.Sprintf("jnicheck: invariant violated in %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("jnicheck: invariant violated in %s (context %d): %v", e.Op, e.ContextID, e.Err)
}

func (e *InvariantError) Unwrap() error { return e.Err }

// InvariantHandler receives internal consistency failures. The default
// handler logs the failure and panics with the *InvariantError.
type InvariantHandler func(*InvariantError)
