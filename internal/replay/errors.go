package replay

import "errors"

// Script errors.
var (
	// ErrInvalidScript is returned when a script fails validation.
	ErrInvalidScript = errors.New("invalid replay script")

	// ErrUnknownOp is returned for an event op the runner does not know.
	ErrUnknownOp = errors.New("unknown event op")
)

// Execution errors. These describe a broken script, never a protocol
// violation by the program being replayed.
var (
	// ErrUnknownThread is returned when an event names a thread that was
	// never started or has already ended.
	ErrUnknownThread = errors.New("unknown thread")

	// ErrUnknownName is returned when an event refers to a reference,
	// identifier, resource or class name that is not bound.
	ErrUnknownName = errors.New("unknown name")

	// ErrInvariant wraps an internal checker invariant failure that aborted
	// the run.
	ErrInvariant = errors.New("checker invariant failed")
)
