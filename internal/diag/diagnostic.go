// Package diag defines protocol diagnostics and the sinks that deliver them.
//
// Every predicate failure in the checker becomes exactly one Diagnostic
// handed to a Sink. Sinks compose: a typical process wraps a FanOut of a
// LogSink, a Recorder and an optional NATSSink in a RateLimitedSink and
// counts everything with Instrument.
package diag

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/jnicheck/internal/vm"
)

// Kind classifies a diagnostic. The checker only emits KindProtocol.
type Kind string

// KindProtocol marks a protocol violation by the monitored program.
const KindProtocol Kind = "protocol warning"

// Check is the stable code of the predicate that failed. Codes are used as
// metric labels and NATS subject tokens, so they never contain dots.
type Check string

// Consistency checks.
const (
	CheckEnvMismatch      Check = "env_mismatch"
	CheckPendingException Check = "pending_exception"
	CheckCriticalRegion   Check = "critical_region"
	CheckNullArgument     Check = "null_argument"
)

// Reference and hierarchy checks.
const (
	CheckDeadReference     Check = "dead_reference"
	CheckWrongType         Check = "wrong_type"
	CheckNotAncestor       Check = "not_ancestor"
	CheckNotAssignable     Check = "not_assignable"
	CheckNotArray          Check = "not_array"
	CheckNotObjectArray    Check = "not_object_array"
	CheckNotPrimitiveArray Check = "not_primitive_array"
	CheckNotScalar         Check = "not_scalar"
	CheckRefType           Check = "ref_type"
)

// Identifier checks.
const (
	CheckInvalidField   Check = "invalid_field"
	CheckFieldKind      Check = "field_kind"
	CheckFieldType      Check = "field_type"
	CheckFinalField     Check = "final_field"
	CheckInvalidMethod  Check = "invalid_method"
	CheckMethodKind     Check = "method_kind"
	CheckNotConstructor Check = "not_constructor"
	CheckMethodClass    Check = "method_class"
	CheckReturnType     Check = "return_type"
	CheckArgumentCount  Check = "argument_count"
)

// Frame checks.
const (
	CheckFrameCapacity Check = "frame_capacity"
	CheckFrameShape    Check = "frame_shape"
)

// Resource checks.
const (
	CheckDoubleFree    Check = "double_free"
	CheckUntrackedFree Check = "untracked_free"
	CheckResourceLeak  Check = "resource_leak"
)

// Diagnostic is one reported protocol violation.
type Diagnostic struct {
	Kind      Kind      `json:"kind"`
	Check     Check     `json:"check"`
	ContextID uint64    `json:"context_id"`
	Thread    string    `json:"thread,omitempty"`
	Env       vm.Env    `json:"env"`
	Site      string    `json:"site,omitempty"`
	Index     int       `json:"index,omitempty"`
	Handle    uintptr   `json:"handle,omitempty"`
	Message   string    `json:"message"`
	Time      time.Time `json:"time"`
	RunID     string    `json:"run_id,omitempty"`
}

// String renders the diagnostic the way it is printed to a terminal.
func (d Diagnostic) String() string {
	return fmt.Sprintf("JNI warn (env=%s): %s", d.Env, d.Message)
}
