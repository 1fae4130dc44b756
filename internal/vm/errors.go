package vm

import "errors"

// Runtime query errors.
var (
	ErrClassNotFound   = errors.New("class not found")
	ErrInvalidHandle   = errors.New("invalid handle")
	ErrUnknownModifier = errors.New("unknown modifier")
	ErrUnknownPhase    = errors.New("unknown phase")
)

// Hierarchy errors.
var (
	ErrHierarchyTooDeep = errors.New("class hierarchy exceeds maximum depth")
)
