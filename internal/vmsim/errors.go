package vmsim

import "errors"

// Universe definition errors.
var (
	ErrDuplicateClass   = errors.New("class already defined")
	ErrUnknownSuper     = errors.New("superclass not defined")
	ErrUnresolvable     = errors.New("class definitions cannot be resolved")
	ErrEmptyName        = errors.New("class name is required")
	ErrUnsupportedFile  = errors.New("unsupported universe file type")
	ErrMemberNotFound   = errors.New("member not found")
	ErrAbstractInstance = errors.New("cannot instantiate abstract class or interface")
)
