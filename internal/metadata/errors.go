package metadata

import "errors"

// Registration errors.
var (
	ErrCacheFull           = errors.New("identifier cache limit reached")
	ErrMalformedDescriptor = errors.New("malformed descriptor")
	ErrStaticMismatch      = errors.New("static flag disagrees with modifiers")
	ErrNullIdentifier      = errors.New("identifier is null")
)
