package frames

import "errors"

// Stack consistency errors. Both indicate a bug in the caller, not a
// protocol violation by the monitored program.
var (
	ErrStackUnderflow = errors.New("local frame stack underflow")
	ErrNoFrame        = errors.New("no active local frame")
)
