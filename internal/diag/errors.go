package diag

import "errors"

// Sink configuration errors.
var (
	ErrNoConnection = errors.New("nats connection is required")
	ErrEmptyPrefix  = errors.New("subject prefix is required")
	ErrInvalidLimit = errors.New("rate limit must be positive")
	ErrInvalidBurst = errors.New("burst must be positive")
)
