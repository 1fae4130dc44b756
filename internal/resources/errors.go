package resources

import "errors"

// Tracker construction errors.
var (
	ErrInvalidHistory = errors.New("released history size must be positive")
)
