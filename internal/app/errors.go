package service

import "errors"

// Sentinel kinds for service errors.
var (
	// ErrValidation marks malformed administrative input rejected before it
	// reaches the engine.
	ErrValidation = errors.New("validation failed")
)
