package repository

import "errors"

// Sentinel kinds for store errors.
var (
	// ErrNotFound signals a missing entity.
	ErrNotFound = errors.New("entity not found")
	// ErrConflict signals a lost uniqueness race or a failed capacity
	// re-check; callers retry or re-read.
	ErrConflict = errors.New("store conflict")
)
