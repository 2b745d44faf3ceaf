package assign

import "errors"

// Sentinel kinds for assignment errors.
var (
	// ErrSourceNotFound means the referenced source id does not exist; no
	// contact is written.
	ErrSourceNotFound = errors.New("source not found")
	// ErrTransient means capacity conflicts persisted past the retry budget;
	// the caller may retry the request.
	ErrTransient = errors.New("assignment conflict retries exhausted")
)
