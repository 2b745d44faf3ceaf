package leads

import "errors"

// Sentinel kinds for lead resolution errors.
var (
	// ErrUnresolved means the find/insert loop kept losing races past the
	// retry budget.
	ErrUnresolved = errors.New("lead resolution retries exhausted")
)
