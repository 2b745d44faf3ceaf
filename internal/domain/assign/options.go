package assign

import "github.com/okian/dispatch/pkg/logger"

// Option applies a configuration option to the Coordinator.
type Option func(*Coordinator)

// WithMaxAttempts bounds the conflict-retry loop around commit.
func WithMaxAttempts(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithLogger sets a custom logger for the coordinator.
func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}
