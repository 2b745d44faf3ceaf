package leads

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithMaxAttempts bounds the find/insert retry loop.
func WithMaxAttempts(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}
