package selector

// Option applies a configuration option to the Selector.
type Option func(*Selector)

// WithRand injects the randomness source used for draws.
func WithRand(rnd Rand) Option {
	return func(s *Selector) {
		if rnd != nil {
			s.rnd = rnd
		}
	}
}
