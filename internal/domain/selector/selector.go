// Package selector draws one operator from a weighted candidate list.
package selector

import (
	"math/rand"
	"sync"
	"time"

	"github.com/okian/dispatch/internal/domain/model"
)

// Rand yields uniform integers in [0, n). rand.Rand satisfies it; tests
// inject a fixed sequence for reproducible draws.
type Rand interface {
	Intn(n int) int
}

// Selector implements roulette-wheel selection over integer weights: the
// candidate whose cumulative interval [cum, cum+weight) contains the draw
// wins, so each candidate is picked with probability weight/total.
type Selector struct {
	rnd Rand
}

// New creates a selector; without options it uses a time-seeded source
// guarded by a mutex.
func New(opts ...Option) *Selector {
	s := &Selector{}

	for _, opt := range opts {
		opt(s)
	}

	if s.rnd == nil {
		s.rnd = &lockedRand{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
	}

	return s
}

// Pick draws one candidate proportionally to weight. ok is false for an
// empty list; that is the "no eligible operator" outcome, not an error.
func (s *Selector) Pick(candidates []model.Candidate) (operatorID int64, ok bool) {
	total := 0
	for _, c := range candidates {
		total += c.Weight
	}
	if total <= 0 {
		return 0, false
	}

	r := s.rnd.Intn(total)
	cum := 0
	for _, c := range candidates {
		cum += c.Weight
		if r < cum {
			return c.OperatorID, true
		}
	}
	// Unreachable: r < total and the intervals cover [0, total).
	return candidates[len(candidates)-1].OperatorID, true
}

// lockedRand makes a rand.Rand safe for concurrent draws.
type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.Intn(n)
}
