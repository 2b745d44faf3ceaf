// Package assign orchestrates the assignment pipeline: resolve lead,
// validate source, filter, select and commit one contact atomically.
package assign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/okian/dispatch/internal/adapters/repository"
	"github.com/okian/dispatch/internal/domain/model"
	"github.com/okian/dispatch/pkg/logger"
	"github.com/okian/dispatch/pkg/metrics"
)

const defaultMaxAttempts = 3

// Store is the subset of the entity store the coordinator needs.
type Store interface {
	FindSource(ctx context.Context, id int64) (model.Source, error)
	InsertContact(ctx context.Context, leadID, sourceID int64, operatorID *int64) (model.Contact, error)
}

// LeadResolver resolves an external lead id to a lead, creating it if new.
type LeadResolver interface {
	Resolve(ctx context.Context, externalID string) (model.Lead, error)
}

// Eligibler computes the candidate operators for a source.
type Eligibler interface {
	Eligible(ctx context.Context, sourceID int64) ([]model.Candidate, error)
}

// Picker draws one candidate proportionally to weight.
type Picker interface {
	Pick(candidates []model.Candidate) (operatorID int64, ok bool)
}

// Coordinator runs the assignment pipeline. The capacity check and the
// contact insert must not interleave with concurrent assignments for the
// same source, or two requests could both observe load < max and both
// commit. Two mechanisms uphold the invariant:
//
//   - a per-source mutex held across eligibility, selection and commit,
//     serializing assignments within the process;
//   - the store's own capacity re-check inside InsertContact, which returns
//     ErrConflict on overshoot and also covers multi-process backends.
//
// Conflicts re-run eligibility and selection up to a retry budget.
type Coordinator struct {
	store       Store
	leads       LeadResolver
	filter      Eligibler
	picker      Picker
	locks       *xsync.Map[int64, *sync.Mutex]
	maxAttempts int
	logger      logger.Logger
}

// NewCoordinator wires the pipeline components.
func NewCoordinator(store Store, leads LeadResolver, filter Eligibler, picker Picker, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		leads:       leads,
		filter:      filter,
		picker:      picker,
		locks:       xsync.NewMap[int64, *sync.Mutex](),
		maxAttempts: defaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logger.Get().Named("assign")
	}

	return c
}

// sourceLock returns the mutex serializing assignments for a source.
func (c *Coordinator) sourceLock(sourceID int64) *sync.Mutex {
	mu, _ := c.locks.LoadOrStore(sourceID, &sync.Mutex{})
	return mu
}

// Assign routes one inbound contact and commits the outcome.
// Returns ErrSourceNotFound for an unknown source (the resolved lead is
// retained; it is idempotent) and ErrTransient when the conflict-retry
// budget is exhausted. A source with no eligible operator yields an
// unassigned contact, not an error.
func (c *Coordinator) Assign(ctx context.Context, externalLeadID string, sourceID int64) (model.AssignmentResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordAssignmentLatency(float64(time.Since(start).Milliseconds()))
	}()

	lead, err := c.leads.Resolve(ctx, externalLeadID)
	if err != nil {
		return model.AssignmentResult{}, err
	}

	if _, err := c.store.FindSource(ctx, sourceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RecordSourceNotFound()
			return model.AssignmentResult{}, fmt.Errorf("source %d: %w", sourceID, ErrSourceNotFound)
		}
		return model.AssignmentResult{}, fmt.Errorf("find source %d: %w", sourceID, err)
	}

	mu := c.sourceLock(sourceID)
	mu.Lock()
	defer mu.Unlock()

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return model.AssignmentResult{}, fmt.Errorf("assignment aborted: %w", err)
		}

		candidates, err := c.filter.Eligible(ctx, sourceID)
		if err != nil {
			return model.AssignmentResult{}, err
		}

		var operatorID *int64
		if id, ok := c.picker.Pick(candidates); ok {
			operatorID = &id
		}

		contact, err := c.store.InsertContact(ctx, lead.ID, sourceID, operatorID)
		if errors.Is(err, repository.ErrConflict) {
			// The picked operator filled up between the load read and the
			// commit; re-run eligibility against fresh state.
			metrics.RecordAssignConflictRetry()
			c.logger.Debug(ctx, "capacity conflict, reselecting",
				logger.Int64("sourceID", sourceID),
				logger.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return model.AssignmentResult{}, fmt.Errorf("insert contact: %w", err)
		}

		if contact.OperatorID != nil {
			metrics.RecordContactAssigned()
		} else {
			metrics.RecordContactUnassigned()
		}

		return model.AssignmentResult{
			ContactID:  contact.ID,
			LeadID:     lead.ID,
			SourceID:   sourceID,
			OperatorID: contact.OperatorID,
			Assigned:   contact.OperatorID != nil,
		}, nil
	}

	return model.AssignmentResult{}, fmt.Errorf("source %d after %d attempts: %w", sourceID, c.maxAttempts, ErrTransient)
}
