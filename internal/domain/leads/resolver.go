// Package leads provides idempotent lead resolution by external id.
package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/dispatch/internal/adapters/repository"
	"github.com/okian/dispatch/internal/domain/model"
	"github.com/okian/dispatch/pkg/metrics"
)

const defaultMaxAttempts = 3

// Store is the subset of the entity store the resolver needs.
type Store interface {
	FindLeadByExternalID(ctx context.Context, externalID string) (model.Lead, error)
	InsertLead(ctx context.Context, externalID string) (model.Lead, error)
}

// Resolver returns the lead for an external id, creating it on first sight.
// Two resolvers racing on the same external id converge on one lead: the
// loser of the insert race re-reads instead of failing.
type Resolver struct {
	store       Store
	maxAttempts int
}

// NewResolver creates a resolver backed by the given store.
func NewResolver(store Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:       store,
		maxAttempts: defaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve finds or creates the lead for externalID.
func (r *Resolver) Resolve(ctx context.Context, externalID string) (model.Lead, error) {
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		lead, err := r.store.FindLeadByExternalID(ctx, externalID)
		if err == nil {
			if attempt == 0 {
				metrics.RecordLeadResolved()
			}
			return lead, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return model.Lead{}, fmt.Errorf("find lead %q: %w", externalID, err)
		}

		lead, err = r.store.InsertLead(ctx, externalID)
		if err == nil {
			metrics.RecordLeadCreated()
			return lead, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return model.Lead{}, fmt.Errorf("insert lead %q: %w", externalID, err)
		}
		// Lost the uniqueness race; the winner's lead is read on the next pass.
	}
	return model.Lead{}, fmt.Errorf("resolve lead %q: %w", externalID, ErrUnresolved)
}
