// Package eligibility computes the candidate operators for a source.
package eligibility

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/dispatch/internal/adapters/repository"
	"github.com/okian/dispatch/internal/domain/model"
)

// EdgeLister is the store view that supplies the edge/operator join.
type EdgeLister interface {
	ListEdgesWithOperator(ctx context.Context, sourceID int64) ([]repository.EdgeOperator, error)
}

// LoadCounter reports an operator's active load.
type LoadCounter interface {
	Active(ctx context.Context, operatorID int64) (int, error)
}

// Filter narrows a source's weighted edges to operators that may receive
// work: active, positive weight, and load below capacity.
type Filter struct {
	edges EdgeLister
	loads LoadCounter
}

// NewFilter creates a filter over the given edge source and load counter.
func NewFilter(edges EdgeLister, loads LoadCounter) *Filter {
	return &Filter{edges: edges, loads: loads}
}

// Eligible returns the candidates for sourceID ordered by operator id.
// An empty result is a normal outcome, not an error.
func (f *Filter) Eligible(ctx context.Context, sourceID int64) ([]model.Candidate, error) {
	joined, err := f.edges.ListEdgesWithOperator(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list edges for source %d: %w", sourceID, err)
	}

	var candidates []model.Candidate
	for _, eo := range joined {
		if !eo.Operator.Active || eo.Weight <= 0 {
			continue
		}
		active, err := f.loads.Active(ctx, eo.Operator.ID)
		if err != nil {
			return nil, err
		}
		if active >= eo.Operator.MaxActiveLeads {
			continue
		}
		candidates = append(candidates, model.Candidate{
			OperatorID: eo.Operator.ID,
			Weight:     eo.Weight,
		})
	}

	// Deterministic order regardless of store iteration order.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].OperatorID < candidates[j].OperatorID
	})
	return candidates, nil
}
