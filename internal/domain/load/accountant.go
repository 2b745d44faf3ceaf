// Package load accounts for each operator's currently active assignments.
package load

import (
	"context"
	"fmt"
)

// ContactCounter is the store view the accountant needs.
type ContactCounter interface {
	CountActiveContacts(ctx context.Context, operatorID int64) (int, error)
}

// Accountant reports an operator's active load. Delegating the count to the
// store keeps the number inside the store's isolation scope, so eligibility
// decisions and the subsequent insert see consistent state.
type Accountant struct {
	counter ContactCounter
}

// NewAccountant creates an accountant over the given counter.
func NewAccountant(counter ContactCounter) *Accountant {
	return &Accountant{counter: counter}
}

// Active returns the number of active contacts assigned to the operator.
func (a *Accountant) Active(ctx context.Context, operatorID int64) (int, error) {
	n, err := a.counter.CountActiveContacts(ctx, operatorID)
	if err != nil {
		return 0, fmt.Errorf("count active contacts for operator %d: %w", operatorID, err)
	}
	return n, nil
}
