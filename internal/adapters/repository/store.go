// Package repository defines the entity store interface and errors.
package repository

import (
	"context"

	"github.com/okian/dispatch/internal/domain/model"
)

// EdgeOperator is the result of joining a source edge to its operator.
type EdgeOperator struct {
	Operator model.Operator
	Weight   int
}

// Store provides read/write access to all persisted routing state.
//
// InsertLead and InsertContact participate in the concurrency contract:
// InsertLead fails with ErrConflict when it loses the external-id uniqueness
// race, and InsertContact re-validates operator capacity within the same
// isolation scope as the insert, failing with ErrConflict on overshoot.
type Store interface {
	// FindLeadByExternalID returns the lead for an external id.
	// Returns ErrNotFound if no lead exists.
	FindLeadByExternalID(ctx context.Context, externalID string) (model.Lead, error)
	// InsertLead creates a lead for an external id.
	// Returns ErrConflict if a lead with the same external id already exists.
	InsertLead(ctx context.Context, externalID string) (model.Lead, error)

	CreateOperator(ctx context.Context, name string, active bool, maxActiveLeads int) (model.Operator, error)
	// UpdateOperator applies the non-nil fields. Returns ErrNotFound for an
	// unknown operator.
	UpdateOperator(ctx context.Context, id int64, active *bool, maxActiveLeads *int) (model.Operator, error)
	GetOperator(ctx context.Context, id int64) (model.Operator, error)
	ListOperators(ctx context.Context) ([]model.Operator, error)

	// CreateSource creates a source with a unique name.
	// Returns ErrConflict if the name is taken.
	CreateSource(ctx context.Context, name string) (model.Source, error)
	FindSource(ctx context.Context, id int64) (model.Source, error)
	ListSources(ctx context.Context) ([]model.Source, error)

	// AttachOperator upserts the edge for (sourceID, operatorID); a repeated
	// attach replaces the weight rather than adding a second edge.
	AttachOperator(ctx context.Context, sourceID, operatorID int64, weight int) (model.Edge, error)
	// ListEdgesWithOperator returns the source's edges joined to their
	// operators, filtered to active operators.
	ListEdgesWithOperator(ctx context.Context, sourceID int64) ([]EdgeOperator, error)

	// CountActiveContacts returns the number of active contacts assigned to
	// the operator.
	CountActiveContacts(ctx context.Context, operatorID int64) (int, error)
	// InsertContact persists a contact with active=true. When operatorID is
	// non-nil the operator's capacity is re-checked within the same isolation
	// scope; ErrConflict signals the caller to re-run selection.
	InsertContact(ctx context.Context, leadID, sourceID int64, operatorID *int64) (model.Contact, error)
	// CloseContact clears the active flag, freeing the operator's capacity.
	CloseContact(ctx context.Context, contactID int64) (model.Contact, error)
	// ListContacts returns all contacts, closed ones included, ordered by id.
	ListContacts(ctx context.Context) ([]model.Contact, error)
	ContactStats(ctx context.Context) (model.ContactStats, error)
}
