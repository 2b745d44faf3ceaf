// Package model contains domain models passed between layers.
package model

import "time"

// Operator is a worker with a bounded number of concurrently active contacts.
type Operator struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Active         bool   `json:"active"`
	MaxActiveLeads int    `json:"max_active_leads"`
}

// Source is a channel of incoming leads with its own operator weighting.
type Source struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Edge links a source to an operator with a relative selection weight.
// One edge exists per (source, operator) pair; re-attaching replaces the weight.
type Edge struct {
	ID         int64 `json:"id"`
	SourceID   int64 `json:"source_id"`
	OperatorID int64 `json:"operator_id"`
	Weight     int   `json:"weight"`
}

// Lead is an external entity deduplicated by its external identifier.
type Lead struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id"`
}

// Contact records one assignment attempt. A nil OperatorID means the contact
// was accepted but no operator was eligible at the time. Active contacts are
// the unit of operator load; closing a contact frees capacity.
type Contact struct {
	ID         int64     `json:"id"`
	LeadID     int64     `json:"lead_id"`
	SourceID   int64     `json:"source_id"`
	OperatorID *int64    `json:"operator_id"`
	CreatedAt  time.Time `json:"created_at"`
	Active     bool      `json:"active"`
}

// Candidate is an operator eligible for selection together with its weight.
type Candidate struct {
	OperatorID int64
	Weight     int
}

// AssignmentResult is the outcome of routing one inbound contact.
type AssignmentResult struct {
	ContactID  int64  `json:"contact_id"`
	LeadID     int64  `json:"lead_id"`
	SourceID   int64  `json:"source_id"`
	OperatorID *int64 `json:"operator_id"`
	Assigned   bool   `json:"assigned"`
}

// ContactStats aggregates contact counts for reporting.
type ContactStats struct {
	Total      int `json:"total_contacts"`
	Assigned   int `json:"assigned"`
	Unassigned int `json:"unassigned"`
}
