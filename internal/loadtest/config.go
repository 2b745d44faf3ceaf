package loadtest

import "time"

// Config holds configuration for the routing load test
type Config struct {
	BaseURL      string        // Base URL of the service
	NumOperators int           // Number of operators to create
	NumSources   int           // Number of sources to create
	NumContacts  int           // Number of contacts to generate and submit
	Workers      int           // Number of concurrent workers
	Timeout      time.Duration // HTTP request timeout
	OutputFile   string        // Output file for generated submissions
	LogFile      string        // Log file for test output
	Verbose      bool          // Enable verbose logging
}

// OperatorSpec describes an operator to be seeded before the run
type OperatorSpec struct {
	Name           string `json:"name"`
	Active         bool   `json:"active"`
	MaxActiveLeads int    `json:"max_active_leads"`
}

// EdgeSpec describes a source-operator attachment with its weight
type EdgeSpec struct {
	SourceIndex   int `json:"source_index"`
	OperatorIndex int `json:"operator_index"`
	Weight        int `json:"weight"`
}

// Submission represents one inbound contact to be posted
type Submission struct {
	LeadExternalID string `json:"lead_external_id"`
	SourceID       int64  `json:"source_id"`
}

// Topology is the seeded routing graph the submissions run against
type Topology struct {
	Operators []OperatorSpec
	Edges     []EdgeSpec

	// Filled in during seeding with server-assigned identifiers.
	OperatorIDs []int64
	SourceIDs   []int64

	// CapacityByOperator maps server operator id to its seeded capacity.
	CapacityByOperator map[int64]int
	// ActiveByOperator maps server operator id to its seeded active flag.
	ActiveByOperator map[int64]bool
}

// AssignmentResponse represents the response from contact submission
type AssignmentResponse struct {
	ContactID  int64  `json:"contact_id"`
	LeadID     int64  `json:"lead_id"`
	SourceID   int64  `json:"source_id"`
	OperatorID *int64 `json:"operator_id"`
	Assigned   bool   `json:"assigned"`
}

// Stats holds load test statistics
type Stats struct {
	OperatorsCreated   int
	SourcesCreated     int
	EdgesCreated       int
	ContactsGenerated  int
	ContactsSubmitted  int
	ContactsAssigned   int
	ContactsUnassigned int
	ContactsTransient  int
	ContactsFailed     int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
