// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	repository "github.com/okian/dispatch/internal/adapters/repository"
	"github.com/okian/dispatch/internal/domain/assign"
	"github.com/okian/dispatch/internal/domain/eligibility"
	"github.com/okian/dispatch/internal/domain/leads"
	"github.com/okian/dispatch/internal/domain/load"
	"github.com/okian/dispatch/internal/domain/model"
	"github.com/okian/dispatch/internal/domain/selector"
	"github.com/okian/dispatch/pkg/logger"
	"github.com/okian/dispatch/pkg/metrics"
)

// Service implements the API dependencies for the routing system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       repository.Store
	resolver    *leads.Resolver
	accountant  *load.Accountant
	filter      *eligibility.Filter
	picker      *selector.Selector
	coordinator *assign.Coordinator

	// Configuration
	assignMaxAttempts int
	leadMaxAttempts   int
	rnd               selector.Rand

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the entity store backend. Defaults to the in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAssignMaxAttempts bounds capacity-conflict retries per assignment.
func WithAssignMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.assignMaxAttempts = n
		}
	}
}

// WithLeadMaxAttempts bounds find/insert retries during lead resolution.
func WithLeadMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.leadMaxAttempts = n
		}
	}
}

// WithRand injects the randomness source used for weighted selection.
func WithRand(rnd selector.Rand) Option {
	return func(s *Service) {
		if rnd != nil {
			s.rnd = rnd
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		assignMaxAttempts: 3,
		leadMaxAttempts:   3,
		logger:            nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting routing service...")

	// Initialize components
	if s.store == nil {
		s.store = repository.NewMemStore()
		s.logger.Info(ctx, "using in-memory store")
	}
	s.resolver = leads.NewResolver(s.store, leads.WithMaxAttempts(s.leadMaxAttempts))
	s.accountant = load.NewAccountant(s.store)
	s.filter = eligibility.NewFilter(s.store, s.accountant)

	selectorOpts := []selector.Option{}
	if s.rnd != nil {
		selectorOpts = append(selectorOpts, selector.WithRand(s.rnd))
	}
	s.picker = selector.New(selectorOpts...)

	s.coordinator = assign.NewCoordinator(
		s.store,
		s.resolver,
		s.filter,
		s.picker,
		assign.WithMaxAttempts(s.assignMaxAttempts),
		assign.WithLogger(s.logger.Named("assign")),
	)

	s.started = true
	s.logger.Info(ctx, "routing service started",
		logger.Int("assignMaxAttempts", s.assignMaxAttempts),
		logger.Int("leadMaxAttempts", s.leadMaxAttempts),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping routing service...")

	// Close store backends that hold external resources
	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	s.started = false
	s.logger.Info(context.Background(), "routing service stopped")
}

// CreateContact routes one inbound contact: resolves the lead, validates the
// source, and commits an assignment outcome.
func (s *Service) CreateContact(ctx context.Context, externalLeadID string, sourceID int64) (model.AssignmentResult, error) {
	if strings.TrimSpace(externalLeadID) == "" {
		return model.AssignmentResult{}, fmt.Errorf("%w: lead_external_id must not be empty", ErrValidation)
	}
	return s.coordinator.Assign(ctx, externalLeadID, sourceID)
}

// CreateOperator registers a new operator.
func (s *Service) CreateOperator(ctx context.Context, name string, active bool, maxActiveLeads int) (model.Operator, error) {
	if strings.TrimSpace(name) == "" {
		return model.Operator{}, fmt.Errorf("%w: name must not be empty", ErrValidation)
	}
	if maxActiveLeads < 0 {
		return model.Operator{}, fmt.Errorf("%w: max_active_leads must be >= 0", ErrValidation)
	}
	return s.store.CreateOperator(ctx, name, active, maxActiveLeads)
}

// UpdateOperator toggles an operator's active flag and/or capacity.
func (s *Service) UpdateOperator(ctx context.Context, id int64, active *bool, maxActiveLeads *int) (model.Operator, error) {
	if maxActiveLeads != nil && *maxActiveLeads < 0 {
		return model.Operator{}, fmt.Errorf("%w: max_active_leads must be >= 0", ErrValidation)
	}
	return s.store.UpdateOperator(ctx, id, active, maxActiveLeads)
}

// ListOperators returns all operators ordered by id.
func (s *Service) ListOperators(ctx context.Context) ([]model.Operator, error) {
	return s.store.ListOperators(ctx)
}

// CreateSource registers a new source with a unique name.
func (s *Service) CreateSource(ctx context.Context, name string) (model.Source, error) {
	if strings.TrimSpace(name) == "" {
		return model.Source{}, fmt.Errorf("%w: name must not be empty", ErrValidation)
	}
	return s.store.CreateSource(ctx, name)
}

// ListSources returns all sources ordered by id.
func (s *Service) ListSources(ctx context.Context) ([]model.Source, error) {
	return s.store.ListSources(ctx)
}

// AttachOperator upserts the weighted edge between a source and an operator.
func (s *Service) AttachOperator(ctx context.Context, sourceID, operatorID int64, weight int) (model.Edge, error) {
	if weight < 0 {
		return model.Edge{}, fmt.Errorf("%w: weight must be >= 0", ErrValidation)
	}
	return s.store.AttachOperator(ctx, sourceID, operatorID, weight)
}

// CloseContact clears a contact's active flag, freeing operator capacity.
func (s *Service) CloseContact(ctx context.Context, contactID int64) (model.Contact, error) {
	return s.store.CloseContact(ctx, contactID)
}

// ListContacts returns all contacts, closed ones included, ordered by id.
func (s *Service) ListContacts(ctx context.Context) ([]model.Contact, error) {
	return s.store.ListContacts(ctx)
}

// OperatorLoad returns the operator's current active contact count.
func (s *Service) OperatorLoad(ctx context.Context, operatorID int64) (int, error) {
	return s.accountant.Active(ctx, operatorID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started": s.started,
	}

	if !s.started {
		return stats
	}

	contactStats, err := s.store.ContactStats(ctx)
	if err == nil {
		stats["total_contacts"] = contactStats.Total
		stats["assigned"] = contactStats.Assigned
		stats["unassigned"] = contactStats.Unassigned
		metrics.UpdateContactTotals(contactStats.Total, contactStats.Assigned, contactStats.Unassigned)
	}

	operators, err := s.store.ListOperators(ctx)
	if err == nil {
		stats["operator_count"] = len(operators)
		metrics.UpdateOperatorCount(len(operators))
		for _, op := range operators {
			if n, err := s.store.CountActiveContacts(ctx, op.ID); err == nil {
				metrics.UpdateOperatorActiveLoad(strconv.FormatInt(op.ID, 10), n)
			}
		}
	}

	return stats
}
