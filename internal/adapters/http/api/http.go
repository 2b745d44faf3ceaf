// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/dispatch/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// CreateContact routes one inbound contact and returns the outcome.
	CreateContact(ctx context.Context, externalLeadID string, sourceID int64) (model.AssignmentResult, error)

	// Administrative operations.
	CreateOperator(ctx context.Context, name string, active bool, maxActiveLeads int) (model.Operator, error)
	UpdateOperator(ctx context.Context, id int64, active *bool, maxActiveLeads *int) (model.Operator, error)
	ListOperators(ctx context.Context) ([]model.Operator, error)
	CreateSource(ctx context.Context, name string) (model.Source, error)
	ListSources(ctx context.Context) ([]model.Source, error)
	AttachOperator(ctx context.Context, sourceID, operatorID int64, weight int) (model.Edge, error)
	CloseContact(ctx context.Context, contactID int64) (model.Contact, error)
	ListContacts(ctx context.Context) ([]model.Contact, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	operatorsHandler *OperatorsHandler
	sourcesHandler   *SourcesHandler
	contactsHandler  *ContactsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		operatorsHandler: NewOperatorsHandler(deps),
		sourcesHandler:   NewSourcesHandler(deps),
		contactsHandler:  NewContactsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/operators", MetricsMiddleware(s.operatorsHandler.HandleOperators, "operators"))
	mux.HandleFunc("/operators/", MetricsMiddleware(s.operatorsHandler.HandleOperatorByID, "operator"))
	mux.HandleFunc("/sources", MetricsMiddleware(s.sourcesHandler.HandleSources, "sources"))
	mux.HandleFunc("/sources/", MetricsMiddleware(s.sourcesHandler.HandleAttachOperator, "source_operators"))
	mux.HandleFunc("/contacts", MetricsMiddleware(s.contactsHandler.HandleContacts, "contacts"))
	mux.HandleFunc("/contacts/", MetricsMiddleware(s.contactsHandler.HandleCloseContact, "contact_close"))
}

// operatorCreateRequest mirrors the POST /operators schema.
type operatorCreateRequest struct {
	Name           string `json:"name"`
	Active         *bool  `json:"active"`
	MaxActiveLeads *int   `json:"max_active_leads"`
}

func (o operatorCreateRequest) validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return errors.New("missing name")
	}
	if o.MaxActiveLeads != nil && *o.MaxActiveLeads < 0 {
		return errors.New("max_active_leads must be >= 0")
	}
	return nil
}

// operatorUpdateRequest mirrors the PATCH /operators/{id} schema.
type operatorUpdateRequest struct {
	Active         *bool `json:"active"`
	MaxActiveLeads *int  `json:"max_active_leads"`
}

func (o operatorUpdateRequest) validate() error {
	if o.Active == nil && o.MaxActiveLeads == nil {
		return errors.New("nothing to update")
	}
	if o.MaxActiveLeads != nil && *o.MaxActiveLeads < 0 {
		return errors.New("max_active_leads must be >= 0")
	}
	return nil
}

// sourceCreateRequest mirrors the POST /sources schema.
type sourceCreateRequest struct {
	Name string `json:"name"`
}

func (s sourceCreateRequest) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("missing name")
	}
	return nil
}

// attachOperatorRequest mirrors the POST /sources/{id}/operators schema.
type attachOperatorRequest struct {
	OperatorID int64 `json:"operator_id"`
	Weight     int   `json:"weight"`
}

func (a attachOperatorRequest) validate() error {
	if a.OperatorID <= 0 {
		return errors.New("missing operator_id")
	}
	if a.Weight < 0 {
		return errors.New("weight must be >= 0")
	}
	return nil
}

// contactCreateRequest mirrors the POST /contacts schema.
type contactCreateRequest struct {
	LeadExternalID string `json:"lead_external_id"`
	SourceID       int64  `json:"source_id"`
}

func (c contactCreateRequest) validate() error {
	switch {
	case strings.TrimSpace(c.LeadExternalID) == "":
		return errors.New("missing lead_external_id")
	case c.SourceID <= 0:
		return errors.New("missing source_id")
	}
	return nil
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
