// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/dispatch/internal/adapters/repository"
	service "github.com/okian/dispatch/internal/app"
)

// OperatorsHandler handles operator administration requests.
type OperatorsHandler struct {
	deps Dependencies
}

// NewOperatorsHandler creates a new operators handler.
func NewOperatorsHandler(deps Dependencies) *OperatorsHandler {
	return &OperatorsHandler{deps: deps}
}

// Operator creation defaults, matching the administrative contract.
const (
	defaultOperatorActive   = true
	defaultOperatorCapacity = 10
)

// HandleOperators handles POST /operators and GET /operators requests.
func (h *OperatorsHandler) HandleOperators(w http.ResponseWriter, r *http.Request) {
	const op = "api.operators"
	switch r.Method {
	case http.MethodPost:
		var req operatorCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}

		active := defaultOperatorActive
		if req.Active != nil {
			active = *req.Active
		}
		capacity := defaultOperatorCapacity
		if req.MaxActiveLeads != nil {
			capacity = *req.MaxActiveLeads
		}

		operator, err := h.deps.CreateOperator(r.Context(), req.Name, active, capacity)
		if err != nil {
			writeServiceError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, operator)

	case http.MethodGet:
		operators, err := h.deps.ListOperators(r.Context())
		if err != nil {
			writeServiceError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, operators)

	default:
		http.NotFound(w, r)
	}
}

// HandleOperatorByID handles PATCH /operators/{id} requests.
func (h *OperatorsHandler) HandleOperatorByID(w http.ResponseWriter, r *http.Request) {
	const op = "api.operator_update"
	if r.Method != http.MethodPatch {
		http.NotFound(w, r)
		return
	}
	// Extract path parameter after /operators/
	path := strings.TrimPrefix(r.URL.Path, "/operators/")
	id, err := strconv.ParseInt(path, 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	var req operatorUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	operator, err := h.deps.UpdateOperator(r.Context(), id, req.Active, req.MaxActiveLeads)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, operator)
}

// writeServiceError translates service and store errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", NewKind(op, err))
	}
}
