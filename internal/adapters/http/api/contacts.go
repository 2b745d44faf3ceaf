// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/dispatch/internal/domain/assign"
)

// ContactsHandler handles inbound contact requests.
type ContactsHandler struct {
	deps Dependencies
}

// NewContactsHandler creates a new contacts handler.
func NewContactsHandler(deps Dependencies) *ContactsHandler {
	return &ContactsHandler{deps: deps}
}

// HandleContacts handles POST /contacts (the routing operation) and
// GET /contacts requests.
func (h *ContactsHandler) HandleContacts(w http.ResponseWriter, r *http.Request) {
	const op = "api.contacts"
	switch r.Method {
	case http.MethodPost:
		var req contactCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}

		result, err := h.deps.CreateContact(r.Context(), req.LeadExternalID, req.SourceID)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, result)
		case errors.Is(err, assign.ErrSourceNotFound):
			writeError(w, http.StatusNotFound, "source_not_found", err)
		case errors.Is(err, assign.ErrTransient):
			writeError(w, http.StatusServiceUnavailable, "transient", err)
		default:
			writeServiceError(w, op, err)
		}

	case http.MethodGet:
		contacts, err := h.deps.ListContacts(r.Context())
		if err != nil {
			writeServiceError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, contacts)

	default:
		http.NotFound(w, r)
	}
}

// HandleCloseContact handles POST /contacts/{id}/close requests: the closing
// workflow that releases operator capacity.
func (h *ContactsHandler) HandleCloseContact(w http.ResponseWriter, r *http.Request) {
	const op = "api.close_contact"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	// Path shape: /contacts/{id}/close
	rest := strings.TrimPrefix(r.URL.Path, "/contacts/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "close" {
		http.NotFound(w, r)
		return
	}
	contactID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || contactID < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	contact, err := h.deps.CloseContact(r.Context(), contactID)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}
