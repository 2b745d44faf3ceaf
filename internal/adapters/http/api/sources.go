// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// SourcesHandler handles source administration requests.
type SourcesHandler struct {
	deps Dependencies
}

// NewSourcesHandler creates a new sources handler.
func NewSourcesHandler(deps Dependencies) *SourcesHandler {
	return &SourcesHandler{deps: deps}
}

// HandleSources handles POST /sources and GET /sources requests.
func (h *SourcesHandler) HandleSources(w http.ResponseWriter, r *http.Request) {
	const op = "api.sources"
	switch r.Method {
	case http.MethodPost:
		var req sourceCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}

		source, err := h.deps.CreateSource(r.Context(), req.Name)
		if err != nil {
			writeServiceError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, source)

	case http.MethodGet:
		sources, err := h.deps.ListSources(r.Context())
		if err != nil {
			writeServiceError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, sources)

	default:
		http.NotFound(w, r)
	}
}

// HandleAttachOperator handles POST /sources/{id}/operators requests.
func (h *SourcesHandler) HandleAttachOperator(w http.ResponseWriter, r *http.Request) {
	const op = "api.source_operators"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	// Path shape: /sources/{id}/operators
	rest := strings.TrimPrefix(r.URL.Path, "/sources/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "operators" {
		http.NotFound(w, r)
		return
	}
	sourceID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || sourceID < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	var req attachOperatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	edge, err := h.deps.AttachOperator(r.Context(), sourceID, req.OperatorID, req.Weight)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, edge)
}
