package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListParameters returns all parameter definitions of a project
func (h *Handlers) handleListParameters(w http.ResponseWriter, r *http.Request) {
	s, err := h.storeFrom(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	definitions, err := s.ListParameterDefinitions(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSONWithETag(w, r, definitions)
}

// handleParameterHistory returns the newest recorded values of one parameter
func (h *Handlers) handleParameterHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit, err := parseLimit(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.storeFrom(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	history, err := s.ParameterHistory(r.Context(), name, limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSONWithETag(w, r, history)
}

// handleParameterValues returns the distinct recorded values of one parameter
func (h *Handlers) handleParameterValues(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s, err := h.storeFrom(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	values, err := s.UniqueParameterValues(r.Context(), name)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSONWithETag(w, r, values)
}
