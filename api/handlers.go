package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/labframe/api/notify"
	"github.com/labframe/api/store"
)

// Handlers holds the dependencies for all HTTP endpoints
type Handlers struct {
	manager *store.Manager
	hub     *notify.Hub
}

// NewHandlers creates a new Handlers instance
func NewHandlers(manager *store.Manager, hub *notify.Hub) *Handlers {
	return &Handlers{
		manager: manager,
		hub:     hub,
	}
}

// projectFrom resolves the project a request targets. The X-Project
// header wins over the project query parameter; empty means the active
// project.
func projectFrom(r *http.Request) string {
	if project := r.Header.Get("X-Project"); project != "" {
		return project
	}
	return r.URL.Query().Get("project")
}

// storeFrom opens the store the request targets
func (h *Handlers) storeFrom(r *http.Request) (*store.Store, error) {
	return h.manager.Get(r.Context(), projectFrom(r))
}

// writeJSONResponse writes a successful JSON response
func writeJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data}); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeJSONWithETag writes a JSON response with a content hash ETag,
// answering 304 when the client already holds the current body.
func writeJSONWithETag(w http.ResponseWriter, r *http.Request, data interface{}) {
	body, err := json.Marshal(map[string]interface{}{"data": data})
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to encode response")
		return
	}

	etag := fmt.Sprintf(`"%x"`, xxhash.Sum64(body))
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// writeErrorResponse writes an error JSON response
func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"error": message}); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}

// writeStoreError maps store errors to HTTP statuses
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrProjectNotFound),
		errors.Is(err, store.ErrUnknownSample),
		errors.Is(err, store.ErrUnknownParameter):
		writeErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrProjectExists):
		writeErrorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrSampleDeleted):
		writeErrorResponse(w, http.StatusGone, err.Error())
	default:
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSONBody decodes a request body, rejecting unknown fields
func decodeJSONBody(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

// parseLimit parses the limit query parameter with defaults
func parseLimit(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return 100, nil // default
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %w", err)
	}
	if limit < 1 {
		return 0, fmt.Errorf("limit must be positive")
	}
	if limit > 1024 {
		return 0, fmt.Errorf("limit cannot exceed 1024")
	}
	return limit, nil
}

// parseSampleID parses a sample ID path parameter
func parseSampleID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid sample ID %q", value)
	}
	return id, nil
}
