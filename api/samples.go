package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/labframe/api/store"
)

type createSampleRequest struct {
	PreparedOn string `json:"prepared_on"`
	AuthorName string `json:"author_name"`
}

type recordParametersRequest struct {
	Parameters []assignmentRequest `json:"parameters"`
}

type assignmentRequest struct {
	ParameterName string `json:"parameter_name"`
	Value         string `json:"value"`
	UnitSymbol    string `json:"unit_symbol"`
}

func toAssignments(requests []assignmentRequest) ([]store.Assignment, error) {
	assignments := make([]store.Assignment, 0, len(requests))
	for i, req := range requests {
		if req.ParameterName == "" {
			return nil, fmt.Errorf("parameters[%d]: parameter_name is required", i)
		}
		if req.Value == "" {
			return nil, fmt.Errorf("parameters[%d]: value is required", i)
		}
		assignments = append(assignments, store.Assignment{
			ParameterName: req.ParameterName,
			Value:         req.Value,
			UnitSymbol:    req.UnitSymbol,
		})
	}
	return assignments, nil
}

// handleListSamples returns samples of a project, newest first
func (h *Handlers) handleListSamples(w http.ResponseWriter, r *http.Request) {
	s, err := h.storeFrom(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	includeDeleted := r.URL.Query().Get("include_deleted") == "true"
	samples, err := s.ListSamples(r.Context(), includeDeleted)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSONWithETag(w, r, samples)
}

// handleCreateSample creates a new sample
func (h *Handlers) handleCreateSample(w http.ResponseWriter, r *http.Request) {
	var req createSampleRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if _, err := time.Parse("2006-01-02", req.PreparedOn); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "prepared_on must be an ISO date (YYYY-MM-DD)")
		return
	}

	s, err := h.storeFrom(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	sample, err := s.CreateSample(r.Context(), req.PreparedOn, req.AuthorName)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, sample)
}

// handleGetSample returns one sample, including soft-deleted ones
func (h *Handlers) handleGetSample(w http.ResponseWriter, r *http.Request) {
	id, err := parseSampleID(chi.URLParam(r, "sampleID"))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.storeFrom(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	sample, err := s.GetSample(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, sample)
}

// handleDeleteSample soft-deletes a sample
func (h *Handlers) handleDeleteSample(w http.ResponseWriter, r *http.Request) {
	id, err := parseSampleID(chi.URLParam(r, "sampleID"))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.storeFrom(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	sample, err := s.DeleteSample(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, sample)
}

// handleSampleParameters returns the latest value per parameter for a sample
func (h *Handlers) handleSampleParameters(w http.ResponseWriter, r *http.Request) {
	id, err := parseSampleID(chi.URLParam(r, "sampleID"))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.storeFrom(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	values, err := s.SampleParameterValues(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSONWithETag(w, r, values)
}

// handleRecordParameters appends parameter values to a sample
func (h *Handlers) handleRecordParameters(w http.ResponseWriter, r *http.Request) {
	id, err := parseSampleID(chi.URLParam(r, "sampleID"))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var req recordParametersRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Parameters) == 0 {
		writeErrorResponse(w, http.StatusBadRequest, "parameters list is required")
		return
	}
	assignments, err := toAssignments(req.Parameters)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.storeFrom(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	sample, err := s.RecordParameters(r.Context(), id, assignments)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, sample)
}

// handleCopyParameters copies the latest values from another sample
func (h *Handlers) handleCopyParameters(w http.ResponseWriter, r *http.Request) {
	targetID, err := parseSampleID(chi.URLParam(r, "sampleID"))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	sourceID, err := parseSampleID(chi.URLParam(r, "sourceID"))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.storeFrom(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	result, err := s.CopyParameters(r.Context(), sourceID, targetID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}
