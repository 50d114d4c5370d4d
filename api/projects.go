package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type createProjectRequest struct {
	Name      string `json:"name"`
	CreatedBy string `json:"created_by"`
}

type renameProjectRequest struct {
	NewName string `json:"new_name"`
}

type cloneProjectRequest struct {
	Target           string `json:"target"`
	CloneDefinitions bool   `json:"clone_definitions"`
	CloneValues      bool   `json:"clone_values"`
}

type activeProjectRequest struct {
	Name string `json:"name"`
}

// handleListProjects returns all registered projects
func (h *Handlers) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.manager.ListProjects(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONWithETag(w, r, projects)
}

// handleCreateProject registers a new project
func (h *Handlers) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}

	project, err := h.manager.CreateProject(r.Context(), req.Name, req.CreatedBy)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, project)
}

// handleGetProject returns one project registry entry
func (h *Handlers) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.manager.GetProject(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, project)
}

// handleDeleteProject removes a project and its data
func (h *Handlers) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.DeleteProject(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleRenameProject renames a project
func (h *Handlers) handleRenameProject(w http.ResponseWriter, r *http.Request) {
	var req renameProjectRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.NewName == "" {
		writeErrorResponse(w, http.StatusBadRequest, "new_name is required")
		return
	}

	project, err := h.manager.RenameProject(r.Context(), chi.URLParam(r, "name"), req.NewName)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, project)
}

// handleCloneProject copies definitions and optionally data into another project
func (h *Handlers) handleCloneProject(w http.ResponseWriter, r *http.Request) {
	var req cloneProjectRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Target == "" {
		writeErrorResponse(w, http.StatusBadRequest, "target is required")
		return
	}
	if req.CloneValues && !req.CloneDefinitions {
		writeErrorResponse(w, http.StatusBadRequest, "clone_values requires clone_definitions")
		return
	}

	source := chi.URLParam(r, "name")
	err := h.manager.CloneProject(r.Context(), source, req.Target, req.CloneDefinitions, req.CloneValues)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"source": source, "target": req.Target})
}

// handleProjectStatistics returns cached statistics for a project
func (h *Handlers) handleProjectStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.manager.Statistics(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, stats)
}

// handleGetActiveProject returns the active project name, if any
func (h *Handlers) handleGetActiveProject(w http.ResponseWriter, r *http.Request) {
	active, err := h.manager.ActiveProjectName(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"name": active})
}

// handleSetActiveProject sets or clears the active project
func (h *Handlers) handleSetActiveProject(w http.ResponseWriter, r *http.Request) {
	var req activeProjectRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.manager.SetActiveProject(r.Context(), req.Name); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"name": req.Name})
}
