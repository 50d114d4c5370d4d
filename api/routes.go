package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/labframe/api/cfg"
	"github.com/labframe/api/telemetry"
)

// NewRouter builds the HTTP routing tree
func NewRouter(h *Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)

	r.Get("/health", handleHealth)

	if metricsHandler := telemetry.GetMetricsHandler(); metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.handleListProjects)
			r.Post("/", h.handleCreateProject)
			r.Get("/active", h.handleGetActiveProject)
			r.Put("/active", h.handleSetActiveProject)
			r.Get("/{name}", h.handleGetProject)
			r.Delete("/{name}", h.handleDeleteProject)
			r.Post("/{name}/rename", h.handleRenameProject)
			r.Post("/{name}/clone", h.handleCloneProject)
			r.Get("/{name}/statistics", h.handleProjectStatistics)
		})

		r.Route("/samples", func(r chi.Router) {
			r.Get("/", h.handleListSamples)
			r.Post("/", h.handleCreateSample)
			r.Get("/{sampleID}", h.handleGetSample)
			r.Delete("/{sampleID}", h.handleDeleteSample)
			r.Get("/{sampleID}/parameters", h.handleSampleParameters)
			r.Post("/{sampleID}/parameters", h.handleRecordParameters)
			r.Post("/{sampleID}/copy-from/{sourceID}", h.handleCopyParameters)
		})

		r.Route("/parameters", func(r chi.Router) {
			r.Get("/", h.handleListParameters)
			r.Get("/{name}/history", h.handleParameterHistory)
			r.Get("/{name}/values", h.handleParameterValues)
		})

		r.Get("/events", h.handleEvents)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"instance_id": cfg.Config.InstanceID,
	})
}
