package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/labframe/api/cfg"
	"github.com/labframe/api/notify"
	"github.com/labframe/api/store"
)

type testEnv struct {
	router  http.Handler
	manager *store.Manager
	hub     *notify.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	original := *cfg.Config
	t.Cleanup(func() { *cfg.Config = original })
	cfg.Config.Auth.APISecret = ""

	manager, err := store.NewManager(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(manager.Close)

	hub := notify.NewHub(16)
	t.Cleanup(hub.Close)

	return &testEnv{
		router:  NewRouter(NewHandlers(manager, hub)),
		manager: manager,
		hub:     hub,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]interface{}
	decodeData(t, rec, &health)
	require.Equal(t, "ok", health["status"])
}

func TestSampleLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/samples", createSampleRequest{
		PreparedOn: "2026-08-01",
		AuthorName: "alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created store.Sample
	decodeData(t, rec, &created)
	require.Equal(t, "alice", created.AuthorName)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/samples/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/samples/%d/parameters", created.ID), recordParametersRequest{
		Parameters: []assignmentRequest{
			{ParameterName: "ph", Value: "7.2"},
			{ParameterName: "density", Value: "1.05", UnitSymbol: "g/cm3"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/samples/%d/parameters", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var values []store.ParameterValue
	decodeData(t, rec, &values)
	require.Len(t, values, 2)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/samples/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Second delete reports the sample as gone
	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/samples/%d", created.ID), nil)
	require.Equal(t, http.StatusGone, rec.Code)
}

func TestCreateSample_InvalidDate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/samples", createSampleRequest{
		PreparedOn: "August 1st",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSample_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/samples/999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSamples_ETag(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/samples", createSampleRequest{PreparedOn: "2026-08-01"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/samples", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/samples", nil)
	req.Header.Set("If-None-Match", etag)
	rec2 := httptest.NewRecorder()
	env.router.ServeHTTP(rec2, req)
	require.Equal(t, http.StatusNotModified, rec2.Code)
}

func TestParameterEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/samples", createSampleRequest{PreparedOn: "2026-08-01"})
	var created store.Sample
	decodeData(t, rec, &created)

	for _, value := range []string{"7.0", "7.4"} {
		rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/samples/%d/parameters", created.ID), recordParametersRequest{
			Parameters: []assignmentRequest{{ParameterName: "ph", Value: value}},
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/parameters", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var definitions []store.ParameterDefinition
	decodeData(t, rec, &definitions)
	require.Len(t, definitions, 1)

	rec = env.do(t, http.MethodGet, "/api/v1/parameters/ph/history?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []store.HistoryEntry
	decodeData(t, rec, &history)
	require.Len(t, history, 1)
	require.Equal(t, "7.4", history[0].Value)

	rec = env.do(t, http.MethodGet, "/api/v1/parameters/nope/history", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/parameters/ph/history?limit=0", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProjectEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/projects", createProjectRequest{Name: "alpha", CreatedBy: "alice"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/projects", createProjectRequest{Name: "alpha"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/projects", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var projects []store.Project
	decodeData(t, rec, &projects)
	require.Len(t, projects, 1)

	rec = env.do(t, http.MethodPut, "/api/v1/projects/active", activeProjectRequest{Name: "alpha"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/projects/active", nil)
	var active map[string]string
	decodeData(t, rec, &active)
	require.Equal(t, "alpha", active["name"])

	rec = env.do(t, http.MethodGet, "/api/v1/projects/alpha/statistics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/projects/alpha/rename", renameProjectRequest{NewName: "beta"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/projects/alpha", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/projects/beta/clone", cloneProjectRequest{
		Target:           "copy",
		CloneDefinitions: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/projects/copy", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/projects/beta", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)
	cfg.Config.Auth.APISecret = "hunter2"

	rec := env.do(t, http.MethodGet, "/api/v1/samples", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/samples", nil)
	req.Header.Set("X-LabFrame-Secret", "hunter2")
	rec2 := httptest.NewRecorder()
	env.router.ServeHTTP(rec2, req)
	require.Equal(t, http.StatusOK, rec2.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/samples", nil)
	req.Header.Set("Authorization", "Bearer hunter2")
	rec3 := httptest.NewRecorder()
	env.router.ServeHTTP(rec3, req)
	require.Equal(t, http.StatusOK, rec3.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/samples", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec4 := httptest.NewRecorder()
	env.router.ServeHTTP(rec4, req)
	require.Equal(t, http.StatusUnauthorized, rec4.Code)

	// Health stays open
	rec = env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestProjectHeaderSelectsProject(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/projects", createProjectRequest{Name: "alpha"})
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/samples", bytes.NewReader([]byte(`{"prepared_on":"2026-08-01"}`)))
	req.Header.Set("X-Project", "alpha")
	rec2 := httptest.NewRecorder()
	env.router.ServeHTTP(rec2, req)
	require.Equal(t, http.StatusCreated, rec2.Code)

	// Default project stays empty
	rec = env.do(t, http.MethodGet, "/api/v1/samples", nil)
	var samples []store.Sample
	decodeData(t, rec, &samples)
	require.Empty(t, samples)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/samples?project=alpha", nil)
	rec3 := httptest.NewRecorder()
	env.router.ServeHTTP(rec3, req)
	decodeData(t, rec3, &samples)
	require.Len(t, samples, 1)
}
