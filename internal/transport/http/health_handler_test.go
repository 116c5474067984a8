package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectdash/internal/config"
	apierrors "projectdash/internal/errors"
	"projectdash/internal/services"
	"projectdash/internal/websocket"
)

func newHealthFixture(t *testing.T, createRoot bool) (*services.HealthService, *websocket.Hub, *config.Paths) {
	t.Helper()
	dir := t.TempDir()
	paths := &config.Paths{
		WorkingDir:   dir,
		ProjectsRoot: filepath.Join(dir, "Construction"),
		ReportsDir:   filepath.Join(dir, "reports"),
		LogsDir:      filepath.Join(dir, "logs"),
	}
	if createRoot {
		require.NoError(t, os.MkdirAll(filepath.Join(paths.ProjectsRoot, "Site A"), 0755))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := websocket.NewHub(logger, nil)
	return services.NewHealthService("v1.0.0-test", "2024-03-01", paths, hub, logger), hub, paths
}

func TestHealthHandler_Endpoints(t *testing.T) {
	healthService, _, _ := newHealthFixture(t, true)
	handler := NewHealthHandler(healthService, slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := []struct {
		name           string
		endpoint       string
		handlerFunc    http.HandlerFunc
		expectedStatus int
		checkResponse  func(t *testing.T, body map[string]interface{})
	}{
		{
			name:           "health check endpoint",
			endpoint:       "/api/health",
			handlerFunc:    handler.HealthCheck,
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "ok", body["status"])
				assert.Equal(t, "v1.0.0-test", body["version"])
			},
		},
		{
			name:           "readiness endpoint",
			endpoint:       "/api/health/ready",
			handlerFunc:    handler.ReadinessCheck,
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "ready", body["status"])
				assert.Contains(t, body["services"], "projects")
			},
		},
		{
			name:           "liveness endpoint",
			endpoint:       "/api/health/live",
			handlerFunc:    handler.LivenessCheck,
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "alive", body["status"])
				assert.NotNil(t, body["runtime"])
			},
		},
		{
			name:           "version endpoint",
			endpoint:       "/api/version",
			handlerFunc:    handler.Version,
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "v1.0.0-test", body["version"])
				assert.Equal(t, "2024-03-01", body["build_time"])
				assert.Equal(t, config.AppName, body["name"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.endpoint, nil)
			rec := httptest.NewRecorder()

			tt.handlerFunc(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			tt.checkResponse(t, body)
		})
	}
}

func TestHealthHandler_NotReady(t *testing.T) {
	healthService, _, _ := newHealthFixture(t, false)
	handler := NewHealthHandler(healthService, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	handler.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"not_ready"`)
}

func TestMetricsHandler(t *testing.T) {
	healthService, hub, _ := newHealthFixture(t, true)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	routes := NewMetricsHandler(healthService, hub, logger, apierrors.NewErrorHandler(logger, false)).Routes()

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string               `json:"status"`
		Data   services.SystemStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Data.Projects)
	assert.Equal(t, 0, body.Data.WebSocketClients)

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/websocket", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"active_clients":0`)
}

func TestMetricsHandler_StatsError(t *testing.T) {
	healthService, _, paths := newHealthFixture(t, false)
	require.NoError(t, os.WriteFile(paths.ProjectsRoot, []byte("not a directory"), 0644))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	routes := NewMetricsHandler(healthService, nil, logger, apierrors.NewErrorHandler(logger, false)).Routes()

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILESYSTEM_ERROR")
}
