package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectdash/internal/config"
	"projectdash/internal/dataprocessing"
	"projectdash/internal/shared/testutil"
)

func createMockFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html": &fstest.MapFile{
			Data: []byte(`<!DOCTYPE html><html><head><title>Dashboard</title></head><body>Dashboard</body></html>`),
		},
		"assets/app.js": &fstest.MapFile{
			Data: []byte(`console.log('dashboard');`),
		},
		"assets/app.css": &fstest.MapFile{
			Data: []byte(`body { margin: 0; }`),
		},
	}
}

// testConfig returns a configuration rooted in a temp directory with one project folder.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "Construction")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Site A"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Site B"), 0o755))

	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Projects.Root = root
	cfg.Reports.Dir = filepath.Join(dir, "reports")
	cfg.Logging.FilePath = filepath.Join(dir, "logs", "app.log")
	cfg.Security.RateLimit.Enabled = false
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := New(cfg, logger, createMockFS())
	require.NoError(t, err)
	t.Cleanup(func() {
		app.WebSocketHub.Stop()
		app.OTelProviders.Shutdown(context.Background())
	})
	return app
}

func TestNew(t *testing.T) {
	cfg := testConfig(t)
	app := newTestApp(t, cfg)

	assert.NotNil(t, app.Router)
	assert.NotNil(t, app.Server)
	assert.NotNil(t, app.WebSocketHub)
	assert.NotNil(t, app.DashboardService)
	assert.NotNil(t, app.HealthService)
	assert.NotNil(t, app.Metrics)
	assert.Equal(t, cfg.Projects.Root, app.Paths.ProjectsRoot)
	assert.DirExists(t, app.Paths.ReportsDir)
	assert.DirExists(t, app.Paths.LogsDir)
	assert.Equal(t, ":0", app.Server.Addr)
}

func TestNew_MissingProjectsRoot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Projects.Root = filepath.Join(t.TempDir(), "missing")

	app := newTestApp(t, cfg)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/projects", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Count)
}

func TestApplication_Routes(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		contentType    string
		contains       string
	}{
		{"health", "/api/health", http.StatusOK, "application/json", `"status"`},
		{"liveness", "/api/health/live", http.StatusOK, "application/json", "alive"},
		{"readiness", "/api/health/ready", http.StatusOK, "application/json", "ready"},
		{"version", "/api/version", http.StatusOK, "application/json", config.AppVersion},
		{"stats", "/api/stats", http.StatusOK, "application/json", `"projects"`},
		{"websocket stats", "/api/stats/websocket", http.StatusOK, "application/json", "active_clients"},
		{"projects", "/api/projects", http.StatusOK, "application/json", "Site A"},
		{"unknown project", "/api/projects/Nope/workbooks", http.StatusNotFound, "application/json", ""},
		{"escaping project", "/api/projects/..%2F..%2Fetc/workbooks", http.StatusBadRequest, "application/json", ""},
		{"reports", "/api/reports", http.StatusOK, "application/json", `"count":0`},
		{"metrics", "/metrics", http.StatusOK, "text/plain", ""},
		{"spa root", "/", http.StatusOK, "text/html", "Dashboard"},
		{"spa fallback", "/projects/Site%20A", http.StatusOK, "text/html", "Dashboard"},
		{"asset", "/assets/app.js", http.StatusOK, "application/javascript", "dashboard"},
		{"missing asset", "/assets/missing.js", http.StatusNotFound, "application/json", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Type"), tt.contentType)
			if tt.contains != "" {
				assert.Contains(t, rec.Body.String(), tt.contains)
			}
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestApplication_WriteStatisticsAcceptsAnySelection(t *testing.T) {
	cfg := testConfig(t)
	path := testutil.WriteWorkbook(t, filepath.Join(cfg.Projects.Root, "Site A"), "budget.xlsx",
		testutil.ConstructionSheet("Costs"))
	app := newTestApp(t, cfg)

	tests := []struct {
		name    string
		body    string
		bullets []string
	}{
		{"unknown column", `{"columns":["NonexistentColumn"]}`, []string{"• NonexistentColumn"}},
		{"text column", `{"columns":["Task"]}`, []string{"• Task"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost,
				"/api/projects/Site%20A/workbooks/budget.xlsx/sheets/Costs/statistics", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			app.Router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Contains(t, testutil.SheetList(t, path), dataprocessing.StatisticsSheetName)
			for i, bullet := range tt.bullets {
				assert.Equal(t, bullet, testutil.ReadCell(t, path, dataprocessing.StatisticsSheetName, fmt.Sprintf("A%d", 4+i)))
			}
		})
	}
}

func TestApplication_SecurityHeaders(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Frame-Options"))
}

func TestApplication_NoFrontend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := New(testConfig(t), logger, nil)
	require.NoError(t, err)
	defer app.WebSocketHub.Stop()

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplication_getCORSConfig(t *testing.T) {
	tests := []struct {
		name       string
		enableCORS bool
		origins    []string
		expected   []string
	}{
		{
			name:       "local origins only when disabled",
			enableCORS: false,
			origins:    []string{"http://example.com"},
			expected:   []string{"http://localhost:9090", "http://127.0.0.1:9090"},
		},
		{
			name:       "configured origins appended",
			enableCORS: true,
			origins:    []string{"http://example.com"},
			expected:   []string{"http://localhost:9090", "http://127.0.0.1:9090", "http://example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Server.Port = 9090
			cfg.Security.EnableCORS = tt.enableCORS
			cfg.Security.AllowedOrigins = tt.origins
			app := &Application{Config: cfg}

			corsCfg := app.getCORSConfig()
			assert.Equal(t, tt.expected, corsCfg.AllowedOrigins)
			assert.Contains(t, corsCfg.ExposedHeaders, "Content-Disposition")
		})
	}
}

func TestApplication_originAllowed(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Port = 8080
	cfg.Security.AllowedOrigins = []string{"http://dash.example.com"}
	app := &Application{Config: cfg}

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"", true},
		{"http://dashboard.local", true},
		{"http://localhost:8080", true},
		{"http://dash.example.com", true},
		{"http://evil.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			req.Host = "dashboard.local"
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.allowed, app.originAllowed(req))
		})
	}
}

func TestApplication_handleWebSocket(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	app.WebSocketHub.Start()

	server := httptest.NewServer(app.Router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var greeting map[string]interface{}
	require.NoError(t, conn.ReadJSON(&greeting))
	assert.Equal(t, "connection", greeting["type"])

	assert.Eventually(t, func() bool {
		return app.WebSocketHub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	app.WebSocketHub.Broadcast("statistics_written", map[string]string{"sheet": "Costs"})

	var event map[string]interface{}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "statistics_written", event["type"])
}

func TestApplication_handleWebSocket_ForbiddenOrigin(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	app.WebSocketHub.Start()

	server := httptest.NewServer(app.Router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, app.WebSocketHub.ClientCount())
}

func TestApplication_StartStop(t *testing.T) {
	cfg := testConfig(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := New(cfg, logger, createMockFS())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, app.Start(ctx, cancel))
	assert.NotEqual(t, ":0", app.Addr())

	resp, err := http.Get("http://" + app.Addr() + "/api/health/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, app.Stop(context.Background()))

	_, err = http.Get("http://" + app.Addr() + "/api/health/live")
	assert.Error(t, err)
	assert.NoError(t, ctx.Err())
}

func TestApplication_StartPortInUse(t *testing.T) {
	first := newTestApp(t, testConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, first.Start(ctx, cancel))
	defer first.Stop(context.Background())

	second := newTestApp(t, testConfig(t))
	second.Server.Addr = first.Addr()
	err := second.Start(ctx, cancel)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}
