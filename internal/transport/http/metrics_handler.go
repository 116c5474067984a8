package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "projectdash/internal/errors"
	"projectdash/internal/websocket"
)

// HubStatsProvider reports websocket hub counters.
type HubStatsProvider interface {
	Stats() websocket.HubStats
}

// MetricsHandler serves the JSON system statistics. Prometheus metrics are
// exposed separately on /metrics.
type MetricsHandler struct {
	health       HealthServiceInterface
	hub          HubStatsProvider
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewMetricsHandler creates a new metrics handler. hub may be nil.
func NewMetricsHandler(health HealthServiceInterface, hub HubStatsProvider, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *MetricsHandler {
	return &MetricsHandler{
		health:       health,
		hub:          hub,
		logger:       logger.With(slog.String("handler", "metrics")),
		errorHandler: errorHandler,
	}
}

// Routes sets up the metrics routes
func (h *MetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetStats)
	r.Get("/websocket", h.GetWebSocketStats)
	return r
}

// GetStats handles GET /api/stats
func (h *MetricsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.health.SystemStats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to collect system stats",
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, apierrors.FileSystemError("collect stats", err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   stats,
	})
}

// GetWebSocketStats handles GET /api/stats/websocket
func (h *MetricsHandler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	var stats websocket.HubStats
	if h.hub != nil {
		stats = h.hub.Stats()
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   stats,
	})
}
