package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	ws "qcmpulse/internal/websocket"
)

// MetricsHandler serves the Prometheus scrape endpoint and the WebSocket activity counters
type MetricsHandler struct {
	prometheus http.Handler
	hub        *ws.Hub
}

// NewMetricsHandler creates a metrics handler. A nil prometheus handler answers 404.
func NewMetricsHandler(prometheus http.Handler, hub *ws.Hub) *MetricsHandler {
	return &MetricsHandler{prometheus: prometheus, hub: hub}
}

// Routes sets up the metrics routes
func (h *MetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetMetrics)
	r.Get("/websocket", h.GetWebSocketMetrics)
	return r
}

// GetMetrics handles GET /metrics in the Prometheus text format
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if h.prometheus == nil {
		http.NotFound(w, r)
		return
	}
	h.prometheus.ServeHTTP(w, r)
}

// GetWebSocketMetrics handles GET /metrics/websocket
func (h *MetricsHandler) GetWebSocketMetrics(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		http.NotFound(w, r)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"clients": h.hub.ClientCount(),
		"metrics": h.hub.Metrics().GetSnapshot(),
	})
}
