package websocket

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"qcmpulse/internal/config"
	"qcmpulse/internal/infrastructure"
)

// OriginAllowed reports whether a browser origin may open a connection. Requests
// without an Origin header come from non-browser clients and are accepted.
func OriginAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// UpgradeHandler upgrades requests to WebSocket connections subscribed to hub events
func UpgradeHandler(hub *Hub, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if OriginAllowed(origin, allowedOrigins) {
				return true
			}
			logger.WarnContext(r.Context(), "WebSocket origin check - origin not allowed",
				slog.String("origin", origin),
				slog.Any("allowed_origins", allowedOrigins))
			return false
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			logger.ErrorContext(r.Context(), "WebSocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
			http.Error(w, http.StatusText(status), status)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		traceID := infrastructure.GetTraceID(ctx)
		if traceID == "" {
			traceID = middleware.GetReqID(ctx)
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// The upgrader has already replied
			return
		}

		client := ServeWS(hub, conn, cfg, traceID, logger)
		logger.InfoContext(ctx, "WebSocket client connected",
			slog.String("client_id", client.ID()),
			slog.String("remote_addr", r.RemoteAddr))
	}
}
