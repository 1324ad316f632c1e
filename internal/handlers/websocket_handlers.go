package handlers

import (
	"net/http"

	"chat-core/internal/auth"
	"chat-core/internal/config"
	"chat-core/internal/connection"
	"chat-core/internal/manager"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type WebSocketHandlers struct {
	authService *auth.Service
	manager     *manager.Manager
	cfg         *config.Config
	upgrader    websocket.Upgrader
	log         zerolog.Logger
}

func NewWebSocketHandlers(authService *auth.Service, mgr *manager.Manager, cfg *config.Config, log zerolog.Logger) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService: authService,
		manager:     mgr,
		cfg:         cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
		log: log,
	}
}

// HandleWebSocket upgrades the connection and hands it to the manager.
// Token validation happens after the upgrade so the client receives the
// explanatory SERVER frame and close code instead of a bare HTTP error.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := h.authService.ExtractToken(r)
	deviceID := r.URL.Query().Get("device_id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	transport := connection.NewWSTransport(conn, connection.WSOptions{
		// Generous relative to the heartbeat interval; the presence
		// pruner is the authoritative staleness check.
		ReadTimeout:    3 * h.cfg.Limits.HeartbeatTimeout,
		WriteTimeout:   h.cfg.Server.WriteTimeout,
		MaxMessageSize: h.cfg.Limits.MaxMessageSize,
	})

	go func() {
		_ = h.manager.HandleConnection(transport, token, deviceID)
	}()
}

// HandleHealthz is the liveness probe.
func (h *WebSocketHandlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
