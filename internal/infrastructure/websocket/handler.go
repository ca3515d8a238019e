package websocket

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize: 1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler handles WebSocket upgrade requests and manages connections for the
// strand subscription feed.
type Handler struct {
	hub *Hub
	auth Authenticator
	log zerolog.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *Hub, auth Authenticator, log zerolog.Logger) *Handler {
	return &Handler{hub: hub, auth: auth, log: log}
}

// ServeHTTP handles the WebSocket upgrade request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Authenticate(r); err != nil {
		h.log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket authentication failed")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	client := NewClient(clientID, h.hub, conn)

	h.log.Info().Str("client_id", clientID).Str("remote_addr", r.RemoteAddr).Msg("websocket client connected")

	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}
