package handlers

import (
	"context"
	"net/http"
	"time"

	"maum-baedal-backend/internal/middleware"
	"maum-baedal-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub              *services.WSHub
	userService      *services.UserService
	companionService *services.CompanionService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.WSHub, userService *services.UserService, companionService *services.CompanionService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:              hub,
		userService:      userService,
		companionService: companionService,
	}
}

// HandleWebSocket handles GET /api/v1/ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on WebSocket upgrades, so the token
	// arrives as a query parameter.
	token := r.URL.Query().Get("token")
	userID, err := middleware.ValidateWebSocketToken(token, h.userService)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(userID, conn)
	h.notifyPartner(userID, true)

	defer func() {
		h.hub.Unregister(userID)
		h.notifyPartner(userID, false)
	}()

	for {
		var msg services.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("user_id", userID).Msg("WebSocket closed unexpectedly")
			}
			return
		}

		switch msg.Type {
		case "ping":
			_ = h.hub.SendToUser(userID, services.WSMessage{Type: "pong", Timestamp: msg.Timestamp})
		default:
			log.Debug().Str("type", msg.Type).Str("user_id", userID).Msg("Unhandled WebSocket message")
		}
	}
}

// notifyPartner runs outside the request context: the upgraded
// connection outlives it.
func (h *WebSocketHandler) notifyPartner(userID string, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	companion, err := h.companionService.GetActiveFor(ctx, userID)
	if err != nil {
		return
	}
	if partnerID := companion.PartnerOf(userID); partnerID != "" {
		h.hub.NotifyPartnerStatus(partnerID, online)
	}
}
