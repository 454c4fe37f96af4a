package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/andymarrow/stark-api/internal/model"
	"github.com/andymarrow/stark-api/internal/service"
	"github.com/andymarrow/stark-api/internal/ws"
	"github.com/andymarrow/stark-api/pkg/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, validate origin
	},
}

// WSHandler handles WebSocket connections
type WSHandler struct {
	hub         *ws.Hub
	chatService *service.ChatService
	jwtManager  *auth.JWTManager
}

func NewWSHandler(hub *ws.Hub, chatService *service.ChatService, jwtManager *auth.JWTManager) *WSHandler {
	return &WSHandler{
		hub:         hub,
		chatService: chatService,
		jwtManager:  jwtManager,
	}
}

// HandleWebSocket upgrades HTTP to WebSocket and manages the connection.
// Clients connect with: ws://host/ws?token=<jwt_token>
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	// Authenticate via query parameter (WebSocket can't use Authorization header)
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
		return
	}

	claims, err := h.jwtManager.ValidateToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn, claims.UserID, claims.Name)
	h.hub.Register(client)

	log.Printf("✅ WS Connected: UserID=%s Name=%s", claims.UserID, claims.Name)

	go client.WritePump()
	go client.ReadPump(h.handleWSMessage)

	// Seed the fresh connection with the current presence roster so it
	// doesn't have to wait for individual online/offline events.
	h.hub.SendToUser(claims.UserID, &model.WSEvent{
		Type:    model.WSEventPresenceState,
		Payload: model.PresenceStateEvent{OnlineUserIDs: h.hub.OnlineUserIDs()},
	})
}

// handleWSMessage processes incoming WebSocket messages from clients
func (h *WSHandler) handleWSMessage(client *ws.Client, event model.WSEvent) {
	switch event.Type {
	case model.WSEventTyping:
		h.handleTyping(client, event)

	case model.WSEventStopTyping:
		h.handleStopTyping(client, event)

	default:
		log.Printf("Unknown WebSocket event type: %s", event.Type)
	}
}

// handleTyping starts or refreshes a typing session. The hub only
// broadcasts on a fresh session, so clients can send this on every
// keystroke without flooding the room.
func (h *WSHandler) handleTyping(client *ws.Client, event model.WSEvent) {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payload struct {
		ConversationID uuid.UUID `json:"conversation_id"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return
	}

	memberIDs, err := h.chatService.ParticipantIDs(payload.ConversationID)
	if err != nil {
		return
	}

	// Sockets can name any conversation id; only participants may
	// signal typing into one.
	member := false
	for _, id := range memberIDs {
		if id == client.UserID {
			member = true
			break
		}
	}
	if !member {
		return
	}

	h.hub.Typing(client, payload.ConversationID, memberIDs)
}

// handleStopTyping ends the typing session explicitly (the hub also
// expires it after a quiet period)
func (h *WSHandler) handleStopTyping(client *ws.Client, event model.WSEvent) {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payload struct {
		ConversationID uuid.UUID `json:"conversation_id"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return
	}

	h.hub.StopTyping(client, payload.ConversationID)
}
