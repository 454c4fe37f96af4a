package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/andymarrow/stark-api/internal/model"
)

const redisChannel = "stark:events"

// Hub manages all WebSocket connections and event fan-out.
// It uses Redis Pub/Sub for horizontal scaling across multiple instances.
type Hub struct {
	// Map of userID -> set of client connections (one user can have multiple tabs/devices)
	clients map[uuid.UUID]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client

	// Presence snapshot over all local connections
	presence *Presence

	// Typing indicators with inactivity auto-stop
	typing *TypingTracker

	rdb *redis.Client

	// Callback when user comes online/offline
	onStatusChange func(userID uuid.UUID, online bool)

	// Callback for every event seen on the Redis channel, local or
	// remote origin. Used to keep per-instance caches coherent.
	onEvent func(eventType string, payload interface{})
}

// NewHub creates a new WebSocket Hub
func NewHub(rdb *redis.Client, onStatusChange func(userID uuid.UUID, online bool)) *Hub {
	h := &Hub{
		clients:        make(map[uuid.UUID]map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		presence:       NewPresence(),
		rdb:            rdb,
		onStatusChange: onStatusChange,
	}
	h.typing = NewTypingTracker(TypingTimeout, h.broadcastStopTyping)
	return h
}

// OnEvent registers a callback invoked for every fan-out event the
// subscriber receives, before client delivery. Must be set before Run.
func (h *Hub) OnEvent(fn func(eventType string, payload interface{})) {
	h.onEvent = fn
}

// Run starts the Hub's main event loop
func (h *Hub) Run(ctx context.Context) {
	go h.subscribeRedis(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Register queues a client for registration with the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Typing registers a keystroke; the first touch of a session broadcasts
// typing=true to the other participants, later touches only re-arm the
// 2-second auto-stop. Non-members of the conversation are ignored.
func (h *Hub) Typing(client *Client, conversationID uuid.UUID, memberIDs []uuid.UUID) {
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

	fresh := h.typing.Touch(conversationID, client.UserID)
	if !fresh {
		return
	}
	event := &model.WSEvent{
		Type: model.WSEventTyping,
		Payload: model.TypingEvent{
			ConversationID: conversationID,
			UserID:         client.UserID,
			Name:           client.Name,
		},
	}
	for _, id := range memberIDs {
		if id != client.UserID {
			h.SendToUser(id, event)
		}
	}
}

// StopTyping clears the typing state explicitly.
func (h *Hub) StopTyping(client *Client, conversationID uuid.UUID) {
	h.typing.Stop(conversationID, client.UserID)
}

func (h *Hub) broadcastStopTyping(conversationID, userID uuid.UUID) {
	h.publishToRedis(&TargetedEvent{Event: &model.WSEvent{
		Type: model.WSEventStopTyping,
		Payload: model.TypingEvent{
			ConversationID: conversationID,
			UserID:         userID,
		},
	}})
}

// addClient registers a new client connection
func (h *Hub) addClient(client *Client) {
	h.mu.Lock()

	firstConn := false
	if _, ok := h.clients[client.UserID]; !ok {
		h.clients[client.UserID] = make(map[*Client]bool)
		firstConn = true
	}
	h.clients[client.UserID][client] = true
	h.mu.Unlock()

	h.presence.Join(client.ConnKey, map[string]interface{}{
		"user_id": client.UserID.String(),
		"name":    client.Name,
	})

	if firstConn {
		if h.onStatusChange != nil {
			go h.onStatusChange(client.UserID, true)
		}
		h.publishToRedis(&TargetedEvent{Event: &model.WSEvent{
			Type: model.WSEventOnline,
			Payload: model.OnlineEvent{
				UserID:   client.UserID,
				IsOnline: true,
			},
		}})
	}
	log.Printf("✅ Client connected: %s", client.UserID)
}

// removeClient unregisters a client connection
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()

	lastConn := false
	if clients, ok := h.clients[client.UserID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)
		}
		if len(clients) == 0 {
			delete(h.clients, client.UserID)
			lastConn = true
		}
	}
	h.mu.Unlock()

	h.presence.Leave(client.ConnKey)

	if lastConn {
		h.typing.StopAll(client.UserID)
		if h.onStatusChange != nil {
			go h.onStatusChange(client.UserID, false)
		}
		h.publishToRedis(&TargetedEvent{Event: &model.WSEvent{
			Type: model.WSEventOffline,
			Payload: model.OnlineEvent{
				UserID:   client.UserID,
				IsOnline: false,
			},
		}})
	}
	log.Printf("❌ Client disconnected: %s", client.UserID)
}

// SendToUser sends an event to a specific user (all their connections)
func (h *Hub) SendToUser(userID uuid.UUID, event *model.WSEvent) {
	h.publishToRedis(&TargetedEvent{
		TargetUserID: userID,
		Event:        event,
	})
}

// SendToUsers sends an event to multiple users
func (h *Hub) SendToUsers(userIDs []uuid.UUID, event *model.WSEvent) {
	for _, userID := range userIDs {
		h.SendToUser(userID, event)
	}
}

// Broadcast sends an event to every connected client on every instance
func (h *Hub) Broadcast(event *model.WSEvent) {
	h.publishToRedis(&TargetedEvent{Event: event})
}

// OnlineUserIDs returns the current presence snapshot
func (h *Hub) OnlineUserIDs() []uuid.UUID {
	return h.presence.OnlineIDs()
}

// IsUserOnline checks presence for a single user
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	return h.presence.IsOnline(userID)
}

// sendToLocalUser sends an event to a user on this instance only
func (h *Hub) sendToLocalUser(userID uuid.UUID, event *model.WSEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.clients[userID]
	if !ok {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return
	}
	for client := range clients {
		select {
		case client.send <- data:
		default:
			// Slow client; drop the event and let the hub goroutine
			// evict it. Only removeClient may close the send channel.
			h.evict(client)
		}
	}
}

// evict hands a client to the hub goroutine for teardown. Called from
// the subscriber goroutine under RLock, so it must not block or mutate
// the clients map itself. removeClient tolerates repeat eviction.
func (h *Hub) evict(client *Client) {
	go func() { h.unregister <- client }()
}

// broadcastToLocal sends an event to all connected local clients
func (h *Hub) broadcastToLocal(event *model.WSEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling broadcast event: %v", err)
		return
	}

	for _, clients := range h.clients {
		for client := range clients {
			select {
			case client.send <- data:
			default:
				h.evict(client)
			}
		}
	}
}

// ========== Redis Pub/Sub for Horizontal Scaling ==========

// TargetedEvent wraps an event with an optional target user ID for Redis Pub/Sub
type TargetedEvent struct {
	TargetUserID uuid.UUID      `json:"target_user_id,omitempty"`
	Event        *model.WSEvent `json:"event"`
}

// publishToRedis publishes an event to Redis for cross-instance delivery
func (h *Hub) publishToRedis(data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling for Redis: %v", err)
		return
	}

	if err := h.rdb.Publish(context.Background(), redisChannel, jsonData).Err(); err != nil {
		log.Printf("Error publishing to Redis: %v", err)
	}
}

// subscribeRedis subscribes to Redis and delivers events to local clients
func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	log.Println("📡 Redis Pub/Sub subscriber started")

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			var targeted TargetedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &targeted); err != nil {
				log.Printf("Error unmarshaling Redis message: %v", err)
				continue
			}

			if h.onEvent != nil && targeted.Event != nil {
				h.onEvent(targeted.Event.Type, targeted.Event.Payload)
			}

			if targeted.TargetUserID != uuid.Nil {
				h.sendToLocalUser(targeted.TargetUserID, targeted.Event)
			} else if targeted.Event != nil {
				h.broadcastToLocal(targeted.Event)
			}
		}
	}
}
