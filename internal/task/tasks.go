package task

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names routed through the notifications queue
const (
	TypeMessageNotification   = "notify:new_message"
	TypeHandshakeNotification = "notify:handshake_request"

	// QueueNotifications is the asynq queue push tasks are enqueued on
	QueueNotifications = "notifications"
)

// MessageNotificationPayload is the JSON payload for a new-message push
type MessageNotificationPayload struct {
	ReceiverID     uuid.UUID `json:"receiver_id"`
	SenderName     string    `json:"sender_name"`
	Content        string    `json:"content"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

// HandshakeNotificationPayload is the JSON payload for a chat-request push
type HandshakeNotificationPayload struct {
	ReceiverID     uuid.UUID `json:"receiver_id"`
	SenderName     string    `json:"sender_name"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

// NewMessageNotificationTask creates a push task for a new chat message
func NewMessageNotificationTask(p MessageNotificationPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeMessageNotification, payload, asynq.Queue(QueueNotifications), asynq.MaxRetry(3)), nil
}

// NewHandshakeNotificationTask creates a push task for a pending chat request
func NewHandshakeNotificationTask(p HandshakeNotificationPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeHandshakeNotification, payload, asynq.Queue(QueueNotifications), asynq.MaxRetry(3)), nil
}
