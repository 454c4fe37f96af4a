package task

import (
	"log"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Enqueuer pushes notification tasks onto the queue. A nil Enqueuer is
// a no-op so handlers can enqueue unconditionally.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer creates an Enqueuer backed by Redis
func NewEnqueuer(redisAddr, redisPassword string) *Enqueuer {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: redisPassword,
	})
	return &Enqueuer{client: client}
}

// EnqueueMessageNotification queues a new-message push. Failures are
// logged, not returned, so a broken queue never blocks message delivery.
func (e *Enqueuer) EnqueueMessageNotification(receiverID uuid.UUID, senderName, content string, conversationID uuid.UUID) {
	if e == nil || e.client == nil {
		return
	}
	t, err := NewMessageNotificationTask(MessageNotificationPayload{
		ReceiverID:     receiverID,
		SenderName:     senderName,
		Content:        content,
		ConversationID: conversationID,
	})
	if err != nil {
		log.Printf("❌ Failed to build message notification task: %v", err)
		return
	}
	if _, err := e.client.Enqueue(t); err != nil {
		log.Printf("❌ Failed to enqueue message notification: %v", err)
	}
}

// EnqueueHandshakeNotification queues a chat-request push
func (e *Enqueuer) EnqueueHandshakeNotification(receiverID uuid.UUID, senderName string, conversationID uuid.UUID) {
	if e == nil || e.client == nil {
		return
	}
	t, err := NewHandshakeNotificationTask(HandshakeNotificationPayload{
		ReceiverID:     receiverID,
		SenderName:     senderName,
		ConversationID: conversationID,
	})
	if err != nil {
		log.Printf("❌ Failed to build handshake notification task: %v", err)
		return
	}
	if _, err := e.client.Enqueue(t); err != nil {
		log.Printf("❌ Failed to enqueue handshake notification: %v", err)
	}
}

// Close releases the underlying Redis connection
func (e *Enqueuer) Close() error {
	if e == nil || e.client == nil {
		return nil
	}
	return e.client.Close()
}
