package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/andymarrow/stark-api/pkg/notification"
)

// Processor consumes notification tasks and delivers them via FCM
type Processor struct {
	server   *asynq.Server
	notifier *notification.NotificationService
}

// NewProcessor creates an asynq server consuming the notifications queue
func NewProcessor(redisAddr, redisPassword string, concurrency int, notifier *notification.NotificationService) *Processor {
	if concurrency <= 0 {
		concurrency = 10
	}
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr, Password: redisPassword},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueNotifications: 6,
				"default":          1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
				log.Printf("❌ Task %s failed: %v", t.Type(), err)
			}),
		},
	)
	return &Processor{server: srv, notifier: notifier}
}

// Start begins processing tasks in the background
func (p *Processor) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeMessageNotification, p.handleMessageNotification)
	mux.HandleFunc(TypeHandshakeNotification, p.handleHandshakeNotification)

	if err := p.server.Start(mux); err != nil {
		return fmt.Errorf("failed to start task processor: %w", err)
	}
	log.Println("✅ Task processor started")
	return nil
}

// Shutdown waits for in-flight tasks and stops the server
func (p *Processor) Shutdown() {
	p.server.Shutdown()
}

func (p *Processor) handleMessageNotification(ctx context.Context, t *asynq.Task) error {
	var payload MessageNotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// malformed payload, retrying will not help
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	return p.notifier.SendMessageNotification(ctx, payload.ReceiverID, payload.SenderName, payload.Content, payload.ConversationID)
}

func (p *Processor) handleHandshakeNotification(ctx context.Context, t *asynq.Task) error {
	var payload HandshakeNotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	return p.notifier.SendHandshakeNotification(ctx, payload.ReceiverID, payload.SenderName, payload.ConversationID)
}
