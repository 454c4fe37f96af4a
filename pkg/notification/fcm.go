package notification

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/andymarrow/stark-api/internal/repository"
)

// NotificationService handles FCM push notifications
type NotificationService struct {
	client   *messaging.Client
	userRepo *repository.UserRepository
}

// NewNotificationService creates a new FCM notification service.
// Returns nil (not an error) when credentials are missing so the
// server can run without push support.
func NewNotificationService(credentialsFile string, userRepo *repository.UserRepository) (*NotificationService, error) {
	if credentialsFile == "" {
		log.Println("⚠️ Firebase credentials not provided, push notifications disabled")
		return nil, nil
	}

	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		log.Printf("⚠️ Failed to initialize Firebase app: %v (push notifications disabled)", err)
		return nil, nil
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		log.Printf("⚠️ Failed to get messaging client: %v", err)
		return nil, nil
	}

	log.Println("✅ Firebase FCM initialized")
	return &NotificationService{
		client:   client,
		userRepo: userRepo,
	}, nil
}

// SendMessageNotification sends a push notification for a new chat message
func (s *NotificationService) SendMessageNotification(ctx context.Context, receiverID uuid.UUID, senderName string, content string, conversationID uuid.UUID) error {
	if content == "" {
		content = "Sent an attachment"
	}
	return s.send(ctx, receiverID, senderName, content, map[string]string{
		"type":            "new_message",
		"conversation_id": conversationID.String(),
		"sender_name":     senderName,
	})
}

// SendHandshakeNotification notifies a user that a stranger wants to chat.
// The recipient sees the request as a pending conversation they can accept
// or reject.
func (s *NotificationService) SendHandshakeNotification(ctx context.Context, receiverID uuid.UUID, senderName string, conversationID uuid.UUID) error {
	body := fmt.Sprintf("%s wants to chat with you", senderName)
	return s.send(ctx, receiverID, "New chat request", body, map[string]string{
		"type":            "handshake_request",
		"conversation_id": conversationID.String(),
		"sender_name":     senderName,
	})
}

func (s *NotificationService) send(ctx context.Context, receiverID uuid.UUID, title, body string, data map[string]string) error {
	if s == nil || s.client == nil {
		return nil
	}

	// Respect the per-user notification toggle
	user, err := s.userRepo.FindByID(receiverID)
	if err != nil {
		return err
	}
	if !user.IsNotificationEnabled {
		return nil
	}

	devices, err := s.userRepo.GetUserDevices(receiverID)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return nil
	}

	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		tokens = append(tokens, d.FCMToken)
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ClickAction: "FLUTTER_NOTIFICATION_CLICK",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	br, err := s.client.SendMulticast(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending multicast message: %w", err)
	}

	if br.FailureCount > 0 {
		for idx, resp := range br.Responses {
			if !resp.Success {
				log.Printf("⚠️ FCM failure for token %s: %v", tokens[idx], resp.Error)
			}
		}
	}

	return nil
}
