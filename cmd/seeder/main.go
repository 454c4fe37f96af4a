package main

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/andymarrow/stark-api/internal/config"
	"github.com/andymarrow/stark-api/internal/model"
)

func main() {
	cfg := config.Load()

	// Force DB logging off to avoid noise
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	log.Println("✅ Connected to Database")

	// Common password for all seeded users
	password := "password123"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("❌ Failed to hash password: %v", err)
	}

	log.Println("🌱 Seeding 10 users...")

	for i := 1; i <= 10; i++ {
		username := fmt.Sprintf("dev%d", i)
		email := fmt.Sprintf("dev%d@stark.local", i)

		var existing model.User
		if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
			continue
		}

		user := model.User{
			ID:       uuid.New(),
			Username: username,
			Name:     fmt.Sprintf("Developer %d", i),
			Email:    email,
			Password: string(hashedPassword),
			Bio:      fmt.Sprintf("Building things in Go, #%d", i),
			Avatar:   fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=%s", username),
			IsAdmin:  i == 1, // dev1 moderates the report queue
		}

		if err := db.Create(&user).Error; err != nil {
			log.Printf("❌ Failed to create user %s: %v", username, err)
		} else {
			log.Printf("✅ Created user: %s | Email: %s | Pass: %s", username, email, password)
		}
	}

	seedGroupChat(db)
	seedPendingHandshake(db)

	log.Println("🎉 Seeding completed!")
}

func seedGroupChat(db *gorm.DB) {
	var users []model.User
	if err := db.Limit(3).Find(&users).Error; err != nil || len(users) < 3 {
		return
	}

	owner := users[0]
	members := users[1:]

	var count int64
	db.Model(&model.Conversation{}).Where("title = ?", "Go Builders").Count(&count)
	if count > 0 {
		return
	}

	group := model.Conversation{
		ID:       uuid.New(),
		Kind:     model.ConversationKindGroup,
		Title:    "Go Builders",
		Avatar:   "https://api.dicebear.com/7.x/initials/svg?seed=GB",
		IsPublic: true,
		OwnerID:  &owner.ID,
	}

	if err := db.Create(&group).Error; err != nil {
		log.Printf("❌ Failed to create group: %v", err)
		return
	}

	db.Create(&model.Participant{
		ConversationID: group.ID,
		UserID:         owner.ID,
		Role:           model.ParticipantRoleOwner,
		Status:         model.ParticipantStatusActive,
	})
	for _, m := range members {
		db.Create(&model.Participant{
			ConversationID: group.ID,
			UserID:         m.ID,
			Role:           model.ParticipantRoleMember,
			Status:         model.ParticipantStatusActive,
		})
	}

	msg := model.Message{
		ID:             uuid.New(),
		ConversationID: group.ID,
		SenderID:       owner.ID,
		Content:        "Welcome to Go Builders! 🚀",
		Type:           model.MessageTypeText,
	}
	db.Create(&msg)

	log.Println("✅ Created demo group: 'Go Builders' with 3 members")
}

// seedPendingHandshake creates a direct conversation where the target
// has not yet accepted, so the handshake flow can be exercised right away.
func seedPendingHandshake(db *gorm.DB) {
	var users []model.User
	if err := db.Limit(5).Find(&users).Error; err != nil || len(users) < 5 {
		return
	}

	sender := users[3]
	target := users[4]

	var count int64
	db.Model(&model.Participant{}).
		Joins("JOIN conversations ON conversations.id = participants.conversation_id").
		Where("conversations.kind = ? AND participants.user_id = ?", model.ConversationKindDirect, sender.ID).
		Count(&count)
	if count > 0 {
		return
	}

	conv := model.Conversation{
		ID:   uuid.New(),
		Kind: model.ConversationKindDirect,
	}
	if err := db.Create(&conv).Error; err != nil {
		log.Printf("❌ Failed to create direct conversation: %v", err)
		return
	}

	db.Create(&model.Participant{
		ConversationID: conv.ID,
		UserID:         sender.ID,
		Status:         model.ParticipantStatusActive,
	})
	db.Create(&model.Participant{
		ConversationID: conv.ID,
		UserID:         target.ID,
		Status:         model.ParticipantStatusPending,
	})

	db.Create(&model.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		Content:        "Hey! Saw your profile, want to collaborate?",
		Type:           model.MessageTypeText,
	})

	log.Printf("✅ Created pending handshake: %s -> %s", sender.Username, target.Username)
}
