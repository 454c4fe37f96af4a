package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/andymarrow/stark-api/internal/model"
)

// ConversationRepository handles database operations for Conversation
type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create creates a new conversation with participants
func (r *ConversationRepository) Create(conv *model.Conversation) error {
	return r.db.Create(conv).Error
}

// FindByID finds a conversation by ID with participants
func (r *ConversationRepository) FindByID(id uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.
		Preload("Participants.User").
		Where("id = ?", id).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindDirectBetween finds the direct conversation between two users,
// whatever its handshake state.
func (r *ConversationRepository) FindDirectBetween(userID1, userID2 uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.
		Table("conversations").
		Joins("JOIN participants p1 ON p1.conversation_id = conversations.id AND p1.deleted_at IS NULL").
		Joins("JOIN participants p2 ON p2.conversation_id = conversations.id AND p2.deleted_at IS NULL").
		Where("conversations.kind = ?", model.ConversationKindDirect).
		Where("conversations.deleted_at IS NULL").
		Where("p1.user_id = ?", userID1).
		Where("p2.user_id = ?", userID2).
		Preload("Participants.User").
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetUserConversations returns all conversations the user participates in,
// newest activity first; conversations with no messages yet sort last.
func (r *ConversationRepository) GetUserConversations(userID uuid.UUID) ([]model.Conversation, error) {
	var conversations []model.Conversation
	err := r.db.
		Joins("JOIN participants ON participants.conversation_id = conversations.id").
		Where("participants.user_id = ? AND participants.deleted_at IS NULL", userID).
		Where("participants.status != ?", model.ParticipantStatusRejected).
		Preload("Participants.User").
		Order("conversations.last_message_at DESC NULLS LAST").
		Find(&conversations).Error
	return conversations, err
}

// AddParticipant adds a user to a conversation
func (r *ConversationRepository) AddParticipant(p *model.Participant) error {
	return r.db.Create(p).Error
}

// RemoveParticipant soft-deletes a participant from a conversation
func (r *ConversationRepository) RemoveParticipant(conversationID, userID uuid.UUID) error {
	return r.db.
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&model.Participant{}).Error
}

// GetParticipant returns a user's participant row for a conversation
func (r *ConversationRepository) GetParticipant(conversationID, userID uuid.UUID) (*model.Participant, error) {
	var p model.Participant
	err := r.db.
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetParticipantStatus updates the handshake status of a participant
func (r *ConversationRepository) SetParticipantStatus(conversationID, userID uuid.UUID, status model.ParticipantStatus) error {
	return r.db.Model(&model.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("status", status).Error
}

// SetParticipantRole updates the role of a participant
func (r *ConversationRepository) SetParticipantRole(conversationID, userID uuid.UUID, role model.ParticipantRole) error {
	return r.db.Model(&model.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("role", role).Error
}

// IsActiveParticipant checks that a user is an active member of a conversation
func (r *ConversationRepository) IsActiveParticipant(conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.Model(&model.Participant{}).
		Where("conversation_id = ? AND user_id = ? AND status = ?",
			conversationID, userID, model.ParticipantStatusActive).
		Count(&count).Error
	return count > 0, err
}

// IsParticipant checks membership regardless of handshake status
func (r *ConversationRepository) IsParticipant(conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.Model(&model.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

// GetParticipantIDs returns all participant user IDs for a conversation
func (r *ConversationRepository) GetParticipantIDs(conversationID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.Model(&model.Participant{}).
		Where("conversation_id = ?", conversationID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// SetLastMessage updates the denormalized last-message fields
func (r *ConversationRepository) SetLastMessage(conversationID uuid.UUID, text string) error {
	return r.db.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message_text": text,
			"last_message_at":   gorm.Expr("NOW()"),
		}).Error
}

// IncrementUnread bumps the unread counter for every participant except the sender
func (r *ConversationRepository) IncrementUnread(conversationID, senderID uuid.UUID) error {
	return r.db.Model(&model.Participant{}).
		Where("conversation_id = ? AND user_id != ?", conversationID, senderID).
		Update("unread_count", gorm.Expr("unread_count + 1")).Error
}

// ResetUnread zeroes the unread counter for a participant
func (r *ConversationRepository) ResetUnread(conversationID, userID uuid.UUID) error {
	return r.db.Model(&model.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("unread_count", 0).Error
}

// UpdateMeta updates title/description/avatar/visibility of a group or channel
func (r *ConversationRepository) UpdateMeta(conversationID uuid.UUID, updates map[string]interface{}) error {
	return r.db.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Updates(updates).Error
}

// Delete removes a conversation together with its participants and
// messages. Rejection deletes for real: the row must not come back.
func (r *ConversationRepository) Delete(conversationID uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("conversation_id = ?", conversationID).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("conversation_id = ?", conversationID).Delete(&model.Participant{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Where("id = ?", conversationID).Delete(&model.Conversation{}).Error
	})
}
