package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/andymarrow/stark-api/internal/model"
)

// MessageRepository handles database operations for Message
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a new message
func (r *MessageRepository) Create(msg *model.Message) error {
	return r.db.Create(msg).Error
}

// FindByID finds a message by ID
func (r *MessageRepository) FindByID(id uuid.UUID) (*model.Message, error) {
	var msg model.Message
	err := r.db.
		Preload("Sender").
		Where("id = ?", id).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetRecent returns the most recent messages of a conversation in
// ascending chronological order (cursor-based pagination going backwards).
func (r *MessageRepository) GetRecent(conversationID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error) {
	messages := []model.Message{}
	query := r.db.
		Preload("Sender").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit)

	if before != nil {
		var beforeMsg model.Message
		if err := r.db.Select("created_at").Where("id = ?", before).First(&beforeMsg).Error; err != nil {
			return nil, err
		}
		query = query.Where("created_at < ?", beforeMsg.CreatedAt)
	}

	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}

	// Reverse into ascending order for display
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// UpdateContent replaces the text of a message and bumps its edit counter
func (r *MessageRepository) UpdateContent(id uuid.UUID, content string) error {
	return r.db.Model(&model.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":    content,
			"edit_count": gorm.Expr("edit_count + 1"),
		}).Error
}

// SetPinned flips the pinned flag of a message
func (r *MessageRepository) SetPinned(id uuid.UUID, pinned bool) error {
	return r.db.Model(&model.Message{}).
		Where("id = ?", id).
		Update("pinned", pinned).Error
}

// GetLatestPinned returns the most recent pinned message of a
// conversation, or gorm.ErrRecordNotFound when nothing is pinned.
func (r *MessageRepository) GetLatestPinned(conversationID uuid.UUID) (*model.Message, error) {
	var msg model.Message
	err := r.db.
		Preload("Sender").
		Where("conversation_id = ? AND pinned = ?", conversationID, true).
		Order("created_at DESC").
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// SetReactions overwrites the reactions map of a message
func (r *MessageRepository) SetReactions(id uuid.UUID, reactions model.Reactions) error {
	return r.db.Model(&model.Message{}).
		Where("id = ?", id).
		Update("reactions", reactions).Error
}

// Delete soft-deletes a message. Returns the number of rows affected so
// callers can tell an access-policy refusal from success.
func (r *MessageRepository) Delete(id uuid.UUID, senderID uuid.UUID) (int64, error) {
	res := r.db.Where("id = ? AND sender_id = ?", id, senderID).Delete(&model.Message{})
	return res.RowsAffected, res.Error
}

// DeleteAny removes a message regardless of sender (moderation path)
func (r *MessageRepository) DeleteAny(id uuid.UUID) error {
	return r.db.Where("id = ?", id).Delete(&model.Message{}).Error
}

// PurgeUserMessages removes every message a user sent in a conversation
func (r *MessageRepository) PurgeUserMessages(conversationID, userID uuid.UUID) (int64, error) {
	res := r.db.
		Where("conversation_id = ? AND sender_id = ?", conversationID, userID).
		Delete(&model.Message{})
	return res.RowsAffected, res.Error
}
