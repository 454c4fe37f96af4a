package service

import (
	"github.com/google/uuid"

	"github.com/andymarrow/stark-api/internal/model"
)

// Narrow store interfaces over the repository layer. The GORM
// repositories satisfy them; tests substitute in-memory fakes.

type ConversationStore interface {
	Create(conv *model.Conversation) error
	FindByID(id uuid.UUID) (*model.Conversation, error)
	FindDirectBetween(userID1, userID2 uuid.UUID) (*model.Conversation, error)
	GetUserConversations(userID uuid.UUID) ([]model.Conversation, error)
	AddParticipant(p *model.Participant) error
	RemoveParticipant(conversationID, userID uuid.UUID) error
	GetParticipant(conversationID, userID uuid.UUID) (*model.Participant, error)
	SetParticipantStatus(conversationID, userID uuid.UUID, status model.ParticipantStatus) error
	IsActiveParticipant(conversationID, userID uuid.UUID) (bool, error)
	IsParticipant(conversationID, userID uuid.UUID) (bool, error)
	GetParticipantIDs(conversationID uuid.UUID) ([]uuid.UUID, error)
	SetLastMessage(conversationID uuid.UUID, text string) error
	IncrementUnread(conversationID, senderID uuid.UUID) error
	ResetUnread(conversationID, userID uuid.UUID) error
	UpdateMeta(conversationID uuid.UUID, updates map[string]interface{}) error
	Delete(conversationID uuid.UUID) error
}

type MessageStore interface {
	Create(msg *model.Message) error
	FindByID(id uuid.UUID) (*model.Message, error)
	GetRecent(conversationID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error)
	UpdateContent(id uuid.UUID, content string) error
	SetPinned(id uuid.UUID, pinned bool) error
	GetLatestPinned(conversationID uuid.UUID) (*model.Message, error)
	SetReactions(id uuid.UUID, reactions model.Reactions) error
	Delete(id uuid.UUID, senderID uuid.UUID) (int64, error)
	DeleteAny(id uuid.UUID) error
	PurgeUserMessages(conversationID, userID uuid.UUID) (int64, error)
}

type UserStore interface {
	FindByID(id uuid.UUID) (*model.User, error)
	Search(query string, callerID uuid.UUID, limit int) ([]model.User, error)
	DeleteWithDependents(userID uuid.UUID) error
}

type ReportStore interface {
	Create(report *model.Report) error
	FindByID(id uuid.UUID) (*model.Report, error)
	List(status model.ReportStatus, limit int) ([]model.Report, error)
	SetStatus(id uuid.UUID, status model.ReportStatus) (int64, error)
}

type BlockStore interface {
	Increment(senderID, receiverID uuid.UUID) (int, error)
	GetCount(senderID, receiverID uuid.UUID) (int, error)
	CreateBlock(blockerID, blockedID uuid.UUID) error
	RemoveBlock(blockerID, blockedID uuid.UUID) error
	IsBlocked(userID1, userID2 uuid.UUID) (bool, error)
	GetBlocks(blockerID uuid.UUID) ([]model.Block, error)
}
