package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationKind defines the shape of a conversation
type ConversationKind string

const (
	ConversationKindDirect  ConversationKind = "direct"
	ConversationKindGroup   ConversationKind = "group"
	ConversationKindChannel ConversationKind = "channel"
)

// Conversation represents a direct chat, a group, or a broadcast channel.
// Title/avatar are empty for direct conversations; clients see the
// counterpart's name instead (resolved by the directory).
type Conversation struct {
	ID          uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Kind        ConversationKind `json:"kind" gorm:"type:varchar(20);default:'direct';index"`
	Title       string           `json:"title" gorm:"size:100"`
	Description string           `json:"description" gorm:"size:500"`
	Avatar      string           `json:"avatar,omitempty" gorm:"size:500"`
	IsPublic    bool             `json:"is_public" gorm:"default:false"`
	OwnerID     *uuid.UUID       `json:"owner_id,omitempty" gorm:"type:uuid"`

	// Channels may link to a discussion group
	LinkedGroupID *uuid.UUID `json:"linked_group_id,omitempty" gorm:"type:uuid"`

	// Denormalized for directory ordering, updated on every send
	LastMessageText string     `json:"last_message_text" gorm:"size:500"`
	LastMessageAt   *time.Time `json:"last_message_at" gorm:"index"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Participants []Participant `json:"participants,omitempty" gorm:"foreignKey:ConversationID"`
}

// ParticipantRole defines a member's role in a conversation
type ParticipantRole string

const (
	ParticipantRoleOwner  ParticipantRole = "owner"
	ParticipantRoleAdmin  ParticipantRole = "admin"
	ParticipantRoleMember ParticipantRole = "member"
)

// ParticipantStatus tracks the handshake state of a membership.
// A direct conversation has exactly two participant rows; the target
// stays pending until they accept.
type ParticipantStatus string

const (
	ParticipantStatusActive   ParticipantStatus = "active"
	ParticipantStatusPending  ParticipantStatus = "pending"
	ParticipantStatusRejected ParticipantStatus = "rejected"
)

// Participant represents a user's membership in a conversation
type Participant struct {
	ID             uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationID uuid.UUID         `json:"conversation_id" gorm:"type:uuid;uniqueIndex:idx_conv_user;not null"`
	UserID         uuid.UUID         `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_conv_user;not null"`
	Role           ParticipantRole   `json:"role" gorm:"type:varchar(20);default:'member'"`
	Status         ParticipantStatus `json:"status" gorm:"type:varchar(20);default:'active';index"`
	UnreadCount    int               `json:"unread_count" gorm:"default:0"`
	JoinedAt       time.Time         `json:"joined_at"`
	DeletedAt      gorm.DeletedAt    `json:"-" gorm:"index"`

	// Relations
	User         User         `json:"user" gorm:"foreignKey:UserID"`
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID"`
}

// ConversationSummary is a directory entry: the conversation annotated
// with the display name/avatar the caller should render and their
// unread count. Direct conversations borrow the counterpart's identity.
type ConversationSummary struct {
	Conversation
	DisplayName   string            `json:"display_name"`
	DisplayAvatar string            `json:"display_avatar"`
	CounterpartID *uuid.UUID        `json:"counterpart_id,omitempty"`
	MyStatus      ParticipantStatus `json:"my_status"`
	UnreadCount   int               `json:"unread_count"`
}
