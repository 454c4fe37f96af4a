package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageType defines the type of message content
type MessageType string

const (
	MessageTypeText       MessageType = "text"
	MessageTypeImage      MessageType = "image"
	MessageTypeImageGroup MessageType = "image_group"
	MessageTypeGIF        MessageType = "gif"
	MessageTypeCall       MessageType = "call"
)

// MaxEditsPerMessage caps how many times a message may be edited.
const MaxEditsPerMessage = 2

// ReplySnippet is a truncated copy of the message being replied to,
// denormalized so the reply context survives deletion of the original.
type ReplySnippet struct {
	MessageID  uuid.UUID `json:"message_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Excerpt    string    `json:"excerpt"`
}

// CallInfo records the state of a call message
type CallInfo struct {
	Status    string     `json:"status"` // ringing, answered, missed, ended
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// LinkPreview caches unfurled link metadata for a text message
type LinkPreview struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// MessageMeta is the per-type metadata of a message. Each message type
// owns only the fields it needs; Validate enforces that at the boundary.
type MessageMeta struct {
	Images  []string      `json:"images,omitempty"`  // image, image_group
	GifURL  string        `json:"gif_url,omitempty"` // gif
	Call    *CallInfo     `json:"call,omitempty"`    // call
	Reply   *ReplySnippet `json:"reply,omitempty"`
	Preview *LinkPreview  `json:"preview,omitempty"`
}

// Validate checks that the metadata matches the message type.
func (m MessageMeta) Validate(t MessageType) error {
	switch t {
	case MessageTypeText:
		if len(m.Images) > 0 || m.GifURL != "" || m.Call != nil {
			return errors.New("text message carries non-text metadata")
		}
	case MessageTypeImage:
		if len(m.Images) != 1 {
			return errors.New("image message requires exactly one image")
		}
	case MessageTypeImageGroup:
		if len(m.Images) < 1 {
			return errors.New("image_group message requires at least one image")
		}
	case MessageTypeGIF:
		if m.GifURL == "" {
			return errors.New("gif message requires gif_url")
		}
	case MessageTypeCall:
		if m.Call == nil {
			return errors.New("call message requires call info")
		}
	default:
		return errors.New("unknown message type")
	}
	return nil
}

// Reactions maps an emoji to the set of user ids that reacted with it.
type Reactions map[string][]uuid.UUID

// Toggle adds the user's reaction, or removes it if already present.
// Returns true when the reaction was added.
func (r Reactions) Toggle(emoji string, userID uuid.UUID) bool {
	users := r[emoji]
	for i, id := range users {
		if id == userID {
			users = append(users[:i], users[i+1:]...)
			if len(users) == 0 {
				delete(r, emoji)
			} else {
				r[emoji] = users
			}
			return false
		}
	}
	r[emoji] = append(users, userID)
	return true
}

// Message represents a chat message
type Message struct {
	ID             uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationID uuid.UUID   `json:"conversation_id" gorm:"type:uuid;index;not null"`
	SenderID       uuid.UUID   `json:"sender_id" gorm:"type:uuid;index;not null"`
	Content        string      `json:"content" gorm:"type:text"`
	Type           MessageType `json:"type" gorm:"type:varchar(20);default:'text'"`
	Meta           MessageMeta `json:"meta" gorm:"type:jsonb;serializer:json"`
	Reactions      Reactions   `json:"reactions" gorm:"type:jsonb;serializer:json"`
	Pinned         bool        `json:"pinned" gorm:"default:false;index"`
	EditCount      int         `json:"edit_count" gorm:"default:0"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Sender       User         `json:"sender" gorm:"foreignKey:SenderID"`
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID"`
}

// CanEdit reports whether another edit is still allowed.
func (m *Message) CanEdit() bool {
	return m.EditCount < MaxEditsPerMessage
}
