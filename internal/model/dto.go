package model

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ========== Auth DTOs ==========

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UpdateProfileRequest struct {
	Name   string `json:"name" binding:"max=100"`
	Avatar string `json:"avatar" binding:"max=500"`
	Bio    string `json:"bio" binding:"max=500"`
}

type RegisterDeviceRequest struct {
	FCMToken   string `json:"fcm_token" binding:"required"`
	DeviceType string `json:"device_type" binding:"required"`
}

// ========== Conversation DTOs ==========

type CreateConversationRequest struct {
	Kind          ConversationKind `json:"kind" binding:"required,oneof=group channel"`
	Title         string           `json:"title" binding:"required,min=1,max=100"`
	Description   string           `json:"description" binding:"max=500"`
	IsPublic      bool             `json:"is_public"`
	LinkedGroupID *uuid.UUID       `json:"linked_group_id"`
	MemberIDs     []uuid.UUID      `json:"member_ids"`
}

type DirectConversationRequest struct {
	ReceiverID uuid.UUID `json:"receiver_id" binding:"required"`
}

// DirectConversationResponse carries the resolved direct conversation.
// When no row exists yet the conversation is virtual: nothing has been
// persisted and the id is nil until the first message is sent.
type DirectConversationResponse struct {
	Conversation *ConversationSummary `json:"conversation,omitempty"`
	Messages     []Message            `json:"messages"`
	IsVirtual    bool                 `json:"is_virtual"`
	Counterpart  UserResponse         `json:"counterpart"`
}

type ResolvePairRequest struct {
	UserID1 uuid.UUID `json:"user_id_1" binding:"required"`
	UserID2 uuid.UUID `json:"user_id_2" binding:"required"`
}

type HandshakeRejectRequest struct {
	SenderID uuid.UUID `json:"sender_id" binding:"required"`
}

// ========== Message DTOs ==========

type SendMessageRequest struct {
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	GifURL    string      `json:"gif_url,omitempty"`
	ReplyToID *uuid.UUID  `json:"reply_to_id"`
	// Images staged through the draft endpoint are attached
	// automatically; explicit URLs are accepted for API clients.
	Images []string `json:"images,omitempty"`
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required,max=16"`
}

type MessageListRequest struct {
	Before string `form:"before"` // cursor for pagination (message ID)
	Limit  int    `form:"limit,default=100"`
}

// ========== Report DTOs ==========

type CreateReportRequest struct {
	TargetUserID    *uuid.UUID   `json:"target_user_id"`
	TargetMessageID *uuid.UUID   `json:"target_message_id"`
	TargetProjectID *uuid.UUID   `json:"target_project_id"`
	Reason          ReportReason   `json:"reason" binding:"required,oneof=spam harassment nsfw other"`
	Details         string         `json:"details" binding:"max=1000"`
	Evidence        datatypes.JSON `json:"evidence,omitempty"`
}

// ========== WebSocket Event DTOs ==========

type WSEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocket event types
const (
	WSEventNewMessage     = "new_message"
	WSEventMessageUpdated = "message_updated"
	WSEventMessageDeleted = "message_deleted"
	WSEventConvUpdated    = "conversation_updated"
	WSEventConvDeleted    = "conversation_deleted"
	WSEventHandshake      = "handshake_request"
	WSEventTyping         = "typing"
	WSEventStopTyping     = "stop_typing"
	WSEventOnline         = "online"
	WSEventOffline        = "offline"
	WSEventPresenceState  = "presence_state"
)

type TypingEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	Name           string    `json:"name"`
}

type OnlineEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	IsOnline bool      `json:"is_online"`
}

type MessageDeletedEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
}

type HandshakeEvent struct {
	ConversationID uuid.UUID    `json:"conversation_id"`
	From           UserResponse `json:"from"`
}

type PresenceStateEvent struct {
	OnlineUserIDs []uuid.UUID `json:"online_user_ids"`
}

// ========== Upload / Draft DTOs ==========

type UploadResponse struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
}

// DraftResponse is the staged attachment state after an upload
type DraftResponse struct {
	Images    []string `json:"images"`
	Remaining int      `json:"remaining"`
}

// ========== Common ==========

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
