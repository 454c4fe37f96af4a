package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/andymarrow/stark-api/internal/compose"
	"github.com/andymarrow/stark-api/internal/model"
	"github.com/andymarrow/stark-api/internal/service"
	"github.com/andymarrow/stark-api/internal/task"
	"github.com/andymarrow/stark-api/internal/ws"
)

// ChatHandler handles conversation and message endpoints
type ChatHandler struct {
	chatService      *service.ChatService
	handshakeService *service.HandshakeService
	hub              *ws.Hub
	enqueuer         *task.Enqueuer
	drafts           *compose.Store
}

func NewChatHandler(chatService *service.ChatService, handshakeService *service.HandshakeService, hub *ws.Hub, enqueuer *task.Enqueuer, drafts *compose.Store) *ChatHandler {
	return &ChatHandler{
		chatService:      chatService,
		handshakeService: handshakeService,
		hub:              hub,
		enqueuer:         enqueuer,
		drafts:           drafts,
	}
}

// pushSummaries sends each participant their own view of the updated
// conversation. Unread counts and display names differ per user, so a
// shared payload would be wrong.
func (h *ChatHandler) pushSummaries(convID uuid.UUID) {
	memberIDs, err := h.chatService.ParticipantIDs(convID)
	if err != nil {
		return
	}
	for _, id := range memberIDs {
		summary, err := h.chatService.Summary(convID, id)
		if err != nil {
			continue
		}
		h.hub.SendToUser(id, &model.WSEvent{Type: model.WSEventConvUpdated, Payload: summary})
	}
}

// fanOutMessage broadcasts a new message to the other participants and
// queues push notifications for the ones who are offline.
func (h *ChatHandler) fanOutMessage(msg *model.Message, senderID uuid.UUID, senderName string) {
	memberIDs, err := h.chatService.ParticipantIDs(msg.ConversationID)
	if err != nil {
		return
	}

	var recipientIDs []uuid.UUID
	for _, id := range memberIDs {
		if id != senderID {
			recipientIDs = append(recipientIDs, id)
		}
	}
	if len(recipientIDs) > 0 {
		h.hub.SendToUsers(recipientIDs, &model.WSEvent{Type: model.WSEventNewMessage, Payload: msg})
	}

	h.pushSummaries(msg.ConversationID)

	for _, id := range recipientIDs {
		if !h.hub.IsUserOnline(id) {
			h.enqueuer.EnqueueMessageNotification(id, senderName, msg.Content, msg.ConversationID)
		}
	}
}

// ========== Conversations ==========

// GetDirectory godoc
// @Summary List the current user's conversations
// @Description Ordered by most recent activity. Rejected handshakes are excluded.
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.ConversationSummary
// @Router /conversations [get]
func (h *ChatHandler) GetDirectory(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	summaries, err := h.chatService.Directory(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to load conversations"})
		return
	}

	c.JSON(http.StatusOK, summaries)
}

// CreateConversation godoc
// @Summary Create a group or channel
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.CreateConversationRequest true "Conversation details"
// @Success 201 {object} model.Conversation
// @Router /conversations [post]
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req model.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	conv, err := h.chatService.CreateConversation(userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	go h.pushSummaries(conv.ID)

	c.JSON(http.StatusCreated, conv)
}

// GetConversation godoc
// @Summary Get a single conversation
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.Conversation
// @Router /conversations/{id} [get]
func (h *ChatHandler) GetConversation(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	conv, err := h.chatService.GetConversation(convID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// JoinConversation godoc
// @Summary Join a public group or channel
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id}/join [post]
func (h *ChatHandler) JoinConversation(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	if err := h.chatService.JoinConversation(convID, userID); err != nil {
		respondError(c, err)
		return
	}

	go h.pushSummaries(convID)

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Joined conversation"})
}

// LeaveConversation godoc
// @Summary Leave a conversation
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id}/leave [post]
func (h *ChatHandler) LeaveConversation(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	if err := h.chatService.LeaveConversation(convID, userID); err != nil {
		respondError(c, err)
		return
	}

	go h.pushSummaries(convID)

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Left conversation"})
}

// ResolveDirect godoc
// @Summary Resolve the direct conversation with another user
// @Description Returns the existing conversation with its recent messages, or a virtual one when nothing has been persisted yet.
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.DirectConversationRequest true "Partner ID"
// @Success 200 {object} model.DirectConversationResponse
// @Router /conversations/direct [post]
func (h *ChatHandler) ResolveDirect(c *gin.Context) {
	var req model.DirectConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	resp, err := h.chatService.ResolveDirect(userID, req.ReceiverID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ResolvePair godoc
// @Summary Resolve the conversation ID for a pair of users
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.ResolvePairRequest true "User pair"
// @Success 200 {object} map[string]string
// @Failure 404 {object} model.ErrorResponse
// @Router /conversations/resolve-pair [post]
func (h *ChatHandler) ResolvePair(c *gin.Context) {
	var req model.ResolvePairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	callerID := c.MustGet("user_id").(uuid.UUID)
	if callerID != req.UserID1 && callerID != req.UserID2 {
		c.JSON(http.StatusForbidden, model.ErrorResponse{Error: "Can only resolve own conversations"})
		return
	}

	convID, err := h.chatService.ResolvePairID(req.UserID1, req.UserID2)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation_id": convID.String()})
}

// ========== Messages ==========

// SendDirectMessage godoc
// @Summary Send a message to a user
// @Description Creates the direct conversation on first send. The recipient stays pending until they accept the handshake.
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Receiver ID"
// @Param body body model.SendMessageRequest true "Message"
// @Success 201 {object} model.Message
// @Router /users/{id}/messages [post]
func (h *ChatHandler) SendDirectMessage(c *gin.Context) {
	receiverID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	senderName := c.MustGet("name").(string)

	msg, conv, created, err := h.chatService.SendDirectMessage(userID, receiverID, req, model.MessageMeta{})
	if err != nil {
		respondError(c, err)
		return
	}
	h.drafts.Clear(userID, conv.ID)

	go func() {
		if created {
			// First contact: the receiver gets a handshake request
			// instead of a plain message event.
			me, err := h.chatService.Profile(userID)
			if err == nil {
				h.hub.SendToUser(receiverID, &model.WSEvent{
					Type: model.WSEventHandshake,
					Payload: model.HandshakeEvent{
						ConversationID: conv.ID,
						From:           *me,
					},
				})
			}
			if !h.hub.IsUserOnline(receiverID) {
				h.enqueuer.EnqueueHandshakeNotification(receiverID, senderName, conv.ID)
			}
			h.pushSummaries(conv.ID)
			return
		}
		h.fanOutMessage(msg, userID, senderName)
	}()

	c.JSON(http.StatusCreated, msg)
}

// SendMessage godoc
// @Summary Send a message to a conversation
// @Description Images staged through the upload endpoint are attached automatically.
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.SendMessageRequest true "Message"
// @Success 201 {object} model.Message
// @Router /conversations/{id}/messages [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	senderName := c.MustGet("name").(string)

	var meta model.MessageMeta
	draft := h.drafts.Get(userID, convID)
	if len(req.Images) == 0 && len(draft.Images) > 0 {
		meta.Images = append([]string(nil), draft.Images...)
	}
	if req.ReplyToID == nil && draft.Reply != nil {
		meta.Reply = draft.Reply
	}

	msg, err := h.chatService.SendMessage(userID, convID, req, meta)
	if err != nil {
		respondError(c, err)
		return
	}
	h.drafts.Clear(userID, convID)

	go h.fanOutMessage(msg, userID, senderName)

	c.JSON(http.StatusCreated, msg)
}

// GetMessages godoc
// @Summary Get messages for a conversation
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param before query string false "Cursor: message ID to page backwards from"
// @Param limit query int false "Window size (default: 100)"
// @Success 200 {array} model.Message
// @Router /conversations/{id}/messages [get]
func (h *ChatHandler) GetMessages(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	var req model.MessageListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request"})
		return
	}

	var before *uuid.UUID
	if req.Before != "" {
		parsed, err := uuid.Parse(req.Before)
		if err == nil {
			before = &parsed
		}
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	messages, err := h.chatService.GetMessages(convID, userID, before, req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// EditMessage godoc
// @Summary Edit a message
// @Description Each message can be edited at most twice. Only the sender may edit.
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Param body body model.EditMessageRequest true "New content"
// @Success 200 {object} model.Message
// @Failure 422 {object} model.ErrorResponse
// @Router /messages/{id} [put]
func (h *ChatHandler) EditMessage(c *gin.Context) {
	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid message ID"})
		return
	}

	var req model.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	msg, err := h.chatService.EditMessage(userID, msgID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	go func() {
		memberIDs, err := h.chatService.ParticipantIDs(msg.ConversationID)
		if err == nil {
			h.hub.SendToUsers(memberIDs, &model.WSEvent{Type: model.WSEventMessageUpdated, Payload: msg})
		}
	}()

	c.JSON(http.StatusOK, msg)
}

// DeleteMessage godoc
// @Summary Delete a message
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 200 {object} model.SuccessResponse
// @Router /messages/{id} [delete]
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid message ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	msg, err := h.chatService.DeleteMessage(userID, msgID)
	if err != nil {
		respondError(c, err)
		return
	}

	go func() {
		memberIDs, err := h.chatService.ParticipantIDs(msg.ConversationID)
		if err == nil {
			h.hub.SendToUsers(memberIDs, &model.WSEvent{
				Type: model.WSEventMessageDeleted,
				Payload: model.MessageDeletedEvent{
					ConversationID: msg.ConversationID,
					MessageID:      msg.ID,
				},
			})
		}
	}()

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Message deleted"})
}

// TogglePin godoc
// @Summary Pin or unpin a message
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 200 {object} model.Message
// @Router /messages/{id}/pin [post]
func (h *ChatHandler) TogglePin(c *gin.Context) {
	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid message ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	msg, banner, err := h.chatService.TogglePin(userID, msgID)
	if err != nil {
		respondError(c, err)
		return
	}

	go func() {
		memberIDs, err := h.chatService.ParticipantIDs(msg.ConversationID)
		if err == nil {
			h.hub.SendToUsers(memberIDs, &model.WSEvent{Type: model.WSEventMessageUpdated, Payload: msg})
		}
	}()

	c.JSON(http.StatusOK, gin.H{"message": msg, "pinned_banner": banner})
}

// GetPinned godoc
// @Summary Get the latest pinned message of a conversation
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.Message
// @Router /conversations/{id}/pinned [get]
func (h *ChatHandler) GetPinned(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	banner, err := h.chatService.PinnedBanner(convID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, banner)
}

// ToggleReaction godoc
// @Summary Toggle an emoji reaction on a message
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Param body body model.ReactionRequest true "Emoji"
// @Success 200 {object} model.Message
// @Router /messages/{id}/reactions [post]
func (h *ChatHandler) ToggleReaction(c *gin.Context) {
	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid message ID"})
		return
	}

	var req model.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	msg, err := h.chatService.ToggleReaction(userID, msgID, req.Emoji)
	if err != nil {
		respondError(c, err)
		return
	}

	go func() {
		memberIDs, err := h.chatService.ParticipantIDs(msg.ConversationID)
		if err == nil {
			h.hub.SendToUsers(memberIDs, &model.WSEvent{Type: model.WSEventMessageUpdated, Payload: msg})
		}
	}()

	c.JSON(http.StatusOK, msg)
}

// MarkAsRead godoc
// @Summary Mark a conversation as read
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id}/read [post]
func (h *ChatHandler) MarkAsRead(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	if err := h.chatService.MarkRead(convID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to mark as read"})
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Conversation marked as read"})
}

// ========== Handshake ==========

// AcceptHandshake godoc
// @Summary Accept a pending chat request
// @Tags Handshake
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id}/accept [post]
func (h *ChatHandler) AcceptHandshake(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	if err := h.handshakeService.Accept(convID, userID); err != nil {
		respondError(c, err)
		return
	}

	go h.pushSummaries(convID)

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Chat request accepted"})
}

// RejectHandshake godoc
// @Summary Reject a pending chat request
// @Description Deletes the conversation. After three rejections of the same sender they are blocked automatically.
// @Tags Handshake
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.HandshakeRejectRequest true "Sender being rejected"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id}/reject [post]
func (h *ChatHandler) RejectHandshake(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	var req model.HandshakeRejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	autoBlocked, err := h.handshakeService.Reject(convID, userID, req.SenderID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.chatService.DropCache(convID)

	go func() {
		event := &model.WSEvent{Type: model.WSEventConvDeleted, Payload: gin.H{"conversation_id": convID}}
		h.hub.SendToUser(userID, event)
		h.hub.SendToUser(req.SenderID, event)
	}()

	c.JSON(http.StatusOK, model.SuccessResponse{
		Message: "Chat request rejected",
		Data:    gin.H{"auto_blocked": autoBlocked},
	})
}

// BlockUser godoc
// @Summary Block a user
// @Tags Handshake
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} model.SuccessResponse
// @Router /users/{id}/block [post]
func (h *ChatHandler) BlockUser(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	if err := h.handshakeService.Block(userID, targetID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "User blocked"})
}

// UnblockUser godoc
// @Summary Unblock a user
// @Tags Handshake
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} model.SuccessResponse
// @Router /users/{id}/block [delete]
func (h *ChatHandler) UnblockUser(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	if err := h.handshakeService.Unblock(userID, targetID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "User unblocked"})
}

// GetBlocks godoc
// @Summary List users blocked by the current user
// @Tags Handshake
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Block
// @Router /users/blocks [get]
func (h *ChatHandler) GetBlocks(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	blocks, err := h.handshakeService.Blocked(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to load blocks"})
		return
	}

	c.JSON(http.StatusOK, blocks)
}
