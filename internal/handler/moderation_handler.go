package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/andymarrow/stark-api/internal/model"
	"github.com/andymarrow/stark-api/internal/service"
	"github.com/andymarrow/stark-api/internal/ws"
)

// ModerationHandler handles reports and destructive cleanup endpoints
type ModerationHandler struct {
	moderationService *service.ModerationService
	chatService       *service.ChatService
	hub               *ws.Hub
}

func NewModerationHandler(moderationService *service.ModerationService, chatService *service.ChatService, hub *ws.Hub) *ModerationHandler {
	return &ModerationHandler{
		moderationService: moderationService,
		chatService:       chatService,
		hub:               hub,
	}
}

// CreateReport godoc
// @Summary Report a user, message or project
// @Description Exactly one target must be set.
// @Tags Moderation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.CreateReportRequest true "Report"
// @Success 201 {object} model.Report
// @Router /reports [post]
func (h *ModerationHandler) CreateReport(c *gin.Context) {
	var req model.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	report, err := h.moderationService.CreateReport(userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, report)
}

// ListReports godoc
// @Summary List reports, optionally filtered by status (admin only)
// @Tags Moderation
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter: pending or resolved"
// @Param limit query int false "Max results (default 50)"
// @Success 200 {array} model.Report
// @Failure 403 {object} model.ErrorResponse
// @Router /reports [get]
func (h *ModerationHandler) ListReports(c *gin.Context) {
	status := model.ReportStatus(c.Query("status"))

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	callerID := c.MustGet("user_id").(uuid.UUID)
	reports, err := h.moderationService.ListReports(callerID, status, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, reports)
}

// ResolveReport godoc
// @Summary Mark a report as resolved (admin only)
// @Tags Moderation
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /reports/{id}/resolve [post]
func (h *ModerationHandler) ResolveReport(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid report ID"})
		return
	}

	callerID := c.MustGet("user_id").(uuid.UUID)
	if err := h.moderationService.ResolveReport(callerID, reportID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Report resolved"})
}

// PurgeUserMessages godoc
// @Summary Delete all of a user's messages in a conversation
// @Description Allowed for the user themselves or a conversation owner/admin.
// @Tags Moderation
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param userId path string true "User ID"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id}/users/{userId}/messages [delete]
func (h *ModerationHandler) PurgeUserMessages(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}
	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	callerID := c.MustGet("user_id").(uuid.UUID)
	deleted, err := h.moderationService.PurgeUserMessages(convID, targetID, callerID)
	if err != nil {
		respondError(c, err)
		return
	}

	go func() {
		memberIDs, err := h.chatService.ParticipantIDs(convID)
		if err == nil {
			h.hub.SendToUsers(memberIDs, &model.WSEvent{
				Type:    model.WSEventConvUpdated,
				Payload: gin.H{"conversation_id": convID, "purged_user_id": targetID},
			})
		}
	}()

	c.JSON(http.StatusOK, model.SuccessResponse{
		Message: "Messages deleted",
		Data:    gin.H{"deleted": deleted},
	})
}

// DeleteConversation godoc
// @Summary Delete a conversation and all its messages
// @Tags Moderation
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id} [delete]
func (h *ModerationHandler) DeleteConversation(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	// Snapshot members before the rows go away
	memberIDs, _ := h.chatService.ParticipantIDs(convID)

	callerID := c.MustGet("user_id").(uuid.UUID)
	if err := h.moderationService.DeleteConversation(convID, callerID); err != nil {
		respondError(c, err)
		return
	}

	go h.hub.SendToUsers(memberIDs, &model.WSEvent{
		Type:    model.WSEventConvDeleted,
		Payload: gin.H{"conversation_id": convID},
	})

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Conversation deleted"})
}

// DeleteAccount godoc
// @Summary Delete the current user's account and all dependent data
// @Tags Moderation
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.SuccessResponse
// @Router /auth/me [delete]
func (h *ModerationHandler) DeleteAccount(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	if err := h.moderationService.DeleteUser(userID); err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to delete account"})
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Account deleted"})
}
