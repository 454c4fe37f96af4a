package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/andymarrow/stark-api/internal/compose"
	"github.com/andymarrow/stark-api/internal/model"
	"github.com/andymarrow/stark-api/pkg/storage"
)

// Max upload size: 10MB per image
const maxUploadSize = 10 << 20

// Allowed MIME types (images only)
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// UploadHandler handles image upload endpoints
type UploadHandler struct {
	storage *storage.MinIOStorage
	drafts  *compose.Store
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(storage *storage.MinIOStorage, drafts *compose.Store) *UploadHandler {
	return &UploadHandler{storage: storage, drafts: drafts}
}

func (h *UploadHandler) readImage(c *gin.Context) (*storage.UploadResult, bool) {
	// Storage is optional at startup; without it uploads are down, not
	// the whole API.
	if h.storage == nil {
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{Error: "Media storage unavailable"})
		return nil, false
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			c.JSON(http.StatusRequestEntityTooLarge, model.ErrorResponse{Error: "File too large (max 10MB)"})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "File is required", Message: err.Error()})
		return nil, false
	}
	defer file.Close()

	contentType := strings.ToLower(header.Header.Get("Content-Type"))
	if !allowedImageTypes[contentType] {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "Unsupported file type",
			Message: "Allowed: jpg, png, gif, webp",
		})
		return nil, false
	}

	result, err := h.storage.Upload(c.Request.Context(), file, header, "images")
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to upload file", Message: err.Error()})
		return nil, false
	}
	return result, true
}

// UploadAvatar godoc
// @Summary Upload a profile avatar
// @Tags Upload
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image to upload"
// @Success 200 {object} model.UploadResponse
// @Failure 413 {object} model.ErrorResponse
// @Router /upload/avatar [post]
func (h *UploadHandler) UploadAvatar(c *gin.Context) {
	result, ok := h.readImage(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, model.UploadResponse{
		URL:      result.URL,
		FileName: result.FileName,
		FileSize: result.FileSize,
		MimeType: result.MimeType,
	})
}

// StageImage godoc
// @Summary Upload an image and stage it on the message draft
// @Description At most 3 images per message. The fourth upload is rejected and nothing changes.
// @Tags Upload
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param file formData file true "Image to upload"
// @Success 200 {object} model.DraftResponse
// @Failure 422 {object} model.ErrorResponse
// @Router /conversations/{id}/images [post]
func (h *UploadHandler) StageImage(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	draft := h.drafts.Get(userID, convID)

	// Check the cap before paying for the upload
	if len(draft.Images) >= compose.MaxStagedImages {
		c.JSON(http.StatusUnprocessableEntity, model.ErrorResponse{Error: compose.ErrTooManyImages.Error()})
		return
	}

	result, ok := h.readImage(c)
	if !ok {
		return
	}

	if err := draft.StageImage(result.URL); err != nil {
		if errors.Is(err, compose.ErrTooManyImages) {
			c.JSON(http.StatusUnprocessableEntity, model.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to stage image"})
		return
	}

	c.JSON(http.StatusOK, model.DraftResponse{
		Images:    draft.Images,
		Remaining: compose.MaxStagedImages - len(draft.Images),
	})
}

// UnstageImage godoc
// @Summary Remove a staged image from the message draft
// @Tags Upload
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param index path int true "Staged image index"
// @Success 200 {object} model.DraftResponse
// @Router /conversations/{id}/images/{index} [delete]
func (h *UploadHandler) UnstageImage(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid image index"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	draft := h.drafts.Get(userID, convID)
	draft.UnstageImage(index)

	c.JSON(http.StatusOK, model.DraftResponse{
		Images:    draft.Images,
		Remaining: compose.MaxStagedImages - len(draft.Images),
	})
}
