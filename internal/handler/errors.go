package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andymarrow/stark-api/internal/model"
	"github.com/andymarrow/stark-api/internal/service"
)

// respondError maps service errors onto HTTP status codes
func respondError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrPermissionDenied),
		errors.Is(err, service.ErrNotParticipant),
		errors.Is(err, service.ErrBlocked):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrHandshakePending):
		status = http.StatusConflict
	case errors.Is(err, service.ErrEditLimit):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, model.ErrorResponse{Error: err.Error()})
}
