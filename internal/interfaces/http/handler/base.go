// Package handler implements the HTTP handlers of the list sync API.
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/listsync/backend/internal/domain/integration"
	"github.com/listsync/backend/internal/domain/shopping"
	"github.com/listsync/backend/internal/infrastructure/logger"
	"github.com/listsync/backend/internal/infrastructure/scheduler"
	"github.com/listsync/backend/internal/interfaces/http/dto"
	"github.com/listsync/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides the response helpers shared by all handlers
type BaseHandler struct{}

// Success sends a 200 response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 response for queued work
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// Error sends an error response; the status is derived from the code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// NotFound sends a 404 response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeNotFound, message)
}

// BindJSON decodes and validates the request body into obj. On failure it
// writes the error response and returns false.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}

	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		h.Error(c, dto.ErrCodePayloadTooLarge, "Request body exceeds the allowed size")
	case errors.Is(err, io.EOF):
		h.Error(c, dto.ErrCodeInvalidJSON, "Request body is empty")
	default:
		if details := middleware.ValidationDetails(err); details != nil {
			c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse("Request validation failed", middleware.GetRequestID(c), details))
			return false
		}
		h.Error(c, dto.ErrCodeInvalidJSON, "Request body is not valid JSON")
	}
	return false
}

// HandleError maps domain and scheduler errors onto API error codes
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, shopping.ErrListNotFound):
		h.Error(c, dto.ErrCodeNotFound, "List not found")
	case errors.Is(err, shopping.ErrInvalidItemID),
		errors.Is(err, shopping.ErrInvalidItemName),
		errors.Is(err, shopping.ErrInvalidAmount),
		errors.Is(err, shopping.ErrInvalidItem):
		h.Error(c, dto.ErrCodeValidation, err.Error())
	case errors.Is(err, scheduler.ErrSchedulerNotRunning),
		errors.Is(err, integration.ErrEngineStopped):
		h.Error(c, dto.ErrCodeSyncUnavailable, "List sync is not running")
	case errors.Is(err, scheduler.ErrJobQueueFull):
		h.Error(c, dto.ErrCodeSyncQueueFull, "Sync queue is full, try again later")
	case errors.Is(err, scheduler.ErrUnknownJobKind):
		h.Error(c, dto.ErrCodeBadRequest, err.Error())
	case errors.Is(err, integration.ErrConnectionDown):
		h.Error(c, dto.ErrCodeConnectionDown, "External list connection is down")
	case errors.Is(err, integration.ErrMalformedSnapshot):
		h.Error(c, dto.ErrCodeMalformedSnapshot, err.Error())
	default:
		logger.GetGinLogger(c).Error("Request failed", zap.Error(err))
		h.Error(c, dto.ErrCodeInternal, "An unexpected error occurred")
	}
}
