// Package handlers provides HTTP handlers for the modekeeper API.
//
// This package implements request handlers for health checks, the status
// board, mode changes and cluster registry administration.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yaroslav/modekeeper/internal/api/middleware"
	"github.com/yaroslav/modekeeper/models"
)

// SuccessResponse represents a standardized success response with data.
type SuccessResponse struct {
	// Data contains the response payload.
	Data interface{} `json:"data,omitempty"`

	// Message is an optional success message.
	Message string `json:"message,omitempty"`
}

// respondError sends a standardized error response.
//
// Parameters:
//   - c: Gin context
//   - statusCode: HTTP status code
//   - errorCode: Error code string (e.g., "unauthorized")
//   - message: Human-readable error message
func respondError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.JSON(statusCode, models.ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestID: middleware.GetRequestID(c),
	})
}

// respondSuccess sends a standardized success response with data.
func respondSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, SuccessResponse{
		Data: data,
	})
}

// mapErrorToResponse converts a models package error to an HTTP response.
//
// Storage and other unexpected errors are logged with the request logger
// and answered with a generic message.
func mapErrorToResponse(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNodeNotFound):
		respondError(c, http.StatusNotFound, "not_found", "Resource not found")

	case errors.Is(err, models.ErrUnknownMode), errors.Is(err, models.ErrInvalidNodeName):
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())

	case errors.Is(err, models.ErrUnauthorized):
		respondError(c, http.StatusUnauthorized, "unauthorized", "Authentication failed")

	case errors.Is(err, models.ErrRateLimitExceeded):
		respondError(c, http.StatusTooManyRequests, "rate_limit_exceeded", "Rate limit exceeded")

	case errors.Is(err, models.ErrMaintenance), errors.Is(err, models.ErrDeactivated):
		respondError(c, http.StatusServiceUnavailable, "service_unavailable", err.Error())

	default:
		middleware.GetLogger(c).Error("request failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal_error", "An internal error occurred")
	}
}
