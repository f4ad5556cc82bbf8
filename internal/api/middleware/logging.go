// Package middleware provides HTTP middleware for the modekeeper API.
//
// This package implements operator authentication, rate limiting,
// request logging and request metrics.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yaroslav/modekeeper/internal/logging"
)

// HeaderRequestID is echoed back with the generated request id.
const HeaderRequestID = "X-Request-ID"

// Context keys shared with the handlers package.
const (
	ContextKeyLogger    = "logger"
	ContextKeyRequestID = "request_id"
)

// RequestLogger creates a middleware that logs all HTTP requests using structured logging.
//
// This middleware:
// - Generates a unique request ID for tracing
// - Creates a request-scoped logger with standard fields
// - Stores logger in both Gin and request context
// - Logs request completion with duration at a level matching the status
//
// Parameters:
//   - logger: Zap logger instance
//
// Returns:
//   - Gin middleware handler function
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		start := time.Now()

		requestLogger := logger.With(
			zap.String(logging.FieldRequestID, requestID),
			zap.String(logging.FieldMethod, c.Request.Method),
			zap.String(logging.FieldPath, c.Request.URL.Path),
			zap.String(logging.FieldRemoteAddr, c.ClientIP()),
		)

		c.Set(ContextKeyLogger, requestLogger)
		c.Set(ContextKeyRequestID, requestID)
		c.Header(HeaderRequestID, requestID)

		// Store in request context for non-gin code
		ctx := logging.WithLogger(c.Request.Context(), requestLogger)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.Int(logging.FieldStatusCode, status),
			zap.Int64(logging.FieldDuration, duration.Milliseconds()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String(logging.FieldError, c.Errors.String()))
		}

		// Log at appropriate level based on status code
		switch {
		case status >= 500:
			requestLogger.Error("request completed with server error", fields...)
		case status >= 400:
			requestLogger.Warn("request completed with client error", fields...)
		default:
			requestLogger.Debug("request completed", fields...)
		}
	}
}

// GetLogger retrieves the request-scoped logger from Gin context, then
// from the request context. Returns a no-op logger if neither has one.
func GetLogger(c *gin.Context) *zap.Logger {
	if logger, exists := c.Get(ContextKeyLogger); exists {
		if l, ok := logger.(*zap.Logger); ok {
			return l
		}
	}
	if c.Request != nil {
		return logging.FromContext(c.Request.Context())
	}
	return zap.NewNop()
}

// GetRequestID retrieves the request ID from Gin context.
// Returns empty string if not found.
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(ContextKeyRequestID); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}
