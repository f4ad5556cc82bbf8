package models

import "errors"

// Common error types used throughout modekeeper.
// These errors carry semantic meaning across the coordinator, the registry
// and the HTTP layer.

var (
	// ErrUnknownMode indicates a token that is not one of the four modes.
	// HTTP equivalent: 400 Bad Request
	ErrUnknownMode = errors.New("unknown bot mode")

	// ErrInvalidNodeName indicates an empty or over-long node name.
	// HTTP equivalent: 400 Bad Request
	ErrInvalidNodeName = errors.New("invalid node name")

	// ErrNodeNotFound indicates the requested registry row does not exist.
	// HTTP equivalent: 404 Not Found
	ErrNodeNotFound = errors.New("cluster node not found")

	// ErrUnauthorized indicates a missing or wrong operator token.
	// HTTP equivalent: 401 Unauthorized
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMaintenance indicates the bot is in maintenance and the caller is
	// not privileged.
	// HTTP equivalent: 503 Service Unavailable
	ErrMaintenance = errors.New("bot is in maintenance mode")

	// ErrDeactivated indicates the bot is stopped or killed.
	// HTTP equivalent: 503 Service Unavailable
	ErrDeactivated = errors.New("bot deactivated")

	// ErrRateLimitExceeded indicates too many requests from this client.
	// HTTP equivalent: 429 Too Many Requests
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// ErrorResponse represents a standardized API error response.
type ErrorResponse struct {
	// Error is the error code (e.g. "unauthorized", "not_found").
	Error string `json:"error"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// RequestID is the request ID for tracing.
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse represents the response for health check endpoints.
type HealthResponse struct {
	// Status is "ok", "ready" or "unhealthy".
	Status string `json:"status"`

	// Node is the local node name.
	Node string `json:"node"`

	// Database reports the database connectivity for readiness checks.
	Database string `json:"database,omitempty"`
}

// StatusResponse is the presence/status snapshot of a running node.
type StatusResponse struct {
	// Node is the local node name.
	Node string `json:"node"`

	// Mode is the effective mode token.
	Mode Mode `json:"mode"`

	// Activity is the presence label for the mode.
	Activity string `json:"activity"`

	// Presence is "online" or "idle".
	Presence string `json:"presence"`

	// Active reports whether this node currently holds the active flag.
	Active bool `json:"active"`

	// Deactivated is true while the node sits in the deactivated state.
	Deactivated bool `json:"deactivated"`
}

// ModeChangeRequest is the body of POST /api/v1/mode.
type ModeChangeRequest struct {
	// Mode is the requested mode token.
	Mode string `json:"mode" binding:"required"`

	// Text is free-form operator text written below the mode line.
	Text string `json:"text"`
}
