package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Errors callers can check with errors.Is.
var (
	// ErrInvalidConfig indicates the client configuration is invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid client configuration")

	// ErrNoBaseURLs indicates no node URLs were provided.
	ErrNoBaseURLs = errors.New("no base URLs provided")

	// ErrAllInstancesFailed indicates every node URL was unreachable.
	ErrAllInstancesFailed = errors.New("all modekeeper instances failed")

	// ErrNoActiveNode indicates no node reported itself active.
	ErrNoActiveNode = errors.New("no active node found")

	// ErrUnauthorized indicates the operator token was missing or wrong.
	ErrUnauthorized = errors.New("unauthorized: invalid operator token")

	// ErrNotFound indicates the requested node does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrRateLimited indicates the request was rate limited by the server.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrBadRequest indicates the request was rejected as invalid.
	ErrBadRequest = errors.New("bad request")

	// ErrUnavailable indicates the bot is in maintenance or deactivated.
	ErrUnavailable = errors.New("service unavailable")

	// ErrServerError indicates an internal server error occurred.
	ErrServerError = errors.New("internal server error")

	// ErrMissingAuth indicates an admin call was made without an operator token.
	ErrMissingAuth = errors.New("missing operator token")
)

// APIError is a non-2xx answer from a node.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, msg)
}

// Unwrap maps the status code to one of the package errors.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode == http.StatusServiceUnavailable:
		return ErrUnavailable
	case e.StatusCode >= 500:
		return ErrServerError
	case e.StatusCode >= 400:
		return ErrBadRequest
	}
	return nil
}
