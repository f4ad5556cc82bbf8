package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yaroslav/modekeeper/internal/api/middleware"
	"github.com/yaroslav/modekeeper/internal/logging"
	"github.com/yaroslav/modekeeper/models"
)

// ModeSetter changes the effective mode.
type ModeSetter interface {
	SetMode(ctx context.Context, mode models.Mode, text string) error
}

// ModeHandler handles operator mode changes.
type ModeHandler struct {
	modes ModeSetter
}

// NewModeHandler creates a new mode handler.
func NewModeHandler(modes ModeSetter) *ModeHandler {
	return &ModeHandler{modes: modes}
}

// SetMode handles POST /api/v1/mode.
//
// Request body: {"mode": "maintenance", "text": "optional operator text"}
//
// Returns:
//   - 200 OK with the new mode
//   - 400 Bad Request for a missing or unknown mode
//   - 500 if the mode could not be persisted
func (h *ModeHandler) SetMode(c *gin.Context) {
	var req models.ModeChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	mode, err := models.ParseMode(req.Mode)
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}

	if err := h.modes.SetMode(c.Request.Context(), mode, req.Text); err != nil {
		mapErrorToResponse(c, err)
		return
	}

	middleware.GetLogger(c).Info("mode changed by operator", zap.String(logging.FieldMode, mode.Token()))
	respondSuccess(c, http.StatusOK, gin.H{"mode": mode})
}
