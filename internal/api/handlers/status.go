package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yaroslav/modekeeper/internal/coordinator"
	"github.com/yaroslav/modekeeper/models"
)

// ModeView exposes the coordinator state to the status board.
type ModeView interface {
	Snapshot() coordinator.Snapshot
}

// PresenceView returns the presence last shown to users.
type PresenceView interface {
	Presence() (status coordinator.PresenceStatus, activity string)
}

// StatusHandler serves the node status board.
type StatusHandler struct {
	modes    ModeView
	presence PresenceView
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(modes ModeView, presence PresenceView) *StatusHandler {
	return &StatusHandler{modes: modes, presence: presence}
}

// Status handles GET /status.
func (h *StatusHandler) Status(c *gin.Context) {
	snap := h.modes.Snapshot()
	status, activity := h.presence.Presence()

	respondSuccess(c, http.StatusOK, models.StatusResponse{
		Node:        snap.Node,
		Mode:        snap.Mode,
		Activity:    activity,
		Presence:    string(status),
		Active:      snap.Active,
		Deactivated: snap.Mode.Deactivated(),
	})
}
