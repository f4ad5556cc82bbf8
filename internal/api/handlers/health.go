package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yaroslav/modekeeper/models"
)

// readinessTimeout bounds the database ping of a readiness probe.
const readinessTimeout = 2 * time.Second

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
//
// This handler provides liveness and readiness checks for orchestrator
// and load balancer health monitoring.
type HealthHandler struct {
	db       Pinger
	nodeName string
}

// NewHealthHandler creates a new health check handler.
//
// Parameters:
//   - db: Database pinger for readiness checks
//   - nodeName: This node's registry name
func NewHealthHandler(db Pinger, nodeName string) *HealthHandler {
	return &HealthHandler{
		db:       db,
		nodeName: nodeName,
	}
}

// Liveness handles GET /health/live.
//
// This endpoint always returns 200 OK as long as the HTTP server is running.
func (h *HealthHandler) Liveness(c *gin.Context) {
	respondSuccess(c, http.StatusOK, models.HealthResponse{
		Status: "ok",
		Node:   h.nodeName,
	})
}

// Readiness handles GET /health/ready.
//
// Returns:
//   - 200 OK if the database answers a ping
//   - 503 Service Unavailable otherwise
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		respondError(c, http.StatusServiceUnavailable, "unhealthy", "Database unavailable")
		return
	}

	respondSuccess(c, http.StatusOK, models.HealthResponse{
		Status:   "ready",
		Node:     h.nodeName,
		Database: "connected",
	})
}
