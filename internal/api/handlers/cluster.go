package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yaroslav/modekeeper/internal/api/middleware"
	"github.com/yaroslav/modekeeper/internal/logging"
	"github.com/yaroslav/modekeeper/models"
)

// NodeStore is the registry surface used by the cluster endpoints.
type NodeStore interface {
	GetAll(ctx context.Context) ([]models.ClusterNode, error)
	Get(ctx context.Context, name string) (*models.ClusterNode, error)
	SetTransferring(ctx context.Context, name string, transferring bool) (*models.ClusterNode, error)
	SetDisabled(ctx context.Context, name string, disabled bool) (*models.ClusterNode, error)
}

// ClusterHandler handles cluster registry endpoints.
//
// Writes here are out-of-band operator actions on another node's row; the
// steady-state loop on each node only writes its own row.
type ClusterHandler struct {
	nodes      NodeStore
	staleAfter time.Duration

	// For testing - allow overriding time functions
	now func() time.Time
}

// NewClusterHandler creates a new cluster handler.
//
// Parameters:
//   - nodes: Cluster registry
//   - staleAfter: Heartbeat age after which a node is reported unhealthy
func NewClusterHandler(nodes NodeStore, staleAfter time.Duration) *ClusterHandler {
	return &ClusterHandler{
		nodes:      nodes,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// ListNodes handles GET /api/v1/cluster/nodes.
func (h *ClusterHandler) ListNodes(c *gin.Context) {
	rows, err := h.nodes.GetAll(c.Request.Context())
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}

	now := h.now()
	infos := make([]models.ClusterNodeInfo, 0, len(rows))
	for i := range rows {
		infos = append(infos, models.ClusterNodeInfo{
			ClusterNode: rows[i],
			State:       rows[i].State(),
			Healthy:     rows[i].Fresh(now, h.staleAfter),
		})
	}

	respondSuccess(c, http.StatusOK, models.ClusterNodeListResponse{
		Nodes: infos,
		Total: len(infos),
	})
}

// Transfer handles POST /api/v1/cluster/nodes/:name/transfer.
//
// The named node releases its active flag on its next tick.
func (h *ClusterHandler) Transfer(c *gin.Context) {
	h.update(c, "transfer", func(ctx context.Context, name string) (*models.ClusterNode, error) {
		return h.nodes.SetTransferring(ctx, name, true)
	})
}

// Disable handles POST /api/v1/cluster/nodes/:name/disable.
func (h *ClusterHandler) Disable(c *gin.Context) {
	h.update(c, "disable", func(ctx context.Context, name string) (*models.ClusterNode, error) {
		return h.nodes.SetDisabled(ctx, name, true)
	})
}

// Enable handles POST /api/v1/cluster/nodes/:name/enable.
func (h *ClusterHandler) Enable(c *gin.Context) {
	h.update(c, "enable", func(ctx context.Context, name string) (*models.ClusterNode, error) {
		return h.nodes.SetDisabled(ctx, name, false)
	})
}

// update applies fn to an existing row. Unknown names are rejected rather
// than registered.
func (h *ClusterHandler) update(c *gin.Context, action string, fn func(context.Context, string) (*models.ClusterNode, error)) {
	ctx := c.Request.Context()
	name := c.Param("name")

	existing, err := h.nodes.Get(ctx, name)
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}
	if existing == nil {
		mapErrorToResponse(c, models.ErrNodeNotFound)
		return
	}

	row, err := fn(ctx, name)
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}

	middleware.GetLogger(c).Info("cluster node updated by operator",
		zap.String(logging.FieldNode, row.Name),
		zap.String(logging.FieldOperation, action),
	)
	respondSuccess(c, http.StatusOK, models.ClusterNodeInfo{
		ClusterNode: *row,
		State:       row.State(),
		Healthy:     row.Fresh(h.now(), h.staleAfter),
	})
}
