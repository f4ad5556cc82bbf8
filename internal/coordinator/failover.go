package coordinator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yaroslav/modekeeper/internal/logging"
	"github.com/yaroslav/modekeeper/internal/metrics"
	"github.com/yaroslav/modekeeper/models"
)

// Leader returns the node that should be active: the first name in order
// whose row exists, is not disabled, is not handing off and has a heartbeat
// no older than staleAfter. An empty order makes local the only candidate.
// The empty string means nobody qualifies.
func Leader(order []string, local string, nodes []models.ClusterNode, now time.Time, staleAfter time.Duration) string {
	if len(order) == 0 {
		order = []string{local}
	}

	rows := make(map[string]models.ClusterNode, len(nodes))
	for _, n := range nodes {
		rows[n.Name] = n
	}

	for _, name := range order {
		row, ok := rows[name]
		if !ok || row.Disabled || row.Transferring {
			continue
		}
		if !row.Fresh(now, staleAfter) {
			continue
		}
		return name
	}
	return ""
}

// failover moves the local row one step towards what the leader rule
// wants and returns whether the local node is active afterwards.
//
// Only the local row is written. A node that should give up the active
// flag marks itself transferring for one tick before releasing it, so
// the row passes through TRANSFERRING on the way back to STANDBY.
func (c *Coordinator) failover(ctx context.Context, now time.Time, nodes []models.ClusterNode) (bool, error) {
	local := c.config.NodeName

	var self *models.ClusterNode
	for i := range nodes {
		if nodes[i].Name == local {
			self = &nodes[i]
			break
		}
	}
	if self == nil {
		return false, fmt.Errorf("%w: %s", models.ErrNodeNotFound, local)
	}

	leader := Leader(c.config.NodeOrder, local, nodes, now, c.config.StaleAfter)

	switch {
	case self.Transferring:
		if _, err := c.registry.ResetTransientFields(ctx, local); err != nil {
			return self.Active, fmt.Errorf("failed to release active flag: %w", err)
		}
		c.logger.Info("released active flag",
			zap.String(logging.FieldNode, local),
			zap.String("leader", leader),
		)
		return false, nil

	case leader == local && !self.Active:
		if _, err := c.registry.UpdateActive(ctx, local, true); err != nil {
			return false, fmt.Errorf("failed to claim active flag: %w", err)
		}
		c.logger.Info("claimed active flag", zap.String(logging.FieldNode, local))
		return true, nil

	case leader != local && self.Active:
		if _, err := c.registry.SetTransferring(ctx, local, true); err != nil {
			return true, fmt.Errorf("failed to start handoff: %w", err)
		}
		c.logger.Info("handing off active flag",
			zap.String(logging.FieldNode, local),
			zap.String("leader", leader),
		)
		return true, nil
	}

	return self.Active, nil
}

func recordNodeStates(nodes []models.ClusterNode) {
	counts := map[models.NodeState]int{
		models.NodeStateStandby:      0,
		models.NodeStateActive:       0,
		models.NodeStateTransferring: 0,
	}
	for i := range nodes {
		counts[nodes[i].State()]++
	}
	for state, n := range counts {
		metrics.ClusterNodes.WithLabelValues(string(state)).Set(float64(n))
	}
}
