// Package registry provides transactional access to the cluster node table.
//
// Every operation runs in its own session through the storage guard, so
// concurrent calls for the same node from overlapping ticks each re-read,
// get-or-create and write a single row. No cross-row invariant is enforced
// here; whether exactly one node is active is the caller's policy.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yaroslav/modekeeper/internal/logging"
	"github.com/yaroslav/modekeeper/internal/storage"
	"github.com/yaroslav/modekeeper/models"
)

// MaxNodeNameLength matches the width of the primary key column.
const MaxNodeNameLength = 64

// Registry provides operations over models.ClusterNode rows.
type Registry struct {
	guard  *storage.Guard
	logger *zap.Logger

	// For testing - allow overriding time functions
	now func() time.Time
}

// Option customises a Registry.
type Option func(*Registry)

// WithClock overrides the clock used for heartbeat timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates a new cluster registry.
//
// Parameters:
//   - guard: Storage guard every session runs through
//   - logger: Zap logger for structured logging
//
// Returns:
//   - Configured Registry
func New(guard *storage.Guard, logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		guard:  guard,
		logger: logging.Component(logger, "registry"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Migrate creates or updates the cluster_node table.
func (r *Registry) Migrate(ctx context.Context) error {
	err := r.guard.Session(ctx, "cluster_node.migrate", func(db *gorm.DB) error {
		return db.AutoMigrate(&models.ClusterNode{})
	})
	if err != nil {
		return fmt.Errorf("failed to migrate cluster_node: %w", err)
	}
	return nil
}

// NormalizeName lower-cases and trims a node name and validates its length.
func NormalizeName(name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || len(key) > MaxNodeNameLength {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidNodeName, name)
	}
	return key, nil
}

// Create inserts a new row for name.
//
// Parameters:
//   - name: Node name (stored lower-cased)
//   - active: Initial active flag
//
// Returns:
//   - *models.ClusterNode: The inserted row
//   - error: Any error that occurred, including a duplicate key
func (r *Registry) Create(ctx context.Context, name string, active bool) (*models.ClusterNode, error) {
	var row *models.ClusterNode
	err := r.guard.Run(ctx, "cluster_node.create", func(tx *gorm.DB) error {
		var err error
		row, err = r.create(tx, name, active)
		return err
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// ResetTransientFields marks the node as freshly started: heartbeat now,
// not active, not transferring. The row is created if missing.
//
// A node calls this on startup so it is never assumed active until it
// proves itself on a tick.
func (r *Registry) ResetTransientFields(ctx context.Context, name string) (*models.ClusterNode, error) {
	return r.mutate(ctx, "cluster_node.reset", name, false, func(row *models.ClusterNode) {
		row.LastHeartbeat = r.now()
		row.Active = false
		row.Transferring = false
	})
}

// UpdateActive refreshes the heartbeat and sets the active flag.
// The row is created with the given flag if missing.
func (r *Registry) UpdateActive(ctx context.Context, name string, active bool) (*models.ClusterNode, error) {
	return r.mutate(ctx, "cluster_node.update_active", name, active, func(row *models.ClusterNode) {
		row.LastHeartbeat = r.now()
		row.Active = active
	})
}

// TouchHeartbeat refreshes the heartbeat only.
func (r *Registry) TouchHeartbeat(ctx context.Context, name string) (*models.ClusterNode, error) {
	return r.mutate(ctx, "cluster_node.touch", name, false, func(row *models.ClusterNode) {
		row.LastHeartbeat = r.now()
	})
}

// SetTransferring flags or clears a handoff on the row.
//
// Besides the owning node's own failover step this is the hook for the
// out-of-band administrative "force transfer" action.
func (r *Registry) SetTransferring(ctx context.Context, name string, transferring bool) (*models.ClusterNode, error) {
	return r.mutate(ctx, "cluster_node.set_transferring", name, false, func(row *models.ClusterNode) {
		row.Transferring = transferring
	})
}

// SetDisabled sets the operator override that removes a node from
// failover candidacy.
func (r *Registry) SetDisabled(ctx context.Context, name string, disabled bool) (*models.ClusterNode, error) {
	return r.mutate(ctx, "cluster_node.set_disabled", name, false, func(row *models.ClusterNode) {
		row.Disabled = disabled
	})
}

// GetAll returns every row in storage order.
func (r *Registry) GetAll(ctx context.Context) ([]models.ClusterNode, error) {
	var rows []models.ClusterNode
	err := r.guard.Run(ctx, "cluster_node.get_all", func(tx *gorm.DB) error {
		return tx.Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cluster nodes: %w", err)
	}
	return rows, nil
}

// Get looks up a row without creating it. A missing row yields (nil, nil).
func (r *Registry) Get(ctx context.Context, name string) (*models.ClusterNode, error) {
	key, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}

	var row *models.ClusterNode
	err = r.guard.Run(ctx, "cluster_node.get", func(tx *gorm.DB) error {
		row, err = find(tx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Stale returns rows whose heartbeat is older than cutoff, oldest first.
func (r *Registry) Stale(ctx context.Context, cutoff time.Time) ([]models.ClusterNode, error) {
	var rows []models.ClusterNode
	err := r.guard.Run(ctx, "cluster_node.stale", func(tx *gorm.DB) error {
		return tx.Where(heartbeatBefore(cutoff)).
			Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}}).
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list stale cluster nodes: %w", err)
	}
	return rows, nil
}

// Prune deletes rows whose heartbeat is older than cutoff. Active rows are
// kept regardless of age. This is an operator action; nodes never delete
// rows themselves.
func (r *Registry) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.guard.Run(ctx, "cluster_node.prune", func(tx *gorm.DB) error {
		res := tx.Where(heartbeatBefore(cutoff)).
			Where(clause.Eq{Column: clause.Column{Name: "active"}, Value: false}).
			Delete(&models.ClusterNode{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune cluster nodes: %w", err)
	}

	r.logger.Info("pruned stale cluster nodes",
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", deleted),
	)
	return deleted, nil
}

// mutate runs get-or-create followed by apply and a save in one session.
func (r *Registry) mutate(ctx context.Context, op, name string, createActive bool, apply func(*models.ClusterNode)) (*models.ClusterNode, error) {
	key, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}

	var row *models.ClusterNode
	err = r.guard.Run(ctx, op, func(tx *gorm.DB) error {
		row, err = find(tx, key)
		if err != nil {
			return err
		}
		if row == nil {
			if row, err = r.insertOrLoad(tx, key, createActive); err != nil {
				return err
			}
		}

		apply(row)
		return tx.Save(row).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, key, err)
	}

	r.logger.Debug("cluster node updated",
		zap.String(logging.FieldOperation, op),
		zap.String(logging.FieldNode, row.Name),
		zap.Bool("active", row.Active),
		zap.Bool("transferring", row.Transferring),
	)
	return row, nil
}

func (r *Registry) create(tx *gorm.DB, name string, active bool) (*models.ClusterNode, error) {
	key, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}

	row := r.newRow(key, active)
	if err := tx.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create cluster node %s: %w", key, err)
	}

	r.logRegistered(row)
	return row, nil
}

// insertOrLoad inserts a row for key. When another session inserted the
// same key first, that row is loaded with a locking read instead.
func (r *Registry) insertOrLoad(tx *gorm.DB, key string, active bool) (*models.ClusterNode, error) {
	row := r.newRow(key, active)
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create cluster node %s: %w", key, result.Error)
	}
	if result.RowsAffected > 0 {
		r.logRegistered(row)
		return row, nil
	}

	existing, err := find(tx.Clauses(clause.Locking{Strength: "UPDATE"}), key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("cluster node %s not found after insert conflict", key)
	}
	return existing, nil
}

func (r *Registry) newRow(key string, active bool) *models.ClusterNode {
	return &models.ClusterNode{
		Name:          key,
		LastHeartbeat: r.now(),
		Active:        active,
		Disabled:      false,
		Transferring:  false,
	}
}

func (r *Registry) logRegistered(row *models.ClusterNode) {
	r.logger.Info("registered new cluster node",
		zap.String(logging.FieldNode, row.Name),
		zap.Bool("active", row.Active),
	)
}

// heartbeatBefore quotes the column, which is a keyword in some dialects.
func heartbeatBefore(cutoff time.Time) clause.Expression {
	return clause.Lt{Column: clause.Column{Name: "timestamp"}, Value: cutoff}
}

func find(tx *gorm.DB, key string) (*models.ClusterNode, error) {
	var row models.ClusterNode
	err := tx.Where("node_name = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cluster node %s: %w", key, err)
	}
	return &row, nil
}
