// Package coordinator runs the bot's mode decision and cluster failover
// loop.
//
// At startup the coordinator reconciles probe signals into an effective
// mode. A STOPPED or KILLED outcome parks the process in a deactivated
// state that only an operator can leave. Otherwise the coordinator resets
// its registry row, publishes its status and heartbeats on a fixed tick,
// claiming or releasing the active flag according to the configured node
// order.
package coordinator

import (
	"context"
	"strings"
	"time"

	"github.com/yaroslav/modekeeper/internal/probe"
	"github.com/yaroslav/modekeeper/models"
)

const (
	// DefaultTickInterval is how often the node heartbeats.
	// Default: 10 seconds
	DefaultTickInterval = 10 * time.Second

	// StaleMultiplier is applied to the tick interval when no explicit
	// staleness threshold is configured.
	// Default: 3x (30 seconds with default tick)
	StaleMultiplier = 3

	// DefaultStatusInterval is how often the status probes are rewritten.
	// Default: 5 minutes
	DefaultStatusInterval = 5 * time.Minute

	// DefaultHeartbeatTarget is the liveness probe written on every tick.
	DefaultHeartbeatTarget = "health"
)

// Config holds configuration for the coordinator.
type Config struct {
	// NodeName is this instance's registry key.
	NodeName string

	// NodeOrder is the failover priority, most preferred first.
	// Empty means this node is the only candidate.
	NodeOrder []string

	// TickInterval is how often to heartbeat and re-run failover.
	TickInterval time.Duration

	// StaleAfter is how old a heartbeat may be before the node stops
	// being a failover candidate.
	StaleAfter time.Duration

	// StatusInterval is how often to rewrite the status probes.
	StatusInterval time.Duration

	// HeartbeatTarget is the probe target that receives liveness stamps.
	HeartbeatTarget string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig(nodeName string, order []string) *Config {
	return &Config{
		NodeName:        nodeName,
		NodeOrder:       order,
		TickInterval:    DefaultTickInterval,
		StaleAfter:      StaleMultiplier * DefaultTickInterval,
		StatusInterval:  DefaultStatusInterval,
		HeartbeatTarget: DefaultHeartbeatTarget,
	}
}

// normalized fills zero values and lower-cases names.
func (c Config) normalized() Config {
	c.NodeName = strings.ToLower(strings.TrimSpace(c.NodeName))

	order := make([]string, 0, len(c.NodeOrder))
	for _, name := range c.NodeOrder {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			order = append(order, name)
		}
	}
	c.NodeOrder = order

	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = StaleMultiplier * c.TickInterval
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = DefaultStatusInterval
	}
	if c.HeartbeatTarget == "" {
		c.HeartbeatTarget = DefaultHeartbeatTarget
	}
	return c
}

// Decision is the outcome of startup reconciliation.
type Decision struct {
	// Mode is the most severe mode any probe proposed, NORMAL if none.
	Mode models.Mode

	// Triggers are the probes that proposed at least one mode.
	Triggers []probe.Signal
}

// Locations returns the trigger locations in probe order.
func (d Decision) Locations() []string {
	locations := make([]string, 0, len(d.Triggers))
	for _, t := range d.Triggers {
		locations = append(locations, t.Location)
	}
	return locations
}

// PresenceStatus is the coarse online state shown next to the activity.
type PresenceStatus string

const (
	PresenceOnline       PresenceStatus = "online"
	PresenceIdle         PresenceStatus = "idle"
	PresenceDoNotDisturb PresenceStatus = "dnd"
)

// PresenceFor maps a mode to the presence status shown for it.
func PresenceFor(mode models.Mode) PresenceStatus {
	switch {
	case mode.Deactivated():
		return PresenceIdle
	case mode == models.ModeMaintenance:
		return PresenceDoNotDisturb
	default:
		return PresenceOnline
	}
}

// Presence displays the bot's status to users of the chat platform.
type Presence interface {
	SetPresence(ctx context.Context, status PresenceStatus, activity string) error
}

// Registry is the subset of the cluster registry the coordinator drives.
type Registry interface {
	ResetTransientFields(ctx context.Context, name string) (*models.ClusterNode, error)
	UpdateActive(ctx context.Context, name string, active bool) (*models.ClusterNode, error)
	TouchHeartbeat(ctx context.Context, name string) (*models.ClusterNode, error)
	SetTransferring(ctx context.Context, name string, transferring bool) (*models.ClusterNode, error)
	GetAll(ctx context.Context) ([]models.ClusterNode, error)
}

// ModeStore persists the current mode for other processes to read.
type ModeStore interface {
	SetMode(ctx context.Context, mode models.Mode) error
}
