package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yaroslav/modekeeper/internal/logging"
	"github.com/yaroslav/modekeeper/internal/metrics"
	"github.com/yaroslav/modekeeper/internal/probe"
	"github.com/yaroslav/modekeeper/models"
)

// stopTimeout bounds the registry write made while shutting down.
const stopTimeout = 5 * time.Second

// Coordinator owns the effective mode of this process.
//
// A single Coordinator is created at startup and handed to every
// component that needs to consult or change the mode.
type Coordinator struct {
	config   Config
	probes   probe.Store
	registry Registry
	modes    ModeStore
	presence Presence
	logger   *zap.Logger

	mu          sync.RWMutex
	mode        models.Mode
	active      bool
	deactivated bool
	decision    Decision
	lastTick    time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// For testing - allow overriding time functions
	now func() time.Time
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the clock used for heartbeats and staleness.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithPresence sets where presence updates are sent.
func WithPresence(p Presence) Option {
	return func(c *Coordinator) {
		c.presence = p
	}
}

// New creates a new coordinator. The mode starts as NORMAL until
// Reconcile runs.
//
// Parameters:
//   - config: Coordinator configuration; zero durations take defaults
//   - probes: Probe store for signals, status and heartbeats
//   - registry: Cluster registry for heartbeats and failover
//   - modes: Settings store the mode token is persisted to
//   - logger: Zap logger for structured logging
//
// Returns:
//   - Configured Coordinator
func New(config Config, probes probe.Store, registry Registry, modes ModeStore, logger *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		config:   config.normalized(),
		probes:   probes,
		registry: registry,
		modes:    modes,
		presence: nopPresence{},
		logger:   logging.Component(logger, "coordinator"),
		mode:     models.ModeNormal,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NodeName returns the lower-cased local node name.
func (c *Coordinator) NodeName() string {
	return c.config.NodeName
}

// Mode returns the effective mode.
func (c *Coordinator) Mode() models.Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// IsActive reports whether the last tick left this node active.
func (c *Coordinator) IsActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Snapshot is a point-in-time view of the coordinator.
type Snapshot struct {
	Node     string
	Mode     models.Mode
	Active   bool
	Triggers []string
	LastTick time.Time
}

// Snapshot returns the current state for status reporting.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Node:     c.config.NodeName,
		Mode:     c.mode,
		Active:   c.active,
		Triggers: c.decision.Locations(),
		LastTick: c.lastTick,
	}
}

// Deactivated reports whether Start entered the deactivated state.
func (c *Coordinator) Deactivated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deactivated
}

// Admit decides whether a request may be served in the current mode.
// Privileged callers bypass maintenance but not deactivation.
func (c *Coordinator) Admit(privileged bool) error {
	if c.Deactivated() {
		return models.ErrDeactivated
	}
	switch mode := c.Mode(); {
	case mode.Deactivated():
		return models.ErrDeactivated
	case mode == models.ModeMaintenance && !privileged:
		return models.ErrMaintenance
	default:
		return nil
	}
}

// Reconcile reads every probe and sets the mode to the most severe
// candidate, starting from NORMAL.
func (c *Coordinator) Reconcile(ctx context.Context) Decision {
	decision := Decision{Mode: models.ModeNormal}
	for _, signal := range c.probes.ReadSignals(ctx) {
		if len(signal.Modes) == 0 {
			continue
		}
		decision.Triggers = append(decision.Triggers, signal)
		decision.Mode = models.MostSevere(decision.Mode, models.MostSevereOf(signal.Modes...))
	}

	c.mu.Lock()
	previous := c.mode
	c.mode = decision.Mode
	c.decision = decision
	c.mu.Unlock()

	c.recordMode(previous, decision.Mode)
	c.logger.Info("mode reconciled from probes",
		zap.String(logging.FieldMode, decision.Mode.Token()),
		zap.Strings(logging.FieldTargets, decision.Locations()),
	)
	return decision
}

// Start reconciles the mode and, unless the process is deactivated,
// starts the heartbeat and status loops.
//
// A deactivated start shows the deactivated presence, warns the operator
// and returns models.ErrDeactivated. No loop is started and the registry
// is not touched.
func (c *Coordinator) Start(ctx context.Context) error {
	decision := c.Reconcile(ctx)
	if decision.Mode.Deactivated() {
		c.deactivate(ctx, decision)
		return models.ErrDeactivated
	}

	if _, err := c.registry.ResetTransientFields(ctx, c.config.NodeName); err != nil {
		return fmt.Errorf("failed to reset cluster node %s: %w", c.config.NodeName, err)
	}

	c.showPresence(ctx, decision.Mode)
	if err := c.WriteStatus(ctx, c.startupText()); err != nil {
		c.logger.Error("failed to persist mode", zap.Error(err))
	}
	c.runTick(ctx)

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(2)
	go c.heartbeatLoop(loopCtx)
	go c.statusLoop(loopCtx)

	c.logger.Info("coordinator started",
		zap.String(logging.FieldNode, c.config.NodeName),
		zap.Strings("node_order", c.config.NodeOrder),
		zap.Duration("tick_interval", c.config.TickInterval),
		zap.Duration("stale_after", c.config.StaleAfter),
	)
	return nil
}

// Stop ends the loops and releases the active flag so the next node in
// order can take over without waiting for this heartbeat to go stale.
func (c *Coordinator) Stop() error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	c.wg.Wait()
	c.cancel = nil

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if _, err := c.registry.ResetTransientFields(ctx, c.config.NodeName); err != nil {
		c.logger.Error("failed to release cluster node",
			zap.String(logging.FieldNode, c.config.NodeName),
			zap.Error(err),
		)
		return err
	}
	c.setActive(false)

	c.logger.Info("coordinator stopped", zap.String(logging.FieldNode, c.config.NodeName))
	return nil
}

// Run starts the coordinator and blocks until ctx is done.
//
// In the deactivated state Run idles until ctx is done and then returns
// models.ErrDeactivated. There is no automatic way out of it.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		if errors.Is(err, models.ErrDeactivated) {
			<-ctx.Done()
		}
		return err
	}

	<-ctx.Done()
	return c.Stop()
}

// SetMode changes the effective mode and publishes it.
//
// A coordinator that started deactivated refuses every change with
// models.ErrDeactivated; only clearing the probes and restarting leaves
// that state.
func (c *Coordinator) SetMode(ctx context.Context, mode models.Mode, text string) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", models.ErrUnknownMode, mode)
	}

	c.mu.Lock()
	if c.deactivated {
		c.mu.Unlock()
		return models.ErrDeactivated
	}
	previous := c.mode
	c.mode = mode
	c.mu.Unlock()

	c.recordMode(previous, mode)
	c.logger.Info("mode changed",
		zap.String(logging.FieldPreviousMode, previous.Token()),
		zap.String(logging.FieldMode, mode.Token()),
	)

	c.showPresence(ctx, mode)
	return c.WriteStatus(ctx, text)
}

// WriteStatus persists the mode token and writes it to every probe.
//
// Probe failures never abort the remaining probes. The returned error
// only reports a failure to persist the token in the settings store.
func (c *Coordinator) WriteStatus(ctx context.Context, text string) error {
	mode := c.Mode()

	var storeErr error
	if err := c.modes.SetMode(ctx, mode); err != nil {
		storeErr = fmt.Errorf("failed to store mode: %w", err)
	}

	for _, target := range c.probes.Targets() {
		err := c.probes.WriteStatus(ctx, target, mode, text)
		switch {
		case err == nil:
		case errors.Is(err, fs.ErrPermission):
			c.logger.Error("permission denied for status probe",
				zap.String(logging.FieldTarget, target),
				zap.Error(err),
			)
			c.logger.Warn("status probe is not writable, killing the bot through the supervisor might not work",
				zap.String(logging.FieldTarget, target),
			)
		default:
			c.logger.Error("failed to write status probe",
				zap.String(logging.FieldTarget, target),
				zap.Error(err),
			)
		}
	}

	return storeErr
}

// Tick heartbeats the local node and runs one failover step.
func (c *Coordinator) Tick(ctx context.Context) error {
	now := c.now()
	local := c.config.NodeName

	if _, err := c.registry.TouchHeartbeat(ctx, local); err != nil {
		return fmt.Errorf("failed to touch heartbeat: %w", err)
	}

	if err := c.probes.WriteHeartbeat(ctx, c.config.HeartbeatTarget, now); err != nil {
		c.logger.Warn("failed to write liveness probe",
			zap.String(logging.FieldTarget, c.config.HeartbeatTarget),
			zap.Error(err),
		)
	}

	nodes, err := c.registry.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cluster nodes: %w", err)
	}
	recordNodeStates(nodes)

	active, err := c.failover(ctx, now, nodes)
	if err != nil {
		return err
	}
	c.setActive(active)

	c.mu.Lock()
	c.lastTick = now
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) deactivate(ctx context.Context, decision Decision) {
	c.mu.Lock()
	c.deactivated = true
	c.mu.Unlock()

	c.showPresence(ctx, decision.Mode)
	c.logger.Warn("bot deactivated: clear the contents of the listed files and restart to continue. "+
		"Do NOT delete the files themselves, it breaks the volume or the health check",
		zap.String(logging.FieldMode, decision.Mode.Token()),
		zap.Strings(logging.FieldTargets, decision.Locations()),
	)
}

func (c *Coordinator) heartbeatLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("heartbeat loop stopped")
			return

		case <-ticker.C:
			c.runTick(ctx)
		}
	}
}

func (c *Coordinator) statusLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("status loop stopped")
			return

		case <-ticker.C:
			if err := c.WriteStatus(ctx, c.startupText()); err != nil {
				c.logger.Error("failed to persist mode", zap.Error(err))
			}
		}
	}
}

func (c *Coordinator) runTick(ctx context.Context) {
	start := time.Now()
	err := c.Tick(ctx)
	metrics.HeartbeatDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.HeartbeatErrors.Inc()
		c.logger.Error("coordinator tick failed",
			zap.String(logging.FieldNode, c.config.NodeName),
			zap.Error(err),
		)
		return
	}
	metrics.LastHeartbeat.Set(float64(c.now().Unix()))
}

func (c *Coordinator) showPresence(ctx context.Context, mode models.Mode) {
	if err := c.presence.SetPresence(ctx, PresenceFor(mode), mode.Activity()); err != nil {
		c.logger.Warn("failed to update presence", zap.Error(err))
	}
}

func (c *Coordinator) setActive(active bool) {
	c.mu.Lock()
	c.active = active
	c.mu.Unlock()

	value := 0.0
	if active {
		value = 1
	}
	metrics.NodeActive.Set(value)
}

func (c *Coordinator) recordMode(previous, current models.Mode) {
	tokens := make([]string, 0, 4)
	for _, m := range models.AllModes() {
		tokens = append(tokens, m.Token())
	}
	metrics.SetMode(current.Token(), tokens)
	if previous != current {
		metrics.ModeTransitions.WithLabelValues(previous.Token(), current.Token()).Inc()
	}
}

// startupText must not contain a mode token. Probes are scanned for tokens
// anywhere in their content, so it leaves out the node name.
func (c *Coordinator) startupText() string {
	return "updated " + c.now().UTC().Format(time.RFC3339)
}

type nopPresence struct{}

func (nopPresence) SetPresence(context.Context, PresenceStatus, string) error {
	return nil
}
