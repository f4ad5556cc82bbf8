package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/yaroslav/modekeeper/internal/api"
	"github.com/yaroslav/modekeeper/internal/config"
	"github.com/yaroslav/modekeeper/internal/coordinator"
	"github.com/yaroslav/modekeeper/internal/logging"
	"github.com/yaroslav/modekeeper/internal/metrics"
	"github.com/yaroslav/modekeeper/internal/probe"
	"github.com/yaroslav/modekeeper/internal/registry"
	"github.com/yaroslav/modekeeper/internal/settings"
	"github.com/yaroslav/modekeeper/internal/storage"
	"github.com/yaroslav/modekeeper/models"
	"github.com/yaroslav/modekeeper/pkg/token"
)

const (
	poolStatsInterval = 30 * time.Second
	shutdownTimeout   = 10 * time.Second
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a modekeeper node",
	Long: `Run the mode coordinator for this node.

The node will:
  - Resolve its mode from the health probe files
  - Stay idle without touching the registry if the mode is stopped or killed
  - Otherwise register, heartbeat every tick and take part in failover
  - Serve /status, /metrics and the operator API on the listen address
  - Release its active flag on SIGTERM/SIGINT

Configuration comes from defaults, the --config file, environment
variables (CLUSTER_NODE, CLUSTER_NODE_ORDER, DB_*, POOL_*, ...) and
finally the flags below.`,
	RunE: runNode,
}

func init() {
	rootCmd.AddCommand(runCmd)
	bindRunFlags(runCmd.Flags())
}

// bindRunFlags declares the configuration overrides accepted by run.
func bindRunFlags(f *pflag.FlagSet) {
	f.String("node", "", "Node name (default: host name)")
	f.StringSlice("order", nil, "Failover priority order, most preferred first")
	f.String("health-path", "", "Local health probe file")
	f.String("volume-path", "", "Shared volume probe file or directory")
	f.String("probe-backend", "", "Probe backend (file, badger)")
	f.Duration("tick", 0, "Heartbeat tick interval")
	f.String("db-driver", "", "Database driver (mysql, postgres, sqlite)")
	f.String("db-dsn", "", "Database DSN (overrides host/port/database)")
	f.String("listen", "", "HTTP listen address (empty string disables the API)")
	f.String("log-level", "", "Log level (debug, info, warn, error)")
	f.String("log-format", "", "Log format (json, console)")
}

// applyRunFlags copies explicitly set flags over cfg.
func applyRunFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	var errs []error
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			v, err := flags.GetString(name)
			errs = append(errs, err)
			*dst = v
		}
	}

	str("node", &cfg.Node.Name)
	if flags.Changed("order") {
		order, err := flags.GetStringSlice("order")
		errs = append(errs, err)
		cfg.Node.Order = config.SplitList(strings.Join(order, ","))
	}
	str("health-path", &cfg.Probes.HealthPath)
	str("volume-path", &cfg.Probes.VolumePath)
	str("probe-backend", &cfg.Probes.Backend)
	if flags.Changed("tick") {
		tick, err := flags.GetDuration("tick")
		errs = append(errs, err)
		cfg.Coordinator.TickInterval = tick
	}
	str("db-driver", &cfg.Database.Driver)
	str("db-dsn", &cfg.Database.DSN)
	str("listen", &cfg.HTTP.ListenAddr)
	str("log-level", &cfg.Log.Level)
	str("log-format", &cfg.Log.Format)

	return errors.Join(errs...)
}

// probeTargets lists the probe targets in read order.
func probeTargets(cfg *config.Config) []string {
	targets := []string{cfg.Probes.HealthPath}
	if cfg.Probes.VolumePath != "" {
		targets = append(targets, cfg.Probes.VolumePath)
	}
	return targets
}

func runNode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd.Flags(), cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = logging.Format(cfg.Log.Format)
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("modekeeper starting",
		zap.String("version", Version),
		zap.String("commit", Commit),
		zap.String(logging.FieldNode, cfg.Node.Name),
		zap.Strings("order", cfg.Node.Order),
		zap.Duration("tick", cfg.Coordinator.TickInterval),
	)

	metrics.MustInit()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", zap.Error(err))
		return err
	}
	defer func() { _ = storage.Close(db) }()

	guard := storage.NewGuard(db, logger)

	reg := registry.New(guard, logger)
	if err := reg.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate registry: %w", err)
	}

	modes, err := settings.New(guard, logger, cfg.CacheTTL)
	if err != nil {
		return err
	}
	defer modes.Close()
	if err := modes.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate settings: %w", err)
	}

	probes, closeProbes, err := openProbes(cfg, logger)
	if err != nil {
		return err
	}
	defer closeProbes()

	board := api.NewStatusBoard()
	coord := coordinator.New(cfg.ForCoordinator(), probes, reg, modes, logger,
		coordinator.WithPresence(board),
	)

	var server *http.Server
	if cfg.HTTP.ListenAddr != "" {
		router := api.SetupRouter(ctx, &api.RouterConfig{
			Logger:      logger,
			NodeName:    cfg.Node.Name,
			DB:          guard,
			Coordinator: coord,
			Board:       board,
			Nodes:       reg,
			StaleAfter:  cfg.EffectiveStaleAfter(),
			Operator:    token.NewVerifier(cfg.HTTP.HMACSecret, cfg.HTTP.OperatorTokenHash),
		})
		server = &http.Server{
			Addr:              cfg.HTTP.ListenAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("server listening", zap.String("addr", cfg.HTTP.ListenAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server failed", zap.Error(err))
				stop()
			}
		}()
	}

	go reportPoolStats(ctx, guard)

	runErr := coord.Run(ctx)

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown failed", zap.Error(err))
		}
	}

	if errors.Is(runErr, models.ErrDeactivated) {
		logger.Info("modekeeper stopped while deactivated")
		return nil
	}
	if runErr != nil {
		logger.Error("coordinator failed", zap.Error(runErr))
		return runErr
	}

	logger.Info("modekeeper stopped")
	return nil
}

// openProbes builds the configured probe backend and its cleanup.
func openProbes(cfg *config.Config, logger *zap.Logger) (probe.Store, func(), error) {
	targets := probeTargets(cfg)

	if cfg.Probes.Backend == config.ProbeBackendBadger {
		store, err := probe.OpenBadgerStore(cfg.Probes.BadgerDir, logger, targets...)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("failed to close probe store", zap.Error(err))
			}
		}, nil
	}

	return probe.NewFileStore(logger, targets...), func() {}, nil
}

func reportPoolStats(ctx context.Context, guard *storage.Guard) {
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()

	for {
		guard.ReportPoolStats()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
