package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yaroslav/modekeeper/internal/config"
	"github.com/yaroslav/modekeeper/internal/logging"
	"github.com/yaroslav/modekeeper/internal/registry"
	"github.com/yaroslav/modekeeper/internal/settings"
	"github.com/yaroslav/modekeeper/internal/storage"
	"github.com/yaroslav/modekeeper/models"
)

var utilVerbose bool

var utilCmd = &cobra.Command{
	Use:   "util",
	Short: "Maintenance utilities that work on the database directly",
}

var compactDBCmd = &cobra.Command{
	Use:   "compact-db",
	Short: "Compact and optimize the database",
	Args:  cobra.NoArgs,
	RunE:  runCompactDB,
}

var pruneNodesCmd = &cobra.Command{
	Use:   "prune-nodes",
	Short: "Remove registry rows of nodes that stopped heartbeating",
	Long: `Delete cluster registry rows whose heartbeat is older than --older-than.
Rows still flagged active are never deleted. Nodes never delete rows
themselves, so the registry grows with every node name ever used.`,
	Args: cobra.NoArgs,
	RunE: runPruneNodes,
}

func init() {
	utilCmd.PersistentFlags().BoolVarP(&utilVerbose, "verbose", "v", false, "Enable verbose output")

	compactDBCmd.Flags().Bool("analyze", true, "Refresh optimizer statistics after compaction")
	pruneNodesCmd.Flags().Duration("older-than", 24*time.Hour, "Remove rows with no heartbeat for this long")
	pruneNodesCmd.Flags().Bool("dry-run", false, "Preview deletions without modifying the database")

	utilCmd.AddCommand(compactDBCmd, pruneNodesCmd)
	rootCmd.AddCommand(utilCmd)
}

// openUtilDatabase loads the configuration and opens the database behind a
// storage guard.
func openUtilDatabase() (*config.Config, *zap.Logger, *storage.Guard, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	level := "info"
	if utilVerbose {
		level = "debug"
	}
	logger, err := logging.New(level, logging.FormatConsole)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := storage.Open(cfg.Database, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, nil, err
	}

	cleanup := func() {
		_ = storage.Close(db)
		_ = logger.Sync()
	}
	return cfg, logger, storage.NewGuard(db, logger), cleanup, nil
}

func runCompactDB(cmd *cobra.Command, args []string) error {
	analyze, _ := cmd.Flags().GetBool("analyze")

	cfg, logger, guard, cleanup, err := openUtilDatabase()
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	db := guard.DB().WithContext(cmd.Context())
	tables := []string{models.ClusterNode{}.TableName(), settings.Setting{}.TableName()}

	logger.Info("compacting database", zap.String("driver", cfg.Database.Driver))

	var statements []string
	switch cfg.Database.Driver {
	case storage.DriverSQLite:
		statements = []string{"VACUUM"}
		if analyze {
			statements = append(statements, "ANALYZE")
		}
	case storage.DriverPostgres:
		statements = []string{"VACUUM"}
		if analyze {
			statements = []string{"VACUUM ANALYZE"}
		}
	case storage.DriverMySQL:
		for _, table := range tables {
			statements = append(statements, fmt.Sprintf("OPTIMIZE TABLE `%s`", table))
		}
	}

	for _, stmt := range statements {
		fmt.Fprintf(out, "Running %s...\n", stmt)
		start := time.Now()
		err := guard.Session(cmd.Context(), "util.compact", func(db *gorm.DB) error {
			return db.Exec(stmt).Error
		})
		if err != nil {
			return fmt.Errorf("%s failed: %w", stmt, err)
		}
		logger.Debug("statement completed", zap.String("statement", stmt), zap.Duration("took", time.Since(start)))
	}

	fmt.Fprintln(out, "\nTable Statistics:")
	fmt.Fprintln(out, "=====================================")
	printTableCounts(cmd, db, logger, tables)

	fmt.Fprintln(out, "\nDatabase compaction completed successfully")
	return nil
}

func printTableCounts(cmd *cobra.Command, db *gorm.DB, logger *zap.Logger, tables []string) {
	for _, table := range tables {
		var count int64
		if err := db.Table(table).Count(&count).Error; err != nil {
			logger.Warn("failed to count table rows", zap.String("table", table), zap.Error(err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %-20s %d rows\n", table+":", count)
	}
}

func runPruneNodes(cmd *cobra.Command, args []string) error {
	olderThan, _ := cmd.Flags().GetDuration("older-than")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if olderThan <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}

	_, logger, guard, cleanup, err := openUtilDatabase()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	reg := registry.New(guard, logger)
	cutoff := time.Now().Add(-olderThan)

	logger.Info("pruning stale cluster nodes",
		zap.Duration("older_than", olderThan),
		zap.Bool("dry_run", dryRun),
	)

	stale, err := reg.Stale(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		fmt.Fprintln(out, "No stale cluster nodes found")
		return nil
	}

	fmt.Fprintf(out, "Stale cluster nodes (older than %s):\n", olderThan)
	printNodes(out, toNodeInfos(stale), time.Now())

	if dryRun {
		fmt.Fprintf(out, "\n[DRY RUN] Would delete %d row(s); active rows are kept\n", countInactive(stale))
		return nil
	}

	deleted, err := reg.Prune(ctx, cutoff)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nDeleted %d stale cluster node(s)\n", deleted)
	return nil
}

func toNodeInfos(rows []models.ClusterNode) []models.ClusterNodeInfo {
	infos := make([]models.ClusterNodeInfo, 0, len(rows))
	for i := range rows {
		infos = append(infos, models.ClusterNodeInfo{
			ClusterNode: rows[i],
			State:       rows[i].State(),
			Healthy:     false,
		})
	}
	return infos
}

func countInactive(rows []models.ClusterNode) int {
	n := 0
	for _, row := range rows {
		if !row.Active {
			n++
		}
	}
	return n
}
