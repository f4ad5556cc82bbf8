// Package cmd provides the modekeeper CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yaroslav/modekeeper/internal/config"
)

var (
	// Version information (set at build time via ldflags)
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "modekeeper",
	Short: "modekeeper - bot mode coordination and failover",
	Long: `modekeeper decides whether a bot instance may serve, and which node of a
small cluster is the active one.

A node:
  - Reads operator mode signals from health probe files
  - Writes its effective mode and a liveness stamp back to them
  - Heartbeats into a shared cluster registry table
  - Takes over or hands off the active flag by priority order

The other commands talk to a running node over its HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML configuration file (environment variables override it)")
}

// loadConfig reads the configuration file and the environment. Flags are
// applied by the caller.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// versionString returns formatted version information
func versionString() string {
	return fmt.Sprintf("modekeeper %s (commit: %s, built: %s)",
		Version, Commit, BuildDate)
}
