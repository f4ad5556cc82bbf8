package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yaroslav/modekeeper/models"
)

var modeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Change the bot mode",
}

var modeSetCmd = &cobra.Command{
	Use:   "set <normal|maintenance|stopped|killed> [text...]",
	Short: "Set the effective mode of the active node",
	Long: `Set the bot mode through the operator API. The node persists the mode,
rewrites its status probes and updates its presence. Any remaining
arguments are written below the mode line of the status probes.

Requires an operator token.`,
	Args:      cobra.MinimumNArgs(1),
	ValidArgs: []string{"normal", "maintenance", "stopped", "killed"},
	RunE:      runModeSet,
}

func init() {
	addClientFlags(modeCmd)
	modeCmd.AddCommand(modeSetCmd)
	rootCmd.AddCommand(modeCmd)
}

func runModeSet(cmd *cobra.Command, args []string) error {
	mode, err := models.ParseMode(args[0])
	if err != nil {
		return err
	}
	text := strings.Join(args[1:], " ")

	c, err := newAPIClient()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	// Best effort: without an active node the first reachable one is used.
	_, _ = c.DiscoverActive(ctx)

	if err := c.SetMode(ctx, mode, text); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "mode set to %s\n", mode)
	return nil
}
