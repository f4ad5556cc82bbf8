package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yaroslav/modekeeper/internal/client"
	"github.com/yaroslav/modekeeper/models"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "Inspect and administer the cluster registry",
}

var nodesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registry rows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		list, err := c.ListNodes(ctx)
		if err != nil {
			return err
		}
		printNodes(cmd.OutOrStdout(), list.Nodes, time.Now())
		return nil
	},
}

func nodeActionCmd(use, short string, action func(*client.Client, context.Context, string) (*models.ClusterNodeInfo, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <node>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient()
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			_, _ = c.DiscoverActive(ctx)

			info, err := action(c, ctx, args[0])
			if err != nil {
				return err
			}
			printNodes(cmd.OutOrStdout(), []models.ClusterNodeInfo{*info}, time.Now())
			return nil
		},
	}
}

func init() {
	addClientFlags(nodesCmd)
	nodesCmd.AddCommand(nodesListCmd)
	nodesCmd.AddCommand(nodeActionCmd("transfer", "Make a node release its active flag", (*client.Client).TransferNode))
	nodesCmd.AddCommand(nodeActionCmd("disable", "Remove a node from failover candidacy", (*client.Client).DisableNode))
	nodesCmd.AddCommand(nodeActionCmd("enable", "Return a node to failover candidacy", (*client.Client).EnableNode))
	rootCmd.AddCommand(nodesCmd)
}

func printNodes(out io.Writer, nodes []models.ClusterNodeInfo, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tSTATE\tHEALTHY\tDISABLED\tLAST HEARTBEAT")
	for _, n := range nodes {
		age := "never"
		if !n.LastHeartbeat.IsZero() {
			age = fmt.Sprintf("%s ago", now.Sub(n.LastHeartbeat).Truncate(time.Second))
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\n", n.Name, n.State, n.Healthy, n.Disabled, age)
	}
	_ = w.Flush()
}
