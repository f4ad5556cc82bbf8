package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yaroslav/modekeeper/internal/client"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show node status",
	Long: `Query every configured node for its effective mode, presence and
active flag. Unreachable nodes are listed with their error.`,
	RunE: runStatus,
}

func init() {
	addClientFlags(statusCmd)
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	results := c.StatusAll(ctx)
	printStatus(cmd.OutOrStdout(), results)

	for _, r := range results {
		if r.Err == nil {
			return nil
		}
	}
	return fmt.Errorf("no node answered")
}

func printStatus(out io.Writer, results []client.NodeStatus) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "URL\tNODE\tMODE\tPRESENCE\tACTIVE")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t(%v)\n", r.URL, r.Err)
			continue
		}
		s := r.Status
		fmt.Fprintf(w, "%s\t%s\t%s\t%s (%s)\t%t\n",
			r.URL, s.Node, s.Mode, s.Presence, s.Activity, s.Active)
	}
	_ = w.Flush()
}
