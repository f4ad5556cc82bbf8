package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/yaroslav/modekeeper/internal/client"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of every node's mode and active flag",
	Long: `Poll the status of every configured node and redraw a table until
q or ctrl+c is pressed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}

		p := tea.NewProgram(newWatchModel(c, watchInterval),
			tea.WithContext(cmd.Context()),
			tea.WithOutput(cmd.OutOrStdout()),
		)
		_, err = p.Run()
		return err
	},
}

func init() {
	addClientFlags(watchCmd)
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", 2*time.Second, "Polling interval")
	rootCmd.AddCommand(watchCmd)
}

// statusSource is the part of the API client the watch view polls.
type statusSource interface {
	StatusAll(ctx context.Context) []client.NodeStatus
}

type statusMsg struct {
	results []client.NodeStatus
	at      time.Time
}

type pollMsg time.Time

type watchModel struct {
	source   statusSource
	interval time.Duration

	spinner spinner.Model
	table   table.Model

	updated time.Time
	active  string
}

func newWatchModel(source statusSource, interval time.Duration) watchModel {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "URL", Width: 28},
			{Title: "NODE", Width: 16},
			{Title: "MODE", Width: 12},
			{Title: "PRESENCE", Width: 22},
			{Title: "ACTIVE", Width: 6},
		}),
		table.WithHeight(8),
	)

	return watchModel{
		source:   source,
		interval: interval,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		table:    t,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

func (m watchModel) poll() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return statusMsg{results: m.source.StatusAll(ctx), at: time.Now()}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case statusMsg:
		m.table.SetRows(statusRows(msg.results))
		m.updated = msg.at
		m.active = activeNode(msg.results)
		return m, tea.Tick(m.interval, func(t time.Time) tea.Msg { return pollMsg(t) })

	case pollMsg:
		return m, m.poll()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s modekeeper cluster", m.spinner.View())
	if m.active != "" {
		fmt.Fprintf(&b, " (active: %s)", m.active)
	}
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n\n")
	if m.updated.IsZero() {
		b.WriteString("waiting for first answer")
	} else {
		fmt.Fprintf(&b, "updated %s", m.updated.Format("15:04:05"))
	}
	b.WriteString(" - q to quit\n")

	return b.String()
}

func statusRows(results []client.NodeStatus) []table.Row {
	rows := make([]table.Row, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			rows = append(rows, table.Row{r.URL, "-", "unreachable", "-", "-"})
			continue
		}
		s := r.Status
		active := "no"
		if s.Active {
			active = "yes"
		}
		rows = append(rows, table.Row{
			r.URL,
			s.Node,
			s.Mode.Token(),
			fmt.Sprintf("%s (%s)", s.Presence, s.Activity),
			active,
		})
	}
	return rows
}

// activeNode names the node reporting the active flag. Several names are
// joined when more than one node claims it.
func activeNode(results []client.NodeStatus) string {
	var names []string
	for _, r := range results {
		if r.Err == nil && r.Status.Active {
			names = append(names, r.Status.Node)
		}
	}
	return strings.Join(names, ", ")
}
