package cmd

import (
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"prload/internal/report"
	"prload/internal/storage"
	"prload/internal/tui/app"
	"prload/internal/tui/styles"
	"prload/internal/tui/views"
)

var historyHeaders = []string{"ID", "Time", "Scenario", "Target", "Reqs", "Failed", "P95 (ms)", "Result"}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := historyStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if useTUI, _ := cmd.Flags().GetBool("tui"); useTUI {
				p := tea.NewProgram(app.NewModel(nil, nil, store), tea.WithAltScreen())
				_, err := p.Run()
				return err
			}

			items, err := store.List()
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), items)
			return nil
		},
	}
	cmd.Flags().Bool("tui", false, "browse runs in the interactive viewer")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print the full report of a past run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := historyStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			item, err := store.Get(args[0])
			if err != nil {
				return err
			}
			report.Print(cmd.OutOrStdout(), item.Summary)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a past run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := historyStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func historyStore(cmd *cobra.Command) (*storage.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.History == "" {
		return nil, errors.New("history is disabled: set --history or PRLOAD_HISTORY")
	}
	return storage.Open(cfg.History)
}

func printHistory(w io.Writer, items []storage.HistoryItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, styles.Subtle.Render("No history found."))
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.ColorBorder)).
		Headers(historyHeaders...)
	for _, item := range items {
		t.Row(append([]string{item.ID}, views.Row(item)...)...)
	}
	fmt.Fprintln(w, t.Render())
}
