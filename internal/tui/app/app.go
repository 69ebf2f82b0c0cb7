package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"prload/internal/report"
	"prload/internal/runner"
	"prload/internal/tui/styles"
	"prload/internal/tui/views"
)

type ClearStatusMsg struct{}

func clearStatusCmd() tea.Cmd {
	return tea.Tick(3*time.Second, func(_ time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}

type ViewID int

const (
	ViewDashboard ViewID = iota
	ViewHistory
)

type StatsMsg runner.StatsSnapshot

// RunDoneMsg arrives once the runner has finished teardown.
type RunDoneMsg struct{}

type Model struct {
	// Runner is nil when only browsing history.
	Runner *runner.Runner
	Store  views.HistoryLister

	RunActive bool
	RunCancel context.CancelFunc

	Width  int
	Height int

	CurrentView ViewID
	MenuItems   []string

	DashView    views.DashboardView
	HistoryView views.HistoryView

	StatusMsg string
}

// NewModel shows a live dashboard for r, which the caller has already
// started with cancel as its stop switch. Pass a nil runner to open on the
// history browser.
func NewModel(r *runner.Runner, cancel context.CancelFunc, store views.HistoryLister) Model {
	m := Model{
		Runner:      r,
		Store:       store,
		RunCancel:   cancel,
		MenuItems:   []string{"[1] Dashboard", "[2] History"},
		HistoryView: views.NewHistoryView(store),
		CurrentView: ViewHistory,
	}
	if r != nil {
		m.RunActive = true
		m.CurrentView = ViewDashboard
		m.DashView = views.NewDashboardView(r.Scenario, r.Cfg.BaseURL, 80, 24)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	if m.Runner == nil {
		return nil
	}
	return tea.Batch(
		waitForUpdate(m.Runner.Updates),
		waitForDone(m.Runner.Done()),
	)
}

func waitForUpdate(sub runner.StatsUpdateChan) tea.Cmd {
	return func() tea.Msg {
		return StatsMsg(<-sub)
	}
}

func waitForDone(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return RunDoneMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case ClearStatusMsg:
		m.StatusMsg = ""
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+q", "q":
			m.stop()
			return m, tea.Quit

		case "ctrl+d", "1":
			if m.Runner != nil {
				m.CurrentView = ViewDashboard
			}
			return m, nil

		case "ctrl+h", "2":
			m.HistoryView.Refresh()
			m.CurrentView = ViewHistory
			return m, nil

		case "tab", "ctrl+right", "ctrl+left":
			if m.Runner != nil {
				m.CurrentView = 1 - m.CurrentView
			}
			if m.CurrentView == ViewHistory {
				m.HistoryView.Refresh()
			}
			return m, nil

		case "ctrl+s":
			if m.RunActive {
				m.stop()
				m.StatusMsg = "Stopping: waiting for in-flight iterations..."
			}
			return m, nil

		case "ctrl+p":
			m.StatusMsg = m.export()
			return m, clearStatusCmd()
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		inner := tea.WindowSizeMsg{Width: m.Width, Height: m.Height - 7}

		m.DashView, _ = m.DashView.Update(inner)
		m.HistoryView, _ = m.HistoryView.Update(inner)
		return m, nil

	case StatsMsg:
		var c tea.Cmd
		m.DashView, c = m.DashView.Update(runner.StatsSnapshot(msg))
		cmds = append(cmds, c)
		if m.RunActive {
			cmds = append(cmds, waitForUpdate(m.Runner.Updates))
		}
		return m, tea.Batch(cmds...)

	case RunDoneMsg:
		m.RunActive = false
		m.DashView.Finished = true
		var c tea.Cmd
		m.DashView, c = m.DashView.Update(m.Runner.Snapshot())
		m.StatusMsg = "Run finished. Press q to write the summary and exit."
		return m, c
	}

	// Forward everything else (unhandled keys, progress frames) to the active view.
	var cmd tea.Cmd
	switch m.CurrentView {
	case ViewDashboard:
		m.DashView, cmd = m.DashView.Update(msg)
	case ViewHistory:
		m.HistoryView, cmd = m.HistoryView.Update(msg)
	}
	return m, cmd
}

func (m *Model) stop() {
	if m.RunActive && m.RunCancel != nil {
		m.RunCancel()
	}
}

func (m Model) export() string {
	ts := time.Now().Format("20060102-150405")

	if m.CurrentView == ViewHistory {
		item := m.HistoryView.SelectedItem()
		if item == nil || item.Summary == nil {
			return "Nothing selected."
		}
		path := fmt.Sprintf("prload_history_%s.json", item.ID)
		if err := item.Summary.WriteJSON(path); err != nil {
			return fmt.Sprintf("Export failed: %v", err)
		}
		return "Exported summary to " + path
	}

	var results []runner.ExperimentResult
	if m.Runner != nil {
		results = m.Runner.SnapshotResults()
	}
	if len(results) == 0 {
		return "No per-request results kept (run with --csv to keep them)."
	}
	path := fmt.Sprintf("prload_report_%s.csv", ts)
	if err := report.ExportCSV(results, path); err != nil {
		return fmt.Sprintf("Export failed: %v", err)
	}
	return "Exported requests to " + path
}

func (m Model) View() string {
	if m.Width == 0 {
		return "Loading..."
	}

	nav := strings.Builder{}
	for i, item := range m.MenuItems {
		if ViewID(i) == m.CurrentView {
			nav.WriteString(styles.TabActive.Render(item))
		} else {
			nav.WriteString(styles.TabBase.Render(item))
		}
	}
	navBar := styles.FooterBase.Width(m.Width).Render(nav.String())

	var contentStr string
	switch m.CurrentView {
	case ViewDashboard:
		contentStr = m.DashView.View()
	case ViewHistory:
		contentStr = m.HistoryView.View()
	}
	content := styles.Panel.Width(m.Width - 2).Height(m.Height - 6).Render(contentStr)

	keys1 := []string{
		styles.RenderKey("Tab", "View"),
		styles.RenderKey("↑/↓", "Scroll"),
		styles.RenderKey("Enter", "Details"),
	}
	keys2 := []string{
		styles.RenderKey("Ctrl+S", "Stop"),
		styles.RenderKey("Ctrl+P", "Export"),
		styles.RenderKey("Q", "Quit"),
	}
	footer := lipgloss.JoinVertical(lipgloss.Left,
		styles.FooterBase.Width(m.Width).Render(strings.Join(keys1, "   ")),
		styles.FooterBase.Width(m.Width).Render(strings.Join(keys2, "   ")),
	)

	if m.StatusMsg != "" {
		status := styles.Box.BorderForeground(styles.ColorHighlight).Render(m.StatusMsg)
		return lipgloss.JoinVertical(lipgloss.Left, navBar, content, status, footer)
	}
	return lipgloss.JoinVertical(lipgloss.Left, navBar, content, footer)
}
