package views

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"prload/internal/report"
	"prload/internal/storage"
	"prload/internal/tui/styles"
)

// HistoryLister is the part of the history store the view reads.
type HistoryLister interface {
	List() ([]storage.HistoryItem, error)
}

type HistoryView struct {
	Store HistoryLister
	Table table.Model

	items []storage.HistoryItem
	err   error

	// Detail shows the full report of the selected run.
	Detail     viewport.Model
	ShowDetail bool

	Width  int
	Height int
}

func NewHistoryView(store HistoryLister) HistoryView {
	columns := []table.Column{
		{Title: "Time", Width: 20},
		{Title: "Scenario", Width: 22},
		{Title: "Target", Width: 28},
		{Title: "Reqs", Width: 10},
		{Title: "Failed", Width: 8},
		{Title: "P95 (ms)", Width: 10},
		{Title: "Result", Width: 8},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.ColorBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.ColorPrimary)

	s.Selected = s.Selected.
		Foreground(styles.ColorBg).
		Background(styles.ColorPrimary).
		Bold(true)

	t.SetStyles(s)

	m := HistoryView{
		Store:  store,
		Table:  t,
		Detail: viewport.New(80, 20),
	}
	m.Refresh()
	return m
}

// Refresh reloads rows from the store, newest first.
func (m *HistoryView) Refresh() {
	if m.Store == nil {
		return
	}

	m.items, m.err = m.Store.List()
	rows := make([]table.Row, len(m.items))
	for i, item := range m.items {
		rows[i] = Row(item)
	}
	m.Table.SetRows(rows)
}

// Row renders one history entry as table cells.
func Row(item storage.HistoryItem) table.Row {
	sum := item.Summary
	if sum == nil {
		return table.Row{item.Timestamp.Format("2006-01-02 15:04:05"), "?", "", "", "", "", ""}
	}

	reqs, failed, p95 := "-", "-", "-"
	if m := sum.Metrics[report.MetricReqs]; m != nil {
		reqs = fmt.Sprintf("%.0f", m.Values["count"])
	}
	if m := sum.Metrics[report.MetricFailed]; m != nil {
		failed = fmt.Sprintf("%.1f%%", m.Values["rate"]*100)
	}
	if m := sum.Metrics[report.MetricDuration]; m != nil {
		if v, ok := m.Values["p(95)"]; ok {
			p95 = fmt.Sprintf("%.1f", v)
		}
	}

	result := "PASS"
	if !sum.Passed {
		result = "FAIL"
	}

	return table.Row{
		item.Timestamp.Format("2006-01-02 15:04:05"),
		sum.Scenario,
		sum.BaseURL,
		reqs,
		failed,
		p95,
		result,
	}
}

func (m HistoryView) Init() tea.Cmd {
	return nil
}

func (m HistoryView) Update(msg tea.Msg) (HistoryView, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Table.SetWidth(msg.Width - 4)
		m.Table.SetHeight(max(msg.Height-6, 3))
		m.Detail.Width = max(msg.Width-6, 10)
		m.Detail.Height = max(msg.Height-6, 3)

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if item := m.SelectedItem(); item != nil && item.Summary != nil {
				var buf bytes.Buffer
				report.Print(&buf, item.Summary)
				m.Detail.SetContent(buf.String())
				m.Detail.GotoTop()
				m.ShowDetail = true
			}
			return m, nil
		case "esc":
			m.ShowDetail = false
			return m, nil
		}
	}

	if m.ShowDetail {
		m.Detail, cmd = m.Detail.Update(msg)
		return m, cmd
	}
	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m HistoryView) View() string {
	s := strings.Builder{}
	s.WriteString(styles.Title.Render("Past Runs"))
	s.WriteString("\n\n")

	switch {
	case m.err != nil:
		s.WriteString(styles.Error.Render("Could not read history: " + m.err.Error()))
	case m.ShowDetail:
		s.WriteString(m.Detail.View())
		s.WriteString("\n\n")
		s.WriteString(styles.Subtle.Render("[Esc] Back"))
		return s.String()
	case len(m.Table.Rows()) == 0:
		s.WriteString(styles.Subtle.Render("No history found.\nFinish a run to record one."))
	default:
		s.WriteString(styles.Box.Render(m.Table.View()))
	}
	s.WriteString("\n\n")
	s.WriteString(styles.Subtle.Render("[Enter] Details  [Ctrl+P] Export Selected"))
	return s.String()
}

// SelectedItem is the run under the cursor, or nil.
func (m HistoryView) SelectedItem() *storage.HistoryItem {
	idx := m.Table.Cursor()
	if idx >= 0 && idx < len(m.items) {
		return &m.items[idx]
	}
	return nil
}
