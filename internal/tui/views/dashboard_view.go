package views

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"prload/internal/runner"
	"prload/internal/scenario"
	"prload/internal/tui/components"
	"prload/internal/tui/styles"
)

// failRateLimit matches the http_req_failed threshold of the built-in
// scenarios; the Failed card turns red once it is crossed.
const failRateLimit = 0.05

type DashboardView struct {
	Stats    runner.StatsSnapshot
	Viewport viewport.Model
	Progress progress.Model
	Scenario *scenario.Scenario
	BaseURL  string

	Duration time.Duration
	Finished bool

	RpsLine     components.Sparkline
	LatencyLine components.Sparkline

	lastReqs    uint64
	lastElapsed time.Duration

	Width  int
	Height int
}

func NewDashboardView(sc *scenario.Scenario, baseURL string, width, height int) DashboardView {
	prog := progress.New(
		progress.WithGradient("#7D56F4", "#04B575"),
		progress.WithWidth(max(width-10, 10)),
		progress.WithoutPercentage(),
	)

	return DashboardView{
		Viewport:    viewport.New(max(width-6, 10), max(height-8, 5)),
		Progress:    prog,
		Scenario:    sc,
		BaseURL:     baseURL,
		Duration:    sc.TotalDuration(),
		RpsLine:     components.NewSparkline(40, "RPS", styles.Active),
		LatencyLine: components.NewSparkline(40, "p95 (ms)", styles.Warn),
		Width:       width,
		Height:      height,
	}
}

func (m DashboardView) Update(msg tea.Msg) (DashboardView, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case runner.StatsSnapshot:
		// RPS over the interval since the last snapshot.
		if dt := msg.Elapsed - m.lastElapsed; dt > 0 && msg.Requests >= m.lastReqs {
			m.RpsLine.Add(float64(msg.Requests-m.lastReqs) / dt.Seconds())
			m.LatencyLine.Add(msg.P95Ms)
		}
		m.lastReqs = msg.Requests
		m.lastElapsed = msg.Elapsed
		m.Stats = msg

		pct := 0.0
		if m.Duration > 0 {
			pct = float64(msg.Elapsed) / float64(m.Duration)
		}
		if pct > 1.0 || m.Finished {
			pct = 1.0
		}
		cmds = append(cmds, m.Progress.SetPercent(pct))

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = max(msg.Width-10, 10)
		m.Viewport.Width = max(msg.Width-6, 10)
		m.Viewport.Height = max(msg.Height-8, 5)

	case progress.FrameMsg:
		newModel, cmd := m.Progress.Update(msg)
		if newModel, ok := newModel.(progress.Model); ok {
			m.Progress = newModel
		}
		cmds = append(cmds, cmd)
	}

	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// Phase names what the run is doing right now.
func (m DashboardView) Phase() string {
	switch {
	case m.Finished:
		return "Finished"
	case m.Stats.Elapsed >= m.Duration:
		return "Graceful Stop"
	case len(m.Scenario.Stages) == 0:
		return "Constant"
	}
	st := m.Scenario.Stages[m.Stats.Stage]
	prev := 0
	if m.Stats.Stage > 0 {
		prev = m.Scenario.Stages[m.Stats.Stage-1].Target
	}
	label := fmt.Sprintf("Stage %d/%d", m.Stats.Stage+1, len(m.Scenario.Stages))
	switch {
	case st.Target > prev:
		return label + " Ramp Up"
	case st.Target < prev:
		return label + " Ramp Down"
	default:
		return label + " Steady"
	}
}

func (m DashboardView) View() string {
	s := strings.Builder{}

	elapsed := m.Stats.Elapsed
	remaining := m.Duration - elapsed
	if remaining < 0 {
		remaining = 0
	}

	title := "Testing in Progress"
	if m.Finished {
		title = "Run Complete"
	}
	timer := fmt.Sprintf("%s / %s left", elapsed.Round(time.Second), remaining.Round(time.Second))
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		styles.Title.Render(title),
		lipgloss.NewStyle().MarginLeft(2).Foreground(styles.ColorSubtle).Render(timer),
		lipgloss.NewStyle().MarginLeft(4).Foreground(styles.ColorPrimary).Bold(true).Render("["+m.Phase()+"]"),
	)
	s.WriteString(header)
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render(m.Scenario.Name + " → " + m.BaseURL))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())
	s.WriteString("\n\n")

	// Row 1: volume
	rps := 0.0
	if elapsed.Seconds() > 0 {
		rps = float64(m.Stats.Requests) / elapsed.Seconds()
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top,
		MakeCard("Requests", styles.Value.Render(fmt.Sprintf("%d", m.Stats.Requests))),
		MakeCard("Avg RPS", styles.Value.Render(fmt.Sprintf("%.1f", rps))),
		MakeCard("VUs", styles.Active.Render(fmt.Sprintf("%d / %d", m.Stats.ActiveVUs, m.Stats.TargetVUs))),
		MakeCard("Iterations", styles.Value.Render(fmt.Sprintf("%d", m.Stats.Iterations))),
	)
	s.WriteString(row1)
	s.WriteString("\n")

	// Row 2: latency
	row2 := lipgloss.JoinHorizontal(lipgloss.Top,
		MakeCard("P50 Latency", styles.Text.Render(fmt.Sprintf("%.1f ms", m.Stats.P50Ms))),
		MakeCard("P90 Latency", styles.Text.Render(fmt.Sprintf("%.1f ms", m.Stats.P90Ms))),
		MakeCard("P95 Latency", styles.Warn.Render(fmt.Sprintf("%.1f ms", m.Stats.P95Ms))),
		MakeCard("P99 Latency", styles.Error.Render(fmt.Sprintf("%.1f ms", m.Stats.P99Ms))),
	)
	s.WriteString(row2)
	s.WriteString("\n")

	// Row 3: outcomes
	failStyle := styles.ForRate(m.Stats.ErrorRate, failRateLimit)
	checkStyle := styles.Value
	if m.Stats.ChecksFailed > 0 {
		checkStyle = styles.Warn
	}
	row3 := lipgloss.JoinHorizontal(lipgloss.Top,
		MakeCard("Mean Latency", styles.Text.Render(fmt.Sprintf("%.1f ms", m.Stats.MeanMs))),
		MakeCard("Max Latency", styles.Text.Render(fmt.Sprintf("%d ms", m.Stats.MaxMs))),
		MakeCard("Failed", failStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.Stats.Failed, m.Stats.ErrorRate*100))),
		MakeCard("Checks", checkStyle.Render(fmt.Sprintf("%d ✓ %d ✗", m.Stats.ChecksPassed, m.Stats.ChecksFailed))),
	)
	s.WriteString(row3)
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.RpsLine.View(), "    ", m.LatencyLine.View(),
	))
	s.WriteString("\n\n")

	if len(m.Stats.StatusCodes) > 0 {
		s.WriteString(styles.Subtle.Render("Response Breakdown"))
		s.WriteString("\n")
		s.WriteString(statusBars(m.Stats.StatusCodes, 30))
	}

	if len(m.Stats.ErrorCounts) > 0 {
		s.WriteString("\n")
		s.WriteString(styles.Subtle.Render("Error Details"))
		s.WriteString("\n")

		var errs []string
		for k := range m.Stats.ErrorCounts {
			errs = append(errs, k)
		}
		sort.Strings(errs)

		for _, e := range errs {
			disp := e
			if len(disp) > 60 {
				disp = disp[:57] + "..."
			}
			s.WriteString(fmt.Sprintf("%s %s\n", styles.Error.Render(fmt.Sprintf("%d x", m.Stats.ErrorCounts[e])), disp))
		}
	}

	content := styles.Panel.Width(max(m.Width-6, 10)).Render(s.String())
	m.Viewport.SetContent(content)

	return m.Viewport.View()
}

func statusBars(codes map[int]int, width int) string {
	var keys []int
	maxCount := 0
	for k, c := range codes {
		keys = append(keys, k)
		if c > maxCount {
			maxCount = c
		}
	}
	sort.Ints(keys)

	var b strings.Builder
	for _, c := range keys {
		count := codes[c]
		w := 0
		if maxCount > 0 {
			w = int(float64(count) / float64(maxCount) * float64(width))
		}

		label := fmt.Sprintf("%d", c)
		if c == 0 {
			label = "ERR"
		}

		color := styles.Value
		if c == 0 || c >= 500 {
			color = styles.Error
		} else if c >= 400 {
			color = styles.Warn
		}
		b.WriteString(fmt.Sprintf("%3s : %s %d\n", label, color.Render(strings.Repeat("█", w)), count))
	}
	return b.String()
}

func MakeCard(title, value string) string {
	return styles.Box.Width(18).Align(lipgloss.Center).Render(
		fmt.Sprintf("%s\n%s", styles.Subtle.Render(title), value),
	)
}
