package views

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prload/internal/report"
	"prload/internal/runner"
	"prload/internal/scenario"
	"prload/internal/storage"
)

type fakeHistory struct {
	items []storage.HistoryItem
	err   error
}

func (f fakeHistory) List() ([]storage.HistoryItem, error) { return f.items, f.err }

func TestPhaseFollowsStages(t *testing.T) {
	d := NewDashboardView(scenario.PullRequestReview(), "http://app:8080", 120, 40)

	d.Stats = runner.StatsSnapshot{Stage: 0, Elapsed: time.Second}
	assert.Equal(t, "Stage 1/6 Ramp Up", d.Phase())

	d.Stats = runner.StatsSnapshot{Stage: 2, Elapsed: 2 * time.Minute}
	assert.Equal(t, "Stage 3/6 Steady", d.Phase())

	d.Stats = runner.StatsSnapshot{Stage: 5, Elapsed: 6*time.Minute + 40*time.Second}
	assert.Equal(t, "Stage 6/6 Ramp Down", d.Phase())

	d.Stats = runner.StatsSnapshot{Stage: 5, Elapsed: 8 * time.Minute}
	assert.Equal(t, "Graceful Stop", d.Phase())

	d.Finished = true
	assert.Equal(t, "Finished", d.Phase())
}

func TestDashboardTracksRate(t *testing.T) {
	d := NewDashboardView(scenario.Smoke(), "http://app:8080", 120, 40)
	d, _ = d.Update(runner.StatsSnapshot{Elapsed: time.Second, Requests: 10, P95Ms: 12})
	d, _ = d.Update(runner.StatsSnapshot{Elapsed: 2 * time.Second, Requests: 30, P95Ms: 15})

	require.Len(t, d.RpsLine.Data, 2)
	assert.InDelta(t, 20, d.RpsLine.Data[1], 1e-9)
	assert.Equal(t, 15.0, d.LatencyLine.Data[1])
	assert.NotEmpty(t, d.View())
}

func TestStatusBars(t *testing.T) {
	out := statusBars(map[int]int{0: 1, 201: 4}, 4)
	assert.Contains(t, out, "ERR")
	assert.Contains(t, out, "201")
}

func TestHistoryRowsAndSelection(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	items := []storage.HistoryItem{
		{ID: "b", Timestamp: ts, Summary: &report.Summary{
			RunID: "b", Scenario: "pull-request-review", BaseURL: "http://app:8080", Passed: false,
			Metrics: map[string]*report.Metric{
				report.MetricReqs:     {Values: map[string]float64{"count": 120}},
				report.MetricFailed:   {Values: map[string]float64{"rate": 0.25}},
				report.MetricDuration: {Values: map[string]float64{"p(95)": 480.31}},
			},
		}},
		{ID: "a", Timestamp: ts.Add(-time.Hour), Summary: &report.Summary{RunID: "a", Scenario: "smoke", Passed: true}},
	}
	h := NewHistoryView(fakeHistory{items: items})

	require.Len(t, h.Table.Rows(), 2)
	row := h.Table.Rows()[0]
	assert.Equal(t, "2026-03-01 12:00:00", row[0])
	assert.Equal(t, "120", row[3])
	assert.Equal(t, "25.0%", row[4])
	assert.Equal(t, "480.3", row[5])
	assert.Equal(t, "FAIL", row[6])
	assert.Equal(t, "PASS", h.Table.Rows()[1][6])

	require.NotNil(t, h.SelectedItem())
	assert.Equal(t, "b", h.SelectedItem().ID)

	h, _ = h.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, h.ShowDetail)
	h, _ = h.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, h.ShowDetail)
}

func TestHistoryError(t *testing.T) {
	h := NewHistoryView(fakeHistory{err: errors.New("locked")})
	assert.Contains(t, h.View(), "locked")
	assert.Nil(t, h.SelectedItem())
}
