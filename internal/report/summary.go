package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"prload/internal/runner"
	"prload/internal/scenario"
	"prload/internal/stats"
)

// Metric types as they appear in the summary.
const (
	TypeTrend   = "trend"
	TypeRate    = "rate"
	TypeCounter = "counter"
	TypeGauge   = "gauge"
)

// Built-in metric names.
const (
	MetricDuration   = "http_req_duration"
	MetricFailed     = "http_req_failed"
	MetricReqs       = "http_reqs"
	MetricIterations = "iterations"
	MetricChecks     = "checks"
	MetricVUsMax     = "vus_max"
)

var trendPercentiles = []float64{90, 95, 99}

// Metric is one entry of the summary's metrics map.
type Metric struct {
	Type       string             `json:"type"`
	Values     map[string]float64 `json:"values"`
	Thresholds map[string]bool    `json:"thresholds,omitempty"`
}

// CheckResult tallies one named check.
type CheckResult struct {
	Name   string `json:"name"`
	Passes uint64 `json:"passes"`
	Fails  uint64 `json:"fails"`
}

// ThresholdResult is one evaluated rule.
type ThresholdResult struct {
	Metric string  `json:"metric"`
	Expr   string  `json:"expr"`
	Actual float64 `json:"actual"`
	OK     bool    `json:"ok"`
}

// Summary is the end-of-run document written to disk and kept in history.
type Summary struct {
	RunID    string        `json:"run_id"`
	Scenario string        `json:"scenario"`
	BaseURL  string        `json:"base_url"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`

	Metrics     map[string]*Metric `json:"metrics"`
	Checks      []CheckResult      `json:"checks"`
	Thresholds  []ThresholdResult  `json:"thresholds"`
	StatusCodes map[string]int     `json:"status_codes"`
	Errors      map[string]int     `json:"errors,omitempty"`

	Passed bool `json:"passed"`
}

// Build reads the runner's final stats and evaluates the scenario's
// thresholds. Call it after Run has returned.
func Build(r *runner.Runner, start, end time.Time) (*Summary, error) {
	rules, err := r.Scenario.ParsedThresholds()
	if err != nil {
		return nil, err
	}

	st := r.Stats
	wanted := extraPercentiles(rules)

	s := &Summary{
		RunID:       uuid.NewString(),
		Scenario:    r.Scenario.Name,
		BaseURL:     r.Cfg.BaseURL,
		Start:       start,
		End:         end,
		Duration:    end.Sub(start),
		Metrics:     make(map[string]*Metric),
		StatusCodes: make(map[string]int),
		Errors:      st.GetErrorCounts(),
		Passed:      true,
	}

	s.Metrics[MetricDuration] = trend(st.Duration, wanted)
	for _, name := range st.EndpointNames() {
		s.Metrics[fmt.Sprintf("%s{name:%s}", MetricDuration, name)] = trend(st.Endpoint(name), wanted)
	}

	reqs := atomic.LoadUint64(&st.Requests)
	failed := atomic.LoadUint64(&st.Failed)
	s.Metrics[MetricFailed] = rate(failed, reqs)

	passes, fails := st.CheckTotals()
	s.Metrics[MetricChecks] = rate(passes, passes+fails)

	for _, name := range st.RateNames() {
		rt := st.Rate(name)
		s.Metrics[name] = rate(rt.Hits(), rt.Total())
	}

	elapsed := s.Duration.Seconds()
	s.Metrics[MetricReqs] = counter(reqs, elapsed)
	s.Metrics[MetricIterations] = counter(atomic.LoadUint64(&st.Iterations), elapsed)

	vus := float64(r.MaxVUs())
	s.Metrics[MetricVUsMax] = &Metric{Type: TypeGauge, Values: map[string]float64{"value": vus, "min": vus, "max": vus}}

	for _, c := range st.Checks() {
		s.Checks = append(s.Checks, CheckResult{Name: c.Name, Passes: c.Passes(), Fails: c.Fails()})
	}
	for code, n := range st.GetStatusCodes() {
		s.StatusCodes[strconv.Itoa(code)] = n
	}

	s.evaluate(rules)
	return s, nil
}

func (s *Summary) evaluate(rules []scenario.Threshold) {
	for _, t := range rules {
		m, ok := s.Metrics[t.Metric]
		if !ok {
			// A metric nothing fed behaves like an empty one: every value
			// is zero.
			m = empty(t.Metric, extraPercentiles(rules))
			s.Metrics[t.Metric] = m
		}
		pass := t.Evaluate(m.Values)
		if m.Thresholds == nil {
			m.Thresholds = make(map[string]bool)
		}
		m.Thresholds[t.Expr] = pass

		s.Thresholds = append(s.Thresholds, ThresholdResult{
			Metric: t.Metric,
			Expr:   t.Expr,
			Actual: m.Values[t.Agg],
			OK:     pass,
		})
		if !pass {
			s.Passed = false
		}
	}
}

// Failed lists the thresholds that did not hold.
func (s *Summary) Failed() []ThresholdResult {
	var out []ThresholdResult
	for _, t := range s.Thresholds {
		if !t.OK {
			out = append(out, t)
		}
	}
	return out
}

// MetricNames returns metric keys sorted.
func (s *Summary) MetricNames() []string {
	names := make([]string, 0, len(s.Metrics))
	for n := range s.Metrics {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func extraPercentiles(rules []scenario.Threshold) []float64 {
	ps := append([]float64(nil), trendPercentiles...)
	for _, t := range rules {
		if p, ok := t.Percentile(); ok {
			ps = append(ps, p)
		}
	}
	return ps
}

// trend reads h into k6 trend values. A trend with no samples reports
// zero for every value, as k6 does, so latency thresholds on a run that
// never sent a request hold.
func trend(h *stats.SafeHistogram, percentiles []float64) *Metric {
	m := &Metric{Type: TypeTrend, Values: make(map[string]float64)}
	if h == nil || h.TotalCount() == 0 {
		for _, k := range []string{"avg", "min", "med", "max", "count"} {
			m.Values[k] = 0
		}
		for _, p := range percentiles {
			m.Values[scenario.PercentileKey(p)] = 0
		}
		return m
	}
	m.Values["avg"] = h.Mean() / 1000.0
	m.Values["min"] = float64(h.Min()) / 1000.0
	m.Values["med"] = h.QuantileMs(50)
	m.Values["max"] = float64(h.Max()) / 1000.0
	m.Values["count"] = float64(h.TotalCount())
	for _, p := range percentiles {
		m.Values[scenario.PercentileKey(p)] = h.QuantileMs(p)
	}
	return m
}

func rate(hits, total uint64) *Metric {
	v := 0.0
	if total > 0 {
		v = float64(hits) / float64(total)
	}
	return &Metric{Type: TypeRate, Values: map[string]float64{
		"rate":   v,
		"passes": float64(hits),
		"fails":  float64(total - hits),
	}}
}

func counter(n uint64, seconds float64) *Metric {
	perSec := 0.0
	if seconds > 0 {
		perSec = float64(n) / seconds
	}
	return &Metric{Type: TypeCounter, Values: map[string]float64{
		"count": float64(n),
		"rate":  perSec,
	}}
}

func empty(name string, percentiles []float64) *Metric {
	if strings.HasPrefix(name, MetricDuration) {
		return trend(nil, percentiles)
	}
	return &Metric{Type: TypeRate, Values: map[string]float64{"rate": 0, "count": 0}}
}

// WriteJSON writes the summary to path, replacing any earlier file in one
// rename so readers never see a half-written document.
func (s *Summary) WriteJSON(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".summary-*.json")
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// ReadJSON loads a summary written by WriteJSON.
func ReadJSON(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode summary %s: %w", path, err)
	}
	return &s, nil
}
