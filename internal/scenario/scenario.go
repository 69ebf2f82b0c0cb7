package scenario

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalid wraps every validation failure so callers can tell a bad
// scenario apart from an I/O problem.
var ErrInvalid = errors.New("invalid scenario")

const DefaultGracefulStop = 30 * time.Second

// Stage is one ramp step: reach Target active VUs over Duration.
type Stage struct {
	Duration time.Duration
	Target   int
}

// Scenario describes how many virtual users run, for how long, and what
// the run must satisfy to pass.
//
// A scenario with Stages ramps; otherwise VUs run constantly for Duration.
type Scenario struct {
	Name         string
	Stages       []Stage
	VUs          int
	Duration     time.Duration
	GracefulStop time.Duration

	// Thresholds maps metric name to expressions like "p(95)<500".
	Thresholds map[string][]string
}

// Validate fails fast on anything that would make the run meaningless.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if s.VUs < 0 {
		return fmt.Errorf("%w: vus must be non-negative, got %d", ErrInvalid, s.VUs)
	}
	if s.Duration < 0 {
		return fmt.Errorf("%w: duration must be non-negative, got %s", ErrInvalid, s.Duration)
	}
	if s.GracefulStop < 0 {
		return fmt.Errorf("%w: graceful stop must be non-negative, got %s", ErrInvalid, s.GracefulStop)
	}
	for i, st := range s.Stages {
		if st.Duration < 0 {
			return fmt.Errorf("%w: stage %d duration must be non-negative, got %s", ErrInvalid, i, st.Duration)
		}
		if st.Target < 0 {
			return fmt.Errorf("%w: stage %d target must be non-negative, got %d", ErrInvalid, i, st.Target)
		}
	}
	if s.TotalDuration() <= 0 {
		return fmt.Errorf("%w: scenario %q has no duration", ErrInvalid, s.Name)
	}
	if len(s.Stages) == 0 && s.VUs == 0 {
		return fmt.Errorf("%w: constant scenario %q needs at least one vu", ErrInvalid, s.Name)
	}
	if _, err := s.ParsedThresholds(); err != nil {
		return err
	}
	return nil
}

// TotalDuration is the wall-clock length of the load phase.
func (s *Scenario) TotalDuration() time.Duration {
	if len(s.Stages) == 0 {
		return s.Duration
	}
	var total time.Duration
	for _, st := range s.Stages {
		total += st.Duration
	}
	return total
}

// MaxVUs is the largest concurrency the scenario ever asks for.
func (s *Scenario) MaxVUs() int {
	if len(s.Stages) == 0 {
		return s.VUs
	}
	peak := 0
	for _, st := range s.Stages {
		if st.Target > peak {
			peak = st.Target
		}
	}
	return peak
}

// TargetAt returns the number of VUs that should be active at elapsed,
// the index of the stage covering it, and whether the load phase is over.
// Ramping targets are interpolated linearly from the previous stage's
// target, starting at zero.
func (s *Scenario) TargetAt(elapsed time.Duration) (target int, stage int, done bool) {
	if elapsed < 0 {
		elapsed = 0
	}
	if len(s.Stages) == 0 {
		if elapsed >= s.Duration {
			return 0, 0, true
		}
		return s.VUs, 0, false
	}

	from := 0
	var start time.Duration
	for i, st := range s.Stages {
		end := start + st.Duration
		if elapsed < end {
			if st.Duration == 0 {
				return st.Target, i, false
			}
			frac := float64(elapsed-start) / float64(st.Duration)
			v := float64(from) + float64(st.Target-from)*frac
			return int(v + 0.5), i, false
		}
		from = st.Target
		start = end
	}
	return 0, len(s.Stages) - 1, true
}

// ParsedThresholds parses every threshold expression, sorted by metric name
// so summaries are stable.
func (s *Scenario) ParsedThresholds() ([]Threshold, error) {
	metrics := make([]string, 0, len(s.Thresholds))
	for m := range s.Thresholds {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	var out []Threshold
	for _, m := range metrics {
		if m == "" {
			return nil, fmt.Errorf("%w: threshold with empty metric name", ErrInvalid)
		}
		for _, expr := range s.Thresholds[m] {
			th, err := ParseThreshold(m, expr)
			if err != nil {
				return nil, err
			}
			out = append(out, th)
		}
	}
	return out, nil
}

// PullRequestReview is the default load profile: ramp to 100 users over
// seven minutes while creating pull requests and looking up reviews.
func PullRequestReview() *Scenario {
	return &Scenario{
		Name: "pull-request-review",
		Stages: []Stage{
			{Duration: 30 * time.Second, Target: 10},
			{Duration: 1 * time.Minute, Target: 50},
			{Duration: 2 * time.Minute, Target: 50},
			{Duration: 1 * time.Minute, Target: 100},
			{Duration: 2 * time.Minute, Target: 100},
			{Duration: 30 * time.Second, Target: 0},
		},
		GracefulStop: DefaultGracefulStop,
		Thresholds: map[string][]string{
			"http_req_duration": {"p(95)<500", "p(99)<1000"},
			"http_req_failed":   {"rate<0.05"},
			"errors":            {"rate<0.1"},
		},
	}
}

// Smoke is a single user polling /metrics for thirty seconds.
func Smoke() *Scenario {
	return &Scenario{
		Name:         "smoke",
		VUs:          1,
		Duration:     30 * time.Second,
		GracefulStop: DefaultGracefulStop,
	}
}
