package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinsValidate(t *testing.T) {
	require.NoError(t, PullRequestReview().Validate())
	require.NoError(t, Smoke().Validate())

	pr := PullRequestReview()
	assert.Equal(t, 7*time.Minute, pr.TotalDuration())
	assert.Equal(t, 100, pr.MaxVUs())

	smoke := Smoke()
	assert.Equal(t, 30*time.Second, smoke.TotalDuration())
	assert.Equal(t, 1, smoke.MaxVUs())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(s *Scenario){
		"negative stage duration": func(s *Scenario) { s.Stages[0].Duration = -time.Second },
		"negative stage target":   func(s *Scenario) { s.Stages[1].Target = -1 },
		"bad threshold":           func(s *Scenario) { s.Thresholds["errors"] = []string{"rate<<0.1"} },
		"no name":                 func(s *Scenario) { s.Name = "" },
		"no duration":             func(s *Scenario) { s.Stages = []Stage{{Duration: 0, Target: 5}} },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := PullRequestReview()
			mutate(s)
			err := s.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "want ErrInvalid, got %v", err)
		})
	}
}

func TestConstantNeedsVUs(t *testing.T) {
	s := &Scenario{Name: "c", Duration: time.Second}
	assert.ErrorIs(t, s.Validate(), ErrInvalid)
}

func TestTargetAtRamps(t *testing.T) {
	s := &Scenario{
		Name: "ramp",
		Stages: []Stage{
			{Duration: 10 * time.Second, Target: 10},
			{Duration: 10 * time.Second, Target: 10},
			{Duration: 10 * time.Second, Target: 0},
		},
	}

	tests := []struct {
		elapsed time.Duration
		target  int
		stage   int
		done    bool
	}{
		{0, 0, 0, false},
		{5 * time.Second, 5, 0, false},
		{10 * time.Second, 10, 1, false},
		{15 * time.Second, 10, 1, false},
		{25 * time.Second, 5, 2, false},
		{30 * time.Second, 0, 2, true},
		{time.Minute, 0, 2, true},
	}

	for _, tt := range tests {
		target, stage, done := s.TargetAt(tt.elapsed)
		if target != tt.target || stage != tt.stage || done != tt.done {
			t.Errorf("TargetAt(%s) = (%d, %d, %v), want (%d, %d, %v)",
				tt.elapsed, target, stage, done, tt.target, tt.stage, tt.done)
		}
	}
}

func TestTargetAtConstant(t *testing.T) {
	s := Smoke()
	target, _, done := s.TargetAt(10 * time.Second)
	assert.Equal(t, 1, target)
	assert.False(t, done)

	_, _, done = s.TargetAt(30 * time.Second)
	assert.True(t, done)
}

func TestParsedThresholdsSorted(t *testing.T) {
	ths, err := PullRequestReview().ParsedThresholds()
	require.NoError(t, err)
	require.Len(t, ths, 4)

	assert.Equal(t, "errors", ths[0].Metric)
	assert.Equal(t, "http_req_duration", ths[1].Metric)
	assert.Equal(t, "p(95)", ths[1].Agg)
	assert.Equal(t, "p(99)", ths[2].Agg)
	assert.Equal(t, "http_req_failed", ths[3].Metric)
}

func TestLoadFileOverridesStages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	content := `
stages:
  - duration: 2s
    target: 3
  - duration: 1s
    target: 0
graceful_stop: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := LoadFile(path, PullRequestReview())
	require.NoError(t, err)

	assert.Equal(t, "pull-request-review", s.Name)
	assert.Equal(t, []Stage{{2 * time.Second, 3}, {time.Second, 0}}, s.Stages)
	assert.Equal(t, 5*time.Second, s.GracefulStop)
	// compiled thresholds survive
	assert.Len(t, s.Thresholds, 3)
}

func TestParseConstantReplacesRamp(t *testing.T) {
	s, err := Parse([]byte("vus: 2\nduration: 3s\nthresholds:\n  checks: [\"rate>0.9\"]\n"), PullRequestReview())
	require.NoError(t, err)

	assert.Nil(t, s.Stages)
	assert.Equal(t, 2, s.VUs)
	assert.Equal(t, 3*time.Second, s.TotalDuration())
	assert.Equal(t, map[string][]string{"checks": {"rate>0.9"}}, s.Thresholds)
}

func TestParseRejectsNegativeTarget(t *testing.T) {
	_, err := Parse([]byte("stages:\n  - duration: 1s\n    target: -2\n"), nil)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalid))
}
