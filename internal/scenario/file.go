package scenario

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileScenario is the on-disk shape. Durations are Go duration strings.
type fileScenario struct {
	Name         string              `yaml:"name"`
	VUs          int                 `yaml:"vus"`
	Duration     time.Duration       `yaml:"duration"`
	GracefulStop *time.Duration      `yaml:"graceful_stop"`
	Stages       []fileStage         `yaml:"stages"`
	Thresholds   map[string][]string `yaml:"thresholds"`
}

type fileStage struct {
	Duration time.Duration `yaml:"duration"`
	Target   int           `yaml:"target"`
}

// LoadFile reads a YAML scenario on top of base, so a file may override only
// the stages or only the thresholds. The result is validated.
//
//	name: pull-request-review
//	stages:
//	  - duration: 10s
//	    target: 5
//	thresholds:
//	  http_req_duration: ["p(95)<500"]
func LoadFile(path string, base *Scenario) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %w", path, err)
	}
	return Parse(data, base)
}

// Parse is LoadFile without the file.
func Parse(data []byte, base *Scenario) (*Scenario, error) {
	var fs fileScenario
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("%w: failed to parse scenario: %v", ErrInvalid, err)
	}

	s := &Scenario{GracefulStop: DefaultGracefulStop}
	if base != nil {
		cp := *base
		s = &cp
	}

	if fs.Name != "" {
		s.Name = fs.Name
	}
	if len(fs.Stages) > 0 {
		s.Stages = make([]Stage, len(fs.Stages))
		for i, st := range fs.Stages {
			s.Stages[i] = Stage{Duration: st.Duration, Target: st.Target}
		}
	}
	if fs.VUs != 0 || fs.Duration != 0 {
		// A constant profile in the file replaces any compiled ramp.
		if len(fs.Stages) == 0 {
			s.Stages = nil
		}
		s.VUs = fs.VUs
		s.Duration = fs.Duration
	}
	if fs.GracefulStop != nil {
		s.GracefulStop = *fs.GracefulStop
	}
	if fs.Thresholds != nil {
		s.Thresholds = fs.Thresholds
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
