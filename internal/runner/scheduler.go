package runner

import (
	"time"

	"prload/internal/scenario"
)

// step is what the stage clock decided for one tick.
type step struct {
	Elapsed      time.Duration
	Target       int
	Stage        int
	StageChanged bool
	Done         bool
}

// stageClock is the ramp state machine. Only the scheduler goroutine
// advances it, so VU loops never look at the clock themselves.
type stageClock struct {
	sc    *scenario.Scenario
	start time.Time
	stage int
	done  bool
}

func newStageClock(sc *scenario.Scenario, start time.Time) *stageClock {
	return &stageClock{sc: sc, start: start, stage: -1}
}

// advance moves the machine to now. Once done it stays done.
func (c *stageClock) advance(now time.Time) step {
	elapsed := now.Sub(c.start)
	if c.done {
		return step{Elapsed: elapsed, Stage: c.stage, Done: true}
	}

	target, stage, done := c.sc.TargetAt(elapsed)
	s := step{
		Elapsed:      elapsed,
		Target:       target,
		Stage:        stage,
		StageChanged: stage != c.stage && !done,
		Done:         done,
	}
	c.stage = stage
	c.done = done
	return s
}
