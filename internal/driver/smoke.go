package driver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"prload/internal/check"
	"prload/internal/runner"
)

const nameMetrics = "metrics"

// SmokeProbe polls /metrics as a liveness check rather than as load.
type SmokeProbe struct {
	Log   *zap.Logger
	Pause time.Duration
}

func NewSmokeProbe(log *zap.Logger) *SmokeProbe {
	if log == nil {
		log = zap.NewNop()
	}
	return &SmokeProbe{Log: log, Pause: time.Second}
}

func (p *SmokeProbe) Setup(context.Context, *runner.Client) any { return nil }

func (p *SmokeProbe) Iteration(ctx context.Context, vu *runner.VU, _ any) {
	res := vu.Get(ctx, nameMetrics, "/metrics")
	check.Run(vu.Stats(), res, check.StatusIs("metrics available", 200))
	runner.Sleep(ctx, p.Pause)
}

func (p *SmokeProbe) Teardown(context.Context, any) {
	p.Log.Info("smoke run completed")
}
