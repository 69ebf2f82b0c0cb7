package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"prload/internal/scenario"
	"prload/internal/stats"
)

const defaultTick = 100 * time.Millisecond

// StatsSnapshot is sent over the channel
type StatsSnapshot struct {
	Elapsed    time.Duration
	Requests   uint64
	Failed     uint64
	Bytes      uint64
	Iterations uint64
	Inflight   int64
	ActiveVUs  int64
	TargetVUs  int64
	Stage      int

	// Pre-calculated percentiles for the UI (cheap copy)
	P50Ms  float64
	P90Ms  float64
	P95Ms  float64
	P99Ms  float64
	MaxMs  int64
	MeanMs float64

	ErrorRate    float64
	ChecksPassed uint64
	ChecksFailed uint64

	StatusCodes map[int]int
	ErrorCounts map[string]int
}

// StatsUpdateChan is the channel type
type StatsUpdateChan chan StatsSnapshot

// Runner drives a Script through a Scenario's ramp schedule.
type Runner struct {
	Cfg      Config
	Scenario *scenario.Scenario
	Script   Script
	Stats    *stats.Stats
	Client   *Client
	Log      *zap.Logger

	Results []ExperimentResult
	mu      sync.Mutex

	// Tick is the scheduler resolution.
	Tick time.Duration

	// Event Channel
	Updates StatsUpdateChan

	activeVUs int64
	targetVUs int64
	maxVUs    int64
	stage     int64
	startNano int64

	done chan struct{}
}

// NewRunner validates the scenario and wires the HTTP client. A non-nil
// error means no request was sent.
func NewRunner(cfg Config, sc *scenario.Scenario, script Script, updates StatsUpdateChan) (*Runner, error) {
	if sc == nil {
		return nil, fmt.Errorf("%w: no scenario", scenario.ErrInvalid)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if script == nil {
		return nil, errors.New("runner: no script")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("runner: base url is required")
	}

	if updates == nil {
		// Avoid nil panics if not provided
		updates = make(StatsUpdateChan, 10)
	}

	st := stats.NewStats()
	r := &Runner{
		Cfg:      cfg,
		Scenario: sc,
		Script:   script,
		Stats:    st,
		Client:   NewClient(cfg, st),
		Log:      zap.NewNop(),
		Tick:     defaultTick,
		Updates:  updates,
		done:     make(chan struct{}),
	}
	if cfg.KeepResults {
		r.Client.Observe = r.keep
	}
	return r, nil
}

func (r *Runner) keep(res ExperimentResult) {
	r.mu.Lock()
	r.Results = append(r.Results, res)
	r.mu.Unlock()
}

// SnapshotResults copies the per-request results kept so far.
func (r *Runner) SnapshotResults() []ExperimentResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ExperimentResult, len(r.Results))
	copy(out, r.Results)
	return out
}

// Done is closed when Run returns.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// StartTickLoop starts a goroutine that pushes stats updates
func (r *Runner) StartTickLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sendUpdate()
			}
		}
	}()
}

// Snapshot reads the current counters.
func (r *Runner) Snapshot() StatsSnapshot {
	passed, failed := r.Stats.CheckTotals()
	var elapsed time.Duration
	if start := atomic.LoadInt64(&r.startNano); start > 0 {
		elapsed = time.Since(time.Unix(0, start))
	}
	return StatsSnapshot{
		Elapsed:      elapsed,
		Requests:     atomic.LoadUint64(&r.Stats.Requests),
		Failed:       atomic.LoadUint64(&r.Stats.Failed),
		Bytes:        atomic.LoadUint64(&r.Stats.Bytes),
		Iterations:   atomic.LoadUint64(&r.Stats.Iterations),
		Inflight:     r.Client.Inflight(),
		ActiveVUs:    atomic.LoadInt64(&r.activeVUs),
		TargetVUs:    atomic.LoadInt64(&r.targetVUs),
		Stage:        int(atomic.LoadInt64(&r.stage)),
		P50Ms:        r.Stats.GetP50(),
		P90Ms:        r.Stats.GetP90(),
		P95Ms:        r.Stats.GetP95(),
		P99Ms:        r.Stats.GetP99(),
		MaxMs:        r.Stats.Duration.Max() / 1000,
		MeanMs:       r.Stats.MeanMs(),
		ErrorRate:    r.Stats.FailRate(),
		ChecksPassed: passed,
		ChecksFailed: failed,
		StatusCodes:  r.Stats.GetStatusCodes(),
		ErrorCounts:  r.Stats.GetErrorCounts(),
	}
}

func (r *Runner) sendUpdate() {
	s := r.Snapshot()

	// Non-blocking send
	select {
	case r.Updates <- s:
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}

// ActiveVUs is the number of VU goroutines still running.
func (r *Runner) ActiveVUs() int64 {
	return atomic.LoadInt64(&r.activeVUs)
}

// MaxVUs is the most VUs that ran at once.
func (r *Runner) MaxVUs() int64 {
	return atomic.LoadInt64(&r.maxVUs)
}

// Run executes setup, the staged load and teardown. Cancelling ctx ends the
// load phase early; teardown still runs. Run can only be called once.
func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)

	atomic.StoreInt64(&r.startNano, time.Now().UnixNano())

	tickCtx, stopTicks := context.WithCancel(ctx)
	defer stopTicks()
	r.StartTickLoop(tickCtx, 200*time.Millisecond)

	r.Log.Info("setup started", zap.String("scenario", r.Scenario.Name), zap.String("base_url", r.Cfg.BaseURL))
	data := r.Script.Setup(ctx, r.Client)

	r.runStages(ctx, data)

	r.Script.Teardown(context.WithoutCancel(ctx), data)
	r.sendUpdate()
}

// vuHandle is the scheduler's grip on one VU goroutine.
type vuHandle struct {
	stop chan struct{}
	done chan struct{}
}

// runStages owns the VU pool. One goroutine advances the stage clock and
// grows or shrinks the pool; VUs asked to leave finish their iteration
// first and keep counting against the target until they have.
func (r *Runner) runStages(ctx context.Context, data any) {
	hardCtx, hardCancel := context.WithCancel(ctx)
	defer hardCancel()

	var wg sync.WaitGroup
	var pool, draining []vuHandle
	nextID := 1

	clock := newStageClock(r.Scenario, time.Now())
	ticker := time.NewTicker(r.Tick)
	defer ticker.Stop()

loop:
	for {
		s := clock.advance(time.Now())
		if s.Done {
			break
		}
		if s.StageChanged {
			atomic.StoreInt64(&r.stage, int64(s.Stage))
			r.Log.Info("stage started",
				zap.Int("stage", s.Stage),
				zap.Int("target_vus", r.stageTarget(s.Stage)),
				zap.Duration("elapsed", s.Elapsed),
			)
		}
		atomic.StoreInt64(&r.targetVUs, int64(s.Target))

		draining = stillRunning(draining)
		for len(pool)+len(draining) < s.Target {
			h := vuHandle{stop: make(chan struct{}), done: make(chan struct{})}
			pool = append(pool, h)
			vu := &VU{ID: nextID, client: r.Client}
			nextID++

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer close(h.done)
				r.runVU(hardCtx, vu, h.stop, data)
			}()
		}
		for len(pool) > s.Target {
			last := len(pool) - 1
			close(pool[last].stop)
			draining = append(draining, pool[last])
			pool = pool[:last]
		}

		select {
		case <-ctx.Done():
			r.Log.Warn("run interrupted", zap.Error(ctx.Err()))
			break loop
		case <-ticker.C:
		}
	}

	atomic.StoreInt64(&r.targetVUs, 0)
	for _, h := range pool {
		close(h.stop)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	grace := time.NewTimer(r.Scenario.GracefulStop)
	defer grace.Stop()
	select {
	case <-finished:
	case <-grace.C:
		r.Log.Warn("graceful stop expired, interrupting iterations",
			zap.Duration("graceful_stop", r.Scenario.GracefulStop),
			zap.Int64("active_vus", r.ActiveVUs()),
		)
		hardCancel()
		<-finished
	}
}

func (r *Runner) stageTarget(i int) int {
	if len(r.Scenario.Stages) == 0 {
		return r.Scenario.VUs
	}
	return r.Scenario.Stages[i].Target
}

func (r *Runner) runVU(ctx context.Context, vu *VU, stop <-chan struct{}, data any) {
	n := atomic.AddInt64(&r.activeVUs, 1)
	defer atomic.AddInt64(&r.activeVUs, -1)
	for {
		peak := atomic.LoadInt64(&r.maxVUs)
		if n <= peak || atomic.CompareAndSwapInt64(&r.maxVUs, peak, n) {
			break
		}
	}

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		r.Script.Iteration(ctx, vu, data)
		if ctx.Err() == nil {
			r.Stats.AddIteration()
		}
		vu.Iteration++
	}
}

// stillRunning drops the VUs that have exited.
func stillRunning(vus []vuHandle) []vuHandle {
	out := vus[:0]
	for _, h := range vus {
		select {
		case <-h.done:
		default:
			out = append(out, h)
		}
	}
	return out
}
