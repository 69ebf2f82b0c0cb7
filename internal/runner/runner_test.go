package runner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prload/internal/scenario"
)

type countingScript struct {
	setups    int32
	teardowns int32
	started   int64
	finished  int64
	pause     time.Duration
	path      string
}

func (s *countingScript) Setup(ctx context.Context, c *Client) any {
	atomic.AddInt32(&s.setups, 1)
	return "team"
}

func (s *countingScript) Iteration(ctx context.Context, vu *VU, data any) {
	atomic.AddInt64(&s.started, 1)
	if s.path != "" {
		vu.Get(ctx, "ok", s.path)
	}
	if Sleep(ctx, s.pause) {
		atomic.AddInt64(&s.finished, 1)
	}
}

func (s *countingScript) Teardown(ctx context.Context, data any) {
	if data == "team" {
		atomic.AddInt32(&s.teardowns, 1)
	}
}

func okServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestRunner(t *testing.T, url string, sc *scenario.Scenario, script Script) *Runner {
	t.Helper()
	r, err := NewRunner(Config{BaseURL: url, Timeout: time.Second}, sc, script, nil)
	require.NoError(t, err)
	r.Tick = 5 * time.Millisecond
	return r
}

func TestStageClock(t *testing.T) {
	sc := &scenario.Scenario{Stages: []scenario.Stage{
		{Duration: time.Second, Target: 10},
		{Duration: time.Second, Target: 10},
		{Duration: time.Second, Target: 0},
	}}
	start := time.Unix(0, 0)
	c := newStageClock(sc, start)

	s := c.advance(start)
	assert.True(t, s.StageChanged)
	assert.Equal(t, 0, s.Stage)
	assert.Equal(t, 0, s.Target)

	s = c.advance(start.Add(500 * time.Millisecond))
	assert.False(t, s.StageChanged)
	assert.Equal(t, 5, s.Target)

	s = c.advance(start.Add(1200 * time.Millisecond))
	assert.True(t, s.StageChanged)
	assert.Equal(t, 1, s.Stage)
	assert.Equal(t, 10, s.Target)

	s = c.advance(start.Add(2500 * time.Millisecond))
	assert.Equal(t, 2, s.Stage)
	assert.Equal(t, 5, s.Target)

	s = c.advance(start.Add(3 * time.Second))
	assert.True(t, s.Done)
	assert.False(t, s.StageChanged)

	s = c.advance(start.Add(time.Second))
	assert.True(t, s.Done, "done is sticky")
}

func TestNewRunnerRejectsBadInput(t *testing.T) {
	_, err := NewRunner(Config{BaseURL: "http://x"}, nil, &countingScript{}, nil)
	assert.ErrorIs(t, err, scenario.ErrInvalid)

	_, err = NewRunner(Config{BaseURL: "http://x"}, &scenario.Scenario{Name: "empty"}, &countingScript{}, nil)
	assert.ErrorIs(t, err, scenario.ErrInvalid)

	_, err = NewRunner(Config{}, scenario.Smoke(), &countingScript{}, nil)
	assert.Error(t, err)

	_, err = NewRunner(Config{BaseURL: "http://x"}, scenario.Smoke(), nil, nil)
	assert.Error(t, err)
}

func TestRunConstantVUs(t *testing.T) {
	ts := okServer(t)
	script := &countingScript{pause: 10 * time.Millisecond, path: "/ok"}
	sc := &scenario.Scenario{Name: "const", VUs: 3, Duration: 200 * time.Millisecond, GracefulStop: time.Second}
	r := newTestRunner(t, ts.URL, sc, script)

	r.Run(context.Background())

	assert.EqualValues(t, 1, script.setups)
	assert.EqualValues(t, 1, script.teardowns)
	assert.EqualValues(t, 3, r.MaxVUs())
	assert.Zero(t, r.ActiveVUs())
	assert.Positive(t, atomic.LoadUint64(&r.Stats.Requests))
	assert.Zero(t, atomic.LoadUint64(&r.Stats.Failed))
	assert.Equal(t, atomic.LoadInt64(&script.finished), int64(atomic.LoadUint64(&r.Stats.Iterations)))

	select {
	case <-r.Done():
	default:
		t.Fatal("Done not closed after Run")
	}
}

func TestRampDownFinishesIterations(t *testing.T) {
	ts := okServer(t)
	script := &countingScript{pause: 40 * time.Millisecond}
	sc := &scenario.Scenario{
		Name: "ramp",
		Stages: []scenario.Stage{
			{Duration: 60 * time.Millisecond, Target: 4},
			{Duration: 60 * time.Millisecond, Target: 0},
		},
		GracefulStop: 5 * time.Second,
	}
	r := newTestRunner(t, ts.URL, sc, script)

	r.Run(context.Background())

	assert.LessOrEqual(t, r.MaxVUs(), int64(4))
	assert.Positive(t, r.MaxVUs())
	assert.Equal(t, atomic.LoadInt64(&script.started), atomic.LoadInt64(&script.finished),
		"a stopped VU must finish the iteration it is in")
}

func TestDrainingVUsCountAgainstTarget(t *testing.T) {
	script := &countingScript{pause: 400 * time.Millisecond}
	sc := &scenario.Scenario{
		Name: "down-then-up",
		Stages: []scenario.Stage{
			{Duration: 200 * time.Millisecond, Target: 2},
			{Duration: 20 * time.Millisecond, Target: 0},
			{Duration: 300 * time.Millisecond, Target: 2},
		},
		GracefulStop: 2 * time.Second,
	}
	r := newTestRunner(t, "http://127.0.0.1:1", sc, script)

	r.Run(context.Background())

	assert.Positive(t, atomic.LoadInt64(&script.started))
	assert.LessOrEqual(t, r.MaxVUs(), int64(2),
		"VUs still finishing an iteration must hold their slot")
}

func TestGracefulStopInterruptsLongIterations(t *testing.T) {
	ts := okServer(t)
	script := &countingScript{pause: time.Minute}
	sc := &scenario.Scenario{Name: "slow", VUs: 2, Duration: 30 * time.Millisecond, GracefulStop: 50 * time.Millisecond}
	r := newTestRunner(t, ts.URL, sc, script)

	start := time.Now()
	r.Run(context.Background())

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Zero(t, atomic.LoadInt64(&script.finished))
	assert.Zero(t, atomic.LoadUint64(&r.Stats.Iterations), "interrupted iterations are not counted")
	assert.EqualValues(t, 1, script.teardowns)
}

func TestCancelEndsRunAndStillTearsDown(t *testing.T) {
	ts := okServer(t)
	script := &countingScript{pause: 5 * time.Millisecond}
	sc := &scenario.Scenario{Name: "long", VUs: 2, Duration: time.Hour, GracefulStop: time.Second}
	r := newTestRunner(t, ts.URL, sc, script)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.EqualValues(t, 1, script.teardowns)
}

func TestTimeoutIsAFailedRequest(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	r, err := NewRunner(Config{BaseURL: slow.URL, Timeout: 50 * time.Millisecond}, scenario.Smoke(), &countingScript{}, nil)
	require.NoError(t, err)

	res := r.Client.Get(context.Background(), "slow", "/")
	require.Error(t, res.Err)
	assert.Zero(t, res.Status)
	assert.EqualValues(t, 1, atomic.LoadUint64(&r.Stats.Failed))
	assert.Equal(t, 1, r.Stats.GetStatusCodes()[0])
}

func TestKeepResults(t *testing.T) {
	ts := okServer(t)
	r, err := NewRunner(Config{BaseURL: ts.URL, Timeout: time.Second, KeepResults: true}, scenario.Smoke(), &countingScript{}, nil)
	require.NoError(t, err)

	vu := NewVU(7, r.Client)
	vu.Iteration = 2
	res := vu.Get(context.Background(), "ok", "/ok")
	require.NoError(t, res.Err)

	require.Len(t, r.Results, 1)
	got := r.Results[0]
	assert.Equal(t, 7, got.VU)
	assert.Equal(t, 2, got.Iteration)
	assert.True(t, got.Success)
	assert.Equal(t, ts.URL+"/ok", got.URL)
	assert.EqualValues(t, 2, got.Bytes)
}

func TestSnapshot(t *testing.T) {
	ts := okServer(t)
	updates := make(StatsUpdateChan, 100)
	sc := &scenario.Scenario{Name: "snap", VUs: 1, Duration: 300 * time.Millisecond, GracefulStop: time.Second}
	r, err := NewRunner(Config{BaseURL: ts.URL, Timeout: time.Second}, sc, &countingScript{pause: 10 * time.Millisecond, path: "/ok"}, updates)
	require.NoError(t, err)
	r.Tick = 5 * time.Millisecond

	r.Run(context.Background())

	var last StatsSnapshot
	for len(updates) > 0 {
		last = <-updates
	}
	assert.Positive(t, last.Requests)
	assert.Zero(t, last.ActiveVUs)
	assert.Zero(t, last.ErrorRate)
	assert.Positive(t, last.Elapsed)
	assert.Len(t, last.StatusCodes, 1)
	assert.Positive(t, last.StatusCodes[200])
}
