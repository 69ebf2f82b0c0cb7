package check

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prload/internal/runner"
	"prload/internal/stats"
)

func TestRunAllPass(t *testing.T) {
	st := stats.NewStats()
	res := &runner.Response{Status: 201, Duration: 100 * time.Millisecond}

	ok := Run(st, res,
		StatusIs("created", 201),
		DurationUnder("fast", 500*time.Millisecond),
	)

	assert.True(t, ok)
	passes, fails := st.CheckTotals()
	assert.EqualValues(t, 2, passes)
	assert.Zero(t, fails)
}

func TestRunEvaluatesEveryCheck(t *testing.T) {
	st := stats.NewStats()
	res := &runner.Response{Status: 500, Duration: time.Second}

	ok := Run(st, res,
		StatusIs("created", 201),
		DurationUnder("fast", 500*time.Millisecond),
		StatusIs("server error", 500),
	)

	assert.False(t, ok)
	checks := st.Checks()
	require.Len(t, checks, 3)
	assert.EqualValues(t, 1, checks[0].Fails())
	assert.EqualValues(t, 1, checks[1].Fails())
	assert.EqualValues(t, 1, checks[2].Passes())
}

func TestStatusIsFailsOnTransportError(t *testing.T) {
	res := &runner.Response{Err: errors.New("dial tcp: connection refused")}
	assert.False(t, Run(stats.NewStats(), res, StatusIs("ok", 0)))
}

func TestPanickingPredicateIsAFailure(t *testing.T) {
	st := stats.NewStats()
	boom := Check{Name: "boom", Pred: func(*runner.Response) bool { panic("bad predicate") }}

	assert.NotPanics(t, func() {
		assert.False(t, Run(st, &runner.Response{Status: 200}, boom))
	})
	assert.EqualValues(t, 1, st.Check("boom").Fails())
}

func TestNilResponse(t *testing.T) {
	assert.False(t, Run(stats.NewStats(), nil, StatusIs("ok", 200)))
}
