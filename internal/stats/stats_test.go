package stats

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	s := NewStats()

	s.Record("create", 201, nil, 20*time.Millisecond, 10)
	s.Record("create", 500, nil, 40*time.Millisecond, 5)
	s.Record("lookup", 0, errors.New("connection refused"), time.Second, 0)

	assert.EqualValues(t, 3, s.Requests)
	assert.EqualValues(t, 2, s.Failed)
	assert.EqualValues(t, 15, s.Bytes)
	assert.InDelta(t, 2.0/3.0, s.FailRate(), 1e-9)

	assert.Equal(t, map[int]int{201: 1, 500: 1, 0: 1}, s.GetStatusCodes())
	assert.Equal(t, map[string]int{"connection refused": 1}, s.GetErrorCounts())

	assert.Equal(t, []string{"create", "lookup"}, s.EndpointNames())
	require.NotNil(t, s.Endpoint("create"))
	assert.EqualValues(t, 2, s.Endpoint("create").TotalCount())
	assert.Nil(t, s.Endpoint("missing"))

	assert.InDelta(t, 1000, s.Duration.QuantileMs(100), 1)
}

func TestFailed(t *testing.T) {
	assert.False(t, Failed(200, nil))
	assert.False(t, Failed(201, nil))
	assert.False(t, Failed(302, nil))
	assert.True(t, Failed(404, nil))
	assert.True(t, Failed(500, nil))
	assert.True(t, Failed(0, errors.New("timeout")))
	assert.True(t, Failed(100, nil))
}

func TestRateMixedSequence(t *testing.T) {
	s := NewStats()
	r := s.Rate("errors")

	// 7 successes, 3 failures
	for i := 0; i < 7; i++ {
		r.Add(false)
	}
	for i := 0; i < 3; i++ {
		r.Add(true)
	}

	assert.Same(t, r, s.Rate("errors"))
	assert.EqualValues(t, 3, r.Hits())
	assert.EqualValues(t, 10, r.Total())
	assert.InDelta(t, 0.3, r.Value(), 1e-9)
	assert.Equal(t, []string{"errors"}, s.RateNames())
}

func TestRateEmpty(t *testing.T) {
	assert.Zero(t, (&Rate{}).Value())
}

func TestConcurrentWriters(t *testing.T) {
	s := NewStats()
	const workers, each = 16, 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				fail := i%5 == 0
				s.Rate("errors").Add(fail)
				s.Check("status is 201").Add(!fail)
				s.Record("create", 201, nil, time.Millisecond, 1)
				s.AddIteration()
			}
		}(w)
	}
	wg.Wait()

	total := uint64(workers * each)
	assert.Equal(t, total, s.Requests)
	assert.Equal(t, total, s.Iterations)
	assert.Equal(t, total, s.Rate("errors").Total())
	assert.Equal(t, total/5, s.Rate("errors").Hits())

	passes, fails := s.CheckTotals()
	assert.Equal(t, total-total/5, passes)
	assert.Equal(t, total/5, fails)
}

func TestChecksKeepFirstSeenOrder(t *testing.T) {
	s := NewStats()
	s.Check("b").Add(true)
	s.Check("a").Add(false)
	s.Check("b").Add(false)

	checks := s.Checks()
	require.Len(t, checks, 2)
	assert.Equal(t, "b", checks[0].Name)
	assert.EqualValues(t, 1, checks[0].Passes())
	assert.EqualValues(t, 1, checks[0].Fails())
	assert.Equal(t, "a", checks[1].Name)
}

func TestHistogramClamps(t *testing.T) {
	h := NewSafeHistogram()
	require.NoError(t, h.RecordDuration(time.Hour))
	require.NoError(t, h.RecordValue(-5))
	assert.EqualValues(t, 2, h.TotalCount())
}
