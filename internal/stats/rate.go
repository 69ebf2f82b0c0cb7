package stats

import "sync/atomic"

// Rate is the fraction of samples that were true. Add only increments, so
// concurrent writers never race on a read-modify-write.
type Rate struct {
	hits  uint64
	total uint64
}

// Add records one sample.
func (r *Rate) Add(hit bool) {
	if hit {
		atomic.AddUint64(&r.hits, 1)
	}
	atomic.AddUint64(&r.total, 1)
}

func (r *Rate) Hits() uint64  { return atomic.LoadUint64(&r.hits) }
func (r *Rate) Total() uint64 { return atomic.LoadUint64(&r.total) }

// Value is hits/total, 0 with no samples.
func (r *Rate) Value() float64 {
	total := r.Total()
	if total == 0 {
		return 0
	}
	return float64(r.Hits()) / float64(total)
}

// CheckCounter tallies one named check.
type CheckCounter struct {
	Name   string
	passes uint64
	fails  uint64
}

func (c *CheckCounter) Add(ok bool) {
	if ok {
		atomic.AddUint64(&c.passes, 1)
	} else {
		atomic.AddUint64(&c.fails, 1)
	}
}

func (c *CheckCounter) Passes() uint64 { return atomic.LoadUint64(&c.passes) }
func (c *CheckCounter) Fails() uint64  { return atomic.LoadUint64(&c.fails) }
