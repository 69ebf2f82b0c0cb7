package stats

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Stats holds real-time aggregated metrics. Every method is safe for
// concurrent use by many virtual users.
type Stats struct {
	Requests   uint64
	Failed     uint64
	Bytes      uint64
	Iterations uint64

	// Latency of every request (microseconds)
	Duration *SafeHistogram

	mu          sync.Mutex
	endpoints   map[string]*SafeHistogram
	statusCodes map[int]int
	errorCounts map[string]int

	ratesMu sync.RWMutex
	rates   map[string]*Rate

	checksMu sync.Mutex
	checks   []*CheckCounter
	checkIdx map[string]*CheckCounter
}

func NewStats() *Stats {
	return &Stats{
		Duration:    NewSafeHistogram(),
		endpoints:   make(map[string]*SafeHistogram),
		statusCodes: make(map[int]int),
		errorCounts: make(map[string]int),
		rates:       make(map[string]*Rate),
		checkIdx:    make(map[string]*CheckCounter),
	}
}

// Record adds one finished request. name groups requests by endpoint;
// status is 0 when err is set.
func (s *Stats) Record(name string, status int, err error, d time.Duration, bytes int64) {
	atomic.AddUint64(&s.Requests, 1)
	if Failed(status, err) {
		atomic.AddUint64(&s.Failed, 1)
	}
	if bytes > 0 {
		atomic.AddUint64(&s.Bytes, uint64(bytes))
	}

	s.Duration.RecordDuration(d)

	s.mu.Lock()
	h, ok := s.endpoints[name]
	if !ok {
		h = NewSafeHistogram()
		s.endpoints[name] = h
	}
	s.statusCodes[status]++
	if err != nil {
		s.errorCounts[ErrorKind(err)]++
	}
	s.mu.Unlock()

	h.RecordDuration(d)
}

// Failed reports whether a request counts toward http_req_failed: a
// transport error or a status outside 200-399.
func Failed(status int, err error) bool {
	return err != nil || status < 200 || status >= 400
}

// AddIteration counts one completed iteration.
func (s *Stats) AddIteration() {
	atomic.AddUint64(&s.Iterations, 1)
}

// Rate returns the named rate metric, creating it on first use.
func (s *Stats) Rate(name string) *Rate {
	s.ratesMu.RLock()
	r, ok := s.rates[name]
	s.ratesMu.RUnlock()
	if ok {
		return r
	}

	s.ratesMu.Lock()
	defer s.ratesMu.Unlock()
	if r, ok = s.rates[name]; ok {
		return r
	}
	r = &Rate{}
	s.rates[name] = r
	return r
}

// RateNames lists custom rate metrics, sorted.
func (s *Stats) RateNames() []string {
	s.ratesMu.RLock()
	defer s.ratesMu.RUnlock()
	names := make([]string, 0, len(s.rates))
	for n := range s.rates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Check returns the counter for a named check, in first-seen order.
func (s *Stats) Check(name string) *CheckCounter {
	s.checksMu.Lock()
	defer s.checksMu.Unlock()
	c, ok := s.checkIdx[name]
	if !ok {
		c = &CheckCounter{Name: name}
		s.checkIdx[name] = c
		s.checks = append(s.checks, c)
	}
	return c
}

// Checks returns every check counter in the order checks were first seen.
func (s *Stats) Checks() []*CheckCounter {
	s.checksMu.Lock()
	defer s.checksMu.Unlock()
	out := make([]*CheckCounter, len(s.checks))
	copy(out, s.checks)
	return out
}

// CheckTotals sums passes and fails over every check.
func (s *Stats) CheckTotals() (passes, fails uint64) {
	for _, c := range s.Checks() {
		passes += c.Passes()
		fails += c.Fails()
	}
	return passes, fails
}

// Endpoint returns the latency histogram for a request name, or nil.
func (s *Stats) Endpoint(name string) *SafeHistogram {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoints[name]
}

// EndpointNames lists request names seen so far, sorted.
func (s *Stats) EndpointNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.endpoints))
	for n := range s.endpoints {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GetStatusCodes returns a copy of the status code breakdown. Code 0 means
// the request never got a response.
func (s *Stats) GetStatusCodes() map[int]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]int, len(s.statusCodes))
	for k, v := range s.statusCodes {
		out[k] = v
	}
	return out
}

// GetErrorCounts returns a copy of transport errors by kind.
func (s *Stats) GetErrorCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorCounts))
	for k, v := range s.errorCounts {
		out[k] = v
	}
	return out
}

// FailRate is http_req_failed as a fraction.
func (s *Stats) FailRate() float64 {
	reqs := atomic.LoadUint64(&s.Requests)
	if reqs == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&s.Failed)) / float64(reqs)
}

func (s *Stats) GetP50() float64 { return s.Duration.QuantileMs(50) }
func (s *Stats) GetP90() float64 { return s.Duration.QuantileMs(90) }
func (s *Stats) GetP95() float64 { return s.Duration.QuantileMs(95) }
func (s *Stats) GetP99() float64 { return s.Duration.QuantileMs(99) }

// MeanMs returns the average request duration in milliseconds
func (s *Stats) MeanMs() float64 {
	return s.Duration.Mean() / 1000.0
}
