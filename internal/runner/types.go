package runner

import (
	"context"
	"time"
)

type Config struct {
	BaseURL string
	Timeout time.Duration

	// Skip TLS verification for self-signed targets
	Insecure bool

	// Keep every request in Runner.Results for CSV export
	KeepResults bool
}

// Script is what a scenario runs. Setup and Teardown run once; Iteration
// runs in a loop on every virtual user with Setup's result, which it must
// treat as read-only.
type Script interface {
	Setup(ctx context.Context, c *Client) any
	Iteration(ctx context.Context, vu *VU, data any)
	Teardown(ctx context.Context, data any)
}

// Response is one finished request. Err is set for connection-level
// failures (refused, DNS, timeout); Status stays 0 if no response arrived.
type Response struct {
	Name      string
	Method    string
	URL       string
	TimeStamp time.Time
	Status    int
	Duration  time.Duration
	Bytes     int64
	Body      []byte
	Err       error
}

// ExperimentResult is the per-request record kept for export.
type ExperimentResult struct {
	TimeStamp time.Time     `json:"timestamp"`
	Latency   time.Duration `json:"latency"`
	Name      string        `json:"name"`
	Method    string        `json:"method"`
	URL       string        `json:"url"`
	Status    int           `json:"status"`
	Success   bool          `json:"success"`
	Bytes     int64         `json:"bytes"`
	VU        int           `json:"vu"`
	Iteration int           `json:"iteration"`
	Err       string        `json:"error,omitempty"`
}
