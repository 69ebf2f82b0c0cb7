package runner

import (
	"context"
	"net/http"
	"time"

	"prload/internal/stats"
)

// VU is one virtual user. ID is 1-based; Iteration counts from 0 and is
// only touched by the VU's own goroutine.
type VU struct {
	ID        int
	Iteration int

	client *Client
}

// NewVU binds a virtual user to c. The runner builds its own; this is for
// driving a script by hand.
func NewVU(id int, c *Client) *VU {
	return &VU{ID: id, client: c}
}

func (vu *VU) Get(ctx context.Context, name, path string) *Response {
	return vu.client.do(ctx, vu.ID, vu.Iteration, name, http.MethodGet, path, nil)
}

func (vu *VU) PostJSON(ctx context.Context, name, path string, body any) *Response {
	return vu.client.do(ctx, vu.ID, vu.Iteration, name, http.MethodPost, path, body)
}

// Stats is where this VU's requests and checks are tallied.
func (vu *VU) Stats() *stats.Stats {
	return vu.client.Stats
}

// Sleep pauses for d, returning false if ctx ended first.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
