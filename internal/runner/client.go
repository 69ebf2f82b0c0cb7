package runner

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"prload/internal/stats"
)

// Bodies past this are drained but not kept.
const maxBodyBytes = 64 << 10

// Client issues requests against the base URL and records every one of
// them in Stats. It never returns an error: failures live on the Response.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Stats   *stats.Stats

	// Observe, if set, sees every request (used to keep results).
	Observe func(ExperimentResult)

	inflight int64
}

func NewClient(cfg Config, st *stats.Stats) *Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	if cfg.Insecure {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		HTTP: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: t,
		},
		Stats: st,
	}
}

func (c *Client) Inflight() int64 {
	return atomic.LoadInt64(&c.inflight)
}

// Get issues a GET for path (which may carry a query string).
func (c *Client) Get(ctx context.Context, name, path string) *Response {
	return c.do(ctx, 0, 0, name, http.MethodGet, path, nil)
}

// PostJSON posts body encoded as JSON.
func (c *Client) PostJSON(ctx context.Context, name, path string, body any) *Response {
	return c.do(ctx, 0, 0, name, http.MethodPost, path, body)
}

func (c *Client) do(ctx context.Context, vu, iter int, name, method, path string, body any) *Response {
	res := &Response{
		Name:      name,
		Method:    method,
		URL:       c.BaseURL + path,
		TimeStamp: time.Now(),
	}

	atomic.AddInt64(&c.inflight, 1)
	defer atomic.AddInt64(&c.inflight, -1)

	start := time.Now()
	c.send(ctx, res, body)
	res.Duration = time.Since(start)

	c.Stats.Record(name, res.Status, res.Err, res.Duration, res.Bytes)

	if c.Observe != nil {
		r := ExperimentResult{
			TimeStamp: res.TimeStamp,
			Latency:   res.Duration,
			Name:      name,
			Method:    method,
			URL:       res.URL,
			Status:    res.Status,
			Success:   !stats.Failed(res.Status, res.Err),
			Bytes:     res.Bytes,
			VU:        vu,
			Iteration: iter,
		}
		if res.Err != nil {
			r.Err = res.Err.Error()
		}
		c.Observe(r)
	}
	return res
}

func (c *Client) send(ctx context.Context, res *Response, body any) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			res.Err = fmt.Errorf("encode request body: %w", err)
			return
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, res.Method, res.URL, rdr)
	if err != nil {
		res.Err = err
		return
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		res.Err = err
		return
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	n, _ := io.Copy(io.Discard, resp.Body)
	res.Body = b
	res.Bytes = int64(len(b)) + n
	if err != nil {
		res.Err = fmt.Errorf("read response body: %w", err)
	}
}
