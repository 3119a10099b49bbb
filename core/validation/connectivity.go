package validation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"storybook/core"
)

// ConnectivityResult is the outcome of one HTTP probe.
type ConnectivityResult struct {
	Reachable  bool
	StatusCode int
	Message    string
	Latency    time.Duration
	Error      error
}

// ConnectivityChecker probes HTTP endpoints. Any HTTP response counts as
// reachable; callers decide what a status code means.
type ConnectivityChecker struct {
	client  *http.Client
	timeout time.Duration
}

// NewConnectivityChecker returns a checker with a 10 second timeout.
func NewConnectivityChecker() *ConnectivityChecker {
	return &ConnectivityChecker{
		client:  &http.Client{},
		timeout: 10 * time.Second,
	}
}

// WithTimeout bounds each probe.
func (c *ConnectivityChecker) WithTimeout(timeout time.Duration) *ConnectivityChecker {
	c.timeout = timeout
	return c
}

// Check issues a GET against target with the given headers.
func (c *ConnectivityChecker) Check(ctx context.Context, target string, headers http.Header) ConnectivityResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return ConnectivityResult{
			Message: "Invalid probe URL",
			Error:   core.ErrInvalidURL("probe", target),
		}
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		msg := "Connection failed"
		reason := err.Error()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = "Connection timed out"
			reason = fmt.Sprintf("connection timed out after %v", c.timeout)
		}
		return ConnectivityResult{
			Message: msg,
			Latency: latency,
			Error:   core.ErrBackendUnreachable(target, reason),
		}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return ConnectivityResult{
		Reachable:  true,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("Backend reachable (status: %d)", resp.StatusCode),
		Latency:    latency,
	}
}
