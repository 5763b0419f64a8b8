// Package httpclient is the shared JSON-over-HTTP helper used by agent
// live paths. The orchestration core never imports it.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client wraps an http.Client for JSON API calls with bounded retry on
// transient upstream failures.
type Client struct {
	http       *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithMaxRetries sets how many times a retryable response is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBaseDelay sets the first retry delay. Subsequent delays double.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = d
	}
}

// New creates a client. The per-call deadline comes from the context;
// the transport timeout here is only a safety net.
func New(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
		maxRetries: 2,
		baseDelay:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryable reports whether the status code indicates a transient
// upstream condition worth another attempt.
func retryable(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// retryDelay returns how long to wait before the next attempt,
// honoring a Retry-After header when the upstream sent one.
func (c *Client) retryDelay(attempt int, header http.Header) time.Duration {
	if ra := header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return c.baseDelay << attempt
}

// GetJSON performs a GET with bearer auth and decodes the JSON response
// into out. Retryable upstream statuses are retried with exponential
// backoff; exhausted retries yield an *UpstreamError.
func (c *Client) GetJSON(ctx context.Context, rawURL, apiKey string, params url.Values, out any) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if params != nil {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			return nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		lastErr = &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}

		if !retryable(resp.StatusCode) || attempt == c.maxRetries {
			return lastErr
		}

		select {
		case <-time.After(c.retryDelay(attempt, resp.Header)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
