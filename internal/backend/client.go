// Package backend is the HTTP client for the remote analysis service.
//
// The service exposes two routes under a configured base URL:
//
//	GET  {base}/health   liveness probe, JSON object of backend-defined shape
//	POST {base}/analyze  {"conversationId", "message", "data": {"headers", "data"}}
//
// Every call is a single attempt with a bounded timeout. Failures that never
// produced an HTTP response are reported as *TransportError; responses with a
// non-2xx status or an undecodable body are reported as *ProtocolError.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultHealthTimeout bounds GET /health.
	DefaultHealthTimeout = 30 * time.Second

	// DefaultAnalyzeTimeout bounds POST /analyze, which may trigger heavy backend work.
	DefaultAnalyzeTimeout = 120 * time.Second

	// maxErrorBody caps how much of a failed response body is kept in errors.
	maxErrorBody = 2048

	// maxResponseBody caps how much of a successful response is read.
	maxResponseBody = 32 << 20
)

// HTTPClient is the subset of *http.Client used by Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the analysis backend. It holds no per-call state and is safe
// for concurrent use.
type Client struct {
	baseURL        string
	httpClient     HTTPClient
	healthTimeout  time.Duration
	analyzeTimeout time.Duration
	userAgent      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeouts overrides the health and analyze timeouts. Non-positive values keep the defaults.
func WithTimeouts(health, analyze time.Duration) Option {
	return func(c *Client) {
		if health > 0 {
			c.healthTimeout = health
		}
		if analyze > 0 {
			c.analyzeTimeout = analyze
		}
	}
}

// WithUserAgent sets the User-Agent header sent on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client for the backend at baseURL.
// Trailing slashes are stripped so routes can be appended directly.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        NormalizeBaseURL(baseURL),
		httpClient:     &http.Client{},
		healthTimeout:  DefaultHealthTimeout,
		analyzeTimeout: DefaultAnalyzeTimeout,
		userAgent:      "decisio",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeBaseURL trims whitespace and trailing slashes.
func NormalizeBaseURL(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health probes GET {base}/health and returns the decoded JSON body.
func (c *Client) Health(ctx context.Context) (HealthReport, error) {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	url := c.baseURL + "/health"
	body, status, err := c.do(ctx, "health", http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var report HealthReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, &ProtocolError{Op: "health", URL: url, StatusCode: status, Body: excerpt(body), Err: err}
	}
	if report == nil {
		report = HealthReport{}
	}
	return report, nil
}

// Analyze posts the payload to POST {base}/analyze under the given conversation.
func (c *Client) Analyze(ctx context.Context, conversationID, message string, payload Payload) (*AnalyzeResponse, error) {
	reqBody, err := json.Marshal(AnalyzeRequest{
		ConversationID: conversationID,
		Message:        message,
		Data:           payload,
	})
	if err != nil {
		return nil, fmt.Errorf("backend analyze: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.analyzeTimeout)
	defer cancel()

	url := c.baseURL + "/analyze"
	body, status, err := c.do(ctx, "analyze", http.MethodPost, url, reqBody)
	if err != nil {
		return nil, err
	}

	resp := &AnalyzeResponse{}
	if err := json.Unmarshal(body, resp); err != nil {
		return nil, &ProtocolError{Op: "analyze", URL: url, StatusCode: status, Body: excerpt(body), Err: err}
	}
	return resp, nil
}

// do sends one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, op, method, url string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, &TransportError{Op: op, URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &TransportError{Op: op, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, resp.StatusCode, &ProtocolError{
			Op:         op,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		// The deadline can fire while the body is still streaming.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, resp.StatusCode, &TransportError{Op: op, URL: url, Err: err}
		}
		return nil, resp.StatusCode, &ProtocolError{Op: op, URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	return b, resp.StatusCode, nil
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
