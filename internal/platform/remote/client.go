// Package remote is the HTTP plumbing shared by every outbound API client:
// fixed timeouts, an outbound rate limit, a circuit breaker and a typed
// status error that callers use to decide whether a failure is transient.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// maxErrorBodySize limits how much of an error response is kept for logs.
const maxErrorBodySize = 16 * 1024

// Options configures a Client.
type Options struct {
	Name       string
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Authorizer decorates outgoing requests with credentials.
type Authorizer interface {
	Authorize(req *http.Request, body []byte) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(req *http.Request, body []byte) error

// Authorize implements Authorizer.
func (f AuthorizerFunc) Authorize(req *http.Request, body []byte) error {
	return f(req, body)
}

// Client issues JSON requests against a single remote system.
type Client struct {
	name       string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*Response]
	auth       Authorizer
	logger     *slog.Logger
}

// Response is the raw result of a request that returned 2xx.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// New constructs a Client.
func New(opts Options, auth Authorizer) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := opts.Name
	if name == "" {
		name = "remote"
	}
	breaker := gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Only transient failures count against the remote's health.
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("remote", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return &Client{
		name:       name,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    breaker,
		auth:       auth,
		logger:     logger,
	}
}

// Name returns the remote identifier used in logs and errors.
func (c *Client) Name() string {
	return c.name
}

// BaseURL returns the configured base URL without trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// DoJSON sends body (marshalled when non-nil) and decodes a 2xx response
// into out when out is non-nil.
func (c *Client) DoJSON(ctx context.Context, method, path string, body, out any, headers ...http.Header) (*Response, error) {
	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", c.name, err)
		}
		payload = raw
	}
	resp, err := c.Do(ctx, method, path, payload, headers...)
	if err != nil {
		return nil, err
	}
	if out != nil && len(bytes.TrimSpace(resp.Body)) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return resp, fmt.Errorf("%s: decode %s %s: %w", c.name, method, path, err)
		}
	}
	return resp, nil
}

// Do sends a raw request through the rate limiter and circuit breaker.
func (c *Client) Do(ctx context.Context, method, path string, payload []byte, headers ...http.Header) (*Response, error) {
	if c == nil {
		return nil, errors.New("remote: client not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.breaker.Execute(func() (*Response, error) {
		return c.send(ctx, method, path, payload, headers)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &BreakerError{Remote: c.name, Err: err}
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, headers []http.Header) (*Response, error) {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + path
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for k, vs := range h {
			for _, v := range vs {
				req.Header.Set(k, v)
			}
		}
	}
	if c.auth != nil {
		if err := c.auth.Authorize(req, payload); err != nil {
			return nil, fmt.Errorf("%s: authorize: %w", c.name, err)
		}
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Remote: c.name, Method: method, Endpoint: path, Err: err}
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodySize))
		statusErr := &StatusError{
			Remote:     c.name,
			Method:     method,
			Endpoint:   path,
			StatusCode: res.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
		c.logger.Warn("remote call failed",
			slog.String("remote", c.name),
			slog.String("endpoint", path),
			slog.Int("status", res.StatusCode))
		return nil, statusErr
	}
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &TransportError{Remote: c.name, Method: method, Endpoint: path, Err: err}
	}
	return &Response{Status: res.StatusCode, Header: res.Header, Body: raw}, nil
}
