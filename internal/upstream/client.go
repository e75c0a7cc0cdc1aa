// Package upstream holds the HTTP clients for the identity, eligibility, and
// permissions backends.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"healthbff/internal/platform/metrics"
	"healthbff/pkg/requestcontext"
)

const correlationHeader = "X-Correlation-Id"

// maxBodyBytes caps how much of a backend response is read.
const maxBodyBytes = 1 << 20

// Client issues JSON GETs against one backend with per-attempt timeouts and
// bounded exponential backoff on retryable failures.
type Client struct {
	service        string
	baseURL        string
	http           *http.Client
	attemptTimeout time.Duration
	maxTries       uint
	initialBackoff time.Duration
	maxBackoff     time.Duration
	headers        map[string]string
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

func WithAttemptTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.attemptTimeout = d }
}

// WithRetry sets the total attempt budget and the backoff bounds.
func WithRetry(maxTries uint, initial, maxInterval time.Duration) ClientOption {
	return func(c *Client) {
		c.maxTries = maxTries
		c.initialBackoff = initial
		c.maxBackoff = maxInterval
	}
}

// WithHeader adds a static header, such as a backend API key.
func WithHeader(name, value string) ClientOption {
	return func(c *Client) { c.headers[name] = value }
}

func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

func NewClient(service, baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		service:        service,
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &http.Client{},
		attemptTimeout: 2 * time.Second,
		maxTries:       3,
		initialBackoff: 100 * time.Millisecond,
		maxBackoff:     time.Second,
		headers:        make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Service names the backend for errors and metrics.
func (c *Client) Service() string { return c.service }

// GetJSON fetches path and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	start := time.Now()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxInterval = c.maxBackoff

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		err := c.once(ctx, path, out)
		if err == nil {
			return struct{}{}, nil
		}
		if !IsRetryable(err) || ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		c.logger.DebugContext(ctx, "retrying upstream call",
			"service", c.service,
			"attempt", attempt,
			"error", err,
		)
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxTries),
	)
	c.metrics.ObserveUpstream(c.service, outcomeLabel(err), time.Since(start))
	if err == nil {
		return nil
	}
	var ue *Error
	if errors.As(err, &ue) {
		return ue
	}
	// Retry itself stopped on parent cancellation.
	return NewError(Timeout, c.service, "request abandoned", err)
}

func (c *Client) once(ctx context.Context, path string, out any) error {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return NewError(Internal, c.service, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if id := requestcontext.RequestID(ctx); id != "" {
		req.Header.Set(correlationHeader, id)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(err)
	}
	defer resp.Body.Close()

	if err := c.classifyStatus(resp.StatusCode); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return err
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return NewError(BadData, c.service, "decode response", err).withStatus(resp.StatusCode)
	}
	return nil
}

func (c *Client) classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return NewError(NotFound, c.service, "record not found", nil).withStatus(code)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return NewError(Authentication, c.service, "credentials rejected", nil).withStatus(code)
	case code == http.StatusTooManyRequests:
		return NewError(RateLimited, c.service, "rate limited", nil).withStatus(code)
	case code >= 500:
		return NewError(ProviderOutage, c.service, fmt.Sprintf("status %d", code), nil).withStatus(code)
	default:
		return NewError(ClientError, c.service, fmt.Sprintf("status %d", code), nil).withStatus(code)
	}
}

func (c *Client) transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewError(Timeout, c.service, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(Internal, c.service, "request cancelled", err)
	}
	return NewError(ProviderOutage, c.service, "transport failure", err)
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	return string(CategoryOf(err))
}
