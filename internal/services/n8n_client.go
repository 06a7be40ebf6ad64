package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"n8n-mcp/internal/cache"
	"n8n-mcp/internal/logging"
	"n8n-mcp/internal/observability"
)

const (
	apiPrefix        = "/api/v1"
	apiKeyHeader     = "X-N8N-API-KEY"
	defaultTimeout   = 30 * time.Second
	defaultRetries   = 3
	defaultRetryBase = time.Second
	defaultCacheTTL  = 300 * time.Second
)

// Client is an HTTP client for the n8n public API. Failed attempts caused by
// the transport are retried with exponential backoff; GET responses may be
// served from a cache that is purged by every successful mutation.
type Client struct {
	http       *resty.Client
	baseURL    string
	cache      cache.Store
	timeout    time.Duration
	maxRetries uint64
	retryBase  time.Duration
	limiter    *rate.Limiter
	sem        *semaphore.Weighted
	logger     *logging.Logger
	metrics    *observability.Metrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCache sets the response cache. The default is an in-memory store with a
// five minute TTL.
func WithCache(store cache.Store) ClientOption {
	return func(c *Client) { c.cache = store }
}

// WithTimeout bounds each individual attempt.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxRetries sets how many attempts follow the first one.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = uint64(n)
		}
	}
}

// WithRetryBaseDelay sets the first backoff wait; each later wait doubles.
func WithRetryBaseDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.retryBase = d
		}
	}
}

// WithRateLimit caps attempts to perMinute per minute. Zero disables it.
func WithRateLimit(perMinute int) ClientOption {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
}

// WithMaxConcurrentRequests caps attempts in flight at once. Zero disables it.
func WithMaxConcurrentRequests(n int) ClientOption {
	return func(c *Client) {
		if n <= 0 {
			c.sem = nil
			return
		}
		c.sem = semaphore.NewWeighted(int64(n))
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a new Client for the n8n instance at baseURL.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    defaultTimeout,
		maxRetries: defaultRetries,
		retryBase:  defaultRetryBase,
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = cache.NewMemoryStore(cache.DefaultSize, defaultCacheTTL)
	}

	c.http = resty.New().
		SetBaseURL(c.baseURL+apiPrefix).
		SetTimeout(c.timeout).
		SetHeader(apiKeyHeader, apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetLogger(c.logger)

	c.logger.Info("n8n API client initialized", "base_url", c.baseURL)
	return c
}

// BaseURL returns the n8n instance URL without the API prefix.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
	c.logger.Info("n8n API client closed")
}

// request describes one logical call to the n8n API.
type request struct {
	method   string
	path     string
	body     any
	query    url.Values
	useCache bool
}

// mutatesWorkflows reports whether a successful req changes workflow state.
// Starting an execution does not.
func (r request) mutatesWorkflows() bool {
	return r.method != http.MethodGet && strings.HasPrefix(r.path, "/workflows")
}

// cacheKey identifies a request by method, path and query; Encode sorts the
// query by key.
func cacheKey(method, path string, query url.Values) string {
	return method + ":" + path + ":" + query.Encode()
}

// do performs req and returns the raw JSON payload.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	key := cacheKey(req.method, req.path, req.query)
	cacheable := req.method == http.MethodGet && req.useCache

	if cacheable {
		if payload, ok := c.cache.Get(key); ok {
			c.metrics.RecordCacheLookup(ctx, true)
			c.logger.Debug("Cache hit", "endpoint", req.path)
			return payload, nil
		}
		c.metrics.RecordCacheLookup(ctx, false)
	}

	var (
		payload []byte
		attempt int
	)
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		body, err := c.attempt(ctx, req, attempt)
		if err == nil {
			payload = body
			return nil
		}

		var transportErr *TransportError
		if !errors.As(err, &transportErr) {
			return err
		}
		if uint64(attempt) <= c.maxRetries {
			wait := c.retryBase << (attempt - 1)
			c.metrics.RecordRetry(ctx, req.method)
			c.logger.Warn("Retrying request", "endpoint", req.path, "attempt", attempt, "wait_time", wait, "error", err)
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, err
	}

	if req.mutatesWorkflows() {
		c.cache.Purge()
		c.metrics.RecordCachePurge(ctx)
		c.logger.Debug("Cache cleared", "method", req.method, "endpoint", req.path)
	} else if cacheable {
		c.cache.Set(key, payload)
	}

	return payload, nil
}

// attempt performs a single network round trip.
func (c *Client) attempt(ctx context.Context, req request, n int) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("concurrency limit wait: %w", err)
		}
		defer c.sem.Release(1)
	}

	c.logger.Debug("Making HTTP request", "method", req.method, "endpoint", req.path, "attempt", n)

	r := c.http.R().SetContext(ctx)
	if len(req.query) > 0 {
		r.SetQueryParamsFromValues(req.query)
	}
	if req.body != nil {
		r.SetBody(req.body)
	}

	resp, err := r.Execute(req.method, req.path)
	if err != nil {
		c.metrics.RecordHTTPRequest(ctx, req.method, 0)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classify(err)
	}

	status := resp.StatusCode()
	c.metrics.RecordHTTPRequest(ctx, req.method, status)
	if status >= http.StatusBadRequest {
		return nil, newAPIError(status, resp.Body())
	}

	body := resp.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	if !json.Valid(body) {
		return nil, &TransportError{Kind: ErrUnexpected, Err: fmt.Errorf("invalid JSON in response to %s %s", req.method, req.path)}
	}

	c.logger.Info("HTTP request successful", "method", req.method, "endpoint", req.path, "status_code", status)
	return body, nil
}

// classify sorts a transport failure into timeout, network or unexpected.
func classify(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &TransportError{Kind: ErrTimeout, Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &TransportError{Kind: ErrTimeout, Err: err}
	case errors.As(err, &netErr):
		return &TransportError{Kind: ErrNetwork, Err: err}
	default:
		return &TransportError{Kind: ErrUnexpected, Err: err}
	}
}
