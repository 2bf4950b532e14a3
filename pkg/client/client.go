// Package client provides the HTTP transport for the DataRobot API:
// token authentication, endpoint joining, rate-limit deference, and
// connection-level retries. The async resolver, the pagination iterator,
// and the resource layer are all built on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/ratelimit"
)

// Prometheus metrics for client requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datarobot_requests_total",
		Help: "Total requests by method and HTTP status",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datarobot_request_duration_seconds",
		Help:    "Request duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method"})
)

// DefaultUserAgent identifies this client when the caller sets none.
const DefaultUserAgent = "datarobot-go/2.25.1"

// maxErrorBody bounds how much of an error response is captured.
const maxErrorBody = 64 * 1024

// Client is the DataRobot API transport.
type Client struct {
	httpClient *http.Client
	noRedirect *http.Client
	guard      *ratelimit.Guard
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Endpoint is the API base URL, e.g. "https://app.datarobot.com/api/v2".
	Endpoint string

	// Token is the API token, sent as "Authorization: Token <value>".
	Token string

	// UserAgent identifies the client to the platform.
	UserAgent string

	// HTTPTimeout bounds a single request/response exchange.
	HTTPTimeout time.Duration

	// MaxRetries is the total number of send attempts for idempotent
	// requests that fail at the connection level. HTTP statuses are
	// never retried.
	MaxRetries int

	// InitialBackoff is the first connection-retry backoff duration.
	InitialBackoff time.Duration

	// Redis shares rate-limit state across processes. Optional; without
	// it pushback windows are tracked in-process only.
	Redis *redis.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(endpoint, token string) Config {
	return Config{
		Endpoint:       endpoint,
		Token:          token,
		UserAgent:      DefaultUserAgent,
		HTTPTimeout:    60 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
	}
}

// New creates a new DataRobot API client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	parsed, err := url.Parse(cfg.Endpoint)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("endpoint must be an absolute http(s) URL (got %q)", cfg.Endpoint)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("api token is required")
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}

	return newClient(cfg), nil
}

// newClient builds a client from an already validated configuration.
func newClient(cfg Config) *Client {
	logger := log.With().Str("component", "client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		noRedirect: &http.Client{
			Timeout: cfg.HTTPTimeout,
			// Redirects must surface as raw 3xx responses so pollers can
			// read the Location header.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		guard:  ratelimit.NewGuard(cfg.Redis, logger),
		config: cfg,
		logger: logger,
	}
}

// Endpoint returns the configured API base URL.
func (c *Client) Endpoint() string {
	return c.config.Endpoint
}

// Clone returns an independent client with the same configuration. Call
// sites that hand a client to another goroutine (e.g. an upload running
// next to a polling loop) clone it instead of sharing one instance.
// Rate-limit windows are shared between clones only through Redis.
func (c *Client) Clone() *Client {
	return newClient(c.config)
}

// BuildURL resolves a path or URL against the configured endpoint. Values
// already carrying a scheme (Location headers, next-page links) are used
// unmodified; everything else is joined under the endpoint.
func (c *Client) BuildURL(pathOrURL string) string {
	if strings.HasPrefix(pathOrURL, "http") {
		return pathOrURL
	}
	return strings.TrimSuffix(c.config.Endpoint, "/") + "/" + strings.TrimPrefix(pathOrURL, "/")
}

// Get issues a GET and converts any status >= 400 into *APIError. params,
// when non-empty, are encoded into the query string.
func (c *Client) Get(ctx context.Context, pathOrURL string, params url.Values) (*http.Response, error) {
	target := c.BuildURL(pathOrURL)
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + params.Encode()
	}

	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(c.httpClient, req, true)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, c.responseError(resp)
	}
	return resp, nil
}

// GetNoRedirect issues a GET that does not follow redirects and performs
// no status screening: pollers own the classification of 200/303/other.
func (c *Client) GetNoRedirect(ctx context.Context, pathOrURL string) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.BuildURL(pathOrURL), nil)
	if err != nil {
		return nil, err
	}
	return c.do(c.noRedirect, req, true)
}

// GetJSON issues Get and decodes the response body into out.
func (c *Client) GetJSON(ctx context.Context, pathOrURL string, params url.Values, out any) error {
	resp, err := c.Get(ctx, pathOrURL, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", pathOrURL, err)
	}
	return nil
}

// Post issues a POST with a JSON-encoded payload. payload may be nil.
func (c *Client) Post(ctx context.Context, pathOrURL string, payload any) (*http.Response, error) {
	return c.send(ctx, http.MethodPost, pathOrURL, payload)
}

// Patch issues a PATCH with a JSON-encoded payload.
func (c *Client) Patch(ctx context.Context, pathOrURL string, payload any) (*http.Response, error) {
	return c.send(ctx, http.MethodPatch, pathOrURL, payload)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, pathOrURL string) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodDelete, c.BuildURL(pathOrURL), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(c.httpClient, req, true)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, c.responseError(resp)
	}
	return resp, nil
}

// Upload streams body to the given URL with the given method and content
// type. Upload bodies are one-shot streams, so uploads are never retried.
func (c *Client) Upload(ctx context.Context, method, pathOrURL string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, c.BuildURL(pathOrURL), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.do(c.httpClient, req, false)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, c.responseError(resp)
	}
	return resp, nil
}

// send issues a write request with a JSON body. Writes are not retried:
// replaying a create or mutate request is not safe.
func (c *Client) send(ctx context.Context, method, pathOrURL string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, c.BuildURL(pathOrURL), body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.do(c.httpClient, req, false)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, c.responseError(resp)
	}
	return resp, nil
}

// newRequest builds a request carrying auth and identification headers.
func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.config.Token)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req, deferring to the rate-limit guard first and retrying
// connection-level failures when retriable is true. Responses are handed
// back whatever their status: polling semantics depend on seeing a bad
// status exactly once.
func (c *Client) do(httpClient *http.Client, req *http.Request, retriable bool) (*http.Response, error) {
	ctx := req.Context()

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	}()

	if err := c.guard.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Msg("Executing request")

	var resp *http.Response
	send := func() error {
		r, err := httpClient.Do(req)
		if err != nil {
			requestsTotal.WithLabelValues(req.Method, "network_error").Inc()
			return err
		}
		resp = r
		return nil
	}

	var err error
	if retriable {
		err = retryNetwork(ctx, c.retryConfig(), c.logger, send)
	} else {
		err = send()
	}
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("url", req.URL.String()).
			Msg("HTTP request failed")
		return nil, err
	}

	requestsTotal.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()
	c.guard.Observe(ctx, resp)

	return resp, nil
}

func (c *Client) retryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = c.config.MaxRetries
	cfg.InitialBackoff = c.config.InitialBackoff
	return cfg
}

// responseError drains resp into an *APIError.
func (c *Client) responseError(resp *http.Response) error {
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
		Body:       string(data),
	}
	if resp.Request != nil {
		apiErr.RequestID = resp.Request.Header.Get("X-Request-ID")
	}

	// Platform error bodies usually carry {"message": "..."}.
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
		apiErr.Message = payload.Message
	}

	c.logger.Warn().
		Int("status", resp.StatusCode).
		Str("message", apiErr.Message).
		Str("request_id", apiErr.RequestID).
		Msg("API request error")

	return apiErr
}
