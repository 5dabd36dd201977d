// Package api provides the osparc public API client used by the table sources.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/itisfoundation/osparc-tables/internal/config"
	"github.com/itisfoundation/osparc-tables/internal/http"
	"github.com/itisfoundation/osparc-tables/internal/logging"
	"github.com/itisfoundation/osparc-tables/internal/ratelimit"
	"github.com/itisfoundation/osparc-tables/internal/version"
)

// maxErrorBody bounds how much of an error response is kept in StatusError.
const maxErrorBody = 4096

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// apiMetrics tracks API usage statistics
type apiMetrics struct {
	sync.Mutex
	totalCalls    int64
	callsByPath   map[string]int64
	windowStart   time.Time
	callsInWindow int64
}

// Client represents the osparc API client
type Client struct {
	httpClient *nethttp.Client
	config     *config.Config
	baseURL    string
	apiKey     string
	apiSecret  string
	timeout    time.Duration
	limiter    *ratelimit.RateLimiter
	logger     *logging.Logger
	metrics    *apiMetrics
}

// NewClient creates a new API client
func NewClient(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, ErrEmptyBaseURL
	}
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.Component("api")

	httpClient, err := http.ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	// Row loading does not retry by default; MaxRetries opts in.
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = &retryLogger{logger: logger}
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	limiter := ratelimit.NewAPIRateLimiter()
	limiter.SetLogger(logger)

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = config.Default().RequestTimeout
	}

	return &Client{
		httpClient: retryClient.StandardClient(),
		config:     cfg,
		baseURL:    strings.TrimSuffix(cfg.APIBaseURL, "/"),
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		timeout:    timeout,
		limiter:    limiter,
		logger:     logger,
		metrics: &apiMetrics{
			callsByPath: make(map[string]int64),
			windowStart: time.Now(),
		},
	}, nil
}

// GetConfig returns the configuration used by this API client
func (c *Client) GetConfig() *config.Config {
	return c.config
}

// TotalCalls returns the number of requests issued so far.
func (c *Client) TotalCalls() int64 {
	c.metrics.Lock()
	defer c.metrics.Unlock()
	return c.metrics.totalCalls
}

// doRequest performs an HTTP request with authentication and rate limiting
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*nethttp.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter cancelled: %w", err)
	}

	c.recordCall(path)

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.SetBasicAuth(c.apiKey, c.apiSecret)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Str("request_id", requestID).Msg("API call failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode == nethttp.StatusTooManyRequests {
		cooldown := retryAfter(resp.Header.Get("Retry-After"))
		c.limiter.Drain()
		c.limiter.SetCooldown(cooldown)
		c.logger.Warn().
			Str("method", method).
			Str("path", path).
			Dur("cooldown", cooldown).
			Str("remaining", resp.Header.Get("X-RateLimit-Remaining")).
			Msg("throttled by server")
	}

	return resp, nil
}

func (c *Client) recordCall(path string) {
	c.metrics.Lock()
	defer c.metrics.Unlock()

	c.metrics.totalCalls++
	c.metrics.callsByPath[path]++
	c.metrics.callsInWindow++

	if time.Since(c.metrics.windowStart) >= 30*time.Second {
		reqPerSec := float64(c.metrics.callsInWindow) / 30.0
		c.logger.Debug().
			Float64("req_per_sec", reqPerSec).
			Float64("target_per_sec", ratelimit.APIRatePerSec).
			Int64("total", c.metrics.totalCalls).
			Msg("API usage")
		c.metrics.callsInWindow = 0
		c.metrics.windowStart = time.Now()
	}
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(h string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return ratelimit.DefaultCooldown
}

// getJSON issues a GET bounded by the request timeout and decodes a 2xx body into out.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.doRequest(ctx, nethttp.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			StatusCode: resp.StatusCode,
			Method:     nethttp.MethodGet,
			Path:       path,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// List fetches one page of a list endpoint. path may already carry query
// parameters; paging, filters and ordering are merged into them.
func (c *Client) List(ctx context.Context, path string, q ListQuery) (*ListPage, error) {
	full, err := withListQuery(path, q)
	if err != nil {
		return nil, err
	}

	var page ListPage
	if err := c.getJSON(ctx, full, &page); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("path", path).
		Int("offset", q.Offset).
		Int("limit", q.Limit).
		Int("total", page.Meta.Total).
		Int("rows", len(page.Data)).
		Msg("page loaded")

	return &page, nil
}

func withListQuery(path string, q ListQuery) (string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid list path %q: %w", path, err)
	}

	values := u.Query()
	values.Set("offset", strconv.Itoa(q.Offset))
	values.Set("limit", strconv.Itoa(q.Limit))
	if q.Filters != "" {
		values.Set("filters", q.Filters)
	}
	if q.OrderBy != "" {
		values.Set("orderBy", q.OrderBy)
	}
	u.RawQuery = values.Encode()

	return u.String(), nil
}

// GetProfile returns the profile of the API key owner.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.getJSON(ctx, "/v0/me", &profile); err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &profile, nil
}

// GetDefaultWallet returns the wallet the user's usage is billed to by default.
func (c *Client) GetDefaultWallet(ctx context.Context) (*Wallet, error) {
	var wallet Wallet
	if err := c.getJSON(ctx, "/v0/wallets/default", &wallet); err != nil {
		return nil, fmt.Errorf("get default wallet: %w", err)
	}
	return &wallet, nil
}
