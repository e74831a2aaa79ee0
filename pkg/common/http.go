// Package common holds shared HTTP plumbing for the exchange transport.
package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/veiloq/coinbase-adapter/pkg/logging"
	"github.com/veiloq/coinbase-adapter/pkg/ratelimit"
)

// HTTPClient executes HTTP requests with rate limiting and network-level
// retries. Status-code handling is left to the caller: the adapter's retry
// policy needs to see rate-limit-shaped errors verbatim, so the client
// never swallows or retries them.
type HTTPClient interface {
	// Do executes an HTTP request
	Do(ctx context.Context, req *http.Request) (*http.Response, error)

	// Get is a convenience method for making GET requests
	Get(ctx context.Context, url string) (*http.Response, error)

	// Post is a convenience method for making POST requests with JSON body
	Post(ctx context.Context, url string, body interface{}) (*http.Response, error)

	// SetRateLimit updates the rate limiter configuration
	SetRateLimit(limit ratelimit.Rate) error
}

// ClientConfig holds configuration for the HTTP client
type ClientConfig struct {
	Timeout   time.Duration
	RateLimit ratelimit.Rate

	// MaxRetries bounds retries of network-level failures only; HTTP
	// responses of any status are returned to the caller untouched.
	MaxRetries uint
	RetryDelay time.Duration

	Logger logging.Logger
}

// DefaultConfig returns a default client configuration
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Timeout: 30 * time.Second,
		RateLimit: ratelimit.Rate{
			Limit:    10,
			Interval: time.Second,
		},
		MaxRetries: 3,
		RetryDelay: time.Second,
		Logger:     logging.NewLogger(),
	}
}

// client implements the HTTPClient interface
type client struct {
	config     *ClientConfig
	httpClient *http.Client
	limiter    ratelimit.RateLimiter
	logger     logging.Logger
}

// NewHTTPClient creates a new HTTP client with the given configuration
func NewHTTPClient(config *ClientConfig) HTTPClient {
	if config == nil {
		config = DefaultConfig()
	}

	return &client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: ratelimit.NewTokenBucketLimiter(config.RateLimit),
		logger:  config.Logger,
	}
}

// Do implements HTTPClient interface
func (c *client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait error: %w", err)
	}

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("error reading request body: %w", err)
		}
	}

	err := retry.Do(
		func() error {
			reqClone := req.Clone(ctx)
			if body != nil {
				reqClone.Body = io.NopCloser(bytes.NewReader(body))
			}

			var err error
			resp, err = c.httpClient.Do(reqClone)
			if err != nil {
				return fmt.Errorf("http request error: %w", err)
			}
			return nil
		},
		retry.Attempts(c.config.MaxRetries),
		retry.Delay(c.config.RetryDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("retrying request",
				logging.Int("attempt", int(n)),
				logging.String("url", req.URL.String()),
				logging.Error(err),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("request failed after %d retries: %w", c.config.MaxRetries, err)
	}

	return resp, nil
}

// Get implements HTTPClient interface
func (c *client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	return c.Do(ctx, req)
}

// Post implements HTTPClient interface
func (c *client) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url,
		bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.Do(ctx, req)
}

// SetRateLimit implements HTTPClient interface
func (c *client) SetRateLimit(limit ratelimit.Rate) error {
	return c.limiter.SetLimit(limit)
}
