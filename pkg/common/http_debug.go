package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/veiloq/coinbase-adapter/pkg/logging"
	"github.com/veiloq/coinbase-adapter/pkg/ratelimit"
)

// DebugClientConfig holds configuration for the HTTP debug client
type DebugClientConfig struct {
	*ClientConfig

	LogRequestBody  bool
	LogResponseBody bool

	// MaxBodyLogSize caps how much of a body is dumped into the log
	MaxBodyLogSize int
}

// DefaultDebugConfig returns a default debug client configuration
func DefaultDebugConfig() *DebugClientConfig {
	return &DebugClientConfig{
		ClientConfig:    DefaultConfig(),
		LogRequestBody:  true,
		LogResponseBody: true,
		MaxBodyLogSize:  4096,
	}
}

// NewDebugHTTPClient creates an HTTP client that dumps every request and
// response at debug level. Useful when the exchange payload shape drifts.
func NewDebugHTTPClient(config *DebugClientConfig) HTTPClient {
	if config == nil {
		config = DefaultDebugConfig()
	}

	if _, isZap := config.Logger.(*logging.ZapLogger); !isZap {
		config.Logger = logging.NewZapLogger(
			logging.WithLogLevel(logging.DEBUG),
			logging.WithDevelopmentMode(),
		)
	}

	return &debugClient{
		client: NewHTTPClient(config.ClientConfig).(*client),
		config: config,
	}
}

// debugClient implements the HTTPClient interface with request dumping
type debugClient struct {
	client *client
	config *DebugClientConfig
}

// Do implements HTTPClient interface
func (c *debugClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()
	c.logRequest(req)

	resp, err := c.client.Do(ctx, req)
	duration := time.Since(start)
	if err != nil {
		c.client.logger.Error("http request failed",
			logging.String("method", req.Method),
			logging.String("url", req.URL.String()),
			logging.Duration("duration", duration),
			logging.Error(err))
		return nil, err
	}

	c.logResponse(req, resp, duration)
	return resp, nil
}

// Get implements HTTPClient interface
func (c *debugClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	return c.Do(ctx, req)
}

// Post implements HTTPClient interface
func (c *debugClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
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
func (c *debugClient) SetRateLimit(limit ratelimit.Rate) error {
	return c.client.SetRateLimit(limit)
}

func (c *debugClient) logRequest(req *http.Request) {
	logger := c.client.logger

	dump, err := httputil.DumpRequestOut(req, false)
	if err != nil {
		logger.Warn("failed to dump request for logging", logging.Error(err))
	}
	if c.config.LogRequestBody && req.Body != nil {
		if body, readErr := io.ReadAll(req.Body); readErr == nil {
			dump = append(dump, c.truncate(body)...)
			req.Body = io.NopCloser(bytes.NewReader(body))
		}
	}

	logger.Debug("http request",
		logging.String("method", req.Method),
		logging.String("url", req.URL.String()),
		logging.String("dump", string(dump)))
}

func (c *debugClient) logResponse(req *http.Request, resp *http.Response, duration time.Duration) {
	logger := c.client.logger

	dump, err := httputil.DumpResponse(resp, false)
	if err != nil {
		logger.Warn("failed to dump response for logging", logging.Error(err))
	}
	if c.config.LogResponseBody && resp.Body != nil {
		if body, readErr := io.ReadAll(resp.Body); readErr == nil {
			dump = append(dump, c.truncate(body)...)
			resp.Body = io.NopCloser(bytes.NewReader(body))
		}
	}

	logger.Debug("http response",
		logging.String("method", req.Method),
		logging.String("url", req.URL.String()),
		logging.Int("status", resp.StatusCode),
		logging.Duration("duration", duration),
		logging.String("dump", string(dump)))
}

func (c *debugClient) truncate(body []byte) []byte {
	if len(body) > c.config.MaxBodyLogSize {
		return body[:c.config.MaxBodyLogSize]
	}
	return body
}
