package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/veiloq/coinbase-adapter/pkg/common"
	"github.com/veiloq/coinbase-adapter/pkg/exchanges/interfaces"
	"github.com/veiloq/coinbase-adapter/pkg/logging"
	"github.com/veiloq/coinbase-adapter/pkg/metrics"
	"github.com/veiloq/coinbase-adapter/pkg/ratelimit"
	"github.com/veiloq/coinbase-adapter/pkg/symbols"
)

const defaultRestURL = "https://api.coinbase.com"

// Transport method names used by the facade.
const (
	methodFetchTime       = "fetchTime"
	methodFetchProducts   = "fetchProducts"
	methodFetchOHLCV      = "fetchOHLCV"
	methodFetchTrades     = "fetchTrades"
	methodFetchTicker     = "fetchTicker"
	methodCreateOrder     = "createOrder"
	methodCancelOrders    = "cancelOrders"
	methodFetchBalance    = "fetchBalance"
	methodFetchOpenOrders = "fetchOpenOrders"
	methodFetchOrder      = "fetchOrder"
	methodFetchUser       = "fetchUser"
)

type endpoint struct {
	verb   string
	path   string
	signed bool
}

var endpoints = map[string]endpoint{
	methodFetchTime:       {http.MethodGet, "/api/v3/brokerage/time", false},
	methodFetchProducts:   {http.MethodGet, "/api/v3/brokerage/market/products", false},
	methodFetchOHLCV:      {http.MethodGet, "/api/v3/brokerage/market/products/{product_id}/candles", false},
	methodFetchTrades:     {http.MethodGet, "/api/v3/brokerage/market/products/{product_id}/ticker", false},
	methodFetchTicker:     {http.MethodGet, "/api/v3/brokerage/market/products/{product_id}", false},
	methodCreateOrder:     {http.MethodPost, "/api/v3/brokerage/orders", true},
	methodCancelOrders:    {http.MethodPost, "/api/v3/brokerage/orders/batch_cancel", true},
	methodFetchBalance:    {http.MethodGet, "/api/v3/brokerage/accounts", true},
	methodFetchOpenOrders: {http.MethodGet, "/api/v3/brokerage/orders/historical/batch", true},
	methodFetchOrder:      {http.MethodGet, "/api/v3/brokerage/orders/historical/{order_id}", true},
	methodFetchUser:       {http.MethodGet, "/v2/user", true},
}

// restTransport implements interfaces.Transport against the Coinbase
// Advanced Trade REST API.
type restTransport struct {
	baseURL string
	creds   interfaces.Credentials
	mode    authMode
	http    common.HTTPClient
	logger  logging.Logger
	clock   clock.Clock

	// offset between server and local clocks, in milliseconds
	timeOffsetMs atomic.Int64

	mu      sync.RWMutex
	markets map[string]interfaces.RawResponse
}

func newRestTransport(options *interfaces.ExchangeOptions, logger logging.Logger) *restTransport {
	creds, mode := adaptCredentials(options.Credentials)

	cfg := &common.ClientConfig{
		Timeout: options.HTTPTimeout,
		RateLimit: ratelimit.Rate{
			Limit:    options.MaxRequestsPerSecond,
			Interval: time.Second,
		},
		MaxRetries: 3,
		RetryDelay: time.Second,
		Logger:     logger,
	}

	var httpClient common.HTTPClient
	if options.Debug {
		debugCfg := common.DefaultDebugConfig()
		debugCfg.ClientConfig = cfg
		httpClient = common.NewDebugHTTPClient(debugCfg)
	} else {
		httpClient = common.NewHTTPClient(cfg)
	}

	baseURL := defaultRestURL
	if options.RestURL != "" {
		baseURL = strings.TrimRight(options.RestURL, "/")
	}

	return &restTransport{
		baseURL: baseURL,
		creds:   creds,
		mode:    mode,
		http:    httpClient,
		logger:  logger,
		clock:   clock.New(),
		markets: make(map[string]interfaces.RawResponse),
	}
}

// LoadMarkets fetches the product catalog and caches per-symbol trading
// flags. The server clock is synced on the way, best effort.
func (t *restTransport) LoadMarkets(ctx context.Context, reload bool) error {
	t.mu.RLock()
	loaded := len(t.markets) > 0
	t.mu.RUnlock()
	if loaded && !reload {
		return nil
	}

	if err := t.syncServerTime(ctx); err != nil {
		t.logger.Warn("server time sync failed, using local clock",
			logging.Error(err))
	}

	raw, err := t.Request(ctx, methodFetchProducts, nil)
	if err != nil {
		return err
	}

	markets := make(map[string]interfaces.RawResponse)
	for _, product := range raw.List("products") {
		id := product.String("product_id")
		if id == "" {
			continue
		}
		markets[symbols.FromProductID(id)] = product
	}

	t.mu.Lock()
	t.markets = markets
	t.mu.Unlock()

	t.logger.Info("markets loaded", logging.Int("count", len(markets)))
	return nil
}

// MarketStatus returns the cached product payload for a symbol. The second
// return is false when markets were never loaded or the symbol is unknown.
func (t *restTransport) MarketStatus(symbol string) (interfaces.RawResponse, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	status, ok := t.markets[symbol]
	return status, ok
}

// ServerTimeMillis returns the current time in server terms.
func (t *restTransport) ServerTimeMillis() int64 {
	return t.clock.Now().UnixMilli() + t.timeOffsetMs.Load()
}

func (t *restTransport) syncServerTime(ctx context.Context) error {
	raw, err := t.Request(ctx, methodFetchTime, nil)
	if err != nil {
		return err
	}
	server := number(raw, "epochMillis")
	if server == nil {
		if seconds := number(raw, "epochSeconds"); seconds != nil {
			millis := *seconds * 1000
			server = &millis
		}
	}
	if server == nil {
		return fmt.Errorf("time response missing epoch fields")
	}
	t.timeOffsetMs.Store(int64(*server) - t.clock.Now().UnixMilli())
	return nil
}

// Request executes one named REST call. HTTP status mapping:
// 429 wraps ErrRateLimitExceeded, 5xx wraps ErrRequestFailed, any other
// 4xx becomes an ExchangeError carrying the response body verbatim so the
// error classifier can read the remote signature.
func (t *restTransport) Request(ctx context.Context, method string, params map[string]any) (interfaces.RawResponse, error) {
	ep, ok := endpoints[method]
	if !ok {
		return nil, fmt.Errorf("transport method %q: %w", method, interfaces.ErrNotSupported)
	}

	req, err := t.buildRequest(ctx, ep, params)
	if err != nil {
		return nil, err
	}
	if err := t.authorize(req, ep); err != nil {
		return nil, err
	}

	resp, err := t.http.Do(ctx, req)
	if err != nil {
		metrics.Requests.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%w: %v", interfaces.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.Requests.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%w: reading response: %v", interfaces.ErrRequestFailed, err)
	}
	text := strings.TrimSpace(string(body))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.Requests.WithLabelValues(method, "rate_limited").Inc()
		return nil, fmt.Errorf("%w: status 429: %s", interfaces.ErrRateLimitExceeded, text)
	case resp.StatusCode >= http.StatusInternalServerError:
		metrics.Requests.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%w: status %d: %s", interfaces.ErrRequestFailed, resp.StatusCode, text)
	case resp.StatusCode >= http.StatusBadRequest:
		metrics.Requests.WithLabelValues(method, "error").Inc()
		return nil, interfaces.NewExchangeError(text, nil)
	}

	metrics.Requests.WithLabelValues(method, "ok").Inc()
	return decodeBody(body)
}

func (t *restTransport) buildRequest(ctx context.Context, ep endpoint, params map[string]any) (*http.Request, error) {
	path := ep.path
	query := url.Values{}
	bodyParams := make(map[string]any)

	for key, value := range params {
		placeholder := "{" + key + "}"
		switch {
		case strings.Contains(path, placeholder):
			path = strings.Replace(path, placeholder, fmt.Sprint(value), 1)
		case ep.verb == http.MethodGet:
			query.Set(key, fmt.Sprint(value))
		default:
			bodyParams[key] = value
		}
	}

	fullURL := t.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	var body io.Reader
	if ep.verb != http.MethodGet && len(bodyParams) > 0 {
		encoded, err := json.Marshal(bodyParams)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = strings.NewReader(string(encoded))
	}

	req, err := http.NewRequestWithContext(ctx, ep.verb, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// decodeBody parses the response JSON. List bodies are wrapped so callers
// always see an object.
func decodeBody(body []byte) (interfaces.RawResponse, error) {
	if len(body) == 0 {
		return interfaces.RawResponse{}, nil
	}
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", interfaces.ErrRequestFailed, err)
	}
	switch v := decoded.(type) {
	case map[string]any:
		return interfaces.RawResponse(v), nil
	case []any:
		return interfaces.RawResponse{"data": v}, nil
	default:
		return interfaces.RawResponse{"data": v}, nil
	}
}
