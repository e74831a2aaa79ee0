// Package coinbase implements the Coinbase exchange connector: a REST
// transport, response normalization for the exchange's payload quirks, and
// an instant-retry policy for its fake rate-limit responses.
package coinbase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veiloq/coinbase-adapter/pkg/exchanges/interfaces"
	"github.com/veiloq/coinbase-adapter/pkg/logging"
	"github.com/veiloq/coinbase-adapter/pkg/retry"
	"github.com/veiloq/coinbase-adapter/pkg/symbols"
	"github.com/veiloq/coinbase-adapter/pkg/websocket"
)

const (
	// MaxPaginationLimit is the hard per-request row cap of the exchange.
	// Requests above it are silently truncated server-side, so the facade
	// caps locally to keep pagination windows honest.
	MaxPaginationLimit = 300

	// instantRetryMarker flags responses that carry a rate-limit error code
	// without an actual rate limit being hit. Such requests succeed when
	// replayed immediately.
	instantRetryMarker = "429"

	// instantRetryAttempts bounds the immediate replays of one request.
	instantRetryAttempts = 5
)

// intervals maps candle interval names to their duration.
var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"6h":  6 * time.Hour,
	"1d":  24 * time.Hour,
}

// granularities maps interval names to the wire enum.
var granularities = map[string]string{
	"1m":  "ONE_MINUTE",
	"5m":  "FIVE_MINUTE",
	"15m": "FIFTEEN_MINUTE",
	"30m": "THIRTY_MINUTE",
	"1h":  "ONE_HOUR",
	"2h":  "TWO_HOUR",
	"6h":  "SIX_HOUR",
	"1d":  "ONE_DAY",
}

// marketCatalog is the optional transport capability backing the
// per-symbol trading flags.
type marketCatalog interface {
	MarketStatus(symbol string) (interfaces.RawResponse, bool)
}

// Exchange is the Coinbase connector facade. Remote calls run through the
// instant-retry policy and results through the normalization passes before
// they reach the caller.
type Exchange struct {
	options   *interfaces.ExchangeOptions
	transport interfaces.Transport
	retrier   *retry.Policy
	adapter   *Adapter
	logger    logging.Logger

	streamMu sync.Mutex
	stream   websocket.Connector
}

// NewExchange creates a connector from the given options.
func NewExchange(options *interfaces.ExchangeOptions) *Exchange {
	if options == nil {
		options = interfaces.NewExchangeOptions()
	}

	logOpts := []logging.ZapOption{
		logging.WithLogLevel(logging.ParseLevel(options.LogLevel)),
	}
	if options.Debug {
		logOpts = append(logOpts, logging.WithDevelopmentMode())
	}
	logger := logging.NewZapLogger(logOpts...)

	return &Exchange{
		options:   options,
		transport: newRestTransport(options, logger),
		retrier:   retry.NewPolicy(instantRetryMarker, instantRetryAttempts, logger),
		adapter:   NewAdapter(),
		logger:    logger,
	}
}

// LoadMarkets fetches the product catalog. Subsequent calls are cached
// unless reload is set.
func (e *Exchange) LoadMarkets(ctx context.Context, reload bool) error {
	return retry.DoVoid(ctx, e.retrier, "loadMarkets", nil, func(ctx context.Context) error {
		return e.transport.LoadMarkets(ctx, reload)
	})
}

// GetAccountID returns the remote account id. An exchange-level failure is
// logged and falls back to a placeholder derived from the API key, so the
// same credentials always resolve to the same id.
func (e *Exchange) GetAccountID(ctx context.Context) (string, error) {
	raw, err := e.transport.Request(ctx, methodFetchUser, nil)
	if err != nil {
		var exErr *interfaces.ExchangeError
		if !errors.As(err, &exErr) {
			return "", err
		}
		e.logger.Warn("account id lookup failed, using placeholder",
			logging.Error(err))
		return e.placeholderAccountID(), nil
	}

	if id := raw.Map("data").String("id"); id != "" {
		return id, nil
	}
	return e.placeholderAccountID(), nil
}

func (e *Exchange) placeholderAccountID() string {
	seed := "coinbase-account:" + e.options.Credentials.Key
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}

// GetSymbolPrices returns candles for a symbol. The window always covers
// `limit` intervals: when since is zero it is derived backwards from the
// server clock, and limit is capped at MaxPaginationLimit.
func (e *Exchange) GetSymbolPrices(ctx context.Context, symbol, interval string, limit int, since int64) ([]interfaces.Candle, error) {
	granularity, ok := granularities[interval]
	if !ok {
		return nil, fmt.Errorf("interval %q: %w", interval, interfaces.ErrNotSupported)
	}
	since, limit = e.ohlcvWindow(interval, limit, since)

	params := map[string]any{
		"product_id":  symbols.ToProductID(symbol),
		"granularity": granularity,
		"start":       strconv.FormatInt(since/1000, 10),
		"limit":       limit,
	}
	raw, err := retry.Do(ctx, e.retrier, "getSymbolPrices", []any{symbol, interval}, func(ctx context.Context) (interfaces.RawResponse, error) {
		return e.transport.Request(ctx, methodFetchOHLCV, params)
	})
	if err != nil {
		return nil, err
	}
	return parseCandles(symbol, raw.List("candles")), nil
}

// ohlcvWindow applies the pagination rules: limit defaults to and is capped
// at MaxPaginationLimit, and an absent since is computed so the window ends
// at the server's current time.
func (e *Exchange) ohlcvWindow(interval string, limit int, since int64) (int64, int) {
	if limit <= 0 || limit > MaxPaginationLimit {
		limit = MaxPaginationLimit
	}
	if since <= 0 {
		since = e.transport.ServerTimeMillis() - intervals[interval].Milliseconds()*int64(limit)
	}
	return since, limit
}

// GetRecentTrades returns the latest public trades for a symbol.
func (e *Exchange) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]interfaces.Trade, error) {
	if limit <= 0 || limit > MaxPaginationLimit {
		limit = MaxPaginationLimit
	}
	params := map[string]any{
		"product_id": symbols.ToProductID(symbol),
		"limit":      limit,
	}
	raw, err := retry.Do(ctx, e.retrier, "getRecentTrades", []any{symbol}, func(ctx context.Context) (interfaces.RawResponse, error) {
		return e.transport.Request(ctx, methodFetchTrades, params)
	})
	if err != nil {
		return nil, err
	}
	return e.adapter.FixTrades(parseTrades(raw.List("trades"))), nil
}

// GetPriceTicker returns the ticker snapshot for one symbol.
func (e *Exchange) GetPriceTicker(ctx context.Context, symbol string) (*interfaces.Ticker, error) {
	params := map[string]any{"product_id": symbols.ToProductID(symbol)}
	raw, err := retry.Do(ctx, e.retrier, "getPriceTicker", []any{symbol}, func(ctx context.Context) (interfaces.RawResponse, error) {
		return e.transport.Request(ctx, methodFetchTicker, params)
	})
	if err != nil {
		return nil, err
	}
	ticker := parseTicker(raw)
	if ticker.Symbol == "" {
		ticker.Symbol = symbol
	}
	ticker.Timestamp = e.transport.ServerTimeMillis()
	return &ticker, nil
}

// GetAllCurrenciesPriceTicker returns ticker snapshots for every listed
// symbol, keyed by symbol.
func (e *Exchange) GetAllCurrenciesPriceTicker(ctx context.Context) (map[string]interfaces.Ticker, error) {
	raw, err := retry.Do(ctx, e.retrier, "getAllCurrenciesPriceTicker", nil, func(ctx context.Context) (interfaces.RawResponse, error) {
		return e.transport.Request(ctx, methodFetchProducts, nil)
	})
	if err != nil {
		return nil, err
	}

	now := e.transport.ServerTimeMillis()
	tickers := make(map[string]interfaces.Ticker)
	for _, product := range raw.List("products") {
		ticker := parseTicker(product)
		if ticker.Symbol == "" {
			continue
		}
		ticker.Timestamp = now
		tickers[ticker.Symbol] = ticker
	}
	return tickers, nil
}

// CreateOrder submits an order and returns it normalized.
//
// Market buys are sized in quote currency on the wire, so the request must
// carry the current price for the conversion; without it the order is
// refused before anything reaches the exchange.
func (e *Exchange) CreateOrder(ctx context.Context, req *interfaces.OrderRequest) (*interfaces.Order, error) {
	if req == nil {
		return nil, fmt.Errorf("order request is nil: %w", interfaces.ErrNotSupported)
	}
	if req.IsMarketBuy() && req.CurrentPrice.IsZero() {
		return nil, fmt.Errorf("market buy on %s requires the current price: %w",
			req.Symbol, interfaces.ErrNotSupported)
	}

	params, err := buildCreateOrderParams(req)
	if err != nil {
		return nil, err
	}

	raw, err := retry.Do(ctx, e.retrier, "createOrder",
		[]any{req.Symbol, string(req.Type), string(req.Side)},
		func(ctx context.Context) (interfaces.RawResponse, error) {
			return e.transport.Request(ctx, methodCreateOrder, params)
		})
	if err != nil {
		return nil, err
	}

	if !raw.Bool("success") {
		reason := raw.Map("error_response").String("message")
		if reason == "" {
			reason = raw.Map("error_response").String("error")
		}
		return nil, interfaces.NewExchangeError(reason, nil)
	}

	order := parseOrder(raw.Map("success_response"))
	if order == nil {
		return nil, interfaces.NewExchangeError("order response missing payload", nil)
	}
	if order.Symbol == "" {
		order.Symbol = req.Symbol
	}
	order.Side = req.Side
	if order.Status == "" {
		order.Status = interfaces.StatusOpen
	}
	return e.adapter.FixOrder(order), nil
}

// buildCreateOrderParams translates an order request into the wire shape.
// Decimal arithmetic keeps submitted quantities exact.
func buildCreateOrderParams(req *interfaces.OrderRequest) (map[string]any, error) {
	var configuration map[string]any
	switch req.Type {
	case interfaces.TypeMarket:
		if req.Side == interfaces.SideBuy {
			configuration = map[string]any{
				"market_market_ioc": map[string]any{
					"quote_size": req.Quantity.Mul(req.CurrentPrice).String(),
				},
			}
		} else {
			configuration = map[string]any{
				"market_market_ioc": map[string]any{
					"base_size": req.Quantity.String(),
				},
			}
		}
	case interfaces.TypeLimit:
		configuration = map[string]any{
			"limit_limit_gtc": map[string]any{
				"base_size":   req.Quantity.String(),
				"limit_price": req.Price.String(),
			},
		}
	case interfaces.TypeStopLoss:
		direction := "STOP_DIRECTION_STOP_DOWN"
		if req.Side == interfaces.SideBuy {
			direction = "STOP_DIRECTION_STOP_UP"
		}
		limitPrice := req.Price
		if limitPrice.IsZero() {
			limitPrice = req.StopPrice
		}
		configuration = map[string]any{
			"stop_limit_stop_limit_gtc": map[string]any{
				"base_size":      req.Quantity.String(),
				"limit_price":    limitPrice.String(),
				"stop_price":     req.StopPrice.String(),
				"stop_direction": direction,
			},
		}
	default:
		return nil, fmt.Errorf("order type %q: %w", req.Type, interfaces.ErrNotSupported)
	}

	params := map[string]any{
		"client_order_id":     uuid.NewString(),
		"product_id":          symbols.ToProductID(req.Symbol),
		"side":                strings.ToUpper(string(req.Side)),
		"order_configuration": configuration,
	}
	for key, value := range req.Params {
		params[key] = value
	}
	return params, nil
}

// CancelOrder cancels one order and returns its resulting status.
func (e *Exchange) CancelOrder(ctx context.Context, orderID, symbol string) (interfaces.OrderStatus, error) {
	params := map[string]any{"order_ids": []string{orderID}}
	raw, err := retry.Do(ctx, e.retrier, "cancelOrder", []any{orderID, symbol}, func(ctx context.Context) (interfaces.RawResponse, error) {
		return e.transport.Request(ctx, methodCancelOrders, params)
	})
	if err != nil {
		return "", err
	}

	results := raw.List("results")
	if len(results) == 0 {
		return "", interfaces.NewExchangeError("cancel response missing results", nil)
	}
	if !results[0].Bool("success") {
		reason := results[0].String("failure_reason")
		return "", interfaces.NewExchangeError(
			fmt.Sprintf("cancel of %s failed: %s", orderID, reason), nil)
	}
	return interfaces.StatusCanceled, nil
}

// GetBalance returns per-asset funds. The extended response mode is always
// requested so held amounts are reported alongside available ones.
func (e *Exchange) GetBalance(ctx context.Context) (interfaces.Balance, error) {
	params := map[string]any{"v3": true}
	raw, err := retry.Do(ctx, e.retrier, "getBalance", nil, func(ctx context.Context) (interfaces.RawResponse, error) {
		return e.transport.Request(ctx, methodFetchBalance, params)
	})
	if err != nil {
		return nil, err
	}
	return parseBalance(raw.List("accounts")), nil
}

// GetOpenOrders returns open orders, optionally filtered by symbol.
func (e *Exchange) GetOpenOrders(ctx context.Context, symbol string, limit int) ([]interfaces.Order, error) {
	if limit <= 0 || limit > MaxPaginationLimit {
		limit = MaxPaginationLimit
	}
	params := map[string]any{
		"order_status": "OPEN",
		"limit":        limit,
	}
	if symbol != "" {
		params["product_id"] = symbols.ToProductID(symbol)
	}
	raw, err := retry.Do(ctx, e.retrier, "getOpenOrders", []any{symbol}, func(ctx context.Context) (interfaces.RawResponse, error) {
		return e.transport.Request(ctx, methodFetchOpenOrders, params)
	})
	if err != nil {
		return nil, err
	}
	return e.adapter.FixOrders(parseOrders(raw.List("orders"))), nil
}

// GetOrder returns one order by id, normalized.
func (e *Exchange) GetOrder(ctx context.Context, orderID, symbol string) (*interfaces.Order, error) {
	params := map[string]any{"order_id": orderID}
	raw, err := retry.Do(ctx, e.retrier, "getOrder", []any{orderID, symbol}, func(ctx context.Context) (interfaces.RawResponse, error) {
		return e.transport.Request(ctx, methodFetchOrder, params)
	})
	if err != nil {
		return nil, err
	}

	order := parseOrder(raw.Map("order"))
	if order == nil {
		return nil, interfaces.NewExchangeError(
			fmt.Sprintf("order %s not found in response", orderID), nil)
	}
	if order.Symbol == "" {
		order.Symbol = symbol
	}
	return e.adapter.FixOrder(order), nil
}

// IsMarketOpenForOrderType reports whether a symbol currently accepts the
// given order type. Limit-only markets refuse market orders and cancel-only
// markets refuse everything new. Missing flags default to open: refusing
// trades on stale metadata is worse than an order rejection.
func (e *Exchange) IsMarketOpenForOrderType(symbol string, orderType interfaces.OrderType) bool {
	catalog, ok := e.transport.(marketCatalog)
	if !ok {
		return true
	}
	status, ok := catalog.MarketStatus(symbol)
	if !ok {
		e.logger.Debug("no market status cached, assuming open",
			logging.String("symbol", symbol))
		return true
	}

	if status.Bool("trading_disabled") {
		return false
	}
	if status.Bool("cancel_only") {
		return false
	}
	if status.Bool("limit_only") && orderType == interfaces.TypeMarket {
		return false
	}
	if status.Bool("post_only") && orderType == interfaces.TypeMarket {
		return false
	}
	return true
}

// ErrorCategory classifies a remote error message into the adapter's error
// vocabulary. Convenience wrapper over the default classifier.
func (e *Exchange) ErrorCategory(err error) Category {
	if err == nil {
		return CategoryUnclassified
	}
	return Classify(err.Error())
}
