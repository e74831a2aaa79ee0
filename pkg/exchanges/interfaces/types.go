package interfaces

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide identifies the direction of an order or trade.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderType is the canonical order type. An empty value means the exchange
// did not report one; normalization infers it before results leave the
// adapter.
type OrderType string

const (
	TypeLimit    OrderType = "limit"
	TypeMarket   OrderType = "market"
	TypeStopLoss OrderType = "stop_loss"
)

// OrderStatus is drawn from a fixed enumeration. Raw exchange strings never
// leave the adapter; exchange-specific states are remapped during
// normalization.
type OrderStatus string

const (
	StatusOpen            OrderStatus = "open"
	StatusClosed          OrderStatus = "closed"
	StatusCanceled        OrderStatus = "canceled"
	StatusExpired         OrderStatus = "expired"
	StatusRejected        OrderStatus = "rejected"
	StatusPendingCreation OrderStatus = "pending_creation"
	StatusPendingCancel   OrderStatus = "pending_cancel"
)

// Fee is a single fee entry attached to an order or trade.
type Fee struct {
	Cost     float64
	Currency string
}

// Order is the canonical order record the trading engine consumes.
//
// Optional numeric fields use pointers so that "not reported" stays
// distinguishable from zero: a market order legitimately has no price, and
// only stop orders carry a stop price.
type Order struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Status        OrderStatus
	Price         *float64
	StopPrice     *float64
	Amount        float64
	Filled        float64
	Remaining     float64
	Cost          float64
	Fees          []Fee
	Timestamp     int64
}

// Trade is an executed fill. Trades are historical facts: Status is always
// StatusClosed after normalization, whatever the exchange reported.
type Trade struct {
	ID        string
	OrderID   string
	Symbol    string
	Side      OrderSide
	Type      OrderType
	Status    OrderStatus
	Price     float64
	Amount    *float64
	Cost      float64
	Fees      []Fee
	Timestamp int64
}

// Ticker is a current-price snapshot for one trading pair.
type Ticker struct {
	Symbol    string
	Bid       float64
	Ask       float64
	Last      float64
	High      float64
	Low       float64
	Volume    float64
	Timestamp int64
}

// Funds holds the per-asset balance split.
type Funds struct {
	Free  float64
	Used  float64
	Total float64
}

// Balance maps asset code to funds. The adapter always requests the
// extended balance mode so Total is populated, not only Free.
type Balance map[string]Funds

// Candle represents OHLCV market data for one interval.
type Candle struct {
	Symbol    string
	StartTime time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// OrderRequest carries the parameters for order creation. Quantities and
/// prices are decimals: order submission must not accumulate float error.
// Zero-valued decimals mean "not set".
type OrderRequest struct {
	Symbol       string
	Type         OrderType
	Side         OrderSide
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	StopPrice    decimal.Decimal
	CurrentPrice decimal.Decimal
	ReduceOnly   bool
	Params       map[string]any
}

// IsMarketBuy reports whether the request is a market buy, which requires a
// CurrentPrice hint to convert the base quantity into quote units.
func (r OrderRequest) IsMarketBuy() bool {
	return r.Type == TypeMarket && r.Side == SideBuy
}

// Credentials supplies exchange API authentication material. When AuthToken
// is set, bearer authentication is used and Key/Secret are ignored.
type Credentials struct {
	Key        string
	Secret     string
	Passphrase string
	UID        string
	AuthToken  string
}

// ExchangeOptions configures an exchange adapter instance.
type ExchangeOptions struct {
	// Credentials used for signed endpoints.
	Credentials Credentials

	// RestURL overrides the default REST endpoint. Mostly for tests.
	RestURL string

	// WSURL overrides the default market-data feed endpoint.
	WSURL string

	// HTTPTimeout bounds every REST call to the exchange.
	HTTPTimeout time.Duration

	// MaxRequestsPerSecond drives the outer token-bucket limiter. The
	// adapter's instant-retry loop has no delay of its own and relies on
	// this limiter to pace traffic.
	MaxRequestsPerSecond int

	// WSReconnectInterval is the wait between feed reconnection attempts.
	WSReconnectInterval time.Duration

	// WSHeartbeatInterval is the ping frequency on the feed connection.
	WSHeartbeatInterval time.Duration

	// LogLevel controls adapter logging: "debug", "info", "warn", "error".
	LogLevel string

	// Debug enables request/response dumping on the HTTP client.
	Debug bool
}

// NewExchangeOptions returns default options.
func NewExchangeOptions() *ExchangeOptions {
	return &ExchangeOptions{
		HTTPTimeout:          15 * time.Second,
		MaxRequestsPerSecond: 10,
		WSReconnectInterval:  5 * time.Second,
		WSHeartbeatInterval:  20 * time.Second,
		LogLevel:             "info",
	}
}

// WithCredentials sets API credentials and returns the options for chaining.
func (o *ExchangeOptions) WithCredentials(key, secret string) *ExchangeOptions {
	o.Credentials.Key = key
	o.Credentials.Secret = secret
	return o
}

// Handler types for feed subscriptions.
type (
	// TickerHandler processes real-time ticker updates.
	TickerHandler func(Ticker)
)
