package coinbase

import (
	"strconv"
	"strings"
	"time"

	"github.com/veiloq/coinbase-adapter/pkg/exchanges/interfaces"
	"github.com/veiloq/coinbase-adapter/pkg/symbols"
)

// Conversion layer: aligns exchange payload fields to the canonical
// structs. Values are repaired afterwards by the Adapter passes, so every
// lookup here tolerates absence and leaves the zero value in place.

// number reads a numeric field that Coinbase may encode as a JSON number
// or as a decimal string. Returns nil when absent or unparseable.
func number(raw interfaces.RawResponse, key string) *float64 {
	if v := raw.Float(key); v != nil {
		return v
	}
	s := raw.String(key)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func numberOr(raw interfaces.RawResponse, key string, fallback float64) float64 {
	if v := number(raw, key); v != nil {
		return *v
	}
	return fallback
}

func firstString(raw interfaces.RawResponse, keys ...string) string {
	for _, key := range keys {
		if v := raw.String(key); v != "" {
			return v
		}
	}
	return ""
}

// timestampMillis parses an RFC3339 time field into unix milliseconds.
func timestampMillis(raw interfaces.RawResponse, key string) int64 {
	s := raw.String(key)
	if s == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

// parseOrderStatus maps the exchange status vocabulary onto the canonical
// one. Unrecognized values pass through untouched; the repair passes remap
// the exchange-specific transitional states.
func parseOrderStatus(s string) interfaces.OrderStatus {
	switch s {
	case "OPEN":
		return interfaces.StatusOpen
	case "FILLED":
		return interfaces.StatusClosed
	case "CANCELLED":
		return interfaces.StatusCanceled
	case "EXPIRED":
		return interfaces.StatusExpired
	case "FAILED":
		return interfaces.StatusRejected
	default:
		return interfaces.OrderStatus(s)
	}
}

// parseOrder converts one order payload. The exchange frequently omits the
// order type (UNKNOWN_ORDER_TYPE) and sometimes the amount; those stay
// unset here and are inferred by the repair passes.
func parseOrder(raw interfaces.RawResponse) *interfaces.Order {
	if len(raw) == 0 {
		return nil
	}

	o := &interfaces.Order{
		ID:            firstString(raw, "order_id", "id"),
		ClientOrderID: raw.String("client_order_id"),
		Symbol:        symbols.FromProductID(firstString(raw, "product_id", "symbol")),
		Side:          interfaces.OrderSide(strings.ToLower(raw.String("side"))),
		Status:        parseOrderStatus(raw.String("status")),
		Filled:        numberOr(raw, "filled_size", 0),
		Cost:          numberOr(raw, "filled_value", 0),
		Timestamp:     timestampMillis(raw, "created_time"),
	}

	switch raw.String("order_type") {
	case "MARKET":
		o.Type = interfaces.TypeMarket
	case "LIMIT":
		o.Type = interfaces.TypeLimit
	case "STOP", "STOP_LIMIT":
		o.Type = interfaces.TypeStopLoss
	}

	// The order configuration carries size and price under a key named
	// after the order flavor; scan the variants rather than enumerating
	// them all.
	for _, cfg := range raw.Map("order_configuration") {
		entry, ok := cfg.(map[string]any)
		if !ok {
			continue
		}
		c := interfaces.RawResponse(entry)
		if v := number(c, "base_size"); v != nil {
			o.Amount = *v
		}
		if v := number(c, "limit_price"); v != nil {
			o.Price = v
		}
		if v := number(c, "stop_price"); v != nil {
			o.StopPrice = v
		}
	}

	if o.Amount != 0 {
		o.Remaining = o.Amount - o.Filled
	}
	if fee := number(raw, "total_fees"); fee != nil {
		// fee currency is not provided, the repair pass backfills it
		o.Fees = append(o.Fees, interfaces.Fee{Cost: *fee})
	}
	return o
}

// parseOrders converts an order list payload.
func parseOrders(list []interfaces.RawResponse) []interfaces.Order {
	orders := make([]interfaces.Order, 0, len(list))
	for _, raw := range list {
		if o := parseOrder(raw); o != nil {
			orders = append(orders, *o)
		}
	}
	return orders
}

// parseTrade converts one fill payload. When size_in_quote is set the
// reported size is in quote units: it becomes the cost and the base amount
// stays unknown for the repair pass to derive.
func parseTrade(raw interfaces.RawResponse) interfaces.Trade {
	t := interfaces.Trade{
		ID:        firstString(raw, "trade_id", "id"),
		OrderID:   raw.String("order_id"),
		Symbol:    symbols.FromProductID(raw.String("product_id")),
		Side:      interfaces.OrderSide(strings.ToLower(raw.String("side"))),
		Status:    parseOrderStatus(raw.String("status")),
		Price:     numberOr(raw, "price", 0),
		Timestamp: timestampMillis(raw, "trade_time"),
	}

	size := number(raw, "size")
	if raw.Bool("size_in_quote") {
		if size != nil {
			t.Cost = *size
		}
	} else if size != nil {
		t.Amount = size
		if t.Price != 0 {
			t.Cost = t.Price * *size
		}
	}

	if fee := number(raw, "commission"); fee != nil {
		t.Fees = append(t.Fees, interfaces.Fee{Cost: *fee})
	}
	return t
}

// parseTrades converts a fill list payload.
func parseTrades(list []interfaces.RawResponse) []interfaces.Trade {
	trades := make([]interfaces.Trade, 0, len(list))
	for _, raw := range list {
		trades = append(trades, parseTrade(raw))
	}
	return trades
}

// parseTicker converts a product payload into a ticker snapshot.
func parseTicker(raw interfaces.RawResponse) interfaces.Ticker {
	symbol := symbols.FromProductID(firstString(raw, "product_id", "symbol"))
	return interfaces.Ticker{
		Symbol: symbol,
		Bid:    numberOr(raw, "best_bid", 0),
		Ask:    numberOr(raw, "best_ask", 0),
		Last:   numberOr(raw, "price", 0),
		High:   numberOr(raw, "high_24_h", 0),
		Low:    numberOr(raw, "low_24_h", 0),
		Volume: numberOr(raw, "volume_24_h", 0),
	}
}

// parseBalance converts the accounts payload. The extended response mode
// reports held funds next to available ones, so totals are real instead of
// mirroring the free amount.
func parseBalance(list []interfaces.RawResponse) interfaces.Balance {
	balance := make(interfaces.Balance, len(list))
	for _, account := range list {
		currency := account.String("currency")
		if currency == "" {
			continue
		}
		free := numberOr(account.Map("available_balance"), "value", 0)
		used := numberOr(account.Map("hold"), "value", 0)
		balance[currency] = interfaces.Funds{
			Free:  free,
			Used:  used,
			Total: free + used,
		}
	}
	return balance
}

// parseCandles converts the candles payload for one symbol.
func parseCandles(symbol string, list []interfaces.RawResponse) []interfaces.Candle {
	candles := make([]interfaces.Candle, 0, len(list))
	for _, raw := range list {
		start := int64(numberOr(raw, "start", 0))
		candles = append(candles, interfaces.Candle{
			Symbol:    symbol,
			StartTime: time.Unix(start, 0).UTC(),
			Open:      numberOr(raw, "open", 0),
			High:      numberOr(raw, "high", 0),
			Low:       numberOr(raw, "low", 0),
			Close:     numberOr(raw, "close", 0),
			Volume:    numberOr(raw, "volume", 0),
		})
	}
	return candles
}
