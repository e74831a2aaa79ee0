package coinbase

import (
	"github.com/veiloq/coinbase-adapter/pkg/exchanges/interfaces"
	"github.com/veiloq/coinbase-adapter/pkg/metrics"
	"github.com/veiloq/coinbase-adapter/pkg/symbols"
)

// Exchange-native order states that Coinbase reports but the canonical
// status enumeration does not contain.
const (
	rawStatusPending      = "PENDING"
	rawStatusCancelQueued = "CANCEL_QUEUED"
)

// Adapter repairs structurally incomplete or inconsistent payloads into the
// canonical shape. Field naming is already aligned by the conversion layer;
// these passes fix values.
//
// Every pass is idempotent and touches nothing but the record it repairs;
// missing or malformed fields are a soft no-op, one bad optional field
// must never fail a whole response. Repairs that actually change a field
// are counted.
type Adapter struct{}

// NewAdapter creates a response adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// FixOrder applies the order repair passes in place and returns the order.
// A nil order passes through.
func (a *Adapter) FixOrder(o *interfaces.Order) *interfaces.Order {
	if o == nil {
		return nil
	}
	a.inferOrderType(o)
	a.remapOrderStatus(o)
	a.backfillOrderAmount(o)
	a.backfillFeeCurrency(o.Fees, o.Symbol)
	return o
}

// FixOrders applies the order passes to every element.
func (a *Adapter) FixOrders(orders []interfaces.Order) []interfaces.Order {
	for i := range orders {
		a.FixOrder(&orders[i])
	}
	return orders
}

// FixTrades applies the trade repair passes in place and returns the
// slice. A reported trade is by definition a completed fill, so status is
// forced to closed regardless of what the exchange sent.
func (a *Adapter) FixTrades(trades []interfaces.Trade) []interfaces.Trade {
	for i := range trades {
		t := &trades[i]
		t.Status = interfaces.StatusClosed
		a.backfillTradeAmount(t)
		a.backfillFeeCurrency(t.Fees, t.Symbol)
	}
	return trades
}

// inferOrderType fills a missing order type. Coinbase responds with
// UNKNOWN_ORDER_TYPE on some order fetches, which the conversion layer
// translates to an empty type. Priority is strict: a set stop price always
// means a stop order, even when a price is present.
func (a *Adapter) inferOrderType(o *interfaces.Order) {
	if o.Type != "" {
		return
	}
	switch {
	case o.StopPrice != nil:
		o.Type = interfaces.TypeStopLoss
	case o.Price == nil:
		o.Type = interfaces.TypeMarket
	default:
		o.Type = interfaces.TypeLimit
	}
	metrics.NormalizationRepairs.WithLabelValues("order_type").Inc()
}

// remapOrderStatus translates Coinbase's queue states into the canonical
// enumeration. Anything else passes through unchanged.
func (a *Adapter) remapOrderStatus(o *interfaces.Order) {
	switch string(o.Status) {
	case rawStatusPending:
		o.Status = interfaces.StatusPendingCreation
		metrics.NormalizationRepairs.WithLabelValues("order_status").Inc()
	case rawStatusCancelQueued:
		o.Status = interfaces.StatusPendingCancel
		metrics.NormalizationRepairs.WithLabelValues("order_status").Inc()
	}
}

// backfillOrderAmount recovers a missing amount from the filled quantity.
func (a *Adapter) backfillOrderAmount(o *interfaces.Order) {
	if o.Amount == 0 && o.Filled != 0 {
		o.Amount = o.Filled
		metrics.NormalizationRepairs.WithLabelValues("order_amount").Inc()
	}
}

// backfillTradeAmount derives a missing trade amount from cost and price,
// so amount is always in base-asset units like on every other exchange.
func (a *Adapter) backfillTradeAmount(t *interfaces.Trade) {
	if t.Amount == nil && t.Cost != 0 && t.Price != 0 {
		amount := t.Cost / t.Price
		t.Amount = &amount
		metrics.NormalizationRepairs.WithLabelValues("trade_amount").Inc()
	}
}

// backfillFeeCurrency sets empty fee currencies to the pair's quote asset;
// Coinbase omits the currency, and fees there are always quoted. An
// unparseable or absent symbol leaves the fees untouched.
func (a *Adapter) backfillFeeCurrency(fees []interfaces.Fee, symbol string) {
	pair, err := symbols.Parse(symbol)
	if err != nil {
		return
	}
	for i := range fees {
		if fees[i].Currency == "" {
			fees[i].Currency = pair.Quote
			metrics.NormalizationRepairs.WithLabelValues("fee_currency").Inc()
		}
	}
}
