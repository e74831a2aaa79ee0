package coinbase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/coinbase-adapter/pkg/exchanges/interfaces"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestFixOrderTypeInference(t *testing.T) {
	adapter := NewAdapter()

	tests := []struct {
		name      string
		order     interfaces.Order
		expected  interfaces.OrderType
	}{
		{
			name:     "stop price wins even with a price set",
			order:    interfaces.Order{Price: floatPtr(100), StopPrice: floatPtr(95)},
			expected: interfaces.TypeStopLoss,
		},
		{
			name:     "no price means market",
			order:    interfaces.Order{},
			expected: interfaces.TypeMarket,
		},
		{
			name:     "price without stop means limit",
			order:    interfaces.Order{Price: floatPtr(100)},
			expected: interfaces.TypeLimit,
		},
		{
			name:     "explicit type is kept",
			order:    interfaces.Order{Type: interfaces.TypeMarket, Price: floatPtr(100)},
			expected: interfaces.TypeMarket,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixed := adapter.FixOrder(&tt.order)
			assert.Equal(t, tt.expected, fixed.Type)
		})
	}
}

func TestFixOrderStatusRemap(t *testing.T) {
	adapter := NewAdapter()

	tests := []struct {
		raw      string
		expected interfaces.OrderStatus
	}{
		{"PENDING", interfaces.StatusPendingCreation},
		{"CANCEL_QUEUED", interfaces.StatusPendingCancel},
		{"open", interfaces.StatusOpen},
		{"closed", interfaces.StatusClosed},
	}

	for _, tt := range tests {
		order := &interfaces.Order{Status: interfaces.OrderStatus(tt.raw)}
		assert.Equal(t, tt.expected, adapter.FixOrder(order).Status, "raw status %s", tt.raw)
	}
}

func TestFixOrderAmountBackfill(t *testing.T) {
	adapter := NewAdapter()

	order := &interfaces.Order{Filled: 1.5}
	assert.Equal(t, 1.5, adapter.FixOrder(order).Amount)

	// a reported amount is never overwritten
	order = &interfaces.Order{Amount: 2, Filled: 1.5}
	assert.Equal(t, 2.0, adapter.FixOrder(order).Amount)

	// nothing to derive from
	order = &interfaces.Order{}
	assert.Equal(t, 0.0, adapter.FixOrder(order).Amount)
}

func TestFixOrderFeeCurrencyBackfill(t *testing.T) {
	adapter := NewAdapter()

	order := &interfaces.Order{
		Symbol: "AAVE/USD",
		Fees: []interfaces.Fee{
			{Cost: 0.1},
			{Cost: 0.2, Currency: "AAVE"},
		},
	}
	fixed := adapter.FixOrder(order)
	assert.Equal(t, "USD", fixed.Fees[0].Currency)
	// an already-set currency is left alone
	assert.Equal(t, "AAVE", fixed.Fees[1].Currency)
}

func TestFixOrderFeeCurrencySoftNoOp(t *testing.T) {
	adapter := NewAdapter()

	// unparseable symbol leaves fees untouched instead of failing
	order := &interfaces.Order{
		Symbol: "garbage",
		Fees:   []interfaces.Fee{{Cost: 0.1}},
	}
	fixed := adapter.FixOrder(order)
	assert.Empty(t, fixed.Fees[0].Currency)
}

func TestFixOrderNil(t *testing.T) {
	adapter := NewAdapter()
	assert.Nil(t, adapter.FixOrder(nil))
}

func TestFixOrderIdempotent(t *testing.T) {
	adapter := NewAdapter()

	order := &interfaces.Order{
		Symbol: "BTC/USD",
		Status: interfaces.OrderStatus("PENDING"),
		Filled: 0.5,
		Fees:   []interfaces.Fee{{Cost: 0.01}},
	}

	once := *adapter.FixOrder(order)
	twice := *adapter.FixOrder(order)
	assert.Equal(t, once, twice)
}

func TestFixTrades(t *testing.T) {
	adapter := NewAdapter()

	trades := []interfaces.Trade{
		{
			Symbol: "BTC/USD",
			Status: interfaces.StatusOpen,
			Price:  50000,
			Cost:   100,
			Fees:   []interfaces.Fee{{Cost: 0.5}},
		},
		{
			Symbol: "ETH/USD",
			Price:  2000,
			Amount: floatPtr(3),
		},
	}

	fixed := adapter.FixTrades(trades)

	// a reported trade is a completed fill
	assert.Equal(t, interfaces.StatusClosed, fixed[0].Status)
	assert.Equal(t, interfaces.StatusClosed, fixed[1].Status)

	// amount derived from cost and price
	require.NotNil(t, fixed[0].Amount)
	assert.InDelta(t, 0.002, *fixed[0].Amount, 1e-9)
	assert.Equal(t, "USD", fixed[0].Fees[0].Currency)

	// a reported amount is kept
	assert.Equal(t, 3.0, *fixed[1].Amount)
}

func TestFixTradesAmountSoftNoOp(t *testing.T) {
	adapter := NewAdapter()

	// zero price makes the derivation impossible; amount stays unknown
	trades := adapter.FixTrades([]interfaces.Trade{
		{Symbol: "BTC/USD", Cost: 100},
	})
	assert.Nil(t, trades[0].Amount)
}

func TestFixOrders(t *testing.T) {
	adapter := NewAdapter()

	orders := adapter.FixOrders([]interfaces.Order{
		{Symbol: "BTC/USD", Filled: 1},
		{Symbol: "ETH/USD", Price: floatPtr(2000)},
	})

	assert.Equal(t, interfaces.TypeMarket, orders[0].Type)
	assert.Equal(t, 1.0, orders[0].Amount)
	assert.Equal(t, interfaces.TypeLimit, orders[1].Type)
}
