package coinbase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/coinbase-adapter/pkg/exchanges/interfaces"
	"github.com/veiloq/coinbase-adapter/pkg/websocket"
)

func TestSubscribeTicker(t *testing.T) {
	stub := &stubTransport{now: 12345}
	e := newTestExchange(stub)
	mock := websocket.NewMockConnector()
	e.stream = mock

	received := make(chan interfaces.Ticker, 10)
	err := e.SubscribeTicker(context.Background(), []string{"BTC/USD", "ETH/USD"},
		func(ticker interfaces.Ticker) {
			received <- ticker
		})
	require.NoError(t, err)

	// the lazy connection was established and products converted to ids
	assert.Equal(t, 1, mock.GetConnectCalls())
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, mock.SubscribedProducts("ticker"))

	mock.SimulateMessage("ticker", []byte(`{
		"channel": "ticker",
		"events": [{
			"type": "update",
			"tickers": [{
				"product_id": "BTC-USD",
				"price": "50000.25",
				"best_bid": "50000",
				"best_ask": "50001",
				"volume_24_h": "123.5"
			}]
		}]
	}`))

	select {
	case ticker := <-received:
		assert.Equal(t, "BTC/USD", ticker.Symbol)
		assert.Equal(t, 50000.25, ticker.Last)
		assert.Equal(t, 50000.0, ticker.Bid)
		assert.Equal(t, 50001.0, ticker.Ask)
		assert.Equal(t, 123.5, ticker.Volume)
		assert.Equal(t, int64(12345), ticker.Timestamp)
	default:
		t.Fatal("ticker handler not invoked")
	}
}

func TestSubscribeTickerIgnoresMalformedEvents(t *testing.T) {
	stub := &stubTransport{}
	e := newTestExchange(stub)
	mock := websocket.NewMockConnector()
	e.stream = mock

	received := make(chan interfaces.Ticker, 10)
	require.NoError(t, e.SubscribeTicker(context.Background(), []string{"BTC/USD"},
		func(ticker interfaces.Ticker) {
			received <- ticker
		}))

	mock.SimulateMessage("ticker", []byte(`not json`))
	assert.Empty(t, received)
}

func TestSubscribeTickerRequiresHandler(t *testing.T) {
	e := newTestExchange(&stubTransport{})
	assert.Error(t, e.SubscribeTicker(context.Background(), []string{"BTC/USD"}, nil))
}

func TestUnsubscribeAndCloseStream(t *testing.T) {
	e := newTestExchange(&stubTransport{})
	mock := websocket.NewMockConnector()
	e.stream = mock

	require.NoError(t, e.SubscribeTicker(context.Background(), []string{"BTC/USD"},
		func(interfaces.Ticker) {}))

	require.NoError(t, e.UnsubscribeTicker())
	assert.Equal(t, 1, mock.GetUnsubscribeCalls("ticker"))

	require.NoError(t, e.CloseStream())
	assert.Equal(t, 1, mock.GetCloseCalls())

	// closing again is a no-op
	require.NoError(t, e.CloseStream())
}
