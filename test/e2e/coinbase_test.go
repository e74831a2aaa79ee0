package e2e

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veiloq/coinbase-adapter/pkg/exchanges/coinbase"
	"github.com/veiloq/coinbase-adapter/pkg/exchanges/interfaces"
)

// TestCoinbaseExchange_E2E exercises the adapter against the real Coinbase
// API. Public endpoints always run; account endpoints only with
// credentials.
//
// To run this test:
// COINBASE_API_KEY=key COINBASE_API_SECRET=secret go test -v ./test/e2e
func TestCoinbaseExchange_E2E(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}
	if os.Getenv("CI") != "" {
		t.Skip("skipping e2e test in CI")
	}

	apiKey := os.Getenv("COINBASE_API_KEY")
	apiSecret := os.Getenv("COINBASE_API_SECRET")

	options := interfaces.NewExchangeOptions().WithCredentials(apiKey, apiSecret)
	options.LogLevel = "debug"

	exchange := coinbase.NewExchange(options)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	require.NoError(t, exchange.LoadMarkets(ctx, false), "failed to load markets")

	t.Run("GetSymbolPrices", func(t *testing.T) {
		candles, err := exchange.GetSymbolPrices(ctx, "BTC/USD", "1m", 60, 0)
		require.NoError(t, err, "failed to get candles")
		require.NotEmpty(t, candles, "no candles returned")
		require.Equal(t, "BTC/USD", candles[0].Symbol)
	})

	t.Run("GetPriceTicker", func(t *testing.T) {
		ticker, err := exchange.GetPriceTicker(ctx, "BTC/USD")
		require.NoError(t, err, "failed to get ticker")
		require.Equal(t, "BTC/USD", ticker.Symbol)
		require.Greater(t, ticker.Last, float64(0))
	})

	t.Run("GetAllCurrenciesPriceTicker", func(t *testing.T) {
		tickers, err := exchange.GetAllCurrenciesPriceTicker(ctx)
		require.NoError(t, err, "failed to get tickers")
		require.NotEmpty(t, tickers)
		require.Contains(t, tickers, "BTC/USD")
	})

	t.Run("GetRecentTrades", func(t *testing.T) {
		trades, err := exchange.GetRecentTrades(ctx, "BTC/USD", 10)
		require.NoError(t, err, "failed to get trades")
		require.NotEmpty(t, trades, "no trades returned")
		for _, trade := range trades {
			require.Equal(t, interfaces.StatusClosed, trade.Status)
			require.NotNil(t, trade.Amount, "trade amount must be backfilled")
		}
	})

	t.Run("IsMarketOpenForOrderType", func(t *testing.T) {
		require.True(t, exchange.IsMarketOpenForOrderType("BTC/USD", interfaces.TypeLimit))
	})

	if apiKey == "" || apiSecret == "" {
		t.Log("no credentials, skipping account endpoints")
		return
	}

	t.Run("GetAccountID", func(t *testing.T) {
		id, err := exchange.GetAccountID(ctx)
		require.NoError(t, err, "failed to get account id")
		require.NotEmpty(t, id)
	})

	t.Run("GetBalance", func(t *testing.T) {
		balance, err := exchange.GetBalance(ctx)
		require.NoError(t, err, "failed to get balance")
		require.NotNil(t, balance)
	})

	t.Run("GetOpenOrders", func(t *testing.T) {
		_, err := exchange.GetOpenOrders(ctx, "BTC/USD", 10)
		require.NoError(t, err, "failed to get open orders")
	})

	t.Run("SubscribeTicker", func(t *testing.T) {
		received := make(chan interfaces.Ticker, 1)
		err := exchange.SubscribeTicker(ctx, []string{"BTC/USD"},
			func(ticker interfaces.Ticker) {
				select {
				case received <- ticker:
				default:
				}
			})
		require.NoError(t, err, "failed to subscribe")
		defer exchange.CloseStream()

		select {
		case ticker := <-received:
			require.Equal(t, "BTC/USD", ticker.Symbol)
		case <-time.After(30 * time.Second):
			t.Fatal("no ticker update received")
		}
	})
}
