// Package coinbase-adapter connects trading applications to the Coinbase
// Advanced Trade API and normalizes its behavioral quirks into a
// predictable interface.
//
// Coinbase deviates from a well-behaved exchange API in a handful of
// documented ways, and this library exists to absorb them:
//
//   - Some requests fail with a rate-limit error code even though no rate
//     limit was hit; replaying the same request immediately succeeds. The
//     adapter retries these instantly, a bounded number of times, before
//     surfacing the failure.
//
//   - Order payloads frequently omit the order type, the fee currency, and
//     sometimes the amount. Normalization passes infer or backfill these
//     before results reach the caller.
//
//   - Order status uses exchange-specific transitional states which are
//     remapped onto the canonical status vocabulary.
//
//   - Candle pagination is capped server-side; the adapter caps locally
//     and derives the window start from the server clock so requests stay
//     honest.
//
// # Standard Errors
//
// Remote failures surface through a small error vocabulary defined in the
// interfaces package:
//
//   - ErrRequestFailed: the request did not complete, including after the
//     instant-retry budget is exhausted
//
//   - ErrRateLimitExceeded: the exchange returned a rate-limit error code
//
//   - ErrNotSupported: the operation cannot be performed as requested,
//     e.g. a market buy without the current price
//
//   - ErrNotConnected: a signed endpoint was called without credentials,
//     or the market data feed is down
//
// Application-level rejections carry an ExchangeError preserving the
// remote message verbatim, which the coinbase package classifier can map
// to a category such as insufficient_funds or order_not_found.
//
// # Examples
//
// Basic usage:
//
//	options := interfaces.NewExchangeOptions().WithCredentials("your-api-key", "your-api-secret")
//	exchange := coinbase.NewExchange(options)
//
//	ctx := context.Background()
//	if err := exchange.LoadMarkets(ctx, false); err != nil {
//	    log.Fatalf("Failed to load markets: %v", err)
//	}
//
// Fetching candles:
//
//	// Last 60 one-minute candles; the window start is derived from the
//	// server clock when since is zero.
//	candles, err := exchange.GetSymbolPrices(ctx, "BTC/USD", "1m", 60, 0)
//	if err != nil {
//	    log.Fatalf("Failed to get candles: %v", err)
//	}
//	for _, candle := range candles {
//	    fmt.Printf("%s | Open: %.2f, Close: %.2f\n",
//	        candle.StartTime.Format("15:04:05"),
//	        candle.Open,
//	        candle.Close)
//	}
//
// Placing an order:
//
//	order, err := exchange.CreateOrder(ctx, &interfaces.OrderRequest{
//	    Symbol:       "BTC/USD",
//	    Type:         interfaces.TypeMarket,
//	    Side:         interfaces.SideBuy,
//	    Quantity:     decimal.RequireFromString("0.001"),
//	    CurrentPrice: decimal.RequireFromString("50000"),
//	})
//	if err != nil {
//	    switch {
//	    case errors.Is(err, interfaces.ErrNotSupported):
//	        log.Fatalf("Order shape not supported: %v", err)
//	    case errors.Is(err, interfaces.ErrRequestFailed):
//	        log.Fatalf("Request failed: %v", err)
//	    default:
//	        log.Fatalf("Order refused: %v", err)
//	    }
//	}
//	fmt.Printf("Order %s is %s\n", order.ID, order.Status)
//
// Streaming tickers:
//
//	err = exchange.SubscribeTicker(ctx, []string{"BTC/USD", "ETH/USD"},
//	    func(ticker interfaces.Ticker) {
//	        fmt.Printf("%s last: %.2f\n", ticker.Symbol, ticker.Last)
//	    })
package coinbaseadapter
