package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veiloq/coinbase-adapter/pkg/config"
	"github.com/veiloq/coinbase-adapter/pkg/exchanges/coinbase"
	"github.com/veiloq/coinbase-adapter/pkg/exchanges/interfaces"
	"github.com/veiloq/coinbase-adapter/pkg/logging"
	"github.com/veiloq/coinbase-adapter/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := logging.NewZapLogger(
		logging.WithLogLevel(logging.DEBUG),
		logging.WithDevelopmentMode(),
	)

	var options *interfaces.ExchangeOptions
	var metricsListen string
	if *configPath != "" {
		cfg, err := config.LoadConfig(*configPath)
		if err != nil {
			logger.Error("failed to load config", logging.Error(err))
			os.Exit(1)
		}
		options = cfg.ExchangeOptions()
		if cfg.Metrics != nil && cfg.Metrics.Enabled {
			metricsListen = cfg.Metrics.Listen
		}
	} else {
		options = interfaces.NewExchangeOptions().
			WithCredentials(os.Getenv("COINBASE_API_KEY"), os.Getenv("COINBASE_API_SECRET"))
		options.LogLevel = "debug"
	}

	exchange := coinbase.NewExchange(options)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if metricsListen != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			logger.Info("metrics endpoint up", logging.String("listen", metricsListen))
			if err := http.ListenAndServe(metricsListen, mux); err != nil {
				logger.Error("metrics endpoint failed", logging.Error(err))
			}
		}()
	}

	logger.Info("loading markets")
	if err := exchange.LoadMarkets(ctx, false); err != nil {
		logger.Error("failed to load markets", logging.Error(err))
		os.Exit(1)
	}

	logger.Info("fetching candles")
	candles, err := exchange.GetSymbolPrices(ctx, "BTC/USD", "1m", 60, 0)
	if err != nil {
		logger.Error("failed to get candles", logging.Error(err))
		os.Exit(1)
	}
	for _, candle := range candles {
		logger.Info("candle",
			logging.String("symbol", candle.Symbol),
			logging.String("time", candle.StartTime.Format(time.RFC3339)),
			logging.Float64("open", candle.Open),
			logging.Float64("close", candle.Close),
		)
	}

	logger.Info("fetching ticker")
	ticker, err := exchange.GetPriceTicker(ctx, "BTC/USD")
	if err != nil {
		logger.Error("failed to get ticker", logging.Error(err))
		os.Exit(1)
	}
	logger.Info("ticker",
		logging.String("symbol", ticker.Symbol),
		logging.Float64("last", ticker.Last),
		logging.Float64("24h_volume", ticker.Volume),
	)

	logger.Info("fetching recent trades")
	trades, err := exchange.GetRecentTrades(ctx, "BTC/USD", 10)
	if err != nil {
		logger.Error("failed to get trades", logging.Error(err))
		os.Exit(1)
	}
	for _, trade := range trades {
		logger.Info("trade",
			logging.String("id", trade.ID),
			logging.Float64("price", trade.Price),
			logging.Float64("cost", trade.Cost),
		)
	}

	if options.Credentials.Key != "" || options.Credentials.AuthToken != "" {
		logger.Info("fetching account id")
		accountID, err := exchange.GetAccountID(ctx)
		if err != nil {
			logger.Error("failed to get account id", logging.Error(err))
			os.Exit(1)
		}
		logger.Info("account", logging.String("id", accountID))

		logger.Info("fetching balance")
		balance, err := exchange.GetBalance(ctx)
		if err != nil {
			logger.Error("failed to get balance", logging.Error(err))
			os.Exit(1)
		}
		for currency, funds := range balance {
			if funds.Total == 0 {
				continue
			}
			logger.Info("balance",
				logging.String("currency", currency),
				logging.Float64("free", funds.Free),
				logging.Float64("total", funds.Total),
			)
		}
	}

	logger.Info("subscribing to ticker updates")
	err = exchange.SubscribeTicker(ctx, []string{"BTC/USD", "ETH/USD"},
		func(ticker interfaces.Ticker) {
			logger.Info("ticker update",
				logging.String("symbol", ticker.Symbol),
				logging.Float64("last", ticker.Last),
			)
		})
	if err != nil {
		logger.Error("failed to subscribe to ticker", logging.Error(err))
		os.Exit(1)
	}
	defer exchange.CloseStream()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("running... press Ctrl+C to exit")
	<-sigChan

	logger.Info("shutting down")
	cancel()
}
