package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/veiloq/coinbase-adapter/pkg/exchanges/interfaces"
	"github.com/veiloq/coinbase-adapter/pkg/logging"
	"github.com/veiloq/coinbase-adapter/pkg/symbols"
	"github.com/veiloq/coinbase-adapter/pkg/websocket"
)

const (
	defaultWSURL  = "wss://advanced-trade-ws.coinbase.com"
	tickerChannel = "ticker"
)

// tickerEnvelope is the feed's ticker message shape.
type tickerEnvelope struct {
	Channel string `json:"channel"`
	Events  []struct {
		Type    string `json:"type"`
		Tickers []struct {
			ProductID string `json:"product_id"`
			Price     string `json:"price"`
			BestBid   string `json:"best_bid"`
			BestAsk   string `json:"best_ask"`
			High24H   string `json:"high_24_h"`
			Low24H    string `json:"low_24_h"`
			Volume24H string `json:"volume_24_h"`
		} `json:"tickers"`
	} `json:"events"`
}

// SubscribeTicker streams ticker updates for the given symbols. The handler
// is invoked once per ticker event; malformed events are logged and
// dropped. The feed connection is established lazily on first use.
func (e *Exchange) SubscribeTicker(ctx context.Context, syms []string, handler interfaces.TickerHandler) error {
	if handler == nil {
		return fmt.Errorf("ticker handler is nil")
	}

	productIDs := make([]string, 0, len(syms))
	for _, s := range syms {
		productIDs = append(productIDs, symbols.ToProductID(s))
	}

	stream, err := e.ensureStream(ctx)
	if err != nil {
		return err
	}

	return stream.Subscribe(tickerChannel, productIDs, func(message []byte) {
		var envelope tickerEnvelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			e.logger.Warn("unparseable ticker event", logging.Error(err))
			return
		}
		now := e.transport.ServerTimeMillis()
		for _, event := range envelope.Events {
			for _, t := range event.Tickers {
				handler(interfaces.Ticker{
					Symbol:    symbols.FromProductID(t.ProductID),
					Last:      parsePrice(t.Price),
					Bid:       parsePrice(t.BestBid),
					Ask:       parsePrice(t.BestAsk),
					High:      parsePrice(t.High24H),
					Low:       parsePrice(t.Low24H),
					Volume:    parsePrice(t.Volume24H),
					Timestamp: now,
				})
			}
		}
	})
}

// UnsubscribeTicker stops the ticker stream.
func (e *Exchange) UnsubscribeTicker() error {
	e.streamMu.Lock()
	stream := e.stream
	e.streamMu.Unlock()

	if stream == nil {
		return nil
	}
	return stream.Unsubscribe(tickerChannel)
}

// CloseStream shuts the feed connection down.
func (e *Exchange) CloseStream() error {
	e.streamMu.Lock()
	defer e.streamMu.Unlock()

	if e.stream == nil {
		return nil
	}
	err := e.stream.Close()
	e.stream = nil
	return err
}

func (e *Exchange) ensureStream(ctx context.Context) (websocket.Connector, error) {
	e.streamMu.Lock()
	defer e.streamMu.Unlock()

	if e.stream == nil {
		url := defaultWSURL
		if e.options.WSURL != "" {
			url = e.options.WSURL
		}
		e.stream = websocket.NewConnector(websocket.Config{
			URL:               url,
			HeartbeatInterval: e.options.WSHeartbeatInterval,
			ReconnectInterval: e.options.WSReconnectInterval,
			MaxRetries:        3,
			Logger:            e.logger,
		})
	}
	if !e.stream.IsConnected() {
		if err := e.stream.Connect(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", interfaces.ErrNotConnected, err)
		}
	}
	return e.stream, nil
}

func parsePrice(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
