// Package websocket maintains the connection to the Coinbase market data
// feed. Messages are routed to handlers by channel, and subscriptions are
// replayed after a reconnect.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/gorilla/websocket"

	"github.com/veiloq/coinbase-adapter/pkg/logging"
)

// MessageHandler receives every raw message published on a channel.
type MessageHandler func(message []byte)

// Connector manages one feed connection.
type Connector interface {
	// Connect establishes the connection and starts the read loop
	Connect(ctx context.Context) error

	// Close cleanly shuts the connection down
	Close() error

	// Subscribe registers a handler for a channel and sends the subscribe
	// frame for the given products
	Subscribe(channel string, productIDs []string, handler MessageHandler) error

	// Unsubscribe sends the unsubscribe frame and removes the handler
	Unsubscribe(channel string) error

	// Send writes a message to the feed
	Send(message any) error

	// IsConnected returns the current connection status
	IsConnected() bool
}

// Config holds feed connection configuration.
type Config struct {
	URL               string
	HeartbeatInterval time.Duration
	ReconnectInterval time.Duration
	MaxRetries        int
	Logger            logging.Logger
}

// Metrics holds connection and message statistics.
type Metrics struct {
	ConnectedTime  time.Time
	MessageCount   int64
	ReconnectCount int64
	ErrorCount     int64
}

type subscription struct {
	productIDs []string
	handler    MessageHandler
}

// frame is the envelope the feed expects for subscription management.
type frame struct {
	Type       string   `json:"type"`
	Channel    string   `json:"channel"`
	ProductIDs []string `json:"product_ids,omitempty"`
}

type connector struct {
	config Config
	conn   *websocket.Conn

	subs    map[string]subscription
	subsMu  sync.RWMutex
	writeMu sync.Mutex

	connected bool
	done      chan struct{}
	doneMu    sync.Mutex
	closed    bool

	reconnectMu  sync.Mutex
	reconnecting bool

	metrics   Metrics
	metricsMu sync.RWMutex

	logger logging.Logger
}

// NewConnector creates a feed connector with the given configuration.
func NewConnector(config Config) Connector {
	logger := config.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &connector{
		config: config,
		subs:   make(map[string]subscription),
		logger: logger,
	}
}

// GetMetrics returns the current connection metrics.
func (c *connector) GetMetrics() Metrics {
	c.metricsMu.RLock()
	defer c.metricsMu.RUnlock()
	return c.metrics
}

// Connect establishes the feed connection and starts background routines.
func (c *connector) Connect(ctx context.Context) error {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()

	if c.connected {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("context already cancelled: %w", ctx.Err())
	}

	c.logger.Debug("connecting to market data feed",
		logging.String("url", c.config.URL),
		logging.Duration("heartbeat", c.config.HeartbeatInterval),
		logging.Duration("reconnect", c.config.ReconnectInterval),
	)

	var lastErr error
	attempt := 0

	for {
		attempt++
		if attempt > c.config.MaxRetries {
			return fmt.Errorf("max retries exceeded: %w", lastErr)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err := dialer.DialContext(ctx, c.config.URL, nil)
		if err != nil {
			lastErr = err
			c.metricsMu.Lock()
			c.metrics.ErrorCount++
			c.metricsMu.Unlock()
			c.logger.Warn("feed connection attempt failed",
				logging.Int("attempt", attempt),
				logging.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.ReconnectInterval):
				continue
			}
		}

		c.conn = conn
		c.connected = true
		c.metricsMu.Lock()
		c.metrics.ConnectedTime = time.Now()
		c.metricsMu.Unlock()

		c.doneMu.Lock()
		c.done = make(chan struct{})
		c.closed = false
		c.doneMu.Unlock()

		go c.readPump(ctx)
		go c.heartbeat()

		go func() {
			select {
			case <-ctx.Done():
				c.logger.Info("context cancelled, closing feed connection")
				c.Close()
			case <-c.done:
				return
			}
		}()

		c.logger.Info("market data feed connected")

		if err := c.resubscribe(); err != nil {
			c.logger.Warn("failed to resubscribe", logging.Error(err))
		}
		return nil
	}
}

// readPump continuously reads messages off the feed.
func (c *connector) readPump(ctx context.Context) {
	defer func() {
		c.connected = false
		if c.conn != nil {
			_ = c.conn.Close()
		}

		c.doneMu.Lock()
		if !c.closed {
			close(c.done)
			c.closed = true
		}
		c.doneMu.Unlock()

		c.logger.Info("feed read loop stopped")

		if !c.reconnecting && ctx.Err() == nil {
			go c.reconnect()
		}
	}()

	c.conn.SetReadDeadline(time.Now().Add(c.config.HeartbeatInterval * 3))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.HeartbeatInterval * 3))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context cancelled, closing feed read loop")
			return
		default:
			c.conn.SetReadDeadline(time.Now().Add(c.config.HeartbeatInterval * 3))
			_, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.logger.Warn("feed read error", logging.Error(err))
					c.metricsMu.Lock()
					c.metrics.ErrorCount++
					c.metricsMu.Unlock()
				}
				return
			}

			c.metricsMu.Lock()
			c.metrics.MessageCount++
			c.metricsMu.Unlock()

			c.processMessage(message)
		}
	}
}

// processMessage routes a message to the handler registered for its channel.
func (c *connector) processMessage(message []byte) {
	var envelope struct {
		Channel string `json:"channel"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		c.logger.Warn("unparseable feed message", logging.Error(err))
		return
	}

	c.subsMu.RLock()
	sub, exists := c.subs[envelope.Channel]
	c.subsMu.RUnlock()

	if !exists {
		return
	}

	go func(channel string, data []byte, handler MessageHandler) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("handler panic recovered",
					logging.String("channel", channel),
					logging.String("panic", fmt.Sprintf("%v", r)),
				)
			}
		}()

		handlerCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		done := make(chan struct{})
		go func() {
			handler(data)
			close(done)
		}()

		select {
		case <-done:
		case <-handlerCtx.Done():
			c.logger.Warn("handler timeout", logging.String("channel", channel))
		}
	}(envelope.Channel, message, sub.handler)
}

// heartbeat sends periodic pings to keep the connection alive.
func (c *connector) heartbeat() {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			if !c.connected {
				c.writeMu.Unlock()
				return
			}
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// reconnect reestablishes the connection with backoff.
func (c *connector) reconnect() {
	c.reconnectMu.Lock()
	if c.reconnecting {
		c.reconnectMu.Unlock()
		return
	}
	c.reconnecting = true
	c.reconnectMu.Unlock()

	defer func() {
		c.reconnectMu.Lock()
		c.reconnecting = false
		c.reconnectMu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	c.metricsMu.Lock()
	c.metrics.ReconnectCount++
	c.metricsMu.Unlock()

	err := retry.Do(
		func() error {
			if ctx.Err() != nil {
				return retry.Unrecoverable(ctx.Err())
			}
			return c.Connect(ctx)
		},
		retry.Attempts(uint(c.config.MaxRetries)),
		retry.Delay(c.config.ReconnectInterval),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("feed reconnection attempt failed",
				logging.Int("attempt", int(n+1)),
				logging.Error(err))
		}),
	)
	if err != nil {
		c.logger.Error("feed reconnection failed", logging.Error(err))
		c.metricsMu.Lock()
		c.metrics.ErrorCount++
		c.metricsMu.Unlock()
		return
	}

	c.logger.Info("feed reconnected")
}

// Subscribe registers the handler and sends the subscribe frame.
func (c *connector) Subscribe(channel string, productIDs []string, handler MessageHandler) error {
	if !c.IsConnected() {
		return fmt.Errorf("feed not connected")
	}

	if err := c.Send(frame{Type: "subscribe", Channel: channel, ProductIDs: productIDs}); err != nil {
		return fmt.Errorf("sending subscribe frame: %w", err)
	}

	c.subsMu.Lock()
	c.subs[channel] = subscription{productIDs: productIDs, handler: handler}
	c.subsMu.Unlock()
	return nil
}

// Unsubscribe sends the unsubscribe frame and drops the handler.
func (c *connector) Unsubscribe(channel string) error {
	c.subsMu.Lock()
	sub, exists := c.subs[channel]
	delete(c.subs, channel)
	c.subsMu.Unlock()

	if !exists || !c.IsConnected() {
		return nil
	}
	return c.Send(frame{Type: "unsubscribe", Channel: channel, ProductIDs: sub.productIDs})
}

// Send writes a message to the feed.
func (c *connector) Send(message any) error {
	if !c.connected {
		return fmt.Errorf("feed not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if data, ok := message.([]byte); ok {
		return c.conn.WriteMessage(websocket.TextMessage, data)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// IsConnected implements Connector.
func (c *connector) IsConnected() bool {
	return c.connected
}

// Close implements Connector.
func (c *connector) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.doneMu.Lock()
	wasClosed := c.closed
	if !c.closed && c.done != nil {
		close(c.done)
		c.closed = true
	}
	c.doneMu.Unlock()

	if wasClosed {
		return nil
	}

	c.connected = false

	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closed connection"))

		// give the close frame a moment to flush
		time.Sleep(100 * time.Millisecond)

		err := c.conn.Close()
		if err != nil && !strings.Contains(err.Error(), "use of closed network connection") {
			return err
		}
	}
	return nil
}

// resubscribe replays the subscribe frames for all registered channels.
func (c *connector) resubscribe() error {
	c.subsMu.RLock()
	subs := make(map[string]subscription, len(c.subs))
	for channel, sub := range c.subs {
		subs[channel] = sub
	}
	c.subsMu.RUnlock()

	var errs []error
	for channel, sub := range subs {
		if err := c.Send(frame{Type: "subscribe", Channel: channel, ProductIDs: sub.productIDs}); err != nil {
			c.logger.Error("failed to resubscribe",
				logging.String("channel", channel),
				logging.Error(err),
			)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to resubscribe to %d channels", len(errs))
	}
	return nil
}
