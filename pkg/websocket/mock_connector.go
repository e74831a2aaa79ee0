package websocket

import (
	"context"
	"sync"
	"time"
)

// MockConnector implements the Connector interface for testing.
type MockConnector struct {
	mu sync.RWMutex

	connected bool
	handlers  map[string]MessageHandler
	products  map[string][]string
	config    Config

	// for verifying test expectations
	connectCalls     int
	subscribeCalls   map[string]int
	unsubscribeCalls map[string]int
	sendCalls        int
	closeCalls       int

	// for simulating errors
	connectError   error
	subscribeError error
	sendError      error
	closeError     error
}

// NewMockConnector creates a mock feed connector for testing.
func NewMockConnector() *MockConnector {
	return &MockConnector{
		handlers:         make(map[string]MessageHandler),
		products:         make(map[string][]string),
		subscribeCalls:   make(map[string]int),
		unsubscribeCalls: make(map[string]int),
		config: Config{
			URL:               "ws://mock-feed.test",
			HeartbeatInterval: 20 * time.Second,
			ReconnectInterval: 5 * time.Second,
			MaxRetries:        3,
		},
	}
}

// Connect implements Connector.
func (m *MockConnector) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connectCalls++
	if m.connectError != nil {
		return m.connectError
	}
	m.connected = true
	return nil
}

// Close implements Connector.
func (m *MockConnector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeCalls++
	if m.closeError != nil {
		return m.closeError
	}
	m.connected = false
	return nil
}

// Subscribe implements Connector.
func (m *MockConnector) Subscribe(channel string, productIDs []string, handler MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subscribeCalls[channel]++
	if m.subscribeError != nil {
		return m.subscribeError
	}
	m.handlers[channel] = handler
	m.products[channel] = productIDs
	return nil
}

// Unsubscribe implements Connector.
func (m *MockConnector) Unsubscribe(channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.unsubscribeCalls[channel]++
	delete(m.handlers, channel)
	delete(m.products, channel)
	return nil
}

// Send implements Connector.
func (m *MockConnector) Send(message any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sendCalls++
	return m.sendError
}

// IsConnected implements Connector.
func (m *MockConnector) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// SimulateMessage delivers a message to the channel's handler as if it came
// off the feed.
func (m *MockConnector) SimulateMessage(channel string, message []byte) {
	m.mu.RLock()
	handler, exists := m.handlers[channel]
	m.mu.RUnlock()

	if exists {
		handler(message)
	}
}

// SubscribedProducts returns the product ids subscribed on a channel.
func (m *MockConnector) SubscribedProducts(channel string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.products[channel]
}

// SetConnectError sets an error to be returned by Connect.
func (m *MockConnector) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectError = err
}

// SetSubscribeError sets an error to be returned by Subscribe.
func (m *MockConnector) SetSubscribeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribeError = err
}

// SetSendError sets an error to be returned by Send.
func (m *MockConnector) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendError = err
}

// SetCloseError sets an error to be returned by Close.
func (m *MockConnector) SetCloseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeError = err
}

// GetConnectCalls returns the number of times Connect was called.
func (m *MockConnector) GetConnectCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connectCalls
}

// GetSubscribeCalls returns the number of times Subscribe was called for a
// channel.
func (m *MockConnector) GetSubscribeCalls(channel string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.subscribeCalls[channel]
}

// GetUnsubscribeCalls returns the number of times Unsubscribe was called
// for a channel.
func (m *MockConnector) GetUnsubscribeCalls(channel string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.unsubscribeCalls[channel]
}

// GetSendCalls returns the number of times Send was called.
func (m *MockConnector) GetSendCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sendCalls
}

// GetCloseCalls returns the number of times Close was called.
func (m *MockConnector) GetCloseCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closeCalls
}
