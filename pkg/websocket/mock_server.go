package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// MockServer is an in-process stand-in for the market data feed. It
// understands subscribe/unsubscribe frames and acknowledges them the way
// the real feed does, and can publish arbitrary channel messages.
type MockServer struct {
	server *httptest.Server
	url    string

	connections   map[*websocket.Conn]bool
	connectionsMu sync.RWMutex
	onConnect     func(*websocket.Conn)
	onDisconnect  func(*websocket.Conn)
	frames        []frame

	shouldRejectConnection bool
	shouldDropConnection   bool
}

// NewMockServer creates and starts a mock feed server.
func NewMockServer() *MockServer {
	mock := &MockServer{
		connections: make(map[*websocket.Conn]bool),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handleConnection))
	mock.url = "ws" + strings.TrimPrefix(mock.server.URL, "http")

	return mock
}

// URL returns the feed URL of the mock server.
func (m *MockServer) URL() string {
	return m.url
}

// Close shuts down the mock server.
func (m *MockServer) Close() {
	m.server.Close()
}

// SetRejectConnection configures whether new connections are refused.
func (m *MockServer) SetRejectConnection(reject bool) {
	m.shouldRejectConnection = reject
}

// SetDropConnection configures whether connections are dropped. Enabling it
// closes every open connection immediately.
func (m *MockServer) SetDropConnection(drop bool) {
	m.shouldDropConnection = drop
	if !drop {
		return
	}
	m.connectionsMu.Lock()
	defer m.connectionsMu.Unlock()
	for conn := range m.connections {
		conn.Close()
	}
}

// OnConnect sets a callback for when a client connects.
func (m *MockServer) OnConnect(callback func(*websocket.Conn)) {
	m.onConnect = callback
}

// OnDisconnect sets a callback for when a client disconnects.
func (m *MockServer) OnDisconnect(callback func(*websocket.Conn)) {
	m.onDisconnect = callback
}

// Publish sends a channel message to all connected clients.
func (m *MockServer) Publish(message []byte) {
	m.connectionsMu.RLock()
	defer m.connectionsMu.RUnlock()

	for conn := range m.connections {
		go func(c *websocket.Conn) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- c.WriteMessage(websocket.TextMessage, message)
			}()

			select {
			case err := <-done:
				if err != nil {
					m.removeConnection(c)
				}
			case <-ctx.Done():
				m.removeConnection(c)
			}
		}(conn)
	}
}

// PublishTicker sends a ticker event for a product on the ticker channel.
func (m *MockServer) PublishTicker(productID, price string) {
	event := map[string]any{
		"channel": "ticker",
		"events": []any{
			map[string]any{
				"type": "update",
				"tickers": []any{
					map[string]any{"product_id": productID, "price": price},
				},
			},
		},
	}
	data, _ := json.Marshal(event)
	m.Publish(data)
}

// GetConnectionCount returns the number of active connections.
func (m *MockServer) GetConnectionCount() int {
	m.connectionsMu.RLock()
	defer m.connectionsMu.RUnlock()
	return len(m.connections)
}

// ReceivedFrames returns a copy of the subscription frames seen so far.
func (m *MockServer) ReceivedFrames() []frame {
	m.connectionsMu.RLock()
	defer m.connectionsMu.RUnlock()

	frames := make([]frame, len(m.frames))
	copy(frames, m.frames)
	return frames
}

func (m *MockServer) handleConnection(w http.ResponseWriter, r *http.Request) {
	if m.shouldRejectConnection {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	m.addConnection(conn)
	if m.onConnect != nil {
		m.onConnect(conn)
	}

	defer func() {
		m.removeConnection(conn)
		if m.onDisconnect != nil {
			m.onDisconnect(conn)
		}
		conn.Close()
	}()

	for {
		if m.shouldDropConnection {
			return
		}

		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var f frame
		if err := json.Unmarshal(message, &f); err != nil {
			continue
		}

		m.connectionsMu.Lock()
		m.frames = append(m.frames, f)
		m.connectionsMu.Unlock()

		// acknowledge the way the real feed does
		ack := map[string]any{
			"channel": "subscriptions",
			"events": []any{
				map[string]any{f.Type + "d": map[string]any{f.Channel: f.ProductIDs}},
			},
		}
		data, _ := json.Marshal(ack)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (m *MockServer) addConnection(conn *websocket.Conn) {
	m.connectionsMu.Lock()
	defer m.connectionsMu.Unlock()
	m.connections[conn] = true
}

func (m *MockServer) removeConnection(conn *websocket.Conn) {
	m.connectionsMu.Lock()
	defer m.connectionsMu.Unlock()
	delete(m.connections, conn)
}

func setupMockServer(t *testing.T) (*MockServer, string) {
	t.Helper()
	mock := NewMockServer()
	t.Cleanup(func() {
		mock.Close()
	})
	return mock, mock.URL()
}
