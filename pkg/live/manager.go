package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Manager tracks WebSocket connections and their channel subscriptions and
// fans published events out to subscribers. One Manager per gateway
// instance; unlike a cross-pod NOTIFY/LISTEN fan-out, events only reach
// connections attached to the instance that published them.
type Manager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	channels  map[string]map[string]bool
	channelMu sync.RWMutex

	writeTimeout time.Duration
	log          *slog.Logger
}

// Connection represents a single WebSocket client.
//
// subscriptions is accessed without a lock: all reads and writes happen on
// the single goroutine running HandleConnection's read loop and its
// deferred cleanup.
type Connection struct {
	ID            string
	Conn          *websocket.Conn
	subscriptions map[string]bool
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewManager creates a Manager. writeTimeout bounds how long a single send
// to a client may block.
func NewManager(writeTimeout time.Duration) *Manager {
	return &Manager{
		connections:  make(map[string]*Connection),
		channels:     make(map[string]map[string]bool),
		writeTimeout: writeTimeout,
		log:          slog.With("component", "live"),
	}
}

// HandleConnection manages the lifecycle of a single WebSocket connection.
// Blocks until the connection closes.
func (m *Manager) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	connID := uuid.NewString()
	ctx, cancel := context.WithCancel(parentCtx)

	c := &Connection{
		ID:            connID,
		Conn:          conn,
		subscriptions: make(map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
	}

	m.register(c)
	defer m.unregister(c)

	m.sendJSON(c, map[string]string{"type": "connection.established", "connection_id": connID})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			m.log.Warn("invalid client message", "connection_id", connID, "error", err)
			continue
		}
		m.handle(c, &msg)
	}
}

func (m *Manager) handle(c *Connection, msg *ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if msg.Channel == "" {
			m.sendJSON(c, map[string]string{"type": "error", "message": "channel is required"})
			return
		}
		m.subscribe(c, msg.Channel)
		m.sendJSON(c, map[string]string{"type": "subscription.confirmed", "channel": msg.Channel})
	case "unsubscribe":
		if msg.Channel == "" {
			m.sendJSON(c, map[string]string{"type": "error", "message": "channel is required"})
			return
		}
		m.unsubscribe(c, msg.Channel)
	case "ping":
		m.sendJSON(c, map[string]string{"type": "pong"})
	}
}

func (m *Manager) subscribe(c *Connection, channel string) {
	m.channelMu.Lock()
	if _, exists := m.channels[channel]; !exists {
		m.channels[channel] = make(map[string]bool)
	}
	m.channels[channel][c.ID] = true
	m.channelMu.Unlock()
	c.subscriptions[channel] = true
}

func (m *Manager) unsubscribe(c *Connection, channel string) {
	m.channelMu.Lock()
	if subs, exists := m.channels[channel]; exists {
		delete(subs, c.ID)
		if len(subs) == 0 {
			delete(m.channels, channel)
		}
	}
	m.channelMu.Unlock()
	delete(c.subscriptions, channel)
}

// Publish sends an event to every connection subscribed to channel. The
// ingest engine calls it after appending each event's audit record.
func (m *Manager) Publish(channel string, event Event) {
	m.channelMu.RLock()
	subs, exists := m.channels[channel]
	if !exists {
		m.channelMu.RUnlock()
		return
	}
	ids := make([]string, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	m.channelMu.RUnlock()

	m.mu.RLock()
	conns := make([]*Connection, 0, len(ids))
	for _, id := range ids {
		if conn, ok := m.connections[id]; ok {
			conns = append(conns, conn)
		}
	}
	m.mu.RUnlock()

	data, err := json.Marshal(event)
	if err != nil {
		m.log.Error("marshal live event failed", "channel", channel, "error", err)
		return
	}
	for _, conn := range conns {
		if err := m.sendRaw(conn, data); err != nil {
			m.log.Warn("send live event failed", "connection_id", conn.ID, "error", err)
		}
	}
}

// ActiveConnections returns the number of currently connected clients.
func (m *Manager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

func (m *Manager) register(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.ID] = c
}

func (m *Manager) unregister(c *Connection) {
	for ch := range c.subscriptions {
		m.unsubscribe(c, ch)
	}
	m.mu.Lock()
	delete(m.connections, c.ID)
	m.mu.Unlock()
	c.cancel()
	_ = c.Conn.Close(websocket.StatusNormalClosure, "")
}

func (m *Manager) sendJSON(c *Connection, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		m.log.Warn("marshal failed", "connection_id", c.ID, "error", err)
		return
	}
	if err := m.sendRaw(c, data); err != nil {
		m.log.Warn("send failed", "connection_id", c.ID, "error", err)
	}
}

func (m *Manager) sendRaw(c *Connection, data []byte) error {
	writeCtx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	return c.Conn.Write(writeCtx, websocket.MessageText, data)
}
