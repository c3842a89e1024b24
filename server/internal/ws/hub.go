package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/riskwatch/riskwatch/server/internal/dashboard"
	"github.com/riskwatch/riskwatch/server/internal/metrics"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16

	// EventStats is the topic of periodic dashboard summaries.
	EventStats = "stats"

	sinkName = "websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the JSON envelope of every frame sent to clients.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// StatsSource provides the dashboard summary broadcast on each tick.
type StatsSource interface {
	Stats(ctx context.Context) (dashboard.Stats, error)
}

// Hub manages WebSocket client connections. It implements risk.Publisher.
type Hub struct {
	stats    StatsSource
	interval time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub that broadcasts stats from src every interval.
func New(src StatsSource, interval time.Duration) *Hub {
	return &Hub{
		stats:    src,
		interval: interval,
		clients:  make(map[*client]struct{}),
	}
}

// Run broadcasts stats every interval until ctx is cancelled, then closes
// all active connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			if data, err := h.statsMessage(ctx); err == nil {
				h.broadcast(data)
			}
		}
	}
}

// Publish sends payload to every connected client under topic. It never
// blocks on a slow client. Having no clients is not an error.
func (h *Hub) Publish(_ context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(Message{Event: topic, Data: payload})
	if err != nil {
		metrics.PublishTotal.WithLabelValues(sinkName, "error").Inc()
		return fmt.Errorf("ws: marshal %s message: %w", topic, err)
	}
	n := h.broadcast(data)
	metrics.PublishTotal.WithLabelValues(sinkName, "ok").Inc()
	slog.Debug("ws: published", "topic", topic, "clients", n)
	return nil
}

// ServeHTTP upgrades the connection, sends the current stats, then streams
// broadcasts until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer h.unregister(c)

	if data, err := h.statsMessage(r.Context()); err == nil {
		select {
		case c.send <- data:
		default:
		}
	}

	go c.writePump()
	c.readPump()
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.WebSocketClients.Inc()
	slog.Debug("ws: client connected", "remote", c.conn.RemoteAddr().String())
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		metrics.WebSocketClients.Dec()
	}
}

// broadcast queues data on every client and drops the ones that are full.
// It returns the number of clients the message was queued for.
func (h *Hub) broadcast(data []byte) int {
	var slow []*client
	sent := 0

	// Sends happen under the read lock so unregister cannot close a channel
	// mid-send.
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
			sent++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("ws: dropping slow client", "remote", c.conn.RemoteAddr().String())
		h.unregister(c)
	}
	return sent
}

func (h *Hub) statsMessage(ctx context.Context) ([]byte, error) {
	st, err := h.stats.Stats(ctx)
	if err != nil {
		slog.Error("ws: compute stats", "err", err)
		return nil, err
	}
	return json.Marshal(Message{Event: EventStats, Data: st})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
		metrics.WebSocketClients.Dec()
	}
}

// writePump forwards queued messages to the connection and sends pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes control frames and detects disconnects. Blocks until the
// connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
