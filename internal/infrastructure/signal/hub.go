// Package signal serves the websocket feeds: composited preview frames for
// viewers and decoded barcode events for scanner clients.
package signal

import (
	"net/http"
	"sync"
	"time"

	"overlaycam/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type HubConfig struct {
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	SendBuffer     int
	MaxMessageSize int64
	AllowedOrigins []string
}

func (c *HubConfig) setDefaults() {
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 4
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 64 * 1024
	}
}

type message struct {
	kind int
	data []byte
}

// Client is one websocket subscriber of a hub.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan message
}

func (c *Client) ID() string { return c.id }

// Send queues a message without blocking. It reports false when the client's
// queue is full and the message was dropped.
func (c *Client) Send(kind int, data []byte) bool {
	select {
	case c.send <- message{kind: kind, data: data}:
		return true
	default:
		return false
	}
}

// Hub fans messages out to connected websocket clients. Inbound messages are
// read only to track liveness; a client that falls behind loses messages
// instead of stalling the broadcaster.
type Hub struct {
	name     string
	cfg      HubConfig
	upgrader websocket.Upgrader

	clients map[*Client]struct{}
	mu      sync.RWMutex

	// OnConnect runs after a client is registered, before its first broadcast.
	OnConnect func(c *Client)

	logger *zap.SugaredLogger
}

func NewHub(name string, cfg HubConfig, logger *zap.SugaredLogger) *Hub {
	cfg.setDefaults()
	return &Hub{
		name: name,
		cfg:  cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin:     utils.OriginChecker(cfg.AllowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
		},
		clients: make(map[*Client]struct{}),
		logger:  logger.With("hub", name),
	}
}

// ServeWS upgrades the request and blocks until the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		id:   utils.GenerateSessionID(),
		conn: conn,
		send: make(chan message, h.cfg.SendBuffer),
	}
	h.register(client)
	h.logger.Infow("client connected", "client_id", client.id, "remote_addr", r.RemoteAddr)

	if h.OnConnect != nil {
		h.OnConnect(client)
	}

	go h.writePump(client)
	h.readPump(client)

	h.unregister(client)
	h.logger.Infow("client disconnected", "client_id", client.id)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// unregister closes the send queue under the write lock so no broadcast can
// race with the close.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) readPump(c *Client) {
	c.conn.SetReadLimit(h.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debugw("websocket read failed", "client_id", c.id, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	}
}

func (h *Hub) writePump(c *Client) {
	ping := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(msg.kind, msg.data); err != nil {
				h.logger.Debugw("websocket write failed", "client_id", c.id, "error", err)
				return
			}

		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast queues data for every client and returns how many accepted it.
func (h *Hub) Broadcast(kind int, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.clients {
		if c.Send(kind, data) {
			delivered++
		} else {
			h.logger.Debugw("client lagging, message dropped", "client_id", c.id)
		}
	}
	return delivered
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
