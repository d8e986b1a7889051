package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 512

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 64
)

// client is one websocket connection bound to a single user's channel.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
}

// Hub streams each connected user's change events from the event bus to
// their websocket connections. A connection only ever receives events for
// the authenticated caller that opened it.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	bus        domain.EventBus
	upgrader   websocket.Upgrader
	mu         sync.RWMutex
	logger     *slog.Logger
	done       chan struct{}
}

// NewHub creates a Hub reading from bus. allowedOrigins restricts the
// upgrade Origin header; empty allows every origin.
func NewHub(bus domain.EventBus, allowedOrigins []string, logger *slog.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		bus:        bus,
		logger:     logger,
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

// Run tracks connected clients until ctx is cancelled, then disconnects
// all of them.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.cancel()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Info("ws: client connected",
				slog.String("user_id", c.userID),
				slog.Int("total_clients", h.clientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.cancel()
			}
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected",
				slog.String("user_id", c.userID),
				slog.Int("total_clients", h.clientCount()),
			)
		}
	}
}

// HandleWS upgrades an authenticated request to a websocket and streams the
// caller's events to it.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	p, ok := domain.PrincipalFrom(r.Context())
	if !ok || p.UserID == "" {
		http.Error(w, `{"error":"Authorization token is required"}`, http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	// The request context ends when the handler returns; the connection
	// outlives it.
	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		hub:    h,
		conn:   conn,
		userID: p.UserID,
		send:   make(chan []byte, sendBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}

	events, err := h.bus.Subscribe(ctx, domain.UserChannel(p.UserID))
	if err != nil {
		h.logger.Error("ws: subscribe failed",
			slog.String("user_id", p.UserID),
			slog.String("error", err.Error()),
		)
		cancel()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "event feed unavailable"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	select {
	case h.register <- c:
	case <-h.done:
		cancel()
		conn.Close()
		return
	}
	c.queue(connectedMessage(p.UserID))

	go c.forward(events)
	go c.writePump()
	go c.readPump()
}

// clientCount returns the number of currently connected clients.
func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func connectedMessage(userID string) []byte {
	msg, _ := json.Marshal(domain.Event{
		Type:   "connected",
		UserID: userID,
		At:     time.Now().UTC(),
	})
	return msg
}

// queue hands msg to the write pump, dropping it when the client is slow.
func (c *client) queue(msg []byte) {
	select {
	case c.send <- msg:
	default:
		c.hub.logger.Warn("ws: dropping message for slow client", slog.String("user_id", c.userID))
	}
}

// forward copies bus messages to the client until the subscription ends.
func (c *client) forward(events <-chan []byte) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case data, ok := <-events:
			if !ok {
				return
			}
			c.queue(data)
		}
	}
}

// readPump drains the connection so control frames are processed. Clients
// do not send application messages; anything received is ignored.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.cancel()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("user_id", c.userID),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// writePump sends queued events as JSON text frames and keeps the
// connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
