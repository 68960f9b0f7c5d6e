package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/garyjia/docflow/internal/application/port"
)

// ErrNotConnected is returned by Push when the user has no open connection
var ErrNotConnected = errors.New("user not connected")

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPongWait     = 60 * time.Second
	sendBufferSize      = 16
)

// HubConfig tunes the websocket hub
type HubConfig struct {
	WriteTimeout time.Duration
	PongWait     time.Duration
	// AllowedOrigins is matched against the Origin header; empty allows any origin
	AllowedOrigins []string
}

// Hub keeps the live websocket connections of each user and pushes JSON frames to them
type Hub struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	pongWait     time.Duration
	logger       *zap.Logger

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	closed  bool
}

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// NewHub creates a websocket hub
func NewHub(cfg HubConfig, logger *zap.Logger) *Hub {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}

	h := &Hub{
		writeTimeout: cfg.WriteTimeout,
		pongWait:     cfg.PongWait,
		logger:       logger,
		clients:      make(map[string]map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// Serve upgrades the request and attaches the connection to userID.
// It returns once the connection is registered; pumps run in the background.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	if userID == "" {
		http.Error(w, "user id is required", http.StatusUnauthorized)
		return fmt.Errorf("websocket connect without user id")
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		return fmt.Errorf("websocket upgrade: %w", err)
	}

	c := &client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
	if !h.register(c) {
		_ = conn.Close()
		return fmt.Errorf("hub is closed")
	}

	h.logger.Info("Websocket connected", zap.String("user_id", userID))

	go h.writePump(c)
	go h.readPump(c)
	return nil
}

// ServeHTTP takes the user from the userId query parameter
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.Serve(w, r, r.URL.Query().Get("userId")); err != nil {
		h.logger.Debug("Websocket connect rejected", zap.Error(err))
	}
}

// Push sends payload as a JSON text frame to every connection of userID
func (h *Hub) Push(ctx context.Context, userID string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode push payload: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := h.clients[userID]
	if len(conns) == 0 {
		return fmt.Errorf("%w: %s", ErrNotConnected, userID)
	}

	queued := 0
	for c := range conns {
		select {
		case c.send <- msg:
			queued++
		default:
			h.logger.Warn("Websocket send buffer full, dropping frame", zap.String("user_id", userID))
		}
	}
	if queued == 0 {
		return fmt.Errorf("all connections of %s are saturated", userID)
	}
	return nil
}

// Connections returns the number of open connections of userID
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close disconnects every client. Later connects are refused.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for userID, conns := range h.clients {
		for c := range conns {
			c.close()
		}
		delete(h.clients, userID)
	}
	return nil
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	conns, ok := h.clients[c.userID]
	if !ok {
		conns = make(map[*client]struct{})
		h.clients[c.userID] = conns
	}
	conns[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.clients[c.userID]; ok {
		if _, found := conns[c]; found {
			delete(conns, c)
			c.close()
		}
		if len(conns) == 0 {
			delete(h.clients, c.userID)
		}
	}
}

// readPump discards inbound frames and detects disconnects
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
		h.logger.Info("Websocket disconnected", zap.String("user_id", c.userID))
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("Websocket write failed", zap.String("user_id", c.userID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ port.Pusher = (*Hub)(nil)
