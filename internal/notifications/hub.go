package notifications

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/groupdesk/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 10

	defaultClientBuffer = 64
)

type controlMessage struct {
	Action string `json:"action"`
}

// Hub streams booking events to the connected sessions of each recipient.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*connection]struct{}
	closed   bool
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub constructs a websocket hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*connection]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Same origin, or localhost during development.
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				return originHost == hostWithoutPort(r.Host) || isLoopback(originHost)
			},
		},
		log: logger.WithModule("notifications.hub"),
	}
}

func (h *Hub) Name() string { return "websocket" }

// Deliver pushes the event to every recipient's live connections.
func (h *Hub) Deliver(_ context.Context, event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, userID := range event.Recipients {
		for client := range h.clients[userID] {
			h.enqueue(client, event)
		}
	}
	return nil
}

// Serve upgrades the request and streams events for userID until the peer goes away.
func (h *Hub) Serve(userID string, w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := &connection{
		hub:    h,
		socket: conn,
		userID: userID,
		send:   make(chan Event, defaultClientBuffer),
	}
	h.register(client)

	go client.writeLoop()
	client.readLoop()
}

// Connections reports the number of live connections for userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close disconnects every stream and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var open []*connection
	for _, clients := range h.clients {
		for client := range clients {
			open = append(open, client)
		}
	}
	h.mu.Unlock()

	for _, client := range open {
		client.close()
	}
}

func (h *Hub) register(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*connection]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
}

func (h *Hub) unregister(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients := h.clients[client.userID]; clients != nil {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.userID)
		}
	}
}

// enqueue must be called with h.mu held for reading.
func (h *Hub) enqueue(client *connection, event Event) {
	select {
	case client.send <- event:
	default:
		h.log.Warn("dropping slow websocket client", zap.String("user_id", client.userID))
		go client.close()
	}
}

// reply sends to a single connection if it is still registered; unregistering
// happens before its channel closes.
func (h *Hub) reply(client *connection, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[client.userID][client]; ok {
		h.enqueue(client, event)
	}
}

type connection struct {
	hub    *Hub
	socket *websocket.Conn
	userID string
	send   chan Event
	once   sync.Once
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket closed unexpectedly", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}

		var ctrl controlMessage
		if err := json.Unmarshal(payload, &ctrl); err != nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(ctrl.Action), "ping") {
			c.hub.reply(c, Event{Type: "pong", OccurredAt: time.Now().UTC()})
		}
	}
}

func (c *connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.socket.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		close(c.send)
		_ = c.socket.Close()
	})
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		parsed, err := http.NewRequest(http.MethodGet, host, nil)
		if err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
