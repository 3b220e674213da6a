package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"bag-service/internal/models"
	"bag-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 16
)

type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

// Hub pushes order status updates to the websocket clients of each session
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[string]map[*wsClient]struct{}
}

// NewHub creates a hub accepting connections from allowedOrigins; "*" allows any origin
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{
		logger:  util.GetLogger(),
		clients: make(map[string]map[*wsClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(allowedOrigins, "*") {
				return true
			}
			return slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// Notify queues update for the session's clients. Slow clients miss updates.
func (h *Hub) Notify(update models.OrderStatusUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		h.logger.Error("Failed to marshal status update", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[update.SessionID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Dropping status update for slow client", zap.String("session_id", update.SessionID))
		}
	}
}

// ClientCount returns the number of clients connected for sessionID
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Serve upgrades the request and blocks until the client goes away
func (h *Hub) Serve(c *gin.Context, sessionID string) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		sessionID: sessionID,
	}
	h.register(client)
	defer h.unregister(client)

	go h.writePump(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, set := range h.clients {
		for c := range set {
			_ = c.conn.Close()
		}
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.sessionID]
	if !ok {
		set = make(map[*wsClient]struct{})
		h.clients[c.sessionID] = set
	}
	set[c] = struct{}{}
	util.WebsocketClients.Inc()
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.clients[c.sessionID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.sessionID)
	}
	close(c.send)
	util.WebsocketClients.Dec()
}

func (h *Hub) writePump(c *wsClient) {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("Websocket write failed", zap.Error(err))
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
