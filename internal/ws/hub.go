package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ken-de-nigerian/incrypto-sub000/internal/messaging"
	"github.com/ken-de-nigerian/incrypto-sub000/pkg/models"
)

// Envelope wraps every outbound websocket message.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub fans NATS notifications and quote updates out to websocket clients.
// Notifications are delivered only to the owning user; quotes go to every
// client subscribed to the symbol.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client

	heartbeatInt time.Duration

	nats   *messaging.NATSClient
	logger *logrus.Entry
	mu     sync.RWMutex
}

// Client represents a connected websocket client.
type Client struct {
	userID  string
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	symbols map[string]bool
	mu      sync.RWMutex
}

// NewHub creates a websocket hub wired to NATS.
func NewHub(nats *messaging.NATSClient, logger *logrus.Logger) *Hub {
	h := &Hub{
		clients:      make(map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		heartbeatInt: 30 * time.Second,
		nats:         nats,
		logger:       logger.WithField("component", "ws-hub"),
	}

	if err := h.subscribeToUpdates(); err != nil {
		logger.WithError(err).Error("Failed to subscribe to updates")
	}

	return h
}

func (h *Hub) subscribeToUpdates() error {
	if h.nats == nil {
		return nil
	}

	if err := h.nats.SubscribeNotifications(func(n *models.Notification) {
		h.sendToUser(n.UserID, Envelope{Type: "notification", Data: n})
	}); err != nil {
		return err
	}

	return h.nats.SubscribeQuotes(func(q *models.MarketQuote) {
		h.sendToSubscribers(q.Symbol, Envelope{Type: "quote", Data: q})
	})
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	heartbeat := time.NewTicker(h.heartbeatInt)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case <-heartbeat.C:
			data, _ := json.Marshal(Envelope{Type: "heartbeat", Data: time.Now().Unix()})
			h.broadcast(data)
		}
	}
}

func (h *Hub) sendToUser(userID string, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if client.userID != userID {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Client buffer full, disconnect
			close(client.send)
			delete(h.clients, client)
		}
	}
}

func (h *Hub) sendToSubscribers(symbol string, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.IsSubscribed(symbol) {
			continue
		}
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// ConnectionCount returns the number of active connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades the request and starts the client pumps. The
// user is identified by the user_id query parameter.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade connection")
		return
	}

	client := &Client{
		userID:  userID,
		conn:    conn,
		send:    make(chan []byte, 256),
		hub:     h,
		symbols: make(map[string]bool),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// clientCommand is the inbound control message format.
type clientCommand struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				c.hub.logger.WithError(err).Debug("WebSocket closed")
			}
			break
		}

		var cmd clientCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}

		switch cmd.Action {
		case "subscribe":
			c.Subscribe(cmd.Symbols)
		case "unsubscribe":
			c.Unsubscribe(cmd.Symbols)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) {
					c.hub.logger.WithError(err).Debug("Write error")
				}
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Subscribe adds symbols to the client's quote subscription list
func (c *Client) Subscribe(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, symbol := range symbols {
		c.symbols[symbol] = true
	}
}

// Unsubscribe removes symbols from the client's quote subscription list
func (c *Client) Unsubscribe(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, symbol := range symbols {
		delete(c.symbols, symbol)
	}
}

// IsSubscribed checks if the client is subscribed to a symbol
func (c *Client) IsSubscribed(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.symbols[symbol]
}
