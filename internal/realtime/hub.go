// Package realtime pushes in-app notifications to connected browsers over
// websockets.
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/anonto42/byteboard/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBuffer   = 64
	maxMessageSize = 512
)

// MessageType tags a websocket message.
type MessageType string

const (
	MessageNotification MessageType = "notification"
	MessageHello        MessageType = "hello"
)

// Message is the JSON envelope written to clients.
type Message struct {
	Type MessageType `json:"type"`
	Data any         `json:"data,omitempty"`
}

// Client is one open websocket.
type Client struct {
	ID          string
	UserID      string
	ConnectedAt time.Time
	send        chan Message
	done        chan struct{}
	once        sync.Once
}

// Messages returns the client's outbound queue.
func (c *Client) Messages() <-chan Message {
	return c.send
}

// Done is closed when the client is unregistered.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub tracks open clients per user and fans notifications out to them.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin is enforced by the CORS middleware and the ID token.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[string]map[*Client]struct{}),
	}
}

// Register adds a client for userID.
func (h *Hub) Register(userID string) *Client {
	c := &Client{
		ID:          uuid.NewString(),
		UserID:      userID,
		ConnectedAt: time.Now(),
		send:        make(chan Message, clientBuffer),
		done:        make(chan struct{}),
	}

	h.mu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("websocket client registered", "client_id", c.ID, "user_id", userID)
	return c
}

// Unregister removes the client. It is safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.mu.Unlock()
	c.close()
}

// Publish sends a notification to every client of userID. Slow clients
// whose queue is full miss the message; the inbox still has it.
func (h *Hub) Publish(userID string, n *models.Notification) {
	msg := Message{Type: MessageNotification, Data: n}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("dropped notification for slow client",
				"client_id", c.ID,
				"user_id", userID,
			)
		}
	}
}

// ClientCount returns the number of open clients for userID.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Serve upgrades the request and pumps c's messages to the connection
// until either side closes it. It blocks for the lifetime of the connection.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, c *Client) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go h.readPump(conn, c)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if err := h.write(conn, Message{Type: MessageHello, Data: map[string]string{"client_id": c.ID}}); err != nil {
		return nil
	}

	for {
		select {
		case msg := <-c.send:
			if err := h.write(conn, msg); err != nil {
				h.logger.Debug("websocket write failed", "client_id", c.ID, "error", err)
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-c.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return nil
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// readPump discards client input and unregisters the client when the
// connection drops.
func (h *Hub) readPump(conn *websocket.Conn, c *Client) {
	defer h.Unregister(c)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed unexpectedly", "client_id", c.ID, "error", err)
			}
			return
		}
	}
}

// Close unregisters every client.
func (h *Hub) Close() {
	h.mu.Lock()
	all := make([]*Client, 0)
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range all {
		c.close()
	}
}
