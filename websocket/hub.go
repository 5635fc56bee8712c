package websocket

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event names carried on the wire.
const (
	EventConnected    = "connected"
	EventNotification = "notification"
	EventUnauthorized = "unauthorized"
)

// Event represents a frame sent over the notification socket.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Client represents one connected notification socket. A user may hold several
// (one per browser tab); every one of them belongs to exactly one user.
type Client struct {
	ID     uuid.UUID
	UserID primitive.ObjectID
	Conn   *websocket.Conn

	writeMu sync.Mutex
}

// Send writes one event frame. Gorilla connections allow a single writer, so
// every write goes through the client's mutex.
func (c *Client) Send(event Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(event)
}

// Hub maintains the set of active clients and delivers notifications to the
// private per-user destination. There is no broadcast path: a frame is only
// ever written to sockets registered under the owning user's id.
type Hub struct {
	clients    map[primitive.ObjectID]map[uuid.UUID]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[primitive.ObjectID]map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[uuid.UUID]*Client)
			}
			h.clients[client.UserID][client.ID] = client
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.clients[client.UserID]; ok {
				if _, ok := conns[client.ID]; ok {
					delete(conns, client.ID)
					if len(conns) == 0 {
						delete(h.clients, client.UserID)
					}
				}
			}
			client.Conn.Close()
			h.mu.Unlock()
		}
	}
}

// SendToUser delivers an event to every socket the user currently holds.
func (h *Hub) SendToUser(userID primitive.ObjectID, event Event) error {
	h.mu.RLock()
	conns := make([]*Client, 0, len(h.clients[userID]))
	for _, client := range h.clients[userID] {
		conns = append(conns, client)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return fmt.Errorf("user not connected")
	}

	for _, client := range conns {
		if err := client.Send(event); err != nil {
			// A dead socket is unregistered by its read loop; keep going so the
			// user's remaining tabs still get the event.
			continue
		}
	}
	return nil
}

// DisconnectUser closes every socket the user holds, e.g. on forced logout.
func (h *Hub) DisconnectUser(userID primitive.ObjectID) {
	h.mu.Lock()
	conns := h.clients[userID]
	delete(h.clients, userID)
	h.mu.Unlock()

	for _, client := range conns {
		client.Conn.Close()
	}
}

// RevokeUser tells every socket the user holds that its credential is no
// longer valid, then closes them. Unlike DisconnectUser, the unauthorized
// frame lets clients tell revocation from transport loss, so they stop
// reconnecting instead of retrying with a dead token.
func (h *Hub) RevokeUser(userID primitive.ObjectID) {
	h.mu.Lock()
	conns := h.clients[userID]
	delete(h.clients, userID)
	h.mu.Unlock()

	for _, client := range conns {
		client.Send(Event{Event: EventUnauthorized})
		client.Conn.Close()
	}
}

// ConnectionCount reports how many sockets the user currently holds.
func (h *Hub) ConnectionCount(userID primitive.ObjectID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
