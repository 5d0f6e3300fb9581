package http

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// client owns a single websocket connection. All writes funnel through the
// send channel into one writer goroutine so frames never interleave.
type client struct {
	connID string
	conn   *websocket.Conn
	send   chan outboundMessage
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) writeLoop() {
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error on %s: %v", c.connID, err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// Hub tracks live connections by connection id and implements app.Notifier.
// Sends are fire-and-forget: a full send buffer drops the oldest queued
// message rather than blocking the room mutator.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

func (h *Hub) register(conn *websocket.Conn) *client {
	c := &client{
		connID: newConnID(),
		conn:   conn,
		send:   make(chan outboundMessage, 32),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c.connID] = c
	h.mu.Unlock()
	go c.writeLoop()
	return c
}

func (h *Hub) unregister(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
	}
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

// Send enqueues one event for a connection, preserving enqueue order.
func (h *Hub) Send(connID, event string, payload any) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	msg := outboundMessage{Type: event, Payload: payload}
	select {
	case c.send <- msg:
	default:
		// Slow consumer: shed the oldest queued message to make room.
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- msg:
		default:
		}
	}
}

// CloseConn force-disconnects a client, e.g. when its room is retired.
func (h *Hub) CloseConn(connID string) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	c.close()
}

func newConnID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "conn-unknown"
	}
	return hex.EncodeToString(b)
}
