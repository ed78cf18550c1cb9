package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	clientSend = 64
)

// Envelope is what browsers receive for every consumed event.
type Envelope struct {
	Topic     string          `json:"topic"`
	Kind      string          `json:"kind"`
	SessionID string          `json:"sessionId"`
	Event     json.RawMessage `json:"event"`
}

type client struct {
	conn    *websocket.Conn
	session string
	send    chan Envelope
}

// Hub fans consumed events out to connected browsers. A browser may restrict
// itself to one session with ?session=<id>. Slow browsers lose events.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan Envelope
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan Envelope, 100),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Clients returns the number of connected browsers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.Info().Int("clients", n).Str("session", c.session).Msg("Client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Info().Int("clients", n).Msg("Client disconnected")

		case env := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if c.session != "" && c.session != env.SessionID {
					continue
				}
				select {
				case c.send <- env:
				default:
					log.Warn().Str("session", env.SessionID).Msg("Client too slow, dropping event")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues an event for every interested browser.
func (h *Hub) Publish(env Envelope) {
	h.broadcast <- env
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev
	},
}

func wsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("WebSocket upgrade failed")
			return
		}
		c := &client{conn: conn, session: r.URL.Query().Get("session"), send: make(chan Envelope, clientSend)}
		hub.register <- c

		go c.writeLoop()
		// Keep connection alive, handle disconnects
		go func() {
			defer func() {
				hub.unregister <- c
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for env := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(env); err != nil {
			log.Debug().Err(err).Msg("Write to client failed")
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
