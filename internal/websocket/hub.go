// Package websocket pushes newly derived segments to connected dashboards.
package websocket

import (
	"sync"

	"github.com/rs/zerolog"
)

// replayDepth is how many recent segment writes a newly connected client
// receives before live messages start.
const replayDepth = 64

// Hub fans segment writes out to every connected dashboard client. A short
// replay buffer bridges the gap for clients that connect mid-shift.
type Hub struct {
	clients map[*Client]bool

	// Segment JSON from the repository's feed hook
	broadcast chan []byte

	register   chan *Client
	unregister chan *Client

	// Most recent broadcasts, oldest first. Touched only by Run.
	recent [][]byte

	// Protects clients
	mu sync.RWMutex

	logger zerolog.Logger
}

// NewHub creates a new Hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger,
	}
}

// Run owns the client set and the replay buffer until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info().
				Str("client_id", client.id).
				Int("total_clients", len(h.clients)).
				Msg("client connected")
			h.replay(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Info().
					Str("client_id", client.id).
					Int("total_clients", len(h.clients)).
					Msg("client disconnected")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.remember(message)
			h.send(message)
		}
	}
}

// Broadcast queues a segment write for delivery to all connected clients.
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remember(message []byte) {
	h.recent = append(h.recent, message)
	if len(h.recent) > replayDepth {
		h.recent = h.recent[len(h.recent)-replayDepth:]
	}
}

// replay pushes the buffered recent writes to a freshly registered client.
// A client that cannot keep up with its own replay is dropped immediately.
func (h *Hub) replay(client *Client) {
	for _, message := range h.recent {
		select {
		case client.send <- message:
		default:
			h.drop(client, "client fell behind during replay")
			return
		}
	}
}

func (h *Hub) send(message []byte) {
	h.mu.RLock()
	slow := make([]*Client, 0)
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.drop(client, "client send buffer full, closing connection")
	}
}

func (h *Hub) drop(client *Client, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.logger.Warn().Str("client_id", client.id).Msg(reason)
}
