// Package ws is the broadcast/transport adapter: it owns the per-room
// connection registry and fans coordinator events out to every open
// websocket. The coordinator never touches connections directly.
package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub tracks the open connections per room. It implements
// game.Broadcaster: events are serialized once and handed to each
// client's buffered send queue; a client that cannot keep up is
// dropped so one slow socket never stalls the others.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]bool)}
}

func (h *Hub) add(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][c] = true
}

func (h *Hub) remove(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.rooms[roomID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Broadcast sends an event to every connection subscribed to a room.
func (h *Hub) Broadcast(roomID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("marshal broadcast")
		return
	}

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.enqueue(data)
	}
}

// ConnectionCount reports the open connections for a room.
func (h *Hub) ConnectionCount(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomID])
}
