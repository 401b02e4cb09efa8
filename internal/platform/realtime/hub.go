// Package realtime provides room-scoped fan-out for WebSocket clients.
// It implements a hub-and-spoke pattern where each client belongs to a
// single room and receives every event broadcast to that room.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Event types delivered to room members.
const (
	EventSystem  = "system"
	EventMessage = "message"
	EventError   = "error"
)

// Event is a single frame delivered to WebSocket clients in a room.
type Event struct {
	Type       string    `json:"type"`
	ID         string    `json:"id,omitempty"`
	SenderID   string    `json:"sender_id,omitempty"`
	SenderType string    `json:"sender_type,omitempty"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// Client represents a single WebSocket connection joined to a room.
type Client struct {
	UserID   string
	UserType string
	RoomID   string
	Send     chan []byte
}

// NewClient creates a client with a buffered send channel. Slow consumers
// that fill the buffer have events dropped rather than blocking the room.
func NewClient(userID, userType, roomID string) *Client {
	return &Client{
		UserID:   userID,
		UserType: userType,
		RoomID:   roomID,
		Send:     make(chan []byte, 256),
	}
}

// Hub is the central connection manager that tracks clients by room.
// All operations are thread-safe via sync.RWMutex.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{} // room id -> set of clients
	all   map[*Client]struct{}
}

// NewHub creates a new Hub ready to manage room members.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
		all:   make(map[*Client]struct{}),
	}
}

// Join adds a client to its room.
func (h *Hub) Join(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	if h.rooms[client.RoomID] == nil {
		h.rooms[client.RoomID] = make(map[*Client]struct{})
	}
	h.rooms[client.RoomID][client] = struct{}{}
}

// Leave removes a client from its room and closes its Send channel.
// Calling Leave on an already-removed client is a no-op.
func (h *Hub) Leave(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}

	if members, ok := h.rooms[client.RoomID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, client.RoomID)
		}
	}

	delete(h.all, client)
	close(client.Send)
}

// Broadcast sends an event to every client in the given room, including
// the sender's own connection.
func (h *Hub) Broadcast(roomID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("realtime: failed to marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[roomID]
	if !ok {
		return
	}

	for client := range members {
		select {
		case client.Send <- data:
		default:
			// Client buffer full; skip to avoid blocking.
		}
	}
}

// SendTo delivers an event to a single client only.
func (h *Hub) SendTo(client *Client, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("realtime: failed to marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.all[client]; !ok {
		return
	}

	select {
	case client.Send <- data:
	default:
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// RoomCount returns the number of clients in a specific room.
func (h *Hub) RoomCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
