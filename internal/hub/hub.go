package hub

import (
	"sync"

	"github.com/Adnxnn/ILCT-Platform-sub001/internal/models"
)

// Hub tracks live connections and their room memberships, and fans events out
// to rooms. Operations on unknown connection IDs are no-ops so a disconnect
// race never turns into a fault.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]*Client
	joined  map[string]map[string]struct{} // connID -> roomIDs
	members map[string]map[string]*Client  // roomID -> connID -> client
}

func New() *Hub {
	return &Hub{
		conns:   make(map[string]*Client),
		joined:  make(map[string]map[string]struct{}),
		members: make(map[string]map[string]*Client),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID] = c
	h.joined[c.ID] = make(map[string]struct{})
}

// Join adds the connection to a room. Idempotent; false for unknown connections.
func (h *Hub) Join(connID, roomID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return false
	}
	h.joined[connID][roomID] = struct{}{}
	room, ok := h.members[roomID]
	if !ok {
		room = make(map[string]*Client)
		h.members[roomID] = room
	}
	room[connID] = c
	return true
}

// Leave removes the connection from a room; no-op if it was not a member.
func (h *Hub) Leave(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rooms, ok := h.joined[connID]; ok {
		delete(rooms, roomID)
	}
	if room, ok := h.members[roomID]; ok {
		delete(room, connID)
	}
}

func (h *Hub) IsMember(connID, roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.joined[connID][roomID]
	return ok
}

// Identity resolves a connection to its verified identity string.
func (h *Hub) Identity(connID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[connID]
	if !ok {
		return "", false
	}
	return c.Identity, true
}

// Rooms lists the rooms a connection currently belongs to.
func (h *Hub) Rooms(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.joined[connID]))
	for roomID := range h.joined[connID] {
		out = append(out, roomID)
	}
	return out
}

func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members[roomID])
}

func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// BroadcastExceptSender delivers a frame to every member of the room except
// the sender. Broadcasting to an empty or unknown room is a no-op. An unknown
// sender ID excludes nobody, which is how cross-instance relays address a
// whole room.
func (h *Hub) BroadcastExceptSender(roomID, senderID string, frame models.Frame) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.members[roomID]))
	for id, c := range h.members[roomID] {
		if id == senderID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Send(frame)
	}
	return len(targets)
}

// Unicast delivers a frame to one connection; no-op for unknown IDs.
func (h *Hub) Unicast(connID string, frame models.Frame) {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if ok {
		c.Send(frame)
	}
}

// Disconnect removes the connection from every room and discards its record.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID := range h.joined[connID] {
		if room, ok := h.members[roomID]; ok {
			delete(room, connID)
		}
	}
	delete(h.joined, connID)
	delete(h.conns, connID)
}
