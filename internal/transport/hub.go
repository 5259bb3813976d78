// Package transport carries wire events between the lobby and connected
// clients. The Hub tracks room membership; the websocket gateway feeds
// it real connections, tests feed it fakes.
package transport

import (
	"sync"

	"github.com/switchess/server/pkg/wire"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Conn is one connected client.
type Conn interface {
	ID() string
	User() wire.User
	// Emit queues one event for delivery. It never blocks the caller.
	Emit(event string, payload any)
	Close()
}

// Emitter is the lobby-facing broadcast surface.
type Emitter interface {
	Emit(room, event string, payload any)
	EmitExcept(room string, except Conn, event string, payload any)
	RoomSize(room string) int
}

// Rooms adds membership management to the broadcast surface.
type Rooms interface {
	Emitter
	Join(room string, c Conn)
	Leave(room string, c Conn)
}

// Hub implements Emitter over an in-memory membership table.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Conn
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]Conn)}
}

func (h *Hub) Join(room string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]Conn)
		h.rooms[room] = members
	}
	members[c.ID()] = c
}

func (h *Hub) Leave(room string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c.ID())
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) Emit(room, event string, payload any) {
	for _, c := range h.members(room) {
		c.Emit(event, payload)
	}
}

func (h *Hub) EmitExcept(room string, except Conn, event string, payload any) {
	exceptID := ""
	if except != nil {
		exceptID = except.ID()
	}
	for _, c := range h.members(room) {
		if c.ID() == exceptID {
			continue
		}
		c.Emit(event, payload)
	}
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) members(room string) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := make([]Conn, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		members = append(members, c)
	}
	return members
}
