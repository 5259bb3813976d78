package transport

import (
	"sync"
	"testing"

	"github.com/switchess/server/pkg/wire"
)

type fakeConn struct {
	id   string
	user wire.User

	mu     sync.Mutex
	events []Envelope
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, user: wire.User{ID: 1, Name: id}}
}

func (c *fakeConn) ID() string      { return c.id }
func (c *fakeConn) User() wire.User { return c.user }
func (c *fakeConn) Close()          {}

func (c *fakeConn) Emit(event string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, Envelope{Event: event, Data: payload})
}

func (c *fakeConn) received() []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Envelope(nil), c.events...)
}

func TestHubEmitReachesRoomOnly(t *testing.T) {
	h := NewHub()
	a, b, outsider := newFakeConn("a"), newFakeConn("b"), newFakeConn("c")
	h.Join("ROOM1", a)
	h.Join("ROOM1", b)
	h.Join("ROOM2", outsider)

	h.Emit("ROOM1", "chat", "hi")

	if len(a.received()) != 1 || len(b.received()) != 1 {
		t.Fatalf("room members missed the event: a=%d b=%d", len(a.received()), len(b.received()))
	}
	if len(outsider.received()) != 0 {
		t.Fatal("event leaked to another room")
	}
}

func TestHubEmitExcept(t *testing.T) {
	h := NewHub()
	a, b := newFakeConn("a"), newFakeConn("b")
	h.Join("ROOM1", a)
	h.Join("ROOM1", b)

	h.EmitExcept("ROOM1", a, "receivedMove", nil)

	if len(a.received()) != 0 {
		t.Fatal("sender received its own broadcast")
	}
	if len(b.received()) != 1 {
		t.Fatalf("other member got %d events, want 1", len(b.received()))
	}
}

func TestHubLeaveAndRoomSize(t *testing.T) {
	h := NewHub()
	a, b := newFakeConn("a"), newFakeConn("b")
	h.Join("ROOM1", a)
	h.Join("ROOM1", b)
	if got := h.RoomSize("ROOM1"); got != 2 {
		t.Fatalf("RoomSize = %d, want 2", got)
	}

	h.Leave("ROOM1", a)
	if got := h.RoomSize("ROOM1"); got != 1 {
		t.Fatalf("RoomSize after leave = %d, want 1", got)
	}
	h.Emit("ROOM1", "chat", "bye")
	if len(a.received()) != 0 {
		t.Fatal("departed member still received events")
	}

	h.Leave("ROOM1", b)
	if got := h.RoomSize("ROOM1"); got != 0 {
		t.Fatalf("RoomSize after empty = %d", got)
	}
	// Leaving an unknown room is a no-op.
	h.Leave("NOPE", a)
}

func TestHubJoinIsIdempotent(t *testing.T) {
	h := NewHub()
	a := newFakeConn("a")
	h.Join("ROOM1", a)
	h.Join("ROOM1", a)
	if got := h.RoomSize("ROOM1"); got != 1 {
		t.Fatalf("RoomSize = %d, want 1", got)
	}
	h.Emit("ROOM1", "chat", "once")
	if len(a.received()) != 1 {
		t.Fatalf("duplicate membership delivered %d events", len(a.received()))
	}
}
