// Package rooms provides the in-process broadcast channel: transient room
// membership keyed by round ID, with per-room FIFO fan-out of confirmed
// mutation events. It holds no persistent state.
package rooms

import (
	"sync"
)

// Member is one connected observer. Events are delivered on a buffered
// channel; a member that stops draining it is dropped from all rooms and
// its channel closed.
type Member struct {
	userID string
	send   chan any

	// closed is guarded by the hub lock; it stops a racing Join from
	// resurrecting a member whose channel has been closed.
	closed bool
}

// NewMember creates a member for the given identity with the given event
// buffer size.
func NewMember(userID string, buffer int) *Member {
	return &Member{
		userID: userID,
		send:   make(chan any, buffer),
	}
}

// UserID returns the identity this member authenticated as.
func (m *Member) UserID() string {
	return m.userID
}

// Events returns the channel of broadcast events. It is closed when the
// member is removed from the hub.
func (m *Member) Events() <-chan any {
	return m.send
}

// Hub is the process-wide room registry. It is an explicit service object
// injected into the mutation pipeline so tests can substitute a fake.
type Hub struct {
	mu     sync.Mutex
	rooms  map[string]map[*Member]bool
	joined map[*Member]map[string]bool
}

func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Member]bool),
		joined: make(map[*Member]map[string]bool),
	}
}

// Join adds m to the room for roundID, creating the room on demand.
// Joining has no effect on persisted state.
func (h *Hub) Join(m *Member, roundID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if m.closed {
		return
	}

	room, ok := h.rooms[roundID]
	if !ok {
		room = make(map[*Member]bool)
		h.rooms[roundID] = room
	}
	room[m] = true

	if h.joined[m] == nil {
		h.joined[m] = make(map[string]bool)
	}
	h.joined[m][roundID] = true
}

// Leave removes m from one room, reaping the room if it is now empty. The
// member's event channel stays open.
func (h *Hub) Leave(m *Member, roundID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(m, roundID)
}

func (h *Hub) leaveLocked(m *Member, roundID string) {
	room, ok := h.rooms[roundID]
	if !ok {
		return
	}
	delete(room, m)
	if len(room) == 0 {
		delete(h.rooms, roundID)
	}
	if rooms := h.joined[m]; rooms != nil {
		delete(rooms, roundID)
		if len(rooms) == 0 {
			delete(h.joined, m)
		}
	}
}

// Remove takes m out of every room and closes its event channel. Called on
// disconnect; in-flight mutations are unaffected.
func (h *Hub) Remove(m *Member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(m)
}

func (h *Hub) removeLocked(m *Member) {
	if m.closed {
		return
	}
	for roundID := range h.joined[m] {
		h.leaveLocked(m, roundID)
	}
	delete(h.joined, m)
	m.closed = true
	close(m.send)
}

// Publish delivers event to every member currently joined to the round's
// room, including the publisher's own connections. Publishes for the same
// round are serialized on the hub lock, so members observe them in publish
// order. Members with a full buffer are dropped rather than blocking the
// fan-out.
func (h *Hub) Publish(roundID string, event any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for m := range h.rooms[roundID] {
		select {
		case m.send <- event:
		default:
			h.removeLocked(m)
		}
	}
}

// RoomSize reports the current membership of a room.
func (h *Hub) RoomSize(roundID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roundID])
}
