package relay

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/drawchat/relay/internal/protocol"
)

// RoomCapacity is the maximum number of members per room. A join against a
// full room is rejected, not queued.
const RoomCapacity = 16

// reservedName can never be assigned, in any casing. Clients render it as the
// placeholder for an unnamed peer.
const reservedName = "invalid"

// Hub owns all shared connection state: the client set, the username
// registry, admin flags, and room membership. Every mutation runs atomically
// under one mutex, so no observer ever sees a half-applied transition; frame
// delivery happens through non-blocking client queues and never suspends
// inside a critical section.
type Hub struct {
	mu     sync.Mutex
	logger *zap.Logger

	clients map[*Client]struct{}
	names   map[*Client]string
	authed  map[*Client]bool
	rooms   map[string]map[*Client]struct{}
}

// NewHub creates a hub with the four fixed rooms.
//
// Precondition: logger must be non-nil.
func NewHub(logger *zap.Logger) *Hub {
	rooms := make(map[string]map[*Client]struct{}, len(protocol.RoomIDs))
	for _, id := range protocol.RoomIDs {
		rooms[id] = make(map[*Client]struct{})
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*Client]struct{}),
		names:   make(map[*Client]string),
		authed:  make(map[*Client]bool),
		rooms:   rooms,
	}
}

// Register adds a new connection with no name and no room memberships.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// AssignUsername records the name for c iff it is not the reserved name
// (case-insensitive) and no other live connection holds the exact same name.
// Failure is a negotiation outcome reported to the client, never a
// termination.
//
// Postcondition: Returns true iff the mapping was recorded.
func (h *Hub) AssignUsername(c *Client, name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if strings.EqualFold(name, reservedName) {
		return false
	}
	for _, taken := range h.names {
		if taken == name {
			return false
		}
	}
	h.names[c] = name
	return true
}

// Username returns c's assigned name, or empty string when none is set.
func (h *Hub) Username(c *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.names[c]
}

// FindByName returns the live connection holding the exact given name.
func (h *Hub) FindByName(name string) (*Client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c, n := range h.names {
		if n == name {
			return c, true
		}
	}
	return nil, false
}

// SetAuthed records c's admin-authentication state.
func (h *Hub) SetAuthed(c *Client, authed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.authed[c] = authed
}

// IsAuthed reports c's admin-authentication state.
func (h *Hub) IsAuthed(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.authed[c]
}

// Unregister removes c's name mapping, admin flag, and all room memberships,
// broadcasting a leave notice to every room it was in using the name held at
// the time of removal. Calling it again for the same connection is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}

	name := h.names[c]
	delete(h.names, c)
	delete(h.authed, c)

	for _, id := range protocol.RoomIDs {
		members := h.rooms[id]
		if _, ok := members[c]; !ok {
			continue
		}
		delete(members, c)
		h.deliverLocked(id, protocol.NewEnvelope(protocol.NewLeaveNotice(id, name)))
	}

	delete(h.clients, c)
}

// Join adds c to the given room and broadcasts a join notice to all members,
// including the newly joined one. An invalid room identifier or a full room
// yields false; both are negotiation outcomes.
func (h *Hub) Join(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	if len(members) >= RoomCapacity {
		h.logger.Debug("room full",
			zap.String("room", room),
			zap.String("client", c.ID),
		)
		return false
	}

	members[c] = struct{}{}
	h.deliverLocked(room, protocol.NewEnvelope(protocol.NewJoinNotice(room, h.names[c])))
	return true
}

// Leave removes c from the given room, broadcasting a leave notice to all
// members including the departing one. A room c is not in is a no-op, not an
// error.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}
	if _, ok := members[c]; !ok {
		return
	}
	h.deliverLocked(room, protocol.NewEnvelope(protocol.NewLeaveNotice(room, h.names[c])))
	delete(members, c)
}

// Broadcast delivers a chat message to every current member of the room. When
// the message carries no explicit author field, the author is resolved from
// origin's registered name (empty string for a nil, system origin). Delivery
// is best-effort per member.
//
// Postcondition: Returns false iff the room identifier matches no room.
func (h *Hub) Broadcast(room string, msg *protocol.ChatMessage, origin *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[room]; !ok {
		return false
	}

	if msg.User == nil {
		name := ""
		if origin != nil {
			name = h.names[origin]
		}
		msg.SetUser(name)
	}

	h.deliverLocked(room, protocol.NewEnvelope(msg))
	return true
}

// BroadcastAll delivers a server notice to every member of every room.
func (h *Hub) BroadcastAll(notice *protocol.Notice) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range protocol.RoomIDs {
		h.deliverLocked(id, protocol.NewEnvelope(notice))
	}
}

// Status returns the current member count of each room.
func (h *Hub) Status() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int, len(h.rooms))
	for id, members := range h.rooms {
		counts[id] = len(members)
	}
	return counts
}

// deliverLocked encodes the frame once and queues it to every member of the
// room. Enqueueing never blocks, so holding the hub mutex here is safe.
// Caller must hold h.mu.
func (h *Hub) deliverLocked(room string, frame any) {
	data, err := protocol.Encode(frame)
	if err != nil {
		h.logger.Error("encoding broadcast frame", zap.Error(err))
		return
	}
	for member := range h.rooms[room] {
		if !member.enqueue(data) {
			h.logger.Debug("dropped frame for slow client",
				zap.String("client", member.ID),
				zap.String("room", room),
			)
		}
	}
}
