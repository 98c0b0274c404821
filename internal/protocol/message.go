// Package protocol defines the websocket wire format shared with the drawing
// clients and the preflight validation applied to every inbound frame.
package protocol

import "encoding/json"

// Size limits enforced by the preflight validator. The image length is the
// base64-expanded size of a fixed 230x80 1-bit-per-pixel drawing.
const (
	MaxActionLen   = 32
	MaxUsernameLen = 10
	MaxChatLen     = 532
	ImageLen       = 3068
	MaxChatType    = 16
)

// Message sub-types reserved by the server.
const (
	// TypeBroadcast marks an admin broadcast authored by "[SYSTEM]".
	TypeBroadcast = 8
	// TypeSystem marks a direct system notice to a single connection.
	TypeSystem = 10
)

// SystemUser is the author name stamped on admin broadcasts.
const SystemUser = "[SYSTEM]"

// ClientFrame is the shape of every client-to-server message. Only the fields
// relevant to the requested action are populated.
type ClientFrame struct {
	Action   string       `json:"action"`
	Username string       `json:"username,omitempty"`
	Room     string       `json:"room,omitempty"`
	Message  *ChatMessage `json:"message,omitempty"`
}

// ChatMessage is the payload of a "message" action, relayed verbatim to room
// members with the author filled in.
//
// User is a pointer so the server can tell an absent author field from an
// explicit empty one: broadcast fills the author in only when the field was
// absent.
type ChatMessage struct {
	Type  int     `json:"type"`
	Data  string  `json:"data"`
	Image string  `json:"image"`
	User  *string `json:"user,omitempty"`
}

// SetUser sets the author field to the given name.
func (m *ChatMessage) SetUser(name string) {
	m.User = &name
}

// Notice is a server-originated message: numeric join/leave events, direct
// system notices, and admin broadcasts. Unlike relayed chat it carries no
// image field.
type Notice struct {
	Type int    `json:"type"`
	Data string `json:"data"`
	User string `json:"user"`
}

// StatusReply reports the occupancy of each room.
type StatusReply struct {
	Type  string `json:"type"`
	RoomA int    `json:"roomA"`
	RoomB int    `json:"roomB"`
	RoomC int    `json:"roomC"`
	RoomD int    `json:"roomD"`
}

// UsernameReply reports the outcome of a username negotiation.
type UsernameReply struct {
	Type  string `json:"type"`
	Valid bool   `json:"valid"`
}

// JoinReply reports the outcome of a join request.
type JoinReply struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
}

// Envelope wraps a chat message or notice for delivery to clients. Message is
// either a *ChatMessage or a *Notice.
type Envelope struct {
	Type    string `json:"type"`
	Message any    `json:"message"`
}

// NewEnvelope wraps a message payload in a broadcast envelope.
func NewEnvelope(msg any) Envelope {
	return Envelope{Type: "message", Message: msg}
}

// NewSystemNotice builds a direct system notice for a single connection.
func NewSystemNotice(text string) Envelope {
	return NewEnvelope(&Notice{Type: TypeSystem, Data: text})
}

// NewAdminBroadcast builds an admin broadcast authored by the system user.
func NewAdminBroadcast(text string) *Notice {
	return &Notice{Type: TypeBroadcast, Data: text, User: SystemUser}
}

// RoomIDs lists the four fixed room identifiers in order.
var RoomIDs = []string{"A", "B", "C", "D"}

// Join and leave notices use compact numeric event codes, two per room.
// The mapping is fixed and consumed by the clients: A -> {0, 1}, B -> {2, 3},
// C -> {4, 5}, D -> {6, 7} for join and leave respectively.
var (
	joinCodes  = map[string]int{"A": 0, "B": 2, "C": 4, "D": 6}
	leaveCodes = map[string]int{"A": 1, "B": 3, "C": 5, "D": 7}
)

// ValidRoom reports whether id names one of the four fixed rooms.
func ValidRoom(id string) bool {
	_, ok := joinCodes[id]
	return ok
}

// NewJoinNotice builds the numeric join event broadcast to a room when a
// member joins.
//
// Precondition: room must be a valid room identifier.
func NewJoinNotice(room, username string) *Notice {
	return &Notice{Type: joinCodes[room], Data: username}
}

// NewLeaveNotice builds the numeric leave event broadcast to a room when a
// member leaves.
//
// Precondition: room must be a valid room identifier.
func NewLeaveNotice(room, username string) *Notice {
	return &Notice{Type: leaveCodes[room], Data: username}
}

// Encode marshals a server frame to its wire bytes.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
