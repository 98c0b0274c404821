// Package relay implements the core of the drawing relay: the connection
// state hub, the moderation engine, and the per-connection dispatcher.
package relay

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/drawchat/relay/internal/frontend/ws"
	"github.com/drawchat/relay/internal/protocol"
)

// sendQueueSize bounds the per-client outbound queue. A peer that cannot keep
// up overflows its own queue and is disconnected without stalling delivery to
// other members of the room.
const sendQueueSize = 64

// Client is the server-side handle for one connected peer. It owns the
// outbound queue; the hub and dispatcher reference it but the dispatcher
// controls its lifetime.
type Client struct {
	// ID uniquely identifies the connection for logging.
	ID string

	conn *ws.Conn
	ip   string

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

// NewClient wraps an accepted websocket connection.
//
// Postcondition: Returns a Client whose write pump has not yet started.
func NewClient(conn *ws.Conn) *Client {
	return &Client{
		ID:     uuid.New().String(),
		conn:   conn,
		ip:     conn.RemoteIP(),
		send:   make(chan []byte, sendQueueSize),
		closed: make(chan struct{}),
	}
}

// IP returns the peer's remote IP address.
func (c *Client) IP() string { return c.ip }

// Send marshals a server frame and queues it for delivery. Delivery is
// best-effort: a full queue or a closed client drops the frame and reports
// false, never blocking the caller.
func (c *Client) Send(v any) bool {
	data, err := protocol.Encode(v)
	if err != nil {
		return false
	}
	return c.enqueue(data)
}

func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// WritePump drains the outbound queue onto the connection. It runs in its own
// goroutine and exits when the client is closed or a write fails.
//
// Postcondition: No further frames are written after return.
func (c *Client) WritePump() {
	for {
		select {
		case data := <-c.send:
			if err := c.conn.WriteMessage(data); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// Close shuts the connection down with the given close code and reason.
// Subsequent calls are no-ops, so forced aborts and the normal disconnect
// path may race safely.
func (c *Client) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.conn != nil {
			_ = c.conn.Close(code, reason)
		}
	})
}

// CloseNormal closes the connection with the default close code.
func (c *Client) CloseNormal() {
	c.Close(websocket.CloseNormalClosure, "")
}

// IsClosed reports whether Close has been called.
func (c *Client) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
