package ws

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps a websocket connection with write serialization and close
// handling. Reads must come from a single goroutine; writes may come from the
// write pump and from close paths concurrently.
type Conn struct {
	raw          *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
}

// NewConn wraps an upgraded websocket connection.
//
// Precondition: raw must be a valid, open websocket connection.
func NewConn(raw *websocket.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{raw: raw, writeTimeout: writeTimeout}
}

// ReadMessage blocks until the next text frame arrives.
//
// Postcondition: Returns the frame payload, or an error once the peer or a
// close path has closed the connection.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.raw.ReadMessage()
	return data, err
}

// WriteMessage writes one text frame with the configured write deadline.
func (c *Conn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.raw.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame with the given code and reason, then tears down
// the underlying connection.
//
// Postcondition: The connection is closed; subsequent reads fail.
func (c *Conn) Close(code int, reason string) error {
	c.writeMu.Lock()
	deadline := time.Now().Add(time.Second)
	_ = c.raw.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	c.writeMu.Unlock()
	return c.raw.Close()
}

// RemoteIP returns the peer's IP address without the port.
func (c *Conn) RemoteIP() string {
	addr := c.raw.RemoteAddr().String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// RemoteAddr returns the peer's full address for logging.
func (c *Conn) RemoteAddr() string {
	return c.raw.RemoteAddr().String()
}
