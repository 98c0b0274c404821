package relay

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/drawchat/relay/internal/audit"
	"github.com/drawchat/relay/internal/ban"
	"github.com/drawchat/relay/internal/frontend/ws"
	"github.com/drawchat/relay/internal/protocol"
)

// bannedReason is the close reason for a connection rejected at accept time,
// distinct from the post-registration violation path.
const bannedReason = "Banned for 1 day"

// Dispatcher runs the control loop for each connection: ban gate, register,
// validate-and-route, unregister. It implements ws.SessionHandler.
type Dispatcher struct {
	hub    *Hub
	bans   *ban.Store
	audit  *audit.Logger
	mod    *Moderation
	logger *zap.Logger
}

// NewDispatcher creates the per-connection dispatcher.
//
// Precondition: all arguments must be non-nil.
func NewDispatcher(hub *Hub, bans *ban.Store, auditLog *audit.Logger, mod *Moderation, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		hub:    hub,
		bans:   bans,
		audit:  auditLog,
		mod:    mod,
		logger: logger,
	}
}

// HandleSession owns a connection for its lifetime: admission, registration,
// the receive loop, and teardown. Unregistration runs exactly once per
// connection regardless of which path ends the session.
//
// Postcondition: The connection is closed and fully unregistered on return.
func (d *Dispatcher) HandleSession(ctx context.Context, conn *ws.Conn) error {
	ip := conn.RemoteIP()

	banned, err := d.bans.IsBanned(ip)
	if err != nil {
		return fmt.Errorf("checking ban for %s: %w", ip, err)
	}
	if banned {
		d.audit.Abort(ip, websocket.ClosePolicyViolation, bannedReason)
		_ = conn.Close(websocket.ClosePolicyViolation, bannedReason)
		return nil
	}

	client := NewClient(conn)
	d.audit.Event("connect", ip)
	d.hub.Register(client)
	defer d.hub.Unregister(client)

	go client.WritePump()

	// Unblock the read loop when the acceptor shuts down.
	go func() {
		select {
		case <-ctx.Done():
			client.CloseNormal()
		case <-client.closed:
		}
	}()

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			if !client.IsClosed() {
				d.audit.Event("disconnect", ip)
				client.CloseNormal()
			}
			return nil
		}

		frame, err := protocol.Preflight(raw)
		if err != nil {
			return d.terminate(client, err)
		}

		d.audit.Frame(raw, ip)

		if err := protocol.CheckSchema(frame); err != nil {
			return d.terminate(client, err)
		}

		switch frame.Action {
		case "status":
			counts := d.hub.Status()
			client.Send(protocol.StatusReply{
				Type:  "status",
				RoomA: counts["A"],
				RoomB: counts["B"],
				RoomC: counts["C"],
				RoomD: counts["D"],
			})
		case "username":
			valid := d.hub.AssignUsername(client, frame.Username)
			client.Send(protocol.UsernameReply{Type: "username", Valid: valid})
		case "join":
			success := d.hub.Join(client, frame.Room)
			client.Send(protocol.JoinReply{Type: "join", Success: success})
		case "leave":
			d.hub.Leave(client, frame.Room)
		case "message":
			if d.mod.Handle(client, frame.Message.Data) {
				continue
			}
			if !d.hub.Broadcast(frame.Room, frame.Message, client) {
				return d.terminate(client, fmt.Errorf("unroutable room %q: %w", frame.Room, protocol.ErrViolation))
			}
		}
	}
}

// terminate applies the hard-violation consequence: unregister, 24-hour IP
// ban, force close.
func (d *Dispatcher) terminate(client *Client, cause error) error {
	ip := client.IP()
	d.logger.Warn("protocol violation",
		zap.String("remote", ip),
		zap.Error(cause),
	)

	d.hub.Unregister(client)
	if err := d.bans.Ban(ip); err != nil {
		d.logger.Error("recording ban", zap.String("remote", ip), zap.Error(err))
	}
	d.audit.Abort(ip, websocket.ClosePolicyViolation, violationReason)
	client.Close(websocket.ClosePolicyViolation, violationReason)
	return cause
}
