package relay

import (
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"github.com/drawchat/relay/internal/audit"
	"github.com/drawchat/relay/internal/ban"
	"github.com/drawchat/relay/internal/protocol"
)

// adminPrefix marks a chat message as an admin command. Prefixed messages are
// intercepted before room broadcast and never delivered to the room.
const adminPrefix = "%admin"

// kickReason is the close reason for an admin kick.
const kickReason = "Kicked by an admin"

// violationReason is the close reason shared by protocol aborts and admin
// bans.
const violationReason = "Policy violation"

// Moderation parses admin commands embedded in chat messages, gated by TOTP
// one-time-code authentication per connection. Admin state lives in the hub
// alongside the rest of the connection state.
type Moderation struct {
	secret string
	hub    *Hub
	bans   *ban.Store
	audit  *audit.Logger
	logger *zap.Logger

	now func() time.Time
}

// NewModeration creates the moderation engine.
//
// Precondition: secret must be the process-wide TOTP seed; all other
// arguments must be non-nil.
func NewModeration(secret string, hub *Hub, bans *ban.Store, auditLog *audit.Logger, logger *zap.Logger) *Moderation {
	return &Moderation{
		secret: secret,
		hub:    hub,
		bans:   bans,
		audit:  auditLog,
		logger: logger,
		now:    time.Now,
	}
}

// Handle intercepts text starting with the admin prefix. It returns true when
// the message was consumed as an admin command; false means the message falls
// through to normal chat broadcast. An unrecognized subcommand from an
// authenticated connection deliberately falls through rather than erroring.
func (m *Moderation) Handle(c *Client, text string) bool {
	if !strings.HasPrefix(text, adminPrefix) {
		return false
	}

	parts := strings.Split(text, " ")
	if len(parts) < 2 {
		// Bare prefix: consumed, never broadcast.
		return true
	}
	command, args := parts[1], parts[2:]

	if !m.hub.IsAuthed(c) {
		if command == "auth" {
			m.authenticate(c, args)
			return true
		}
		return false
	}

	switch command {
	case "deauth":
		m.hub.SetAuthed(c, false)
		c.Send(protocol.NewSystemNotice("Deauthenticated"))
		return true
	case "bcast":
		m.hub.BroadcastAll(protocol.NewAdminBroadcast(strings.Join(args, " ")))
		return true
	case "kick":
		m.removeByName(c, args, false)
		return true
	case "ban":
		m.removeByName(c, args, true)
		return true
	default:
		return false
	}
}

// authenticate checks a one-time code against the process-wide TOTP secret at
// the current time window. Failure is silent: no state change, no reply.
func (m *Moderation) authenticate(c *Client, args []string) {
	if len(args) < 1 || !m.validCode(args[0]) {
		m.logger.Info("admin auth failed", zap.String("remote", c.IP()))
		return
	}
	m.hub.SetAuthed(c, true)
	c.Send(protocol.NewSystemNotice("Authenticated"))
	m.logger.Info("admin authenticated", zap.String("remote", c.IP()))
}

// validCode accepts a code only for the current 30-second window. Zero skew:
// a code whose window has already elapsed, or one minted for a future window,
// never authenticates.
func (m *Moderation) validCode(code string) bool {
	ok, err := totp.ValidateCustom(code, m.secret, m.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      0,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// removeByName kicks or bans the connection holding the given name. A missing
// name replies "User not found" to the issuer.
func (m *Moderation) removeByName(issuer *Client, args []string, withBan bool) {
	if len(args) < 1 {
		issuer.Send(protocol.NewSystemNotice("User not found"))
		return
	}

	target, ok := m.hub.FindByName(args[0])
	if !ok {
		issuer.Send(protocol.NewSystemNotice("User not found"))
		return
	}

	m.hub.Unregister(target)
	if withBan {
		if err := m.bans.Ban(target.IP()); err != nil {
			m.logger.Error("recording admin ban", zap.String("remote", target.IP()), zap.Error(err))
		}
		m.audit.Abort(target.IP(), websocket.ClosePolicyViolation, violationReason)
		target.Close(websocket.ClosePolicyViolation, violationReason)
	} else {
		m.audit.Abort(target.IP(), websocket.CloseNormalClosure, kickReason)
		target.Close(websocket.CloseNormalClosure, kickReason)
	}
	issuer.Send(protocol.NewSystemNotice("Success"))
}
