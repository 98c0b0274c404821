package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrViolation marks a hard protocol violation. The dispatcher responds to it
// by banning the remote IP and force-closing the connection, as opposed to
// negotiation failures which are reported back to the client.
var ErrViolation = errors.New("protocol violation")

// Preflight runs the structural validation stage on a raw inbound frame: the
// payload must be pure ASCII, decode as a JSON object, and carry an action
// field of at most MaxActionLen characters.
//
// Postcondition: Returns the decoded frame, or an error wrapping ErrViolation.
func Preflight(raw []byte) (*ClientFrame, error) {
	for _, b := range raw {
		if b > 127 {
			return nil, fmt.Errorf("non-ascii payload: %w", ErrViolation)
		}
	}

	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", ErrViolation)
	}

	if frame.Action == "" {
		return nil, fmt.Errorf("missing action: %w", ErrViolation)
	}
	if len(frame.Action) > MaxActionLen {
		return nil, fmt.Errorf("oversized action: %w", ErrViolation)
	}

	return &frame, nil
}

// CheckSchema runs the per-action schema stage for the action the frame
// actually requests. Schema failures carry the same consequence as structural
// ones.
//
// Precondition: frame must have passed Preflight.
// Postcondition: Returns nil, or an error wrapping ErrViolation.
func CheckSchema(frame *ClientFrame) error {
	switch frame.Action {
	case "status":
		return nil
	case "username":
		if len(frame.Username) > MaxUsernameLen {
			return fmt.Errorf("username too long: %w", ErrViolation)
		}
		return nil
	case "join", "leave":
		if len(frame.Room) != 1 {
			return fmt.Errorf("bad room identifier: %w", ErrViolation)
		}
		return nil
	case "message":
		return checkChat(frame)
	default:
		return fmt.Errorf("unknown action %q: %w", frame.Action, ErrViolation)
	}
}

func checkChat(frame *ClientFrame) error {
	if len(frame.Room) != 1 {
		return fmt.Errorf("bad room identifier: %w", ErrViolation)
	}
	msg := frame.Message
	if msg == nil {
		return fmt.Errorf("missing message body: %w", ErrViolation)
	}
	if len(msg.Data) > MaxChatLen {
		return fmt.Errorf("chat text too long: %w", ErrViolation)
	}
	if n := len(msg.Image); n != 0 && n != ImageLen {
		return fmt.Errorf("bad image size %d: %w", n, ErrViolation)
	}
	if msg.Type > MaxChatType {
		return fmt.Errorf("bad message type %d: %w", msg.Type, ErrViolation)
	}
	return nil
}
