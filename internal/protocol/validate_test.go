package protocol

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPreflightRejectsNonASCII(t *testing.T) {
	_, err := Preflight([]byte(`{"action":"status","note":"héllo"}`))
	assert.ErrorIs(t, err, ErrViolation)
}

func TestPreflightRejectsMalformedJSON(t *testing.T) {
	_, err := Preflight([]byte(`{"action":`))
	assert.ErrorIs(t, err, ErrViolation)
}

func TestPreflightRejectsMissingAction(t *testing.T) {
	_, err := Preflight([]byte(`{"room":"A"}`))
	assert.ErrorIs(t, err, ErrViolation)
}

func TestPreflightRejectsOversizedAction(t *testing.T) {
	long := strings.Repeat("x", MaxActionLen+1)
	_, err := Preflight([]byte(fmt.Sprintf(`{"action":%q}`, long)))
	assert.ErrorIs(t, err, ErrViolation)
}

func TestPreflightAcceptsStatus(t *testing.T) {
	frame, err := Preflight([]byte(`{"action":"status"}`))
	require.NoError(t, err)
	assert.Equal(t, "status", frame.Action)
	assert.NoError(t, CheckSchema(frame))
}

func TestCheckSchemaUnknownAction(t *testing.T) {
	frame := &ClientFrame{Action: "teleport"}
	assert.ErrorIs(t, CheckSchema(frame), ErrViolation)
}

func TestCheckSchemaUsernameLength(t *testing.T) {
	frame := &ClientFrame{Action: "username", Username: strings.Repeat("a", MaxUsernameLen)}
	assert.NoError(t, CheckSchema(frame))

	frame.Username = strings.Repeat("a", MaxUsernameLen+1)
	assert.ErrorIs(t, CheckSchema(frame), ErrViolation)
}

func TestCheckSchemaRoomLength(t *testing.T) {
	for _, action := range []string{"join", "leave"} {
		assert.NoError(t, CheckSchema(&ClientFrame{Action: action, Room: "A"}))
		assert.ErrorIs(t, CheckSchema(&ClientFrame{Action: action, Room: ""}), ErrViolation)
		assert.ErrorIs(t, CheckSchema(&ClientFrame{Action: action, Room: "AB"}), ErrViolation)
	}
}

func validChat() *ClientFrame {
	return &ClientFrame{
		Action:  "message",
		Room:    "A",
		Message: &ChatMessage{Type: 0, Data: "hi", Image: ""},
	}
}

func TestCheckSchemaChatAccepted(t *testing.T) {
	assert.NoError(t, CheckSchema(validChat()))
}

func TestCheckSchemaChatMissingBody(t *testing.T) {
	frame := validChat()
	frame.Message = nil
	assert.ErrorIs(t, CheckSchema(frame), ErrViolation)
}

func TestCheckSchemaChatDataBoundary(t *testing.T) {
	frame := validChat()
	frame.Message.Data = strings.Repeat("x", MaxChatLen)
	assert.NoError(t, CheckSchema(frame))

	frame.Message.Data = strings.Repeat("x", MaxChatLen+1)
	assert.ErrorIs(t, CheckSchema(frame), ErrViolation)
}

func TestCheckSchemaChatImageExactSize(t *testing.T) {
	frame := validChat()
	frame.Message.Image = strings.Repeat("A", ImageLen)
	assert.NoError(t, CheckSchema(frame))

	frame.Message.Image = strings.Repeat("A", ImageLen-1)
	assert.ErrorIs(t, CheckSchema(frame), ErrViolation)

	frame.Message.Image = strings.Repeat("A", ImageLen+1)
	assert.ErrorIs(t, CheckSchema(frame), ErrViolation)
}

func TestCheckSchemaChatTypeBoundary(t *testing.T) {
	frame := validChat()
	frame.Message.Type = MaxChatType
	assert.NoError(t, CheckSchema(frame))

	frame.Message.Type = MaxChatType + 1
	assert.ErrorIs(t, CheckSchema(frame), ErrViolation)
}

func TestChatSizesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		frame := validChat()
		frame.Message.Data = strings.Repeat("x", rapid.IntRange(0, MaxChatLen).Draw(t, "data_len"))
		frame.Message.Type = rapid.IntRange(0, MaxChatType).Draw(t, "type")
		if rapid.Bool().Draw(t, "with_image") {
			frame.Message.Image = strings.Repeat("A", ImageLen)
		}
		assert.NoError(t, CheckSchema(frame))
	})
}

func TestChatBadImageSizeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, ImageLen*2).Filter(func(n int) bool {
			return n != ImageLen
		}).Draw(t, "image_len")
		frame := validChat()
		frame.Message.Image = strings.Repeat("A", n)
		assert.ErrorIs(t, CheckSchema(frame), ErrViolation)
	})
}
