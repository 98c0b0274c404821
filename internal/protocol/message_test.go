package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinLeaveCodes(t *testing.T) {
	// Fixed mapping consumed by the clients.
	want := map[string][2]int{
		"A": {0, 1},
		"B": {2, 3},
		"C": {4, 5},
		"D": {6, 7},
	}
	for room, codes := range want {
		assert.Equal(t, codes[0], NewJoinNotice(room, "u").Type, "join code for %s", room)
		assert.Equal(t, codes[1], NewLeaveNotice(room, "u").Type, "leave code for %s", room)
	}
}

func TestValidRoom(t *testing.T) {
	for _, id := range RoomIDs {
		assert.True(t, ValidRoom(id))
	}
	assert.False(t, ValidRoom("E"))
	assert.False(t, ValidRoom("a"))
	assert.False(t, ValidRoom(""))
}

func TestNoticeWireShapeHasNoImage(t *testing.T) {
	raw, err := Encode(NewEnvelope(NewJoinNotice("A", "alice")))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "message", decoded["type"])

	msg := decoded["message"].(map[string]any)
	assert.Equal(t, float64(0), msg["type"])
	assert.Equal(t, "alice", msg["data"])
	assert.Equal(t, "", msg["user"])
	assert.NotContains(t, msg, "image")
}

func TestChatWireShapeKeepsImage(t *testing.T) {
	chat := &ChatMessage{Type: 1, Data: "hi", Image: "", User: nil}
	chat.SetUser("alice")
	raw, err := Encode(NewEnvelope(chat))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	msg := decoded["message"].(map[string]any)
	assert.Contains(t, msg, "image")
	assert.Equal(t, "alice", msg["user"])
}

func TestChatUserAbsentVersusEmpty(t *testing.T) {
	var withUser, withoutUser ChatMessage
	require.NoError(t, json.Unmarshal([]byte(`{"type":0,"data":"x","image":"","user":""}`), &withUser))
	require.NoError(t, json.Unmarshal([]byte(`{"type":0,"data":"x","image":""}`), &withoutUser))

	require.NotNil(t, withUser.User)
	assert.Equal(t, "", *withUser.User)
	assert.Nil(t, withoutUser.User)
}

func TestAdminBroadcastAuthor(t *testing.T) {
	n := NewAdminBroadcast("maintenance in 5")
	assert.Equal(t, TypeBroadcast, n.Type)
	assert.Equal(t, SystemUser, n.User)
}

func TestSystemNotice(t *testing.T) {
	env := NewSystemNotice("Authenticated")
	notice, ok := env.Message.(*Notice)
	require.True(t, ok)
	assert.Equal(t, TypeSystem, notice.Type)
	assert.Equal(t, "", notice.User)
}
