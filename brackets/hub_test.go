package brackets

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func waitSpectators(t *testing.T, hub *Hub, roomID, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Spectators(roomID) == want }, time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastIsScopedToRoom(t *testing.T) {
	hub := newTestHub(t)
	watcher := NewClient(hub, nil, 1)
	other := NewClient(hub, nil, 2)
	hub.Register <- watcher
	hub.Register <- other
	waitSpectators(t, hub, 1, 1)
	waitSpectators(t, hub, 2, 1)

	hub.BroadcastToRoom(1, MessageMatchLive, map[string]int{"match_id": 7})

	select {
	case raw := <-watcher.Send:
		var msg struct {
			Type    string         `json:"type"`
			RoomID  int            `json:"room_id"`
			Payload map[string]int `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, MessageMatchLive, msg.Type)
		assert.Equal(t, 1, msg.RoomID)
		assert.Equal(t, 7, msg.Payload["match_id"])
	case <-time.After(time.Second):
		t.Fatal("watcher got no message")
	}
	assert.Empty(t, other.Send)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := newTestHub(t)
	c := NewClient(hub, nil, 3)
	hub.Register <- c
	waitSpectators(t, hub, 3, 1)

	hub.Unregister <- c
	waitSpectators(t, hub, 3, 0)

	_, ok := <-c.Send
	assert.False(t, ok)
	assert.False(t, c.trySend([]byte("late")))
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := newTestHub(t)
	c := NewClient(hub, nil, 4)
	hub.Register <- c
	waitSpectators(t, hub, 4, 1)

	for i := 0; i < sendBuffer+5; i++ {
		hub.BroadcastToRoom(4, MessageRoomUpdated, i)
	}

	assert.Len(t, c.Send, sendBuffer)
}
