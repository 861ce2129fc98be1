package main

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *testServer) wsURL(token string) string {
	url := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/api/ws"
	if token != "" {
		url += "?token=" + token
	}
	return url
}

func TestWSHandshake(t *testing.T) {
	s := setupServer(t)

	t.Run("rejects connections without a token", func(t *testing.T) {
		conn, resp, err := websocket.DefaultDialer.Dial(s.wsURL(""), nil)
		require.Error(t, err)
		if conn != nil {
			conn.Close()
		}
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects unverifiable tokens", func(t *testing.T) {
		conn, resp, err := websocket.DefaultDialer.Dial(s.wsURL("bogus"), nil)
		require.Error(t, err)
		if conn != nil {
			conn.Close()
		}
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("accepts a valid token", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(s.wsURL(s.tokenFor(t, "u1")), nil)
		require.NoError(t, err)
		conn.Close()
	})
}

func TestWSRoomEvents(t *testing.T) {
	s := setupServer(t)
	created := s.createRound(t, "owner")
	ctx := context.Background()

	dial := func(userID string) *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial(s.wsURL(s.tokenFor(t, userID)), nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}

	join := func(conn *websocket.Conn) {
		require.NoError(t, conn.WriteJSON(wsMessage{Type: "join_room", RoundID: created.ID}))
	}

	editor := dial("owner")
	observer := dial("u2")
	join(editor)
	join(observer)

	// join_room is processed asynchronously by the read pump.
	require.Eventually(t, func() bool {
		return s.hub.RoomSize(created.ID) == 2
	}, time.Second, 10*time.Millisecond)

	_, err := s.svc.ApplyStrokes(ctx, created.ID, 1, 2, 5, "owner")
	require.NoError(t, err)
	_, err = s.svc.ApplyStrokes(ctx, created.ID, 1, 3, 4, "owner")
	require.NoError(t, err)

	type scoreEvent struct {
		Type    string `json:"type"`
		Slot    int    `json:"slot"`
		Hole    int    `json:"hole"`
		Strokes int    `json:"strokes"`
	}

	// Both connections, the editor's included, receive the confirmed
	// values in publish order.
	for _, conn := range []*websocket.Conn{editor, observer} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))

		var first scoreEvent
		require.NoError(t, conn.ReadJSON(&first))
		assert.Equal(t, "score_updated", first.Type)
		assert.Equal(t, 1, first.Slot)
		assert.Equal(t, 2, first.Hole)
		assert.Equal(t, 5, first.Strokes)

		var second scoreEvent
		require.NoError(t, conn.ReadJSON(&second))
		assert.Equal(t, 3, second.Hole)
		assert.Equal(t, 4, second.Strokes)
	}

	t.Run("leaving the room stops delivery", func(t *testing.T) {
		require.NoError(t, observer.WriteJSON(wsMessage{Type: "leave_room", RoundID: created.ID}))

		require.Eventually(t, func() bool {
			return s.hub.RoomSize(created.ID) == 1
		}, time.Second, 10*time.Millisecond)

		_, err := s.svc.ApplyStrokes(ctx, created.ID, 1, 4, 6, "owner")
		require.NoError(t, err)

		require.NoError(t, observer.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
		var ev scoreEvent
		err = observer.ReadJSON(&ev)
		assert.Error(t, err, "no events after leave_room")

		require.NoError(t, editor.SetReadDeadline(time.Now().Add(time.Second)))
		require.NoError(t, editor.ReadJSON(&ev))
		assert.Equal(t, 4, ev.Hole)
	})
}
