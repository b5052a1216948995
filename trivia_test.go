/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Seednode/triviaduel/games/trivia"
)

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + e.cfg.prefix + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// readUntil discards messages until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()

	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %q", typ)

		if msg["type"] == typ {
			return msg
		}
	}
}

func join(t *testing.T, conn *websocket.Conn, name, room string) {
	t.Helper()
	sendJSON(t, conn, map[string]any{"type": "join-room", "displayName": name, "roomToken": room})
}

func TestWebsocket_FullGame(t *testing.T) {
	env := newTestEnv(t, "", testPool(t, 5), trivia.WithQuestionCount(2))

	alice := env.dial(t)
	bob := env.dial(t)

	join(t, alice, "Alice", "1")
	join(t, bob, "Bob", "1")

	readUntil(t, alice, trivia.TypeGameStarted)
	readUntil(t, bob, trivia.TypeGameStarted)

	q := readUntil(t, alice, trivia.TypeQuestion)
	assert.Equal(t, float64(0), q["index"])
	assert.Equal(t, float64(2), q["total"])
	assert.NotContains(t, q, "correctAnswer")
	readUntil(t, bob, trivia.TypeQuestion)

	sendJSON(t, alice, map[string]any{"type": "submit-answer", "answer": "right", "questionIndex": 0})

	scores := readUntil(t, bob, trivia.TypeUpdateScores)
	assert.Len(t, scores["scores"], 2)

	q = readUntil(t, bob, trivia.TypeQuestion)
	assert.Equal(t, float64(1), q["index"])

	sendJSON(t, bob, map[string]any{"type": "submit-answer", "answer": "wrong", "questionIndex": 1})

	ended := readUntil(t, alice, trivia.TypeGameEnded)
	assert.Equal(t, "1", ended["roomToken"])
	assert.Len(t, ended["players"], 2)

	result := readUntil(t, alice, trivia.TypeGameResult)
	assert.Equal(t, trivia.OutcomeWon, result["outcome"])

	result = readUntil(t, bob, trivia.TypeGameResult)
	assert.Equal(t, trivia.OutcomeLost, result["outcome"])

	assert.Eventually(t, func() bool { return env.game.RoomCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocket_StaleAnswerRejected(t *testing.T) {
	env := newTestEnv(t, "", testPool(t, 5))

	alice := env.dial(t)
	bob := env.dial(t)

	join(t, alice, "Alice", "7")
	join(t, bob, "Bob", "7")
	readUntil(t, alice, trivia.TypeQuestion)

	sendJSON(t, alice, map[string]any{"type": "submit-answer", "answer": "right", "questionIndex": 3})

	msg := readUntil(t, alice, trivia.TypeError)
	assert.Equal(t, "stale-answer", msg["code"])
}

func TestWebsocket_RepeatedAnswerIsSilent(t *testing.T) {
	env := newTestEnv(t, "", testPool(t, 5))

	alice := env.dial(t)
	bob := env.dial(t)

	join(t, alice, "Alice", "7")
	join(t, bob, "Bob", "7")
	readUntil(t, alice, trivia.TypeQuestion)

	answer := map[string]any{"type": "submit-answer", "answer": "right", "questionIndex": 0}
	sendJSON(t, alice, answer)

	q := readUntil(t, alice, trivia.TypeQuestion)
	require.Equal(t, float64(1), q["index"])

	sendJSON(t, alice, answer)
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("{")))

	// frames are handled in order, so the first error answers the bad frame
	msg := readUntil(t, alice, trivia.TypeError)
	assert.Equal(t, "invalid-message", msg["code"])

	view, ok := env.game.Room("7")
	require.True(t, ok)
	assert.Equal(t, 1, view.Index)
}

func TestWebsocket_RevealAnswers(t *testing.T) {
	env := newTestEnv(t, "", testPool(t, 5), trivia.WithRevealAnswers(true))

	alice := env.dial(t)
	bob := env.dial(t)

	join(t, alice, "Alice", "1")
	join(t, bob, "Bob", "1")

	q := readUntil(t, alice, trivia.TypeQuestion)
	assert.Equal(t, "right", q["correctAnswer"])
}

func TestWebsocket_DisconnectEndsGame(t *testing.T) {
	env := newTestEnv(t, "", testPool(t, 5))

	alice := env.dial(t)
	bob := env.dial(t)

	join(t, alice, "Alice", "1")
	join(t, bob, "Bob", "1")
	readUntil(t, alice, trivia.TypeQuestion)

	require.NoError(t, bob.Close())

	ended := readUntil(t, alice, trivia.TypeGameEnded)
	assert.Len(t, ended["players"], 1)

	assert.Eventually(t, func() bool {
		return env.game.RoomCount() == 0 && env.hub.count() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocket_RoomFull(t *testing.T) {
	env := newTestEnv(t, "", testPool(t, 5))

	alice := env.dial(t)
	bob := env.dial(t)
	carol := env.dial(t)

	join(t, alice, "Alice", "1")
	join(t, bob, "Bob", "1")
	readUntil(t, alice, trivia.TypeGameStarted)

	join(t, carol, "Carol", "1")

	msg := readUntil(t, carol, trivia.TypeError)
	assert.Equal(t, "room-full", msg["code"])
}

func TestWebsocket_Rejections(t *testing.T) {
	env := newTestEnv(t, "", testPool(t, 5))
	conn := env.dial(t)

	join(t, conn, "   ", "1")
	msg := readUntil(t, conn, trivia.TypeError)
	assert.Equal(t, "invalid-join", msg["code"])

	sendJSON(t, conn, map[string]any{"type": "submit-answer", "answer": "right"})
	msg = readUntil(t, conn, trivia.TypeError)
	assert.Equal(t, "unknown-player", msg["code"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	msg = readUntil(t, conn, trivia.TypeError)
	assert.Equal(t, "invalid-message", msg["code"])

	// unknown types are ignored and the connection stays usable
	sendJSON(t, conn, map[string]any{"type": "dance"})
	sendJSON(t, conn, map[string]any{"type": "restart-game"})
	msg = readUntil(t, conn, trivia.TypeError)
	assert.Equal(t, "unknown-player", msg["code"])
}

func TestWebsocket_PoolNotReady(t *testing.T) {
	env := newTestEnv(t, "", nil)
	conn := env.dial(t)

	join(t, conn, "Alice", "1")

	msg := readUntil(t, conn, trivia.TypeError)
	assert.Equal(t, "pool-not-ready", msg["code"])
}

func TestWebsocket_Prefix(t *testing.T) {
	env := newTestEnv(t, "/trivia", testPool(t, 5))

	alice := env.dial(t)
	bob := env.dial(t)

	join(t, alice, "Alice", "1")
	join(t, bob, "Bob", "1")

	readUntil(t, alice, trivia.TypeGameStarted)
}

func TestAnswerString(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{``, ""},
		{`"Paris"`, "Paris"},
		{`4`, "4"},
		{` 4 `, "4"},
		{`true`, "true"},
		{`null`, ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, answerString(json.RawMessage(tc.raw)), "raw %q", tc.raw)
	}
}

func TestClientPush(t *testing.T) {
	c := newClient("c1", nil)

	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, c.push(i))
	}
	assert.ErrorIs(t, c.push("overflow"), errSendBufferFull)

	c.close()
	c.close()
	assert.ErrorIs(t, c.push("late"), errClientClosed)
}

func TestHub_SendToUnknownConnection(t *testing.T) {
	hub := newHub(zap.NewNop())

	assert.NotPanics(t, func() {
		hub.Send("nobody", trivia.RoomMessage{Type: trivia.TypeGameStarted})
	})
}

func TestHub_SendDeliversToRegisteredClient(t *testing.T) {
	hub := newHub(zap.NewNop())
	c := newClient("c1", nil)
	hub.register(c)

	hub.Send("c1", trivia.RoomMessage{Type: trivia.TypeGameStarted, RoomToken: "1"})

	select {
	case msg := <-c.send:
		assert.Equal(t, trivia.RoomMessage{Type: trivia.TypeGameStarted, RoomToken: "1"}, msg)
	default:
		t.Fatal("message was not queued")
	}

	hub.unregister(c)
	assert.Equal(t, 0, hub.count())

	hub.Send("c1", trivia.RoomMessage{Type: trivia.TypeGameStarted})
	_, open := <-c.send
	assert.False(t, open)
}

func TestHub_CloseAll(t *testing.T) {
	hub := newHub(zap.NewNop())
	a := newClient("a", nil)
	b := newClient("b", nil)
	hub.register(a)
	hub.register(b)

	hub.closeAll()

	assert.Equal(t, 0, hub.count())
	assert.ErrorIs(t, a.push(1), errClientClosed)
	assert.ErrorIs(t, b.push(1), errClientClosed)
}
