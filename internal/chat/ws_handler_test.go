package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/baatcheet/backend/internal/auth"
	"github.com/baatcheet/backend/internal/identity"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const wsTestSecret = "ws-test-secret"

func newWSServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	hub, db := newTestHub(t)
	go hub.Run()

	seedUser(t, db, 1, "alice")
	seedUser(t, db, 2, "bob")

	gin.SetMode(gin.TestMode)
	r := gin.New()
	verifier := &identity.Verifier{Users: hub.Users, Secret: wsTestSecret}
	RegisterWS(r.Group("/api"), hub, verifier)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, hub
}

func dialWS(t *testing.T, srv *httptest.Server, userID int64) *websocket.Conn {
	t.Helper()
	tok, err := auth.NewToken(wsTestSecret, userID, 60)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWire(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	return ev
}

func writeWire(t *testing.T, conn *websocket.Conn, ev Event) {
	t.Helper()
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func TestHandshakeRejection(t *testing.T) {
	srv, _ := newWSServer(t)
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"

	for _, tc := range []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"invalid token", "garbage"},
	} {
		url := base
		if tc.token != "" {
			url += "?token=" + tc.token
		}
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.Error(t, err, tc.name)
		require.NotNil(t, resp, tc.name)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, tc.name)
	}
}

func TestHandshakeUnknownUser(t *testing.T) {
	srv, hub := newWSServer(t)
	tok, err := auth.NewToken(wsTestSecret, 42, 60)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + tok
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.False(t, hub.Registry.IsOnline(42), "rejected handshake must not be admitted")
}

func TestLiveMessagingEndToEnd(t *testing.T) {
	srv, _ := newWSServer(t)

	bobConn := dialWS(t, srv, 2)
	ev := readWire(t, bobConn)
	require.Equal(t, EventOnlineUsers, ev.Type)

	aliceConn := dialWS(t, srv, 1)
	ev = readWire(t, aliceConn)
	require.Equal(t, EventOnlineUsers, ev.Type)
	require.Len(t, ev.Users, 2)

	ev = readWire(t, bobConn)
	require.Equal(t, EventUserOnline, ev.Type)
	require.Equal(t, int64(1), ev.UserID)

	// alice -> bob, live delivery already read.
	writeWire(t, aliceConn, Event{Type: EventSendMessage, ReceiverID: 2, Content: "hello"})

	recv := readWire(t, bobConn)
	require.Equal(t, EventReceiveMessage, recv.Type)
	require.Equal(t, "hello", recv.Message.Content)
	require.True(t, recv.Message.IsRead)

	ack := readWire(t, aliceConn)
	require.Equal(t, EventMessageSent, ack.Type)
	require.Equal(t, recv.Message.ID, ack.Message.ID)

	// Typing relay, no persistence involved.
	writeWire(t, aliceConn, Event{Type: EventTyping, ReceiverID: 2, IsTyping: true})
	typing := readWire(t, bobConn)
	require.Equal(t, EventUserTyping, typing.Type)
	require.True(t, typing.IsTyping)
	require.Equal(t, "alice", typing.Username)

	// Validation failure comes back to the originator only.
	writeWire(t, aliceConn, Event{Type: EventSendMessage, ReceiverID: 2, Content: "   "})
	errEv := readWire(t, aliceConn)
	require.Equal(t, EventError, errEv.Type)
	require.NotEmpty(t, errEv.Error)

	// Disconnect broadcasts offline to the peer.
	require.NoError(t, aliceConn.Close())
	ev = readWire(t, bobConn)
	require.Equal(t, EventUserOffline, ev.Type)
	require.Equal(t, int64(1), ev.UserID)
}
