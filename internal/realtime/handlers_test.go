// internal/realtime/handlers_test.go

package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edustack/edustack-realtime/internal/chat"
	"github.com/edustack/edustack-realtime/internal/common/utils"
	"github.com/edustack/edustack-realtime/internal/realtime/event"
)

// stubDirectory backs the handshake and the membership lookups the
// websocket endpoint performs on connect
type stubDirectory struct {
	chat.Service
	rooms  []*chat.Room
	global *chat.Room
}

func (s *stubDirectory) GetUserInfo(_ context.Context, userID int64) (*chat.UserInfo, error) {
	return &chat.UserInfo{ID: userID, Username: "alice", IsActive: true}, nil
}

func (s *stubDirectory) ListRooms(_ context.Context, _ int64) ([]*chat.Room, error) {
	return s.rooms, nil
}

func (s *stubDirectory) GlobalRoom(_ context.Context) (*chat.Room, error) {
	if s.global == nil {
		return nil, chat.ErrRoomNotFound
	}
	return s.global, nil
}

func newWSFixture(t *testing.T, dir *stubDirectory) (*Hub, *httptest.Server) {
	typing := NewTypingCoordinator(time.Hour)
	hub := NewHub(&stubPresence{}, typing)
	router := NewRouter(hub, dir, &stubPrivateService{}, typing)
	handler := NewWSHandler(hub, router, testSecret, 16)

	srv := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestConnectResumesRoomSubscriptions(t *testing.T) {
	dir := &stubDirectory{
		rooms:  []*chat.Room{{ID: 42, Type: chat.RoomTypeGroup}},
		global: &chat.Room{ID: 1, Type: chat.RoomTypeGlobal},
	}
	hub, srv := newWSFixture(t, dir)

	token, err := utils.GenerateJWT(1, "alice", testSecret, time.Hour)
	require.NoError(t, err)
	conn := dialWS(t, srv, token)

	require.Eventually(t, func() bool {
		return hub.IsUserOnline(1)
	}, time.Second, 10*time.Millisecond)

	// A member room and the global room both deliver without a join
	// round-trip after reconnect
	hub.BroadcastToRoom(42, event.New(event.TypeNewMessage, map[string]string{"content": "hi"}))
	assert.Equal(t, event.TypeNewMessage, readEvent(t, conn).Type)

	hub.BroadcastToRoom(1, event.New(event.TypeNewMessage, map[string]string{"content": "all"}))
	assert.Equal(t, event.TypeNewMessage, readEvent(t, conn).Type)
}

func TestConnectWithoutMembershipsStillGetsGlobalRoom(t *testing.T) {
	dir := &stubDirectory{global: &chat.Room{ID: 1, Type: chat.RoomTypeGlobal}}
	hub, srv := newWSFixture(t, dir)

	token, err := utils.GenerateJWT(2, "bob", testSecret, time.Hour)
	require.NoError(t, err)
	conn := dialWS(t, srv, token)

	require.Eventually(t, func() bool {
		return hub.IsUserOnline(2)
	}, time.Second, 10*time.Millisecond)

	hub.BroadcastToRoom(1, event.New(event.TypeNewMessage, map[string]string{"content": "all"}))
	assert.Equal(t, event.TypeNewMessage, readEvent(t, conn).Type)

	hub.BroadcastToRoom(42, event.New(event.TypeNewMessage, map[string]string{"content": "hi"}))
	assertNoEvent(t, conn)
}

func TestHandshakeRejectsBadToken(t *testing.T) {
	hub, srv := newWSFixture(t, &stubDirectory{})

	conn := dialWS(t, srv, "not-a-jwt")

	evt := readEvent(t, conn)
	require.Equal(t, event.TypeAuthError, evt.Type)
	var p event.AuthErrorPayload
	require.NoError(t, json.Unmarshal(evt.Data, &p))
	assert.Equal(t, event.AuthErrMalformedToken, p.Type)
	assert.Empty(t, hub.OnlineUsers())
}
