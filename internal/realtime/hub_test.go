// internal/realtime/hub_test.go

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edustack/edustack-realtime/internal/realtime/event"
)

type stubPresence struct {
	mu      sync.Mutex
	touched []int64
}

func (p *stubPresence) TouchLastSeen(_ context.Context, userID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touched = append(p.touched, userID)
	return nil
}

func (p *stubPresence) touchedUsers() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.touched...)
}

// hubFixture runs a hub behind a real websocket endpoint so tests exercise
// the same pumps production uses. Room subscriptions from the rooms query
// parameter attach before the session registers, like the real handshake.
type hubFixture struct {
	t        *testing.T
	hub      *Hub
	presence *stubPresence
	srv      *httptest.Server
	sessions chan *Session
}

func newHubFixture(t *testing.T) *hubFixture {
	f := &hubFixture{
		t:        t,
		presence: &stubPresence{},
		sessions: make(chan *Session, 16),
	}
	f.hub = NewHub(f.presence, NewTypingCoordinator(time.Hour))

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		userID, _ := strconv.ParseInt(r.URL.Query().Get("uid"), 10, 64)
		s := NewSession(f.hub, conn, userID, fmt.Sprintf("user%d", userID), 16)
		if rooms := r.URL.Query().Get("rooms"); rooms != "" {
			for _, raw := range strings.Split(rooms, ",") {
				if roomID, err := strconv.ParseInt(raw, 10, 64); err == nil {
					f.hub.JoinRoom(s, roomID)
				}
			}
		}
		f.hub.AddSession(s)
		go s.writePump()
		go s.readPump(nil)
		f.sessions <- s
	}))
	t.Cleanup(f.srv.Close)

	return f
}

// dial connects a client for a user, subscribed to the given rooms, and
// returns the client conn plus the server-side session
func (f *hubFixture) dial(userID int64, rooms ...int64) (*websocket.Conn, *Session) {
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "?uid=" + strconv.FormatInt(userID, 10)
	if len(rooms) > 0 {
		parts := make([]string, len(rooms))
		for i, roomID := range rooms {
			parts[i] = strconv.FormatInt(roomID, 10)
		}
		url += "&rooms=" + strings.Join(parts, ",")
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { conn.Close() })

	select {
	case s := <-f.sessions:
		return conn, s
	case <-time.After(time.Second):
		f.t.Fatal("session never registered")
		return nil, nil
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) event.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt event.Event
	require.NoError(t, json.Unmarshal(data, &evt))
	return evt
}

func readPresence(t *testing.T, conn *websocket.Conn) (event.Type, event.PresencePayload) {
	t.Helper()
	evt := readEvent(t, conn)
	var p event.PresencePayload
	require.NoError(t, json.Unmarshal(evt.Data, &p))
	return evt.Type, p
}

func assertNoEvent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "expected no event")
}

func TestOnlineAnnouncementReachesRoomMates(t *testing.T) {
	f := newHubFixture(t)

	c1, _ := f.dial(1, 5)

	c2, _ := f.dial(2, 5)
	typ, p := readPresence(t, c1)
	assert.Equal(t, event.TypeUserOnline, typ)
	assert.Equal(t, int64(2), p.UserID)
	assert.Equal(t, "user2", p.Username)

	// The transition never echoes back to the user it describes
	assertNoEvent(t, c2)
}

func TestPresenceSkipsUsersWithoutSharedRooms(t *testing.T) {
	f := newHubFixture(t)

	c1, _ := f.dial(1, 5)
	c2, _ := f.dial(2, 9)

	assertNoEvent(t, c1)

	c2.Close()
	assertNoEvent(t, c1)
}

func TestSecondSessionIsPresenceSilent(t *testing.T) {
	f := newHubFixture(t)

	c1, _ := f.dial(1, 5)

	f.dial(2, 5)
	typ, _ := readPresence(t, c1)
	assert.Equal(t, event.TypeUserOnline, typ)

	// Same user again: no presence transition
	f.dial(2, 5)
	assertNoEvent(t, c1)
	assert.True(t, f.hub.IsUserOnline(2))
}

func TestOfflineOnlyAfterLastSessionCloses(t *testing.T) {
	f := newHubFixture(t)

	c1, _ := f.dial(1, 5)

	c2a, _ := f.dial(2, 5)
	readEvent(t, c1) // user 2 online

	c2b, _ := f.dial(2, 5)

	c2a.Close()
	assertNoEvent(t, c1)
	assert.True(t, f.hub.IsUserOnline(2))

	c2b.Close()
	typ, p := readPresence(t, c1)
	assert.Equal(t, event.TypeUserOffline, typ)
	assert.Equal(t, int64(2), p.UserID)
	assert.False(t, f.hub.IsUserOnline(2))

	// Last close stamps last-seen exactly once
	assert.Eventually(t, func() bool {
		return len(f.presence.touchedUsers()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []int64{2}, f.presence.touchedUsers())
}

func TestBroadcastToRoomExceptSkipsTypist(t *testing.T) {
	f := newHubFixture(t)

	c1, s1 := f.dial(1, 5)
	c2, _ := f.dial(2, 5)
	readEvent(t, c1) // user 2 online
	assert.True(t, f.hub.InRoom(s1, 5))

	f.hub.BroadcastToRoomExcept(5, 1, event.New(event.TypeUserTyping, event.UserTypingPayload{
		UserID: 1, Username: "user1", RoomID: 5,
	}))

	evt := readEvent(t, c2)
	assert.Equal(t, event.TypeUserTyping, evt.Type)
	assertNoEvent(t, c1)
}

func TestSendToUserReachesEverySession(t *testing.T) {
	f := newHubFixture(t)

	ca, _ := f.dial(3)
	cb, _ := f.dial(3)

	f.hub.SendToUser(3, event.New(event.TypeNotification, map[string]string{"title": "hi"}))

	assert.Equal(t, event.TypeNotification, readEvent(t, ca).Type)
	assert.Equal(t, event.TypeNotification, readEvent(t, cb).Type)
}

func TestSendToOfflineUserIsNoOp(t *testing.T) {
	f := newHubFixture(t)

	c1, _ := f.dial(1)

	// Nothing to deliver to, nothing blows up
	f.hub.SendToUser(99, event.New(event.TypeNotification, nil))
	assertNoEvent(t, c1)
}

func TestSubscribeUserToRoomAttachesLiveSessions(t *testing.T) {
	f := newHubFixture(t)

	ca, _ := f.dial(7)
	cb, _ := f.dial(7)

	// Attaches every session the user holds, and shrugs at offline users
	f.hub.SubscribeUserToRoom(7, 77)
	f.hub.SubscribeUserToRoom(99, 77)

	f.hub.BroadcastToRoom(77, event.New(event.TypeNewMessage, map[string]string{"content": "a"}))
	assert.Equal(t, event.TypeNewMessage, readEvent(t, ca).Type)
	assert.Equal(t, event.TypeNewMessage, readEvent(t, cb).Type)
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	f := newHubFixture(t)

	c1, s1 := f.dial(1)

	f.hub.JoinRoom(s1, 8)
	f.hub.BroadcastToRoom(8, event.New(event.TypeNewMessage, map[string]string{"content": "a"}))
	assert.Equal(t, event.TypeNewMessage, readEvent(t, c1).Type)

	f.hub.LeaveRoom(s1, 8)
	f.hub.BroadcastToRoom(8, event.New(event.TypeNewMessage, map[string]string{"content": "b"}))
	assertNoEvent(t, c1)
}

func TestOnFirstSessionFiresOncePerTransition(t *testing.T) {
	f := newHubFixture(t)

	var mu sync.Mutex
	var fired []int64
	f.hub.SetOnFirstSession(func(userID int64) {
		mu.Lock()
		fired = append(fired, userID)
		mu.Unlock()
	})

	f.dial(1)
	f.dial(1)
	f.dial(2)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{1, 2}, fired)
}

func TestShutdownClosesSessionsNormally(t *testing.T) {
	f := newHubFixture(t)

	c1, _ := f.dial(1)

	f.hub.Shutdown()

	c1.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := c1.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure),
		"expected a normal closure, got %v", err)
}
