// internal/realtime/hub.go
// Session registry and fan-out. One hub per process; every websocket
// session registers here and every service publishes through it.

package realtime

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/edustack/edustack-realtime/internal/realtime/event"
)

// Hub tracks live sessions and routes events to them. A user may hold any
// number of concurrent sessions; presence is derived from the first and
// last of them.
type Hub struct {
	mu sync.RWMutex

	// sessionsByUser holds every open session, grouped by user
	sessionsByUser map[int64]map[*Session]struct{}

	// rooms maps room subscriptions to sessions. Private conversation
	// traffic routes per-user instead; it never needs a scope here.
	rooms map[int64]map[*Session]struct{}

	presence PresenceStore
	typing   *TypingCoordinator

	// onFirstSession runs outside the hub lock when a user comes online
	onFirstSession func(userID int64)

	closed bool
}

// NewHub creates a new hub
func NewHub(presence PresenceStore, typing *TypingCoordinator) *Hub {
	return &Hub{
		sessionsByUser: make(map[int64]map[*Session]struct{}),
		rooms:          make(map[int64]map[*Session]struct{}),
		presence:       presence,
		typing:         typing,
	}
}

// SetOnFirstSession registers a callback fired when a user's first session
// connects. Used to advance pending delivery receipts.
func (h *Hub) SetOnFirstSession(fn func(userID int64)) {
	h.onFirstSession = fn
}

// AddSession registers a session. The user's first session flips them
// online and announces it to members sharing a room with them. Room
// subscriptions attached before registration scope that announcement.
func (h *Hub) AddSession(s *Session) {
	h.mu.Lock()
	if h.closed {
		for roomID := range s.rooms {
			h.dropFromScope(h.rooms, roomID, s)
		}
		h.mu.Unlock()
		s.close()
		return
	}

	sessions, ok := h.sessionsByUser[s.userID]
	if !ok {
		sessions = make(map[*Session]struct{})
		h.sessionsByUser[s.userID] = sessions
	}
	sessions[s] = struct{}{}
	count := len(sessions)
	first := count == 1

	var watchers []*Session
	if first {
		watchers = h.roomMatesLocked(s)
	}

	activeConnections.Inc()
	if first {
		onlineUsers.Inc()
	}
	h.mu.Unlock()

	log.Printf("realtime: user %d connected (sessions=%d)", s.userID, count)

	if first {
		h.sendPresence(watchers, event.New(event.TypeUserOnline, event.PresencePayload{
			UserID:   s.userID,
			Username: s.username,
		}))
		if h.onFirstSession != nil {
			h.onFirstSession(s.userID)
		}
	}
}

// RemoveSession drops a session from every scope it joined. The user's last
// session flips them offline, stamps last-seen and ends any typing episodes.
func (h *Hub) RemoveSession(s *Session) {
	h.mu.Lock()
	sessions, ok := h.sessionsByUser[s.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := sessions[s]; !ok {
		h.mu.Unlock()
		return
	}

	delete(sessions, s)
	last := len(sessions) == 0
	if last {
		delete(h.sessionsByUser, s.userID)
	}

	// Collect the offline audience before the scopes are torn down
	var watchers []*Session
	if last {
		watchers = h.roomMatesLocked(s)
	}

	for roomID := range s.rooms {
		h.dropFromScope(h.rooms, roomID, s)
	}

	activeConnections.Dec()
	if last {
		onlineUsers.Dec()
	}
	h.mu.Unlock()

	s.close()

	log.Printf("realtime: user %d disconnected (last=%v)", s.userID, last)

	if last {
		if h.typing != nil {
			h.typing.StopAllForUser(s.userID)
		}
		if h.presence != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := h.presence.TouchLastSeen(ctx, s.userID); err != nil {
				log.Printf("realtime: last seen update failed for user %d: %v", s.userID, err)
			}
			cancel()
		}
		h.sendPresence(watchers, event.New(event.TypeUserOffline, event.PresencePayload{
			UserID:   s.userID,
			Username: s.username,
		}))
	}
}

// JoinRoom subscribes a session to a room's events
func (h *Hub) JoinRoom(s *Session, roomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Session]struct{})
	}
	h.rooms[roomID][s] = struct{}{}
	s.rooms[roomID] = struct{}{}
}

// SubscribeUserToRoom attaches every live session a user holds to a room's
// events. Used when a room is created around users who are already online;
// their sessions start receiving room traffic without a join round-trip.
func (h *Hub) SubscribeUserToRoom(userID, roomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions := h.sessionsByUser[userID]
	if len(sessions) == 0 {
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Session]struct{})
	}
	for s := range sessions {
		h.rooms[roomID][s] = struct{}{}
		s.rooms[roomID] = struct{}{}
	}
}

// LeaveRoom unsubscribes a session from a room's events
func (h *Hub) LeaveRoom(s *Session, roomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropFromScope(h.rooms, roomID, s)
	delete(s.rooms, roomID)
}

// InRoom reports whether a session is subscribed to a room
func (h *Hub) InRoom(s *Session, roomID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.rooms[roomID][s]
	return ok
}

// BroadcastToRoom sends an event to every session subscribed to a room
func (h *Hub) BroadcastToRoom(roomID int64, evt event.Event) {
	data := encode(evt)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.rooms[roomID] {
		s.enqueue(data)
	}
	eventsTotal.WithLabelValues(string(evt.Type), "out").Inc()
}

// BroadcastToRoomExcept sends an event to a room, skipping one user's
// sessions. Typing indicators never echo back to the typist.
func (h *Hub) BroadcastToRoomExcept(roomID, exceptUserID int64, evt event.Event) {
	data := encode(evt)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.rooms[roomID] {
		if s.userID == exceptUserID {
			continue
		}
		s.enqueue(data)
	}
	eventsTotal.WithLabelValues(string(evt.Type), "out").Inc()
}

// SendToUser sends an event to every session a user holds. Silently a no-op
// for offline users.
func (h *Hub) SendToUser(userID int64, evt event.Event) {
	data := encode(evt)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.sessionsByUser[userID] {
		s.enqueue(data)
	}
	eventsTotal.WithLabelValues(string(evt.Type), "out").Inc()
}

// roomMatesLocked collects every session sharing at least one room with s,
// excluding the user's own sessions. Presence transitions go to exactly this
// audience. Caller holds the lock.
func (h *Hub) roomMatesLocked(s *Session) []*Session {
	seen := make(map[*Session]struct{})
	for roomID := range s.rooms {
		for other := range h.rooms[roomID] {
			if other.userID == s.userID {
				continue
			}
			seen[other] = struct{}{}
		}
	}

	mates := make([]*Session, 0, len(seen))
	for other := range seen {
		mates = append(mates, other)
	}
	return mates
}

// sendPresence delivers a presence transition to a collected audience
func (h *Hub) sendPresence(watchers []*Session, evt event.Event) {
	if len(watchers) == 0 {
		return
	}

	data := encode(evt)
	for _, w := range watchers {
		w.enqueue(data)
	}
	eventsTotal.WithLabelValues(string(evt.Type), "out").Inc()
}

// IsUserOnline reports whether a user holds at least one open session
func (h *Hub) IsUserOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.sessionsByUser[userID]) > 0
}

// OnlineUsers lists every user with at least one open session
func (h *Hub) OnlineUsers() []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]int64, 0, len(h.sessionsByUser))
	for id := range h.sessionsByUser {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown closes every session with a normal closure so clients do not
// reconnect. The hub accepts no sessions afterwards.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	var all []*Session
	for _, sessions := range h.sessionsByUser {
		for s := range sessions {
			all = append(all, s)
		}
	}
	h.sessionsByUser = make(map[int64]map[*Session]struct{})
	h.rooms = make(map[int64]map[*Session]struct{})
	h.mu.Unlock()

	for _, s := range all {
		s.closeNormal()
	}

	log.Printf("realtime: hub shut down, closed %d sessions", len(all))
}

// dropFromScope removes a session from a scope map, pruning empty scopes.
// Caller holds the write lock.
func (h *Hub) dropFromScope(scopes map[int64]map[*Session]struct{}, id int64, s *Session) {
	if set, ok := scopes[id]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(scopes, id)
		}
	}
}

func encode(evt event.Event) []byte {
	return event.MustMarshal(evt)
}
