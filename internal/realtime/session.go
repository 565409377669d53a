// internal/realtime/session.go
// One websocket connection. Read and write pumps follow the standard
// gorilla pattern: the read pump owns inbound traffic and liveness, the
// write pump owns all writes including pings.

package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edustack/edustack-realtime/internal/realtime/event"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024
)

// Session is one authenticated websocket connection
type Session struct {
	hub  *Hub
	conn *websocket.Conn

	userID   int64
	username string

	send   chan []byte
	done   chan struct{}
	once   sync.Once
	normal atomic.Bool

	// Room subscriptions, guarded by the hub's lock
	rooms map[int64]struct{}
}

// NewSession wraps an upgraded connection for a user
func NewSession(hub *Hub, conn *websocket.Conn, userID int64, username string, queueSize int) *Session {
	return &Session{
		hub:      hub,
		conn:     conn,
		userID:   userID,
		username: username,
		send:     make(chan []byte, queueSize),
		done:     make(chan struct{}),
		rooms:    make(map[int64]struct{}),
	}
}

// readPump reads events off the wire and hands them to the router.
// Runs as a goroutine per session; exits on any read error.
func (s *Session) readPump(router *Router) {
	defer s.hub.RemoveSession(s)

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("realtime: read error for user %d: %v", s.userID, err)
			}
			return
		}

		var evt event.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			s.SendError("Malformed event", err.Error())
			continue
		}

		eventsTotal.WithLabelValues(string(evt.Type), "in").Inc()
		router.Handle(s, evt)
	}
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with pings. Runs as a goroutine per session.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			// The write pump owns the connection, so the close frame goes
			// out here rather than from whoever tore the session down
			code := websocket.CloseGoingAway
			reason := ""
			if s.normal.Load() {
				code = websocket.CloseNormalClosure
				reason = "server shutting down"
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
			return
		}
	}
}

// enqueue queues an event frame without blocking. A full queue means the
// consumer stopped draining; the session gets torn down rather than stall
// every broadcast behind it.
func (s *Session) enqueue(data []byte) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.send <- data:
	default:
		droppedSends.Inc()
		log.Printf("realtime: send queue full for user %d, dropping session", s.userID)
		go s.hub.RemoveSession(s)
	}
}

// Send serializes and queues an event for this session only
func (s *Session) Send(evt event.Event) {
	s.enqueue(event.MustMarshal(evt))
}

// SendError queues an error event
func (s *Session) SendError(message, details string) {
	s.Send(event.New(event.TypeError, event.ErrorPayload{
		Message: message,
		Details: details,
	}))
}

// close signals the pumps to wind the connection down. The write pump
// sends the close frame and closes the underlying connection.
func (s *Session) close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// closeNormal closes with a normal closure frame so well-behaved clients
// stop reconnecting. Used for server-initiated shutdowns.
func (s *Session) closeNormal() {
	s.normal.Store(true)
	s.close()
}
