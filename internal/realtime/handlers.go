// internal/realtime/handlers.go
// Websocket endpoint

package realtime

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/edustack/edustack-realtime/internal/common/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Auth happens on the socket itself; origin is not the gate
		return true
	},
}

// WSHandler upgrades connections and registers authenticated sessions
type WSHandler struct {
	hub       *Hub
	router    *Router
	secret    string
	queueSize int
}

// NewWSHandler creates the websocket endpoint handler
func NewWSHandler(hub *Hub, router *Router, secret string, queueSize int) *WSHandler {
	return &WSHandler{
		hub:       hub,
		router:    router,
		secret:    secret,
		queueSize: queueSize,
	}
}

// ServeWS handles GET /ws. The upgrade happens first so authentication
// failures can answer with a typed event instead of a bare HTTP status.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := ExtractToken(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: upgrade failed: %v", err)
		return
	}

	user, code, err := authenticate(r.Context(), token, h.secret, h.router.chat)
	if err != nil {
		log.Printf("realtime: handshake rejected (%s): %v", code, err)
		rejectConnection(conn, code, err.Error())
		return
	}

	s := NewSession(h.hub, conn, user.ID, user.Username, h.queueSize)

	// Attach room subscriptions before registering so the online
	// announcement reaches the right audience from the first event
	h.subscribeRooms(r.Context(), s)
	h.hub.AddSession(s)

	go s.writePump()
	go s.readPump(h.router)
}

// subscribeRooms re-attaches a fresh session to every room the user is a
// member of, plus the global room. A reconnect resumes room traffic without
// an explicit join round-trip.
func (h *WSHandler) subscribeRooms(ctx context.Context, s *Session) {
	rooms, err := h.router.chat.ListRooms(ctx, s.userID)
	if err != nil {
		log.Printf("realtime: room subscriptions failed for user %d: %v", s.userID, err)
	}
	for _, room := range rooms {
		h.hub.JoinRoom(s, room.ID)
	}

	global, err := h.router.chat.GlobalRoom(ctx)
	if err != nil {
		log.Printf("realtime: global room lookup failed: %v", err)
		return
	}
	h.hub.JoinRoom(s, global.ID)
}

// OnlineUsers handles GET /presence/online
func (h *WSHandler) OnlineUsers(w http.ResponseWriter, r *http.Request) {
	utils.SuccessResponse(w, map[string]interface{}{
		"online": h.hub.OnlineUsers(),
	}, http.StatusOK)
}
