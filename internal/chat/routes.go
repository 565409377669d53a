// internal/chat/routes.go
// Route registration for group chat endpoints

package chat

import (
	"github.com/gorilla/mux"

	"github.com/edustack/edustack-realtime/internal/auth"
)

// RegisterRoutes sets up all chat routes under /chat
func RegisterRoutes(router *mux.Router, handlers *Handlers, authMiddleware *auth.Middleware) {
	chatRouter := router.PathPrefix("/chat").Subrouter()
	chatRouter.Use(authMiddleware.Authenticate)

	// Rooms
	chatRouter.HandleFunc("/rooms", handlers.ListRooms).Methods("GET")
	chatRouter.HandleFunc("/rooms", handlers.CreateRoom).Methods("POST")
	chatRouter.HandleFunc("/rooms/public", handlers.ListPublicRooms).Methods("GET")
	chatRouter.HandleFunc("/rooms/{roomId:[0-9]+}", handlers.GetRoom).Methods("GET")
	chatRouter.HandleFunc("/rooms/{roomId:[0-9]+}/join", handlers.JoinRoom).Methods("POST")
	chatRouter.HandleFunc("/rooms/{roomId:[0-9]+}/leave", handlers.LeaveRoom).Methods("POST")
	chatRouter.HandleFunc("/rooms/{roomId:[0-9]+}/members", handlers.ListMembers).Methods("GET")

	// Messages
	chatRouter.HandleFunc("/rooms/{roomId:[0-9]+}/messages", handlers.GetHistory).Methods("GET")
	chatRouter.HandleFunc("/rooms/{roomId:[0-9]+}/messages", handlers.SendMessage).Methods("POST")
	chatRouter.HandleFunc("/messages/{messageId:[0-9]+}", handlers.EditMessage).Methods("PUT")
	chatRouter.HandleFunc("/messages/{messageId:[0-9]+}", handlers.DeleteMessage).Methods("DELETE")
	chatRouter.HandleFunc("/messages/{messageId:[0-9]+}/reactions", handlers.ToggleReaction).Methods("POST")
	chatRouter.HandleFunc("/messages/{messageId:[0-9]+}/reactions", handlers.ListReactions).Methods("GET")

	// Attachments
	chatRouter.HandleFunc("/upload", handlers.UploadAttachment).Methods("POST")
}
