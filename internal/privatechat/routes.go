// internal/privatechat/routes.go
// Route registration for private chat endpoints

package privatechat

import (
	"github.com/gorilla/mux"

	"github.com/edustack/edustack-realtime/internal/auth"
)

// RegisterRoutes sets up all private chat routes under /private
func RegisterRoutes(router *mux.Router, handlers *Handlers, authMiddleware *auth.Middleware) {
	privateRouter := router.PathPrefix("/private").Subrouter()
	privateRouter.Use(authMiddleware.Authenticate)

	// Conversations
	privateRouter.HandleFunc("/conversations", handlers.ListConversations).Methods("GET")
	privateRouter.HandleFunc("/conversations", handlers.StartConversation).Methods("POST")
	privateRouter.HandleFunc("/conversations/{conversationId:[0-9]+}", handlers.GetConversation).Methods("GET")
	privateRouter.HandleFunc("/conversations/{conversationId:[0-9]+}/archive", handlers.SetArchived).Methods("PUT")

	// Messages
	privateRouter.HandleFunc("/conversations/{conversationId:[0-9]+}/messages", handlers.GetHistory).Methods("GET")
	privateRouter.HandleFunc("/conversations/{conversationId:[0-9]+}/messages", handlers.SendMessage).Methods("POST")
	privateRouter.HandleFunc("/conversations/{conversationId:[0-9]+}/read", handlers.MarkRead).Methods("POST")
	privateRouter.HandleFunc("/messages/{messageId:[0-9]+}", handlers.EditMessage).Methods("PUT")
	privateRouter.HandleFunc("/messages/{messageId:[0-9]+}", handlers.DeleteMessage).Methods("DELETE")

	// Unread counter
	privateRouter.HandleFunc("/unread", handlers.TotalUnread).Methods("GET")
}
