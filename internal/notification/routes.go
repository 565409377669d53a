// internal/notification/routes.go
// Route registration for notification endpoints

package notification

import (
	"github.com/gorilla/mux"

	"github.com/edustack/edustack-realtime/internal/auth"
)

// RegisterRoutes sets up all notification routes under /notifications
func RegisterRoutes(router *mux.Router, handlers *Handlers, authMiddleware *auth.Middleware) {
	notifRouter := router.PathPrefix("/notifications").Subrouter()
	notifRouter.Use(authMiddleware.Authenticate)

	notifRouter.HandleFunc("", handlers.List).Methods("GET")
	notifRouter.HandleFunc("/unread", handlers.UnreadCount).Methods("GET")
	notifRouter.HandleFunc("/read-all", handlers.MarkAllRead).Methods("PUT")
	notifRouter.HandleFunc("/{notificationId:[0-9]+}/read", handlers.MarkRead).Methods("PUT")
}
