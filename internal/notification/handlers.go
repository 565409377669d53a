// internal/notification/handlers.go
// HTTP handlers for the notification inbox

package notification

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/edustack/edustack-realtime/internal/auth"
	"github.com/edustack/edustack-realtime/internal/common/utils"
)

// Handlers holds HTTP handlers for notification operations
type Handlers struct {
	service Service
}

// NewHandlers creates new notification handlers
func NewHandlers(service Service) *Handlers {
	return &Handlers{service: service}
}

// List handles GET /notifications?limit=&offset=&unread=
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	q := ListQuery{UnreadOnly: r.URL.Query().Get("unread") == "true"}
	q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	q.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	notifications, err := h.service.List(r.Context(), userID, q)
	if err != nil {
		log.Printf("notification: list failed: %v", err)
		utils.ErrorResponse(w, "Failed to list notifications", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, notifications, http.StatusOK)
}

// MarkRead handles PUT /notifications/{notificationId}/read
func (h *Handlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	notificationID, err := strconv.ParseInt(mux.Vars(r)["notificationId"], 10, 64)
	if err != nil || notificationID <= 0 {
		utils.ErrorResponse(w, "Invalid notification ID", http.StatusBadRequest)
		return
	}

	if err := h.service.MarkRead(r.Context(), notificationID, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			utils.ErrorResponse(w, "Notification not found", http.StatusNotFound)
			return
		}
		log.Printf("notification: mark read failed: %v", err)
		utils.ErrorResponse(w, "Failed to update notification", http.StatusInternalServerError)
		return
	}

	utils.MessageResponse(w, "Notification marked read", http.StatusOK)
}

// MarkAllRead handles PUT /notifications/read-all
func (h *Handlers) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	marked, err := h.service.MarkAllRead(r.Context(), userID)
	if err != nil {
		log.Printf("notification: mark all read failed: %v", err)
		utils.ErrorResponse(w, "Failed to update notifications", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, map[string]interface{}{"marked": marked}, http.StatusOK)
}

// UnreadCount handles GET /notifications/unread
func (h *Handlers) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	count, err := h.service.UnreadCount(r.Context(), userID)
	if err != nil {
		log.Printf("notification: unread count failed: %v", err)
		utils.ErrorResponse(w, "Failed to count notifications", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, map[string]interface{}{"unread": count}, http.StatusOK)
}
