// internal/privatechat/handlers.go
// HTTP handlers for private conversations

package privatechat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/edustack/edustack-realtime/internal/auth"
	"github.com/edustack/edustack-realtime/internal/common/utils"
)

// Handlers holds HTTP handlers for private chat operations
type Handlers struct {
	service Service
}

// NewHandlers creates new private chat handlers
func NewHandlers(service Service) *Handlers {
	return &Handlers{service: service}
}

// StartConversation handles POST /conversations
func (h *Handlers) StartConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req StartConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	conv, err := h.service.StartConversation(r.Context(), userID, req.PeerID)
	if err != nil {
		if errors.Is(err, ErrSelfConversation) {
			utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("privatechat: start conversation failed: %v", err)
		utils.ErrorResponse(w, "Failed to start conversation", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, conv, http.StatusCreated)
}

// ListConversations handles GET /conversations?archived=
func (h *Handlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	archived := r.URL.Query().Get("archived") == "true"

	conversations, err := h.service.ListConversations(r.Context(), userID, archived)
	if err != nil {
		log.Printf("privatechat: list conversations failed: %v", err)
		utils.ErrorResponse(w, "Failed to list conversations", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, conversations, http.StatusOK)
}

// GetConversation handles GET /conversations/{conversationId}
func (h *Handlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID, ok := pathID(r, "conversationId")
	if !ok {
		utils.ErrorResponse(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	conv, err := h.service.GetConversation(r.Context(), conversationID, userID)
	if err != nil {
		h.writeError(w, err, "get conversation")
		return
	}

	utils.SuccessResponse(w, conv, http.StatusOK)
}

// SetArchived handles PUT /conversations/{conversationId}/archive
func (h *Handlers) SetArchived(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID, ok := pathID(r, "conversationId")
	if !ok {
		utils.ErrorResponse(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Archived bool `json:"archived"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.SetArchived(r.Context(), conversationID, userID, req.Archived); err != nil {
		h.writeError(w, err, "archive conversation")
		return
	}

	utils.MessageResponse(w, "Conversation updated", http.StatusOK)
}

// SendMessage handles POST /conversations/{conversationId}/messages
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID, ok := pathID(r, "conversationId")
	if !ok {
		utils.ErrorResponse(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := h.service.SendMessage(r.Context(), conversationID, userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrMessageTooLong),
			errors.Is(err, ErrInvalidReply), errors.Is(err, ErrInvalidMessageType):
			utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		default:
			h.writeError(w, err, "send message")
		}
		return
	}

	utils.SuccessResponse(w, msg, http.StatusCreated)
}

// GetHistory handles GET /conversations/{conversationId}/messages?limit=&before=
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID, ok := pathID(r, "conversationId")
	if !ok {
		utils.ErrorResponse(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	q := HistoryQuery{}
	q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	q.Before, _ = strconv.ParseInt(r.URL.Query().Get("before"), 10, 64)

	messages, err := h.service.GetHistory(r.Context(), conversationID, userID, q)
	if err != nil {
		h.writeError(w, err, "get history")
		return
	}

	utils.SuccessResponse(w, messages, http.StatusOK)
}

// MarkRead handles POST /conversations/{conversationId}/read
func (h *Handlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID, ok := pathID(r, "conversationId")
	if !ok {
		utils.ErrorResponse(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	count, err := h.service.MarkRead(r.Context(), conversationID, userID)
	if err != nil {
		h.writeError(w, err, "mark read")
		return
	}

	utils.SuccessResponse(w, map[string]interface{}{"marked": count}, http.StatusOK)
}

// EditMessage handles PUT /messages/{messageId}
func (h *Handlers) EditMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	messageID, ok := pathID(r, "messageId")
	if !ok {
		utils.ErrorResponse(w, "Invalid message ID", http.StatusBadRequest)
		return
	}

	var req EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := h.service.EditMessage(r.Context(), messageID, userID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrMessageTooLong):
			utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		default:
			h.writeError(w, err, "edit message")
		}
		return
	}

	utils.SuccessResponse(w, msg, http.StatusOK)
}

// DeleteMessage handles DELETE /messages/{messageId}
func (h *Handlers) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	messageID, ok := pathID(r, "messageId")
	if !ok {
		utils.ErrorResponse(w, "Invalid message ID", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteMessage(r.Context(), messageID, userID); err != nil {
		h.writeError(w, err, "delete message")
		return
	}

	utils.MessageResponse(w, "Message deleted", http.StatusOK)
}

// TotalUnread handles GET /unread
func (h *Handlers) TotalUnread(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	count, err := h.service.TotalUnread(r.Context(), userID)
	if err != nil {
		log.Printf("privatechat: total unread failed: %v", err)
		utils.ErrorResponse(w, "Failed to count unread messages", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, map[string]interface{}{"unread": count}, http.StatusOK)
}

func (h *Handlers) writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrConversationNotFound), errors.Is(err, ErrMessageNotFound):
		utils.ErrorResponse(w, "Not found", http.StatusNotFound)
	case errors.Is(err, ErrNotParticipant), errors.Is(err, ErrNotSender):
		utils.ErrorResponse(w, "Access denied", http.StatusForbidden)
	default:
		log.Printf("privatechat: %s failed: %v", op, err)
		utils.ErrorResponse(w, "Internal server error", http.StatusInternalServerError)
	}
}

// pathID parses a numeric path variable
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
