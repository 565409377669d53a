// internal/chat/handlers.go
// HTTP handlers for group chat

package chat

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

// Handlers holds HTTP handlers for chat operations
type Handlers struct {
	service  Service
	uploader Uploader
}

// NewHandlers creates new chat handlers
func NewHandlers(service Service, uploader Uploader) *Handlers {
	return &Handlers{
		service:  service,
		uploader: uploader,
	}
}

// CreateRoom handles POST /rooms
func (h *Handlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	room, err := h.service.CreateRoom(r.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, ErrInvalidRoom) {
			utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("chat: create room failed: %v", err)
		utils.ErrorResponse(w, "Failed to create room", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, room, http.StatusCreated)
}

// ListRooms handles GET /rooms
func (h *Handlers) ListRooms(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rooms, err := h.service.ListRooms(r.Context(), userID)
	if err != nil {
		log.Printf("chat: list rooms failed: %v", err)
		utils.ErrorResponse(w, "Failed to list rooms", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, rooms, http.StatusOK)
}

// ListPublicRooms handles GET /rooms/public
func (h *Handlers) ListPublicRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.service.ListPublicRooms(r.Context())
	if err != nil {
		log.Printf("chat: list public rooms failed: %v", err)
		utils.ErrorResponse(w, "Failed to list rooms", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, rooms, http.StatusOK)
}

// GetRoom handles GET /rooms/{roomId}
func (h *Handlers) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(r, "roomId")
	if !ok {
		utils.ErrorResponse(w, "Invalid room ID", http.StatusBadRequest)
		return
	}

	room, err := h.service.GetRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			utils.ErrorResponse(w, "Room not found", http.StatusNotFound)
			return
		}
		log.Printf("chat: get room failed: %v", err)
		utils.ErrorResponse(w, "Failed to get room", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, room, http.StatusOK)
}

// JoinRoom handles POST /rooms/{roomId}/join
func (h *Handlers) JoinRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	roomID, ok := pathID(r, "roomId")
	if !ok {
		utils.ErrorResponse(w, "Invalid room ID", http.StatusBadRequest)
		return
	}

	room, err := h.service.JoinRoom(r.Context(), roomID, userID)
	if err != nil {
		h.writeRoomError(w, err, "join room")
		return
	}

	utils.SuccessResponse(w, room, http.StatusOK)
}

// LeaveRoom handles POST /rooms/{roomId}/leave
func (h *Handlers) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	roomID, ok := pathID(r, "roomId")
	if !ok {
		utils.ErrorResponse(w, "Invalid room ID", http.StatusBadRequest)
		return
	}

	if err := h.service.LeaveRoom(r.Context(), roomID, userID); err != nil {
		h.writeRoomError(w, err, "leave room")
		return
	}

	utils.MessageResponse(w, "Left room", http.StatusOK)
}

// ListMembers handles GET /rooms/{roomId}/members
func (h *Handlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	roomID, ok := pathID(r, "roomId")
	if !ok {
		utils.ErrorResponse(w, "Invalid room ID", http.StatusBadRequest)
		return
	}

	members, err := h.service.ListMembers(r.Context(), roomID, userID)
	if err != nil {
		h.writeRoomError(w, err, "list members")
		return
	}

	utils.SuccessResponse(w, members, http.StatusOK)
}

// SendMessage handles POST /rooms/{roomId}/messages
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	roomID, ok := pathID(r, "roomId")
	if !ok {
		utils.ErrorResponse(w, "Invalid room ID", http.StatusBadRequest)
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

	msg, err := h.service.SendMessage(r.Context(), roomID, userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrMessageTooLong),
			errors.Is(err, ErrInvalidReply), errors.Is(err, ErrInvalidMessageType):
			utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrAccessDenied):
			utils.ErrorResponse(w, "Access denied", http.StatusForbidden)
		case errors.Is(err, ErrRoomNotFound):
			utils.ErrorResponse(w, "Room not found", http.StatusNotFound)
		default:
			log.Printf("chat: send message failed: %v", err)
			utils.ErrorResponse(w, "Failed to send message", http.StatusInternalServerError)
		}
		return
	}

	utils.SuccessResponse(w, msg, http.StatusCreated)
}

// GetHistory handles GET /rooms/{roomId}/messages?limit=&before=
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	roomID, ok := pathID(r, "roomId")
	if !ok {
		utils.ErrorResponse(w, "Invalid room ID", http.StatusBadRequest)
		return
	}

	q := HistoryQuery{}
	q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	q.Before, _ = strconv.ParseInt(r.URL.Query().Get("before"), 10, 64)

	messages, err := h.service.GetHistory(r.Context(), roomID, userID, q)
	if err != nil {
		h.writeRoomError(w, err, "get history")
		return
	}

	utils.SuccessResponse(w, messages, http.StatusOK)
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
		h.writeMessageError(w, err, "edit message")
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
		h.writeMessageError(w, err, "delete message")
		return
	}

	utils.MessageResponse(w, "Message deleted", http.StatusOK)
}

// ToggleReaction handles POST /messages/{messageId}/reactions
func (h *Handlers) ToggleReaction(w http.ResponseWriter, r *http.Request) {
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

	var req ReactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.ToggleReaction(r.Context(), messageID, userID, req.Type)
	if err != nil {
		h.writeMessageError(w, err, "toggle reaction")
		return
	}

	utils.SuccessResponse(w, result, http.StatusOK)
}

// ListReactions handles GET /messages/{messageId}/reactions
func (h *Handlers) ListReactions(w http.ResponseWriter, r *http.Request) {
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

	reactions, err := h.service.ListReactions(r.Context(), messageID, userID)
	if err != nil {
		h.writeMessageError(w, err, "list reactions")
		return
	}

	utils.SuccessResponse(w, reactions, http.StatusOK)
}

// UploadAttachment handles POST /upload
func (h *Handlers) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.GetUserIDFromContext(r.Context()); !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if h.uploader == nil {
		utils.ErrorResponse(w, "Uploads are not enabled", http.StatusNotImplemented)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.ErrorResponse(w, "File is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	url, err := h.uploader.Upload(r.Context(), file, header)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			utils.ErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		log.Printf("chat: upload failed: %v", err)
		utils.ErrorResponse(w, "Failed to upload file", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, map[string]interface{}{
		"file_url":  url,
		"file_name": header.Filename,
		"file_size": header.Size,
	}, http.StatusCreated)
}

func (h *Handlers) writeRoomError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		utils.ErrorResponse(w, "Room not found", http.StatusNotFound)
	case errors.Is(err, ErrAccessDenied):
		utils.ErrorResponse(w, "Access denied", http.StatusForbidden)
	default:
		log.Printf("chat: %s failed: %v", op, err)
		utils.ErrorResponse(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handlers) writeMessageError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrMessageNotFound):
		utils.ErrorResponse(w, "Message not found", http.StatusNotFound)
	case errors.Is(err, ErrNotSender):
		utils.ErrorResponse(w, "Only the sender can modify a message", http.StatusForbidden)
	case errors.Is(err, ErrAccessDenied):
		utils.ErrorResponse(w, "Access denied", http.StatusForbidden)
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrMessageTooLong):
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("chat: %s failed: %v", op, err)
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
