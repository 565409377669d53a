// internal/realtime/router.go
// Inbound event dispatch. Every client event lands here; the router
// validates, calls the owning service and answers on the same session.

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/edustack/edustack-realtime/internal/chat"
	"github.com/edustack/edustack-realtime/internal/privatechat"
	"github.com/edustack/edustack-realtime/internal/realtime/event"
)

// eventTimeout bounds the database work one inbound event may do
const eventTimeout = 10 * time.Second

// Router dispatches inbound events to the chat services
type Router struct {
	hub     *Hub
	chat    chat.Service
	private privatechat.Service
	typing  *TypingCoordinator
}

// NewRouter creates an event router
func NewRouter(hub *Hub, chatSvc chat.Service, privateSvc privatechat.Service, typing *TypingCoordinator) *Router {
	return &Router{
		hub:     hub,
		chat:    chatSvc,
		private: privateSvc,
		typing:  typing,
	}
}

// Handle processes one inbound event from a session
func (r *Router) Handle(s *Session, evt event.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	switch evt.Type {
	case event.TypeJoinRoom:
		r.handleJoinRoom(ctx, s, evt.Data)
	case event.TypeLeaveRoom:
		r.handleLeaveRoom(s, evt.Data)
	case event.TypeSendMessage:
		r.handleSendMessage(ctx, s, evt.Data)
	case event.TypeTypingStart:
		r.handleTypingStart(s, evt.Data)
	case event.TypeTypingStop:
		r.handleTypingStop(s, evt.Data)
	case event.TypeAddReaction:
		r.handleAddReaction(ctx, s, evt.Data)
	case event.TypeCreateRoom:
		r.handleCreateRoom(ctx, s, evt.Data)
	case event.TypeSendPrivateMessage:
		r.handleSendPrivateMessage(ctx, s, evt.Data)
	case event.TypePrivateTypingStart:
		r.handlePrivateTyping(ctx, s, evt.Data, true)
	case event.TypePrivateTypingStop:
		r.handlePrivateTyping(ctx, s, evt.Data, false)
	case event.TypeMarkRead:
		r.handleMarkRead(ctx, s, evt.Data)
	default:
		s.SendError("Unknown event type", string(evt.Type))
	}
}

func (r *Router) handleJoinRoom(ctx context.Context, s *Session, data json.RawMessage) {
	var p event.JoinRoomPayload
	if !decode(s, data, &p) {
		return
	}

	if _, err := r.chat.JoinRoom(ctx, p.RoomID, s.userID); err != nil {
		r.sendChatError(s, err, "Failed to join room")
		return
	}

	r.hub.JoinRoom(s, p.RoomID)
	s.Send(event.New(event.TypeJoinedRoom, event.JoinedRoomPayload{RoomID: p.RoomID}))
}

func (r *Router) handleLeaveRoom(s *Session, data json.RawMessage) {
	var p event.JoinRoomPayload
	if !decode(s, data, &p) {
		return
	}

	// Leaving the live feed does not revoke membership; that is a REST call
	r.hub.LeaveRoom(s, p.RoomID)
	r.typing.Stop(roomScope(p.RoomID), s.userID)
	s.Send(event.New(event.TypeLeftRoom, event.LeftRoomPayload{RoomID: p.RoomID}))
}

func (r *Router) handleSendMessage(ctx context.Context, s *Session, data json.RawMessage) {
	var p event.SendMessagePayload
	if !decode(s, data, &p) {
		return
	}

	// Sending implicitly ends the sender's typing episode
	r.typing.Stop(roomScope(p.RoomID), s.userID)

	_, err := r.chat.SendMessage(ctx, p.RoomID, s.userID, &chat.SendMessageRequest{
		Content: p.Content,
		Type:    p.Type,
		ReplyTo: p.ReplyTo,
	})
	if err != nil {
		r.sendChatError(s, err, "Failed to send message")
	}
}

func (r *Router) handleTypingStart(s *Session, data json.RawMessage) {
	var p event.TypingPayload
	if !decode(s, data, &p) {
		return
	}

	if !r.hub.InRoom(s, p.RoomID) {
		s.SendError("Join the room before typing in it", "")
		return
	}

	roomID := p.RoomID
	userID := s.userID
	username := s.username

	started := r.typing.Start(roomScope(roomID), userID, func() {
		r.hub.BroadcastToRoomExcept(roomID, userID, event.New(event.TypeUserStopTyping, event.UserTypingPayload{
			UserID:   userID,
			Username: username,
			RoomID:   roomID,
		}))
	})

	if started {
		r.hub.BroadcastToRoomExcept(roomID, userID, event.New(event.TypeUserTyping, event.UserTypingPayload{
			UserID:   userID,
			Username: username,
			RoomID:   roomID,
		}))
	}
}

func (r *Router) handleTypingStop(s *Session, data json.RawMessage) {
	var p event.TypingPayload
	if !decode(s, data, &p) {
		return
	}

	// The stop broadcast rides on the callback armed at start; a stop with
	// no active episode stays silent
	r.typing.Stop(roomScope(p.RoomID), s.userID)
}

func (r *Router) handleAddReaction(ctx context.Context, s *Session, data json.RawMessage) {
	var p event.AddReactionPayload
	if !decode(s, data, &p) {
		return
	}

	if _, err := r.chat.ToggleReaction(ctx, p.MessageID, s.userID, p.ReactionType); err != nil {
		r.sendChatError(s, err, "Failed to update reaction")
	}
}

func (r *Router) handleCreateRoom(ctx context.Context, s *Session, data json.RawMessage) {
	var p event.CreateRoomPayload
	if !decode(s, data, &p) {
		return
	}

	req := &chat.CreateRoomRequest{
		Name:        p.Name,
		Description: p.Description,
		Type:        p.Type,
		CourseID:    p.CourseID,
		MemberIDs:   p.MemberIDs,
	}
	if req.Type == "" {
		req.Type = chat.RoomTypeGroup
	}
	if p.IsPublic != nil {
		req.IsPublic = *p.IsPublic
	}

	// The service subscribes the live sessions of the creator and every
	// invited member as part of room creation
	if _, err := r.chat.CreateRoom(ctx, s.userID, req); err != nil {
		r.sendChatError(s, err, "Failed to create room")
	}
}

func (r *Router) handleSendPrivateMessage(ctx context.Context, s *Session, data json.RawMessage) {
	var p event.SendPrivateMessagePayload
	if !decode(s, data, &p) {
		return
	}

	r.typing.Stop(convScope(p.ConversationID), s.userID)

	req := &privatechat.SendMessageRequest{
		Content:  p.Content,
		Type:     p.Type,
		FileSize: p.FileSize,
		ReplyTo:  p.ReplyTo,
	}
	if p.FileURL != "" {
		req.FileURL = &p.FileURL
	}
	if p.FileName != "" {
		req.FileName = &p.FileName
	}

	if _, err := r.private.SendMessage(ctx, p.ConversationID, s.userID, req); err != nil {
		r.sendPrivateError(s, err, "Failed to send message")
	}
}

func (r *Router) handlePrivateTyping(ctx context.Context, s *Session, data json.RawMessage, start bool) {
	var p event.PrivateTypingPayload
	if !decode(s, data, &p) {
		return
	}

	conv, err := r.private.GetConversation(ctx, p.ConversationID, s.userID)
	if err != nil {
		r.sendPrivateError(s, err, "Failed to update typing state")
		return
	}

	peerID := conv.PeerID
	conversationID := p.ConversationID
	userID := s.userID
	username := s.username

	if !start {
		r.typing.Stop(convScope(conversationID), userID)
		return
	}

	started := r.typing.Start(convScope(conversationID), userID, func() {
		r.hub.SendToUser(peerID, event.New(event.TypePrivateUserStopTyping, event.PrivateUserTypingPayload{
			UserID:         userID,
			Username:       username,
			ConversationID: conversationID,
		}))
	})

	if started {
		r.hub.SendToUser(peerID, event.New(event.TypePrivateUserTyping, event.PrivateUserTypingPayload{
			UserID:         userID,
			Username:       username,
			ConversationID: conversationID,
		}))
	}
}

func (r *Router) handleMarkRead(ctx context.Context, s *Session, data json.RawMessage) {
	var p event.MarkReadPayload
	if !decode(s, data, &p) {
		return
	}

	if _, err := r.private.MarkRead(ctx, p.ConversationID, s.userID); err != nil {
		r.sendPrivateError(s, err, "Failed to mark conversation read")
	}
}

func (r *Router) sendChatError(s *Session, err error, fallback string) {
	switch {
	case errors.Is(err, chat.ErrAccessDenied):
		s.SendError("Access denied", "")
	case errors.Is(err, chat.ErrRoomNotFound):
		s.SendError("Room not found", "")
	case errors.Is(err, chat.ErrMessageNotFound):
		s.SendError("Message not found", "")
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrMessageTooLong),
		errors.Is(err, chat.ErrInvalidRoom), errors.Is(err, chat.ErrInvalidReply),
		errors.Is(err, chat.ErrInvalidMessageType):
		s.SendError(err.Error(), "")
	default:
		s.SendError(fallback, "")
	}
}

func (r *Router) sendPrivateError(s *Session, err error, fallback string) {
	switch {
	case errors.Is(err, privatechat.ErrNotParticipant):
		s.SendError("Access denied", "")
	case errors.Is(err, privatechat.ErrConversationNotFound):
		s.SendError("Conversation not found", "")
	case errors.Is(err, privatechat.ErrEmptyMessage), errors.Is(err, privatechat.ErrMessageTooLong),
		errors.Is(err, privatechat.ErrInvalidReply), errors.Is(err, privatechat.ErrInvalidMessageType):
		s.SendError(err.Error(), "")
	default:
		s.SendError(fallback, "")
	}
}

// decode unmarshals an event payload, answering with an error event on
// malformed input
func decode(s *Session, data json.RawMessage, v interface{}) bool {
	if len(data) == 0 {
		s.SendError("Missing event payload", "")
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.SendError("Malformed event payload", err.Error())
		return false
	}
	return true
}

func roomScope(roomID int64) string {
	return fmt.Sprintf("room:%d", roomID)
}

func convScope(conversationID int64) string {
	return fmt.Sprintf("conv:%d", conversationID)
}
