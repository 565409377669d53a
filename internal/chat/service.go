// internal/chat/service.go
// Group chat business logic: room lifecycle, message pipeline, reactions

package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/edustack/edustack-realtime/internal/realtime/event"
)

var (
	ErrAccessDenied       = errors.New("access denied")
	ErrMessageTooLong     = errors.New("message too long")
	ErrEmptyMessage       = errors.New("message content required")
	ErrInvalidRoom        = errors.New("invalid room type")
	ErrInvalidReply       = errors.New("reply target not in this room")
	ErrInvalidMessageType = errors.New("unsupported message type")
)

// Broadcaster fans events out to connected sessions. Implemented by the
// realtime hub; defined here so chat does not import realtime.
type Broadcaster interface {
	BroadcastToRoom(roomID int64, evt event.Event)
	SendToUser(userID int64, evt event.Event)
	SubscribeUserToRoom(userID, roomID int64)
}

// Notifier persists and pushes user notifications
type Notifier interface {
	Notify(ctx context.Context, userID int64, notifType, title, body string, data map[string]interface{})
}

// Service defines group chat operations
type Service interface {
	CreateRoom(ctx context.Context, creatorID int64, req *CreateRoomRequest) (*Room, error)
	GetRoom(ctx context.Context, roomID int64) (*Room, error)
	GlobalRoom(ctx context.Context) (*Room, error)
	ListRooms(ctx context.Context, userID int64) ([]*Room, error)
	ListPublicRooms(ctx context.Context) ([]*Room, error)
	JoinRoom(ctx context.Context, roomID, userID int64) (*Room, error)
	LeaveRoom(ctx context.Context, roomID, userID int64) error
	ListMembers(ctx context.Context, roomID, callerID int64) ([]*UserInfo, error)

	SendMessage(ctx context.Context, roomID, senderID int64, req *SendMessageRequest) (*Message, error)
	GetHistory(ctx context.Context, roomID, callerID int64, q HistoryQuery) ([]*Message, error)
	EditMessage(ctx context.Context, messageID, senderID int64, content string) (*Message, error)
	DeleteMessage(ctx context.Context, messageID, senderID int64) error

	ToggleReaction(ctx context.Context, messageID, userID int64, reactionType string) (*ReactionResult, error)
	ListReactions(ctx context.Context, messageID, callerID int64) ([]*Reaction, error)

	// CanAccess reports whether a user may subscribe to a room's events
	CanAccess(ctx context.Context, roomID, userID int64) (bool, error)
	GetUserInfo(ctx context.Context, userID int64) (*UserInfo, error)
}

type service struct {
	repo             Repository
	broadcaster      Broadcaster
	notifier         Notifier
	maxMessageLength int
	historyPageLimit int
}

// NewService creates a new chat service
func NewService(repo Repository, broadcaster Broadcaster, notifier Notifier, maxMessageLength, historyPageLimit int) Service {
	return &service{
		repo:             repo,
		broadcaster:      broadcaster,
		notifier:         notifier,
		maxMessageLength: maxMessageLength,
		historyPageLimit: historyPageLimit,
	}
}

// ===== Rooms =====

func (s *service) CreateRoom(ctx context.Context, creatorID int64, req *CreateRoomRequest) (*Room, error) {
	if req.Type == RoomTypeGlobal {
		// The global room is seeded at startup, never created by users
		return nil, fmt.Errorf("%w: cannot create a global room", ErrInvalidRoom)
	}
	if req.Type == RoomTypeCourse {
		if req.CourseID == nil {
			return nil, fmt.Errorf("%w: course rooms require a course_id", ErrInvalidRoom)
		}
		existing, err := s.repo.GetRoomByCourse(ctx, *req.CourseID)
		if err != nil && !errors.Is(err, ErrRoomNotFound) {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: course %d already has a room", ErrInvalidRoom, *req.CourseID)
		}
	}

	room := &Room{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		IsPublic:    req.IsPublic,
		CourseID:    req.CourseID,
		CreatedBy:   creatorID,
	}

	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return nil, err
	}

	if err := s.repo.AddMember(ctx, room.ID, creatorID, RoleAdmin); err != nil {
		return nil, err
	}
	room.MemberCount = 1
	if s.broadcaster != nil {
		s.broadcaster.SubscribeUserToRoom(creatorID, room.ID)
	}

	creator, err := s.repo.GetUserInfo(ctx, creatorID)
	if err != nil {
		log.Printf("chat: failed to load creator %d: %v", creatorID, err)
	}

	// Invited members join immediately and get told about it
	for _, memberID := range req.MemberIDs {
		if memberID == creatorID {
			continue
		}
		if err := s.repo.AddMember(ctx, room.ID, memberID, RoleMember); err != nil {
			log.Printf("chat: failed to add member %d to room %d: %v", memberID, room.ID, err)
			continue
		}
		room.MemberCount++

		// Members already online start receiving room traffic right away
		if s.broadcaster != nil {
			s.broadcaster.SubscribeUserToRoom(memberID, room.ID)
		}

		if s.notifier != nil && creator != nil {
			s.notifier.Notify(ctx, memberID, "room_invite",
				"Added to "+room.Name,
				fmt.Sprintf("%s added you to the room %q", creator.Username, room.Name),
				map[string]interface{}{"room_id": room.ID},
			)
		}
	}

	if s.broadcaster != nil {
		evt := event.New(event.TypeRoomCreated, room)
		s.broadcaster.SendToUser(creatorID, evt)
		for _, memberID := range req.MemberIDs {
			if memberID != creatorID {
				s.broadcaster.SendToUser(memberID, evt)
			}
		}
	}

	return room, nil
}

func (s *service) GetRoom(ctx context.Context, roomID int64) (*Room, error) {
	return s.repo.GetRoom(ctx, roomID)
}

// GlobalRoom returns the room seeded at startup that every user implicitly
// belongs to
func (s *service) GlobalRoom(ctx context.Context) (*Room, error) {
	return s.repo.GetGlobalRoom(ctx)
}

func (s *service) ListRooms(ctx context.Context, userID int64) ([]*Room, error) {
	return s.repo.ListRoomsForUser(ctx, userID)
}

func (s *service) ListPublicRooms(ctx context.Context) ([]*Room, error) {
	return s.repo.ListPublicRooms(ctx)
}

func (s *service) JoinRoom(ctx context.Context, roomID, userID int64) (*Room, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	ok, err := s.mayJoin(ctx, room, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccessDenied
	}

	if err := s.repo.AddMember(ctx, roomID, userID, RoleMember); err != nil {
		return nil, err
	}

	return room, nil
}

func (s *service) LeaveRoom(ctx context.Context, roomID, userID int64) error {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Type == RoomTypeGlobal {
		// Everyone belongs to the global room
		return ErrAccessDenied
	}

	return s.repo.RemoveMember(ctx, roomID, userID)
}

func (s *service) ListMembers(ctx context.Context, roomID, callerID int64) ([]*UserInfo, error) {
	ok, err := s.CanAccess(ctx, roomID, callerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccessDenied
	}

	return s.repo.ListMembers(ctx, roomID)
}

// mayJoin decides whether a user can become a member of a room:
// global and public rooms are open; course rooms require enrollment;
// private group rooms are invitation-only.
func (s *service) mayJoin(ctx context.Context, room *Room, userID int64) (bool, error) {
	switch {
	case room.Type == RoomTypeGlobal, room.IsPublic:
		return true, nil
	case room.Type == RoomTypeCourse:
		if room.CourseID == nil {
			return false, nil
		}
		return s.repo.IsEnrolled(ctx, *room.CourseID, userID)
	default:
		return s.repo.IsMember(ctx, room.ID, userID)
	}
}

// CanAccess reports whether a user may read a room and subscribe to its
// events. Only the global room grants access implicitly; everything else
// requires a membership row, so even a public room must be joined before
// its history or messages open up.
func (s *service) CanAccess(ctx context.Context, roomID, userID int64) (bool, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return false, err
	}

	if room.Type == RoomTypeGlobal {
		return true, nil
	}

	return s.repo.IsMember(ctx, roomID, userID)
}

// ===== Messages =====

func (s *service) SendMessage(ctx context.Context, roomID, senderID int64, req *SendMessageRequest) (*Message, error) {
	if req.Content == "" && req.FileURL == nil {
		return nil, ErrEmptyMessage
	}
	if len(req.Content) > s.maxMessageLength {
		return nil, ErrMessageTooLong
	}

	ok, err := s.CanAccess(ctx, roomID, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccessDenied
	}

	msgType := req.Type
	if msgType == "" {
		msgType = MessageTypeText
	}
	switch msgType {
	case MessageTypeText, MessageTypeImage, MessageTypeFile:
	default:
		// The system type is reserved for server-generated messages
		return nil, fmt.Errorf("%w: %s", ErrInvalidMessageType, msgType)
	}

	if req.ReplyTo != nil {
		parent, err := s.repo.GetMessage(ctx, *req.ReplyTo)
		if err != nil {
			if errors.Is(err, ErrMessageNotFound) {
				return nil, ErrInvalidReply
			}
			return nil, err
		}
		if parent.RoomID != roomID || parent.IsDeleted {
			return nil, ErrInvalidReply
		}
	}

	msg := &Message{
		RoomID:   roomID,
		SenderID: senderID,
		Content:  req.Content,
		Type:     msgType,
		FileURL:  req.FileURL,
		FileName: req.FileName,
		FileSize: req.FileSize,
		ReplyTo:  req.ReplyTo,
	}

	// Persist first; only stored messages reach the wire
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	// Room lists order by activity; stamp the room with its newest message
	if err := s.repo.SetLastMessage(ctx, roomID, msg.ID); err != nil {
		log.Printf("chat: failed to stamp activity on room %d: %v", roomID, err)
	}

	if sender, err := s.repo.GetUserInfo(ctx, senderID); err == nil {
		msg.SenderName = sender.Username
		msg.SenderAvatar = sender.AvatarURL
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToRoom(roomID, event.New(event.TypeNewMessage, msg))
	}

	return msg, nil
}

func (s *service) GetHistory(ctx context.Context, roomID, callerID int64, q HistoryQuery) ([]*Message, error) {
	ok, err := s.CanAccess(ctx, roomID, callerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccessDenied
	}

	if q.Limit <= 0 || q.Limit > s.historyPageLimit {
		q.Limit = s.historyPageLimit
	}

	messages, err := s.repo.ListMessages(ctx, roomID, q)
	if err != nil {
		return nil, err
	}

	for _, msg := range messages {
		if msg.IsDeleted {
			msg.Content = ""
			msg.FileURL = nil
			msg.FileName = nil
			continue
		}
		counts, err := s.repo.ReactionCounts(ctx, msg.ID)
		if err != nil {
			log.Printf("chat: failed to load reactions for message %d: %v", msg.ID, err)
			continue
		}
		if len(counts) > 0 {
			msg.Reactions = counts
		}
	}

	return messages, nil
}

func (s *service) EditMessage(ctx context.Context, messageID, senderID int64, content string) (*Message, error) {
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if len(content) > s.maxMessageLength {
		return nil, ErrMessageTooLong
	}

	msg, err := s.repo.UpdateMessageContent(ctx, messageID, senderID, content)
	if err != nil {
		return nil, err
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToRoom(msg.RoomID, event.New(event.TypeMessageEdited, msg))
	}

	return msg, nil
}

func (s *service) DeleteMessage(ctx context.Context, messageID, senderID int64) error {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}

	if err := s.repo.SoftDeleteMessage(ctx, messageID, senderID); err != nil {
		return err
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToRoom(msg.RoomID, event.New(event.TypeMessageDeleted, map[string]interface{}{
			"message_id": messageID,
			"room_id":    msg.RoomID,
		}))
	}

	return nil
}

// ===== Reactions =====

func (s *service) ToggleReaction(ctx context.Context, messageID, userID int64, reactionType string) (*ReactionResult, error) {
	if !IsValidReaction(reactionType) {
		return nil, fmt.Errorf("invalid reaction type: %s", reactionType)
	}

	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	ok, err := s.CanAccess(ctx, msg.RoomID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccessDenied
	}

	action, err := s.repo.ToggleReaction(ctx, messageID, userID, reactionType)
	if err != nil {
		return nil, err
	}

	counts, err := s.repo.ReactionCounts(ctx, messageID)
	if err != nil {
		return nil, err
	}

	result := &ReactionResult{
		MessageID: messageID,
		UserID:    userID,
		Type:      reactionType,
		Action:    action,
		Counts:    counts,
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToRoom(msg.RoomID, event.New(event.TypeReactionUpdate, result))
	}

	return result, nil
}

// ListReactions returns the raw reaction rows for a message. Aggregate
// counts always derive from these rows, never from a stored counter.
func (s *service) ListReactions(ctx context.Context, messageID, callerID int64) ([]*Reaction, error) {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	ok, err := s.CanAccess(ctx, msg.RoomID, callerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccessDenied
	}

	return s.repo.ListReactions(ctx, messageID)
}

// ===== Users =====

func (s *service) GetUserInfo(ctx context.Context, userID int64) (*UserInfo, error) {
	user, err := s.repo.GetUserInfo(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d not found", userID)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("user %d is inactive", userID)
	}
	return user, nil
}
