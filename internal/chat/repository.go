// internal/chat/repository.go
// Data access interface for group chat

package chat

import (
	"context"
	"errors"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotMember       = errors.New("not a room member")
	ErrNotSender       = errors.New("not the message sender")
)

// Repository defines data access for rooms, messages and reactions
type Repository interface {
	// Rooms
	CreateRoom(ctx context.Context, room *Room) error
	GetRoom(ctx context.Context, roomID int64) (*Room, error)
	GetGlobalRoom(ctx context.Context) (*Room, error)
	GetRoomByCourse(ctx context.Context, courseID int64) (*Room, error)
	ListRoomsForUser(ctx context.Context, userID int64) ([]*Room, error)
	ListPublicRooms(ctx context.Context) ([]*Room, error)
	SetLastMessage(ctx context.Context, roomID, messageID int64) error

	// Memberships
	AddMember(ctx context.Context, roomID, userID int64, role string) error
	RemoveMember(ctx context.Context, roomID, userID int64) error
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
	ListMembers(ctx context.Context, roomID int64) ([]*UserInfo, error)

	// Messages
	CreateMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, messageID int64) (*Message, error)
	ListMessages(ctx context.Context, roomID int64, q HistoryQuery) ([]*Message, error)
	UpdateMessageContent(ctx context.Context, messageID, senderID int64, content string) (*Message, error)
	SoftDeleteMessage(ctx context.Context, messageID, senderID int64) error

	// Reactions
	ToggleReaction(ctx context.Context, messageID, userID int64, reactionType string) (string, error)
	ReactionCounts(ctx context.Context, messageID int64) (map[string]int, error)
	ListReactions(ctx context.Context, messageID int64) ([]*Reaction, error)

	// Users
	GetUserInfo(ctx context.Context, userID int64) (*UserInfo, error)
	IsEnrolled(ctx context.Context, courseID, userID int64) (bool, error)
}
