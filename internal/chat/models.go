// internal/chat/models.go
// Group chat domain models

package chat

import (
	"time"
)

// Room types
const (
	RoomTypeCourse = "course"
	RoomTypeGlobal = "global"
	RoomTypeGroup  = "group"
)

// Membership roles
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Message types
const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

// Reaction types a message can carry. One row per (message, user, type).
var ReactionTypes = []string{"like", "love", "laugh", "sad", "angry"}

// IsValidReaction reports whether t is an allowed reaction type
func IsValidReaction(t string) bool {
	for _, r := range ReactionTypes {
		if r == t {
			return true
		}
	}
	return false
}

// Room represents a group chat room
type Room struct {
	ID            int64     `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description" db:"description"`
	Type          string    `json:"type" db:"type"`
	IsPublic      bool      `json:"is_public" db:"is_public"`
	CourseID      *int64    `json:"course_id,omitempty" db:"course_id"`
	CreatedBy     int64     `json:"created_by" db:"created_by"`
	LastMessageID *int64    `json:"last_message_id,omitempty" db:"last_message_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`

	// Populated on reads, not stored on the row
	MemberCount int `json:"member_count,omitempty" db:"member_count"`
}

// Membership ties a user to a room
type Membership struct {
	ID       int64     `json:"id" db:"id"`
	RoomID   int64     `json:"room_id" db:"room_id"`
	UserID   int64     `json:"user_id" db:"user_id"`
	Role     string    `json:"role" db:"role"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}

// Message represents a group chat message
type Message struct {
	ID        int64      `json:"id" db:"id"`
	RoomID    int64      `json:"room_id" db:"room_id"`
	SenderID  int64      `json:"sender_id" db:"sender_id"`
	Content   string     `json:"content" db:"content"`
	Type      string     `json:"type" db:"type"`
	FileURL   *string    `json:"file_url,omitempty" db:"file_url"`
	FileName  *string    `json:"file_name,omitempty" db:"file_name"`
	FileSize  *int64     `json:"file_size,omitempty" db:"file_size"`
	ReplyTo   *int64     `json:"reply_to,omitempty" db:"reply_to"`
	IsEdited  bool       `json:"is_edited" db:"is_edited"`
	IsDeleted bool       `json:"is_deleted" db:"is_deleted"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty" db:"edited_at"`

	// Denormalized sender info for the wire
	SenderName   string  `json:"sender_name,omitempty" db:"sender_name"`
	SenderAvatar *string `json:"sender_avatar,omitempty" db:"sender_avatar"`

	// Aggregated reaction counts keyed by reaction type
	Reactions map[string]int `json:"reactions,omitempty" db:"-"`
}

// Reaction is a single user's reaction to a message
type Reaction struct {
	ID        int64     `json:"id" db:"id"`
	MessageID int64     `json:"message_id" db:"message_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Type      string    `json:"type" db:"type"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Reaction toggle outcomes, echoed to room members
const (
	ReactionAdded   = "added"
	ReactionUpdated = "updated"
	ReactionRemoved = "removed"
)

// ReactionResult describes what a toggle did to the reaction row
type ReactionResult struct {
	MessageID int64          `json:"message_id"`
	UserID    int64          `json:"user_id"`
	Type      string         `json:"reaction_type"`
	Action    string         `json:"action"`
	Counts    map[string]int `json:"counts"`
}

// UserInfo is the minimal user projection this service reads from the
// platform's users table
type UserInfo struct {
	ID        int64   `json:"id" db:"id"`
	Username  string  `json:"username" db:"username"`
	AvatarURL *string `json:"avatar_url,omitempty" db:"avatar_url"`
	IsActive  bool    `json:"-" db:"is_active"`
}

// CreateRoomRequest is the payload for creating a room
type CreateRoomRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description string  `json:"description" validate:"max=500"`
	Type        string  `json:"type" validate:"required,oneof=course global group"`
	IsPublic    bool    `json:"is_public"`
	CourseID    *int64  `json:"course_id,omitempty"`
	MemberIDs   []int64 `json:"member_ids,omitempty"`
}

// SendMessageRequest is the payload for posting a message to a room
type SendMessageRequest struct {
	Content  string  `json:"content" validate:"required,min=1"`
	Type     string  `json:"type" validate:"omitempty,oneof=text image file"`
	FileURL  *string `json:"file_url,omitempty" validate:"omitempty,url"`
	FileName *string `json:"file_name,omitempty"`
	FileSize *int64  `json:"file_size,omitempty"`
	ReplyTo  *int64  `json:"reply_to,omitempty"`
}

// EditMessageRequest is the payload for editing a message
type EditMessageRequest struct {
	Content string `json:"content" validate:"required,min=1"`
}

// ReactionRequest is the payload for toggling a reaction
type ReactionRequest struct {
	Type string `json:"reaction_type" validate:"required,oneof=like love laugh sad angry"`
}

// HistoryQuery bounds a message history page
type HistoryQuery struct {
	Limit  int   `json:"limit"`
	Before int64 `json:"before"` // message ID cursor; 0 means newest
}
