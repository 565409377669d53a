// internal/privatechat/models.go
// Private 1:1 conversation domain models

package privatechat

import (
	"time"
)

// Delivery statuses, strictly ordered: sent < delivered < read.
// A status row never moves backwards.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// MessageTypes a client may send. Voice and video notes ride the same
// attachment columns as files.
var MessageTypes = []string{"text", "image", "file", "voice", "video"}

// IsValidMessageType reports whether t is an allowed message type
func IsValidMessageType(t string) bool {
	for _, m := range MessageTypes {
		if m == t {
			return true
		}
	}
	return false
}

// Conversation is a 1:1 thread between two users. The participant pair is
// stored in canonical order (a < b) so each pair maps to exactly one row.
type Conversation struct {
	ID           int64     `json:"id" db:"id"`
	ParticipantA int64     `json:"participant_a" db:"participant_a"`
	ParticipantB int64     `json:"participant_b" db:"participant_b"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`

	// Caller-relative projections, populated on reads
	PeerID      int64    `json:"peer_id,omitempty" db:"-"`
	PeerName    string   `json:"peer_name,omitempty" db:"peer_name"`
	PeerAvatar  *string  `json:"peer_avatar,omitempty" db:"peer_avatar"`
	UnreadCount int64    `json:"unread_count" db:"-"`
	IsArchived  bool     `json:"is_archived" db:"is_archived"`
	LastMessage *Message `json:"last_message,omitempty" db:"-"`
}

// HasParticipant reports whether a user belongs to this conversation
func (c *Conversation) HasParticipant(userID int64) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// PeerOf returns the other participant's ID
func (c *Conversation) PeerOf(userID int64) int64 {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// Message is a private message within a conversation
type Message struct {
	ID             int64      `json:"id" db:"id"`
	ConversationID int64      `json:"conversation_id" db:"conversation_id"`
	SenderID       int64      `json:"sender_id" db:"sender_id"`
	Content        string     `json:"content" db:"content"`
	Type           string     `json:"type" db:"type"`
	FileURL        *string    `json:"file_url,omitempty" db:"file_url"`
	FileName       *string    `json:"file_name,omitempty" db:"file_name"`
	FileSize       *int64     `json:"file_size,omitempty" db:"file_size"`
	ReplyTo        *int64     `json:"reply_to,omitempty" db:"reply_to"`
	IsEdited       bool       `json:"is_edited" db:"is_edited"`
	IsDeleted      bool       `json:"is_deleted" db:"is_deleted"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	EditedAt       *time.Time `json:"edited_at,omitempty" db:"edited_at"`

	SenderName   string  `json:"sender_name,omitempty" db:"sender_name"`
	SenderAvatar *string `json:"sender_avatar,omitempty" db:"sender_avatar"`

	// Recipient's delivery status, populated for the sender's reads
	Status string `json:"status,omitempty" db:"status"`
}

// StatusUpdate reports a delivery status transition back to the sender
type StatusUpdate struct {
	ConversationID int64   `json:"conversation_id"`
	MessageIDs     []int64 `json:"message_ids"`
	UserID         int64   `json:"user_id"`
	Status         string  `json:"status"`
}

// StartConversationRequest opens (or finds) a thread with another user
type StartConversationRequest struct {
	PeerID int64 `json:"peer_id" validate:"required,gt=0"`
}

// SendMessageRequest posts a message into a conversation
type SendMessageRequest struct {
	Content  string  `json:"content" validate:"required,min=1"`
	Type     string  `json:"type" validate:"omitempty,oneof=text image file voice video"`
	FileURL  *string `json:"file_url,omitempty" validate:"omitempty,url"`
	FileName *string `json:"file_name,omitempty"`
	FileSize *int64  `json:"file_size,omitempty"`
	ReplyTo  *int64  `json:"reply_to,omitempty"`
}

// EditMessageRequest rewrites a message's content
type EditMessageRequest struct {
	Content string `json:"content" validate:"required,min=1"`
}

// HistoryQuery bounds a message history page
type HistoryQuery struct {
	Limit  int   `json:"limit"`
	Before int64 `json:"before"` // message ID cursor; 0 means newest
}

// canonicalPair returns the two user IDs in storage order
func canonicalPair(x, y int64) (int64, int64) {
	if x < y {
		return x, y
	}
	return y, x
}
