// internal/notification/models.go
// Notification domain models

package notification

import (
	"encoding/json"
	"time"
)

// Notification kinds this service emits
const (
	TypePrivateMessage = "private_message"
	TypeRoomInvite     = "room_invite"
	TypeMention        = "mention"
	TypeSystem         = "system"
)

// Notification is a persisted in-app notification
type Notification struct {
	ID        int64           `json:"id" db:"id"`
	UserID    int64           `json:"user_id" db:"user_id"`
	Type      string          `json:"type" db:"type"`
	Title     string          `json:"title" db:"title"`
	Body      string          `json:"body" db:"body"`
	Data      json.RawMessage `json:"data,omitempty" db:"data"`
	IsRead    bool            `json:"is_read" db:"is_read"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// ListQuery bounds a notification page
type ListQuery struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	UnreadOnly bool `json:"unread_only"`
}
