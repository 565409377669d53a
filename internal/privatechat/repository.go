// internal/privatechat/repository.go
// Data access interface for private conversations

package privatechat

import (
	"context"
	"errors"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotParticipant       = errors.New("not a conversation participant")
	ErrNotSender            = errors.New("not the message sender")
)

// Repository defines data access for conversations, messages and
// delivery statuses
type Repository interface {
	// Conversations
	FindOrCreateConversation(ctx context.Context, userA, userB int64) (*Conversation, bool, error)
	GetConversation(ctx context.Context, conversationID int64) (*Conversation, error)
	ListConversations(ctx context.Context, userID int64, archived bool) ([]*Conversation, error)
	TouchConversation(ctx context.Context, conversationID int64) error
	SetArchived(ctx context.Context, conversationID, userID int64, archived bool) error

	// Messages
	CreateMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, messageID int64) (*Message, error)
	ListMessages(ctx context.Context, conversationID int64, q HistoryQuery) ([]*Message, error)
	UpdateMessageContent(ctx context.Context, messageID, senderID int64, content string) (*Message, error)
	SoftDeleteMessage(ctx context.Context, messageID, senderID int64) error

	// Delivery status
	CreateStatus(ctx context.Context, messageID, recipientID int64, status string) error
	AdvanceStatus(ctx context.Context, messageID, recipientID int64, status string) (bool, error)
	AdvanceConversationStatuses(ctx context.Context, conversationID, recipientID int64, status string) ([]int64, error)
	UnreadCount(ctx context.Context, conversationID, recipientID int64) (int64, error)
	TotalUnreadCount(ctx context.Context, recipientID int64) (int64, error)
}
