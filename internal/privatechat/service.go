// internal/privatechat/service.go
// Private 1:1 messaging: conversations, delivery receipts, unread counters

package privatechat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/edustack/edustack-realtime/internal/realtime/event"
)

var (
	ErrSelfConversation   = errors.New("cannot open a conversation with yourself")
	ErrMessageTooLong     = errors.New("message too long")
	ErrEmptyMessage       = errors.New("message content required")
	ErrInvalidReply       = errors.New("reply target not in this conversation")
	ErrInvalidMessageType = errors.New("unsupported message type")
)

// Broadcaster pushes events to a user's live sessions. Implemented by the
// realtime hub; defined here so privatechat does not import realtime.
type Broadcaster interface {
	SendToUser(userID int64, evt event.Event)
	IsUserOnline(userID int64) bool
}

// Notifier persists and pushes user notifications
type Notifier interface {
	Notify(ctx context.Context, userID int64, notifType, title, body string, data map[string]interface{})
}

// Service defines private chat operations
type Service interface {
	StartConversation(ctx context.Context, userID, peerID int64) (*Conversation, error)
	GetConversation(ctx context.Context, conversationID, userID int64) (*Conversation, error)
	ListConversations(ctx context.Context, userID int64, archived bool) ([]*Conversation, error)
	SetArchived(ctx context.Context, conversationID, userID int64, archived bool) error

	SendMessage(ctx context.Context, conversationID, senderID int64, req *SendMessageRequest) (*Message, error)
	GetHistory(ctx context.Context, conversationID, userID int64, q HistoryQuery) ([]*Message, error)
	EditMessage(ctx context.Context, messageID, senderID int64, content string) (*Message, error)
	DeleteMessage(ctx context.Context, messageID, senderID int64) error

	MarkRead(ctx context.Context, conversationID, userID int64) (int, error)
	MarkDelivered(ctx context.Context, userID int64)
	TotalUnread(ctx context.Context, userID int64) (int64, error)

	// CanAccess reports whether a user participates in a conversation
	CanAccess(ctx context.Context, conversationID, userID int64) (bool, error)
}

type service struct {
	repo             Repository
	broadcaster      Broadcaster
	notifier         Notifier
	cache            *redis.Client
	cacheTTL         time.Duration
	maxMessageLength int
	historyPageLimit int
}

// NewService creates a new private chat service. cache may be nil; unread
// counters then fall back to direct counts.
func NewService(repo Repository, broadcaster Broadcaster, notifier Notifier, cache *redis.Client, cacheTTL time.Duration, maxMessageLength, historyPageLimit int) Service {
	return &service{
		repo:             repo,
		broadcaster:      broadcaster,
		notifier:         notifier,
		cache:            cache,
		cacheTTL:         cacheTTL,
		maxMessageLength: maxMessageLength,
		historyPageLimit: historyPageLimit,
	}
}

// ===== Conversations =====

func (s *service) StartConversation(ctx context.Context, userID, peerID int64) (*Conversation, error) {
	if userID == peerID {
		return nil, ErrSelfConversation
	}

	conv, _, err := s.repo.FindOrCreateConversation(ctx, userID, peerID)
	if err != nil {
		return nil, err
	}

	conv.PeerID = peerID
	return conv, nil
}

func (s *service) GetConversation(ctx context.Context, conversationID, userID int64) (*Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}

	conv.PeerID = conv.PeerOf(userID)
	conv.UnreadCount, err = s.unreadCount(ctx, conversationID, userID)
	if err != nil {
		log.Printf("privatechat: unread count failed for conversation %d: %v", conversationID, err)
	}

	return conv, nil
}

func (s *service) ListConversations(ctx context.Context, userID int64, archived bool) ([]*Conversation, error) {
	conversations, err := s.repo.ListConversations(ctx, userID, archived)
	if err != nil {
		return nil, err
	}

	for _, conv := range conversations {
		count, err := s.unreadCount(ctx, conv.ID, userID)
		if err != nil {
			log.Printf("privatechat: unread count failed for conversation %d: %v", conv.ID, err)
			continue
		}
		conv.UnreadCount = count
	}

	return conversations, nil
}

func (s *service) SetArchived(ctx context.Context, conversationID, userID int64, archived bool) error {
	ok, err := s.CanAccess(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotParticipant
	}

	return s.repo.SetArchived(ctx, conversationID, userID, archived)
}

// ===== Messages =====

func (s *service) SendMessage(ctx context.Context, conversationID, senderID int64, req *SendMessageRequest) (*Message, error) {
	if req.Content == "" && req.FileURL == nil {
		return nil, ErrEmptyMessage
	}
	if len(req.Content) > s.maxMessageLength {
		return nil, ErrMessageTooLong
	}

	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, ErrNotParticipant
	}
	recipientID := conv.PeerOf(senderID)

	msgType := req.Type
	if msgType == "" {
		msgType = "text"
	}
	if !IsValidMessageType(msgType) {
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
		if parent.ConversationID != conversationID || parent.IsDeleted {
			return nil, ErrInvalidReply
		}
	}

	msg := &Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        req.Content,
		Type:           msgType,
		FileURL:        req.FileURL,
		FileName:       req.FileName,
		FileSize:       req.FileSize,
		ReplyTo:        req.ReplyTo,
	}

	// Persist first; only stored messages reach the wire
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.repo.CreateStatus(ctx, msg.ID, recipientID, StatusSent); err != nil {
		log.Printf("privatechat: create status failed for message %d: %v", msg.ID, err)
	}
	msg.Status = StatusSent

	if err := s.repo.TouchConversation(ctx, conversationID); err != nil {
		log.Printf("privatechat: touch conversation %d failed: %v", conversationID, err)
	}

	// The recipient having live sessions counts as delivery
	recipientOnline := s.broadcaster != nil && s.broadcaster.IsUserOnline(recipientID)
	if recipientOnline {
		if advanced, err := s.repo.AdvanceStatus(ctx, msg.ID, recipientID, StatusDelivered); err != nil {
			log.Printf("privatechat: advance status failed for message %d: %v", msg.ID, err)
		} else if advanced {
			msg.Status = StatusDelivered
		}
	}

	s.invalidateUnread(ctx, conversationID, recipientID)

	if s.broadcaster != nil {
		evt := event.New(event.TypeNewPrivateMessage, msg)
		s.broadcaster.SendToUser(recipientID, evt)
		// The sender's other sessions stay in sync too
		s.broadcaster.SendToUser(senderID, evt)

		if msg.Status == StatusDelivered {
			s.broadcaster.SendToUser(senderID, event.New(event.TypeMessageStatus, &StatusUpdate{
				ConversationID: conversationID,
				MessageIDs:     []int64{msg.ID},
				UserID:         recipientID,
				Status:         StatusDelivered,
			}))
		}
	}

	if !recipientOnline && s.notifier != nil {
		s.notifier.Notify(ctx, recipientID, "private_message",
			"New message",
			previewOf(msg),
			map[string]interface{}{"conversation_id": conversationID, "message_id": msg.ID},
		)
	}

	return msg, nil
}

func (s *service) GetHistory(ctx context.Context, conversationID, userID int64, q HistoryQuery) ([]*Message, error) {
	ok, err := s.CanAccess(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotParticipant
	}

	if q.Limit <= 0 || q.Limit > s.historyPageLimit {
		q.Limit = s.historyPageLimit
	}

	messages, err := s.repo.ListMessages(ctx, conversationID, q)
	if err != nil {
		return nil, err
	}

	for _, msg := range messages {
		if msg.IsDeleted {
			msg.Content = ""
			msg.FileURL = nil
			msg.FileName = nil
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
		conv, err := s.repo.GetConversation(ctx, msg.ConversationID)
		if err == nil {
			evt := event.New(event.TypeMessageEdited, msg)
			s.broadcaster.SendToUser(conv.ParticipantA, evt)
			s.broadcaster.SendToUser(conv.ParticipantB, evt)
		}
	}

	return msg, nil
}

func (s *service) DeleteMessage(ctx context.Context, messageID, senderID int64) error {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != senderID {
		return ErrNotSender
	}

	if err := s.repo.SoftDeleteMessage(ctx, messageID, senderID); err != nil {
		return err
	}

	if s.broadcaster != nil {
		conv, err := s.repo.GetConversation(ctx, msg.ConversationID)
		if err == nil {
			evt := event.New(event.TypeMessageDeleted, map[string]interface{}{
				"message_id":      messageID,
				"conversation_id": msg.ConversationID,
			})
			s.broadcaster.SendToUser(conv.ParticipantA, evt)
			s.broadcaster.SendToUser(conv.ParticipantB, evt)
		}
	}

	return nil
}

// ===== Receipts =====

// MarkRead advances every pending status the reader holds in a conversation
// to read and tells the sender. Safe to repeat; the second call is a no-op.
func (s *service) MarkRead(ctx context.Context, conversationID, userID int64) (int, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if !conv.HasParticipant(userID) {
		return 0, ErrNotParticipant
	}

	ids, err := s.repo.AdvanceConversationStatuses(ctx, conversationID, userID, StatusRead)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	s.invalidateUnread(ctx, conversationID, userID)

	if s.broadcaster != nil {
		s.broadcaster.SendToUser(conv.PeerOf(userID), event.New(event.TypeMessageStatus, &StatusUpdate{
			ConversationID: conversationID,
			MessageIDs:     ids,
			UserID:         userID,
			Status:         StatusRead,
		}))
	}

	return len(ids), nil
}

// MarkDelivered advances all pending sent statuses for a user who just came
// online and notifies each affected sender. Called by the hub on connect.
func (s *service) MarkDelivered(ctx context.Context, userID int64) {
	// Archiving only hides a conversation from its owner's list; receipts
	// keep flowing, so both partitions advance.
	for _, archived := range []bool{false, true} {
		conversations, err := s.repo.ListConversations(ctx, userID, archived)
		if err != nil {
			log.Printf("privatechat: mark delivered failed for user %d: %v", userID, err)
			continue
		}

		for _, conv := range conversations {
			ids, err := s.repo.AdvanceConversationStatuses(ctx, conv.ID, userID, StatusDelivered)
			if err != nil {
				log.Printf("privatechat: advance statuses failed for conversation %d: %v", conv.ID, err)
				continue
			}
			if len(ids) == 0 {
				continue
			}

			if s.broadcaster != nil {
				s.broadcaster.SendToUser(conv.PeerOf(userID), event.New(event.TypeMessageStatus, &StatusUpdate{
					ConversationID: conv.ID,
					MessageIDs:     ids,
					UserID:         userID,
					Status:         StatusDelivered,
				}))
			}
		}
	}
}

func (s *service) TotalUnread(ctx context.Context, userID int64) (int64, error) {
	if s.cache != nil {
		key := totalUnreadKey(userID)
		if val, err := s.cache.Get(ctx, key).Result(); err == nil {
			if count, perr := strconv.ParseInt(val, 10, 64); perr == nil {
				return count, nil
			}
		}
	}

	count, err := s.repo.TotalUnreadCount(ctx, userID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, totalUnreadKey(userID), count, s.cacheTTL).Err(); err != nil {
			log.Printf("privatechat: cache set failed: %v", err)
		}
	}

	return count, nil
}

func (s *service) CanAccess(ctx context.Context, conversationID, userID int64) (bool, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return false, err
	}
	return conv.HasParticipant(userID), nil
}

// ===== Unread cache =====

// unreadCount reads through the cache; the COUNT query stays the source of
// truth, so a stale or lost cache only costs a recount.
func (s *service) unreadCount(ctx context.Context, conversationID, userID int64) (int64, error) {
	if s.cache != nil {
		key := unreadKey(conversationID, userID)
		if val, err := s.cache.Get(ctx, key).Result(); err == nil {
			if count, perr := strconv.ParseInt(val, 10, 64); perr == nil {
				return count, nil
			}
		}
	}

	count, err := s.repo.UnreadCount(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, unreadKey(conversationID, userID), count, s.cacheTTL).Err(); err != nil {
			log.Printf("privatechat: cache set failed: %v", err)
		}
	}

	return count, nil
}

func (s *service) invalidateUnread(ctx context.Context, conversationID, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, unreadKey(conversationID, userID), totalUnreadKey(userID)).Err(); err != nil {
		log.Printf("privatechat: cache invalidation failed: %v", err)
	}
}

func unreadKey(conversationID, userID int64) string {
	return fmt.Sprintf("unread:conv:%d:%d", conversationID, userID)
}

func totalUnreadKey(userID int64) string {
	return fmt.Sprintf("unread:total:%d", userID)
}

// previewOf truncates message content for notification bodies. Truncation
// counts runes so multibyte content never splits mid-character.
func previewOf(msg *Message) string {
	if msg.Content == "" {
		return "Sent an attachment"
	}
	runes := []rune(msg.Content)
	if len(runes) > 80 {
		return string(runes[:77]) + "..."
	}
	return msg.Content
}
