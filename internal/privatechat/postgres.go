// internal/privatechat/postgres.go
// PostgreSQL implementation of the private chat repository

package privatechat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// statusRankSQL ranks a delivery status inline so monotonicity checks run in
// a single statement. Keep in sync with the status constants.
const statusRankSQL = `CASE %s WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2 WHEN 'read' THEN 3 ELSE 0 END`

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL private chat repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// ===== Conversations =====

// FindOrCreateConversation resolves the single conversation for a user pair,
// creating it on first contact. The upsert makes concurrent first messages
// from both sides converge on one row; the second return value reports
// whether this call created it.
func (r *postgresRepository) FindOrCreateConversation(ctx context.Context, userA, userB int64) (*Conversation, bool, error) {
	a, b := canonicalPair(userA, userB)

	var conv Conversation
	var created bool
	query := `
		INSERT INTO private_conversations (participant_a, participant_b)
		VALUES ($1, $2)
		ON CONFLICT (participant_a, participant_b)
		DO UPDATE SET participant_a = EXCLUDED.participant_a
		RETURNING id, participant_a, participant_b, created_at, updated_at, (xmax = 0) AS created`

	err := r.db.QueryRowContext(ctx, query, a, b).Scan(
		&conv.ID,
		&conv.ParticipantA,
		&conv.ParticipantB,
		&conv.CreatedAt,
		&conv.UpdatedAt,
		&created,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find or create conversation: %w", err)
	}

	return &conv, created, nil
}

func (r *postgresRepository) GetConversation(ctx context.Context, conversationID int64) (*Conversation, error) {
	var conv Conversation
	query := `
		SELECT id, participant_a, participant_b, created_at, updated_at
		FROM private_conversations
		WHERE id = $1`

	err := r.db.GetContext(ctx, &conv, query, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return &conv, nil
}

func (r *postgresRepository) ListConversations(ctx context.Context, userID int64, archived bool) ([]*Conversation, error) {
	conversations := []*Conversation{}
	query := `
		SELECT c.id, c.participant_a, c.participant_b, c.created_at, c.updated_at,
		       u.username AS peer_name, u.avatar_url AS peer_avatar,
		       (a.conversation_id IS NOT NULL) AS is_archived
		FROM private_conversations c
		JOIN users u ON u.id = CASE WHEN c.participant_a = $1 THEN c.participant_b ELSE c.participant_a END
		LEFT JOIN private_conversation_archives a
		       ON a.conversation_id = c.id AND a.user_id = $1
		WHERE (c.participant_a = $1 OR c.participant_b = $1)
		  AND (a.conversation_id IS NOT NULL) = $2
		ORDER BY c.updated_at DESC`

	if err := r.db.SelectContext(ctx, &conversations, query, userID, archived); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	for _, conv := range conversations {
		if conv.ParticipantA == userID {
			conv.PeerID = conv.ParticipantB
		} else {
			conv.PeerID = conv.ParticipantA
		}
	}

	return conversations, nil
}

func (r *postgresRepository) TouchConversation(ctx context.Context, conversationID int64) error {
	query := `UPDATE private_conversations SET updated_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, conversationID); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	return nil
}

func (r *postgresRepository) SetArchived(ctx context.Context, conversationID, userID int64, archived bool) error {
	if archived {
		query := `
			INSERT INTO private_conversation_archives (conversation_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (conversation_id, user_id) DO NOTHING`
		if _, err := r.db.ExecContext(ctx, query, conversationID, userID); err != nil {
			return fmt.Errorf("failed to archive conversation: %w", err)
		}
		return nil
	}

	query := `DELETE FROM private_conversation_archives WHERE conversation_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, conversationID, userID); err != nil {
		return fmt.Errorf("failed to unarchive conversation: %w", err)
	}

	return nil
}

// ===== Messages =====

func (r *postgresRepository) CreateMessage(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO private_messages (conversation_id, sender_id, content, type, file_url, file_name, file_size, reply_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		msg.ConversationID,
		msg.SenderID,
		msg.Content,
		msg.Type,
		msg.FileURL,
		msg.FileName,
		msg.FileSize,
		msg.ReplyTo,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

func (r *postgresRepository) GetMessage(ctx context.Context, messageID int64) (*Message, error) {
	var msg Message
	query := `
		SELECT m.*, u.username AS sender_name, u.avatar_url AS sender_avatar,
		       COALESCE(s.status, '') AS status
		FROM private_messages m
		JOIN users u ON u.id = m.sender_id
		LEFT JOIN private_message_status s ON s.message_id = m.id
		WHERE m.id = $1`

	err := r.db.GetContext(ctx, &msg, query, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &msg, nil
}

func (r *postgresRepository) ListMessages(ctx context.Context, conversationID int64, q HistoryQuery) ([]*Message, error) {
	messages := []*Message{}
	query := `
		SELECT m.*, u.username AS sender_name, u.avatar_url AS sender_avatar,
		       COALESCE(s.status, '') AS status
		FROM private_messages m
		JOIN users u ON u.id = m.sender_id
		LEFT JOIN private_message_status s ON s.message_id = m.id
		WHERE m.conversation_id = $1 AND ($2 = 0 OR m.id < $2)
		ORDER BY m.id DESC
		LIMIT $3`

	if err := r.db.SelectContext(ctx, &messages, query, conversationID, q.Before, q.Limit); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	// Pages read newest-first; callers want chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *postgresRepository) UpdateMessageContent(ctx context.Context, messageID, senderID int64, content string) (*Message, error) {
	query := `
		UPDATE private_messages
		SET content = $3, is_edited = TRUE, edited_at = NOW()
		WHERE id = $1 AND sender_id = $2 AND is_deleted = FALSE
		RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, query, messageID, senderID, content).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.classifyMessageWriteError(ctx, messageID)
		}
		return nil, fmt.Errorf("failed to update message: %w", err)
	}

	return r.GetMessage(ctx, id)
}

func (r *postgresRepository) SoftDeleteMessage(ctx context.Context, messageID, senderID int64) error {
	query := `
		UPDATE private_messages
		SET is_deleted = TRUE, content = ''
		WHERE id = $1 AND sender_id = $2 AND is_deleted = FALSE`

	res, err := r.db.ExecContext(ctx, query, messageID, senderID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if rows == 0 {
		return r.classifyMessageWriteError(ctx, messageID)
	}

	return nil
}

// classifyMessageWriteError distinguishes "no such message" from "someone
// else's message" after a guarded write matched zero rows.
func (r *postgresRepository) classifyMessageWriteError(ctx context.Context, messageID int64) error {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM private_messages WHERE id = $1 AND is_deleted = FALSE)`
	if err := r.db.GetContext(ctx, &exists, query, messageID); err != nil {
		return fmt.Errorf("failed to check message: %w", err)
	}
	if exists {
		return ErrNotSender
	}
	return ErrMessageNotFound
}

// ===== Delivery status =====

func (r *postgresRepository) CreateStatus(ctx context.Context, messageID, recipientID int64, status string) error {
	query := `
		INSERT INTO private_message_status (message_id, user_id, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, messageID, recipientID, status); err != nil {
		return fmt.Errorf("failed to create status: %w", err)
	}

	return nil
}

// AdvanceStatus moves a status row forward, never backwards. Returns whether
// the row actually changed, so duplicate receipts stay silent.
func (r *postgresRepository) AdvanceStatus(ctx context.Context, messageID, recipientID int64, status string) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE private_message_status
		SET status = $3, updated_at = NOW()
		WHERE message_id = $1 AND user_id = $2
		  AND `+statusRankSQL+` < `+statusRankSQL,
		"status", "$3")

	res, err := r.db.ExecContext(ctx, query, messageID, recipientID, status)
	if err != nil {
		return false, fmt.Errorf("failed to advance status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to advance status: %w", err)
	}

	return rows > 0, nil
}

// AdvanceConversationStatuses advances every lagging status row the
// recipient holds in a conversation and returns the affected message IDs.
// Repeating the call is a no-op.
func (r *postgresRepository) AdvanceConversationStatuses(ctx context.Context, conversationID, recipientID int64, status string) ([]int64, error) {
	query := fmt.Sprintf(`
		UPDATE private_message_status s
		SET status = $3, updated_at = NOW()
		FROM private_messages m
		WHERE m.id = s.message_id
		  AND m.conversation_id = $1
		  AND s.user_id = $2
		  AND `+statusRankSQL+` < `+statusRankSQL+`
		RETURNING s.message_id`,
		"s.status", "$3")

	ids := []int64{}
	if err := r.db.SelectContext(ctx, &ids, query, conversationID, recipientID, status); err != nil {
		return nil, fmt.Errorf("failed to advance statuses: %w", err)
	}

	return ids, nil
}

func (r *postgresRepository) UnreadCount(ctx context.Context, conversationID, recipientID int64) (int64, error) {
	var count int64
	query := `
		SELECT COUNT(*)
		FROM private_message_status s
		JOIN private_messages m ON m.id = s.message_id
		WHERE m.conversation_id = $1 AND s.user_id = $2 AND s.status <> 'read'`

	if err := r.db.GetContext(ctx, &count, query, conversationID, recipientID); err != nil {
		return 0, fmt.Errorf("failed to count unread: %w", err)
	}

	return count, nil
}

func (r *postgresRepository) TotalUnreadCount(ctx context.Context, recipientID int64) (int64, error) {
	var count int64
	query := `
		SELECT COUNT(*)
		FROM private_message_status s
		WHERE s.user_id = $1 AND s.status <> 'read'`

	if err := r.db.GetContext(ctx, &count, query, recipientID); err != nil {
		return 0, fmt.Errorf("failed to count unread: %w", err)
	}

	return count, nil
}
