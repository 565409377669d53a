// internal/chat/postgres.go
// PostgreSQL implementation of the chat repository

package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL chat repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// ===== Rooms =====

func (r *postgresRepository) CreateRoom(ctx context.Context, room *Room) error {
	query := `
		INSERT INTO chat_rooms (name, description, type, is_public, course_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		room.Name,
		room.Description,
		room.Type,
		room.IsPublic,
		room.CourseID,
		room.CreatedBy,
	).Scan(&room.ID, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	return nil
}

func (r *postgresRepository) GetRoom(ctx context.Context, roomID int64) (*Room, error) {
	var room Room
	query := `
		SELECT r.*,
		       (SELECT COUNT(*) FROM chat_room_members m WHERE m.room_id = r.id) AS member_count
		FROM chat_rooms r
		WHERE r.id = $1`

	err := r.db.GetContext(ctx, &room, query, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	return &room, nil
}

func (r *postgresRepository) GetGlobalRoom(ctx context.Context) (*Room, error) {
	var room Room
	query := `
		SELECT r.*,
		       (SELECT COUNT(*) FROM chat_room_members m WHERE m.room_id = r.id) AS member_count
		FROM chat_rooms r
		WHERE r.type = $1
		ORDER BY r.id
		LIMIT 1`

	err := r.db.GetContext(ctx, &room, query, RoomTypeGlobal)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get global room: %w", err)
	}

	return &room, nil
}

func (r *postgresRepository) GetRoomByCourse(ctx context.Context, courseID int64) (*Room, error) {
	var room Room
	query := `
		SELECT r.*,
		       (SELECT COUNT(*) FROM chat_room_members m WHERE m.room_id = r.id) AS member_count
		FROM chat_rooms r
		WHERE r.type = $1 AND r.course_id = $2`

	err := r.db.GetContext(ctx, &room, query, RoomTypeCourse, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get course room: %w", err)
	}

	return &room, nil
}

func (r *postgresRepository) ListRoomsForUser(ctx context.Context, userID int64) ([]*Room, error) {
	rooms := []*Room{}
	query := `
		SELECT r.*,
		       (SELECT COUNT(*) FROM chat_room_members mc WHERE mc.room_id = r.id) AS member_count
		FROM chat_rooms r
		JOIN chat_room_members m ON m.room_id = r.id
		WHERE m.user_id = $1
		ORDER BY r.updated_at DESC`

	if err := r.db.SelectContext(ctx, &rooms, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	return rooms, nil
}

func (r *postgresRepository) ListPublicRooms(ctx context.Context) ([]*Room, error) {
	rooms := []*Room{}
	query := `
		SELECT r.*,
		       (SELECT COUNT(*) FROM chat_room_members m WHERE m.room_id = r.id) AS member_count
		FROM chat_rooms r
		WHERE r.is_public = TRUE
		ORDER BY r.created_at DESC`

	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("failed to list public rooms: %w", err)
	}

	return rooms, nil
}

// SetLastMessage stamps a room with its newest message. ListRoomsForUser
// orders by updated_at, so this is what floats an active room to the top.
func (r *postgresRepository) SetLastMessage(ctx context.Context, roomID, messageID int64) error {
	query := `UPDATE chat_rooms SET last_message_id = $2, updated_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, roomID, messageID); err != nil {
		return fmt.Errorf("failed to set last message: %w", err)
	}

	return nil
}

// ===== Memberships =====

func (r *postgresRepository) AddMember(ctx context.Context, roomID, userID int64, role string) error {
	// Idempotent: re-joining an already joined room is a no-op
	query := `
		INSERT INTO chat_room_members (room_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, user_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, roomID, userID, role); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	return nil
}

func (r *postgresRepository) RemoveMember(ctx context.Context, roomID, userID int64) error {
	query := `DELETE FROM chat_room_members WHERE room_id = $1 AND user_id = $2`

	if _, err := r.db.ExecContext(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return nil
}

func (r *postgresRepository) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM chat_room_members WHERE room_id = $1 AND user_id = $2)`

	if err := r.db.GetContext(ctx, &exists, query, roomID, userID); err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}

	return exists, nil
}

func (r *postgresRepository) ListMembers(ctx context.Context, roomID int64) ([]*UserInfo, error) {
	members := []*UserInfo{}
	query := `
		SELECT u.id, u.username, u.avatar_url, u.is_active
		FROM users u
		JOIN chat_room_members m ON m.user_id = u.id
		WHERE m.room_id = $1
		ORDER BY u.username`

	if err := r.db.SelectContext(ctx, &members, query, roomID); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	return members, nil
}

// ===== Messages =====

func (r *postgresRepository) CreateMessage(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO chat_messages (room_id, sender_id, content, type, file_url, file_name, file_size, reply_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		msg.RoomID,
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
		SELECT m.*, u.username AS sender_name, u.avatar_url AS sender_avatar
		FROM chat_messages m
		JOIN users u ON u.id = m.sender_id
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

func (r *postgresRepository) ListMessages(ctx context.Context, roomID int64, q HistoryQuery) ([]*Message, error) {
	messages := []*Message{}
	query := `
		SELECT m.*, u.username AS sender_name, u.avatar_url AS sender_avatar
		FROM chat_messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.room_id = $1 AND ($2 = 0 OR m.id < $2)
		ORDER BY m.id DESC
		LIMIT $3`

	if err := r.db.SelectContext(ctx, &messages, query, roomID, q.Before, q.Limit); err != nil {
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
		UPDATE chat_messages
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
		UPDATE chat_messages
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
	query := `SELECT EXISTS(SELECT 1 FROM chat_messages WHERE id = $1 AND is_deleted = FALSE)`
	if err := r.db.GetContext(ctx, &exists, query, messageID); err != nil {
		return fmt.Errorf("failed to check message: %w", err)
	}
	if exists {
		return ErrNotSender
	}
	return ErrMessageNotFound
}

// ===== Reactions =====

// ToggleReaction applies the three-way reaction toggle. A user holds at most
// one reaction per message:
//   - same type again   -> row deleted ("removed")
//   - different type    -> row retargeted ("updated")
//   - no existing row   -> row inserted ("added")
func (r *postgresRepository) ToggleReaction(ctx context.Context, messageID, userID int64, reactionType string) (string, error) {
	del := `DELETE FROM chat_reactions WHERE message_id = $1 AND user_id = $2 AND type = $3`

	res, err := r.db.ExecContext(ctx, del, messageID, userID, reactionType)
	if err != nil {
		return "", fmt.Errorf("failed to toggle reaction: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows > 0 {
		return ReactionRemoved, nil
	}

	// xmax = 0 only on freshly inserted rows, so one round trip tells us
	// whether the upsert added or retargeted.
	upsert := `
		INSERT INTO chat_reactions (message_id, user_id, type)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id)
		DO UPDATE SET type = EXCLUDED.type, created_at = NOW()
		RETURNING (xmax = 0) AS inserted`

	var inserted bool
	if err := r.db.QueryRowContext(ctx, upsert, messageID, userID, reactionType).Scan(&inserted); err != nil {
		return "", fmt.Errorf("failed to toggle reaction: %w", err)
	}

	if inserted {
		return ReactionAdded, nil
	}
	return ReactionUpdated, nil
}

func (r *postgresRepository) ReactionCounts(ctx context.Context, messageID int64) (map[string]int, error) {
	rows := []struct {
		Type  string `db:"type"`
		Count int    `db:"count"`
	}{}
	query := `
		SELECT type, COUNT(*) AS count
		FROM chat_reactions
		WHERE message_id = $1
		GROUP BY type`

	if err := r.db.SelectContext(ctx, &rows, query, messageID); err != nil {
		return nil, fmt.Errorf("failed to count reactions: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Type] = row.Count
	}

	return counts, nil
}

func (r *postgresRepository) ListReactions(ctx context.Context, messageID int64) ([]*Reaction, error) {
	reactions := []*Reaction{}
	query := `
		SELECT id, message_id, user_id, type, created_at
		FROM chat_reactions
		WHERE message_id = $1
		ORDER BY created_at`

	if err := r.db.SelectContext(ctx, &reactions, query, messageID); err != nil {
		return nil, fmt.Errorf("failed to list reactions: %w", err)
	}

	return reactions, nil
}

// ===== Users =====

func (r *postgresRepository) GetUserInfo(ctx context.Context, userID int64) (*UserInfo, error) {
	var user UserInfo
	query := `SELECT id, username, avatar_url, is_active FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, &user, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (r *postgresRepository) IsEnrolled(ctx context.Context, courseID, userID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM course_enrollments WHERE course_id = $1 AND user_id = $2)`

	if err := r.db.GetContext(ctx, &exists, query, courseID, userID); err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}

	return exists, nil
}
