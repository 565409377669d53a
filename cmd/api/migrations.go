// cmd/api/migrations.go
// Schema bootstrap. Idempotent: every statement is IF NOT EXISTS, so
// restarts and redeploys are safe.

package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

func runMigrations(db *sqlx.DB, globalRoomName string) error {
	statements := []string{
		// Users are owned by the platform's account service; this table only
		// materializes the columns this service reads and stamps.
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(100) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL UNIQUE,
			avatar_url TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_seen_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS course_enrollments (
			id BIGSERIAL PRIMARY KEY,
			course_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (course_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS chat_rooms (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			type VARCHAR(20) NOT NULL CHECK (type IN ('course', 'global', 'group')),
			is_public BOOLEAN NOT NULL DEFAULT FALSE,
			course_id BIGINT,
			created_by BIGINT NOT NULL,
			last_message_id BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_chat_rooms_course
			ON chat_rooms (course_id) WHERE type = 'course'`,

		`CREATE TABLE IF NOT EXISTS chat_room_members (
			id BIGSERIAL PRIMARY KEY,
			room_id BIGINT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role VARCHAR(20) NOT NULL DEFAULT 'member',
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (room_id, user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_room_members_user
			ON chat_room_members (user_id)`,

		`CREATE TABLE IF NOT EXISTS chat_messages (
			id BIGSERIAL PRIMARY KEY,
			room_id BIGINT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
			sender_id BIGINT NOT NULL REFERENCES users(id),
			content TEXT NOT NULL DEFAULT '',
			type VARCHAR(20) NOT NULL DEFAULT 'text',
			file_url TEXT,
			file_name TEXT,
			file_size BIGINT,
			reply_to BIGINT REFERENCES chat_messages(id),
			is_edited BOOLEAN NOT NULL DEFAULT FALSE,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			edited_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_room
			ON chat_messages (room_id, id DESC)`,

		`CREATE TABLE IF NOT EXISTS chat_reactions (
			id BIGSERIAL PRIMARY KEY,
			message_id BIGINT NOT NULL REFERENCES chat_messages(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type VARCHAR(20) NOT NULL CHECK (type IN ('like', 'love', 'laugh', 'sad', 'angry')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (message_id, user_id)
		)`,

		// Participant pair is stored canonically (a < b); the unique
		// constraint is what makes concurrent first messages converge.
		`CREATE TABLE IF NOT EXISTS private_conversations (
			id BIGSERIAL PRIMARY KEY,
			participant_a BIGINT NOT NULL REFERENCES users(id),
			participant_b BIGINT NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (participant_a, participant_b),
			CHECK (participant_a < participant_b)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_private_conversations_b
			ON private_conversations (participant_b)`,

		`CREATE TABLE IF NOT EXISTS private_conversation_archives (
			conversation_id BIGINT NOT NULL REFERENCES private_conversations(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			archived_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (conversation_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS private_messages (
			id BIGSERIAL PRIMARY KEY,
			conversation_id BIGINT NOT NULL REFERENCES private_conversations(id) ON DELETE CASCADE,
			sender_id BIGINT NOT NULL REFERENCES users(id),
			content TEXT NOT NULL DEFAULT '',
			type VARCHAR(20) NOT NULL DEFAULT 'text',
			file_url TEXT,
			file_name TEXT,
			file_size BIGINT,
			reply_to BIGINT REFERENCES private_messages(id),
			is_edited BOOLEAN NOT NULL DEFAULT FALSE,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			edited_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_private_messages_conversation
			ON private_messages (conversation_id, id DESC)`,

		// One status row per message and recipient; 1:1 means one recipient
		`CREATE TABLE IF NOT EXISTS private_message_status (
			id BIGSERIAL PRIMARY KEY,
			message_id BIGINT NOT NULL REFERENCES private_messages(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			status VARCHAR(20) NOT NULL DEFAULT 'sent' CHECK (status IN ('sent', 'delivered', 'read')),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (message_id, user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_message_status_unread
			ON private_message_status (user_id) WHERE status <> 'read'`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type VARCHAR(50) NOT NULL,
			title VARCHAR(255) NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			data JSONB NOT NULL DEFAULT '{}',
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user
			ON notifications (user_id, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	// Seed the global room everyone implicitly belongs to
	seed := `
		INSERT INTO chat_rooms (name, description, type, is_public, created_by)
		SELECT $1, 'Open discussion for everyone', 'global', TRUE, 0
		WHERE NOT EXISTS (SELECT 1 FROM chat_rooms WHERE type = 'global')`
	if _, err := db.Exec(seed, globalRoomName); err != nil {
		return fmt.Errorf("failed to seed global room: %w", err)
	}

	return nil
}
