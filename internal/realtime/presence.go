// internal/realtime/presence.go
// Presence persistence: last-seen stamps survive restarts, everything else
// about presence is derived from live sessions in the hub.

package realtime

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PresenceStore persists the durable part of presence
type PresenceStore interface {
	TouchLastSeen(ctx context.Context, userID int64) error
}

type sqlPresenceStore struct {
	db *sqlx.DB
}

// NewPresenceStore creates a PostgreSQL-backed presence store
func NewPresenceStore(db *sqlx.DB) PresenceStore {
	return &sqlPresenceStore{db: db}
}

func (s *sqlPresenceStore) TouchLastSeen(ctx context.Context, userID int64) error {
	query := `UPDATE users SET last_seen_at = NOW() WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}

	return nil
}
