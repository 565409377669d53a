// internal/notification/service.go
// Notification dispatch: persist first, then push to live sessions

package notification

import (
	"context"
	"log"
	"time"

	"github.com/edustack/edustack-realtime/internal/realtime/event"
)

// Pusher delivers an event to a user's live sessions. Implemented by the
// realtime hub.
type Pusher interface {
	SendToUser(userID int64, evt event.Event)
}

// Service defines notification operations
type Service interface {
	Notify(ctx context.Context, userID int64, notifType, title, body string, data map[string]interface{})
	List(ctx context.Context, userID int64, q ListQuery) ([]*Notification, error)
	MarkRead(ctx context.Context, notificationID, userID int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
}

type service struct {
	repo   Repository
	pusher Pusher
}

// NewService creates a new notification service
func NewService(repo Repository, pusher Pusher) Service {
	return &service{repo: repo, pusher: pusher}
}

// Notify persists a notification and pushes it to the recipient's sessions.
// Persistence failure skips the push: the inbox is the record, the event is
// best-effort.
func (s *service) Notify(ctx context.Context, userID int64, notifType, title, body string, data map[string]interface{}) {
	n := &Notification{
		UserID: userID,
		Type:   notifType,
		Title:  title,
		Body:   body,
	}
	if data != nil {
		n.Data = event.MustMarshal(data)
	}

	if err := s.repo.Create(ctx, n); err != nil {
		log.Printf("notification: persist failed for user %d: %v", userID, err)
		return
	}

	if s.pusher != nil {
		s.pusher.SendToUser(userID, event.New(event.TypeNotification, n))
	}
}

func (s *service) List(ctx context.Context, userID int64, q ListQuery) ([]*Notification, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return s.repo.List(ctx, userID, q)
}

func (s *service) MarkRead(ctx context.Context, notificationID, userID int64) error {
	return s.repo.MarkRead(ctx, notificationID, userID)
}

func (s *service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *service) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

// Janitor prunes old read notifications in the background
type Janitor struct {
	repo     Repository
	interval time.Duration
	maxAge   time.Duration
	done     chan struct{}
}

// NewJanitor creates a notification janitor
func NewJanitor(repo Repository, interval, maxAge time.Duration) *Janitor {
	return &Janitor{
		repo:     repo,
		interval: interval,
		maxAge:   maxAge,
		done:     make(chan struct{}),
	}
}

// Start runs the prune loop until Stop is called
func (j *Janitor) Start() {
	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				pruned, err := j.repo.DeleteReadOlderThan(ctx, j.maxAge)
				cancel()
				if err != nil {
					log.Printf("notification: prune failed: %v", err)
					continue
				}
				if pruned > 0 {
					log.Printf("notification: pruned %d read notifications", pruned)
				}
			case <-j.done:
				return
			}
		}
	}()
}

// Stop halts the prune loop
func (j *Janitor) Stop() {
	close(j.done)
}
