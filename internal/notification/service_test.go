// internal/notification/service_test.go

package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edustack/edustack-realtime/internal/realtime/event"
)

type fakeRepo struct {
	notifications map[int64]*Notification
	nextID        int64
	createErr     error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{notifications: make(map[int64]*Notification)}
}

func (f *fakeRepo) Create(_ context.Context, n *Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	n.ID = f.nextID
	f.notifications[n.ID] = n
	return nil
}

func (f *fakeRepo) List(_ context.Context, userID int64, q ListQuery) ([]*Notification, error) {
	var out []*Notification
	for _, n := range f.notifications {
		if n.UserID != userID {
			continue
		}
		if q.UnreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeRepo) MarkRead(_ context.Context, notificationID, userID int64) error {
	n, ok := f.notifications[notificationID]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	n.IsRead = true
	return nil
}

func (f *fakeRepo) MarkAllRead(_ context.Context, userID int64) (int64, error) {
	var count int64
	for _, n := range f.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) UnreadCount(_ context.Context, userID int64) (int64, error) {
	var count int64
	for _, n := range f.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) DeleteReadOlderThan(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

type fakePusher struct {
	pushed map[int64][]event.Event
}

func (p *fakePusher) SendToUser(userID int64, evt event.Event) {
	if p.pushed == nil {
		p.pushed = make(map[int64][]event.Event)
	}
	p.pushed[userID] = append(p.pushed[userID], evt)
}

func TestNotifyPersistsThenPushes(t *testing.T) {
	repo := newFakeRepo()
	pusher := &fakePusher{}
	svc := NewService(repo, pusher)

	svc.Notify(context.Background(), 7, TypeRoomInvite, "Added to Math 101", "alice added you", map[string]interface{}{"room_id": int64(3)})

	require.Len(t, repo.notifications, 1)
	require.Len(t, pusher.pushed[7], 1)
	assert.Equal(t, event.TypeNotification, pusher.pushed[7][0].Type)

	count, err := svc.UnreadCount(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestNotifySkipsPushWhenPersistFails(t *testing.T) {
	repo := newFakeRepo()
	repo.createErr = errors.New("db down")
	pusher := &fakePusher{}
	svc := NewService(repo, pusher)

	svc.Notify(context.Background(), 7, TypeSystem, "t", "b", nil)

	assert.Empty(t, pusher.pushed)
}

func TestMarkReadScopedToOwner(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakePusher{})

	svc.Notify(context.Background(), 7, TypeSystem, "t", "b", nil)
	var id int64
	for nid := range repo.notifications {
		id = nid
	}

	assert.ErrorIs(t, svc.MarkRead(context.Background(), id, 8), ErrNotFound)
	assert.NoError(t, svc.MarkRead(context.Background(), id, 7))

	count, err := svc.UnreadCount(context.Background(), 7)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMarkAllRead(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakePusher{})

	for i := 0; i < 3; i++ {
		svc.Notify(context.Background(), 7, TypeSystem, "t", "b", nil)
	}
	svc.Notify(context.Background(), 8, TypeSystem, "t", "b", nil)

	marked, err := svc.MarkAllRead(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), marked)

	count, err := svc.UnreadCount(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "other users' notifications untouched")
}
