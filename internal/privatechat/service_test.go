// internal/privatechat/service_test.go

package privatechat

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edustack/edustack-realtime/internal/realtime/event"
)

// fakeRepo is an in-memory Repository for service tests
type fakeRepo struct {
	conversations map[int64]*Conversation
	pairs         map[[2]int64]int64 // canonical pair -> conversation ID
	archives      map[[2]int64]bool  // (conversationID, userID)
	messages      map[int64]*Message
	statuses      map[int64]map[int64]string // messageID -> userID -> status
	nextID        int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		conversations: make(map[int64]*Conversation),
		pairs:         make(map[[2]int64]int64),
		archives:      make(map[[2]int64]bool),
		messages:      make(map[int64]*Message),
		statuses:      make(map[int64]map[int64]string),
	}
}

func (f *fakeRepo) id() int64 {
	f.nextID++
	return f.nextID
}

// rank mirrors the ordering statusRankSQL applies in the real repository
func rank(s string) int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

func (f *fakeRepo) FindOrCreateConversation(_ context.Context, userA, userB int64) (*Conversation, bool, error) {
	a, b := canonicalPair(userA, userB)
	if id, ok := f.pairs[[2]int64{a, b}]; ok {
		return f.conversations[id], false, nil
	}
	conv := &Conversation{ID: f.id(), ParticipantA: a, ParticipantB: b}
	f.conversations[conv.ID] = conv
	f.pairs[[2]int64{a, b}] = conv.ID
	return conv, true, nil
}

func (f *fakeRepo) GetConversation(_ context.Context, conversationID int64) (*Conversation, error) {
	conv, ok := f.conversations[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

func (f *fakeRepo) ListConversations(_ context.Context, userID int64, archived bool) ([]*Conversation, error) {
	var out []*Conversation
	for _, conv := range f.conversations {
		if !conv.HasParticipant(userID) {
			continue
		}
		if f.archives[[2]int64{conv.ID, userID}] != archived {
			continue
		}
		out = append(out, conv)
	}
	return out, nil
}

func (f *fakeRepo) TouchConversation(_ context.Context, _ int64) error { return nil }

func (f *fakeRepo) SetArchived(_ context.Context, conversationID, userID int64, archived bool) error {
	if archived {
		f.archives[[2]int64{conversationID, userID}] = true
	} else {
		delete(f.archives, [2]int64{conversationID, userID})
	}
	return nil
}

func (f *fakeRepo) CreateMessage(_ context.Context, msg *Message) error {
	msg.ID = f.id()
	f.messages[msg.ID] = msg
	return nil
}

func (f *fakeRepo) GetMessage(_ context.Context, messageID int64) (*Message, error) {
	msg, ok := f.messages[messageID]
	if !ok {
		return nil, ErrMessageNotFound
	}
	return msg, nil
}

func (f *fakeRepo) ListMessages(_ context.Context, conversationID int64, _ HistoryQuery) ([]*Message, error) {
	var out []*Message
	for _, msg := range f.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateMessageContent(_ context.Context, messageID, senderID int64, content string) (*Message, error) {
	msg, ok := f.messages[messageID]
	if !ok || msg.IsDeleted {
		return nil, ErrMessageNotFound
	}
	if msg.SenderID != senderID {
		return nil, ErrNotSender
	}
	msg.Content = content
	msg.IsEdited = true
	return msg, nil
}

func (f *fakeRepo) SoftDeleteMessage(_ context.Context, messageID, senderID int64) error {
	msg, ok := f.messages[messageID]
	if !ok || msg.IsDeleted || msg.SenderID != senderID {
		return ErrMessageNotFound
	}
	msg.IsDeleted = true
	msg.Content = ""
	return nil
}

func (f *fakeRepo) CreateStatus(_ context.Context, messageID, recipientID int64, status string) error {
	if f.statuses[messageID] == nil {
		f.statuses[messageID] = make(map[int64]string)
	}
	if _, ok := f.statuses[messageID][recipientID]; !ok {
		f.statuses[messageID][recipientID] = status
	}
	return nil
}

func (f *fakeRepo) AdvanceStatus(_ context.Context, messageID, recipientID int64, status string) (bool, error) {
	current, ok := f.statuses[messageID][recipientID]
	if !ok || rank(current) >= rank(status) {
		return false, nil
	}
	f.statuses[messageID][recipientID] = status
	return true, nil
}

func (f *fakeRepo) AdvanceConversationStatuses(_ context.Context, conversationID, recipientID int64, status string) ([]int64, error) {
	var ids []int64
	for msgID, byUser := range f.statuses {
		msg := f.messages[msgID]
		if msg == nil || msg.ConversationID != conversationID {
			continue
		}
		current, ok := byUser[recipientID]
		if !ok || rank(current) >= rank(status) {
			continue
		}
		byUser[recipientID] = status
		ids = append(ids, msgID)
	}
	return ids, nil
}

func (f *fakeRepo) UnreadCount(_ context.Context, conversationID, recipientID int64) (int64, error) {
	var count int64
	for msgID, byUser := range f.statuses {
		msg := f.messages[msgID]
		if msg == nil || msg.ConversationID != conversationID {
			continue
		}
		if s, ok := byUser[recipientID]; ok && s != StatusRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) TotalUnreadCount(_ context.Context, recipientID int64) (int64, error) {
	var count int64
	for _, byUser := range f.statuses {
		if s, ok := byUser[recipientID]; ok && s != StatusRead {
			count++
		}
	}
	return count, nil
}

// fakeBroadcaster records per-user events and fakes presence
type fakeBroadcaster struct {
	events map[int64][]event.Event
	online map[int64]bool
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{
		events: make(map[int64][]event.Event),
		online: make(map[int64]bool),
	}
}

func (b *fakeBroadcaster) SendToUser(userID int64, evt event.Event) {
	b.events[userID] = append(b.events[userID], evt)
}

func (b *fakeBroadcaster) IsUserOnline(userID int64) bool {
	return b.online[userID]
}

func (b *fakeBroadcaster) eventsOfType(userID int64, t event.Type) []event.Event {
	var out []event.Event
	for _, evt := range b.events[userID] {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

type fakeNotifier struct {
	recipients []int64
}

func (n *fakeNotifier) Notify(_ context.Context, userID int64, _, _, _ string, _ map[string]interface{}) {
	n.recipients = append(n.recipients, userID)
}

func newTestService(repo *fakeRepo, broadcaster *fakeBroadcaster, notifier *fakeNotifier) Service {
	return NewService(repo, broadcaster, notifier, nil, 0, 4000, 100)
}

func TestCanonicalPairOrdering(t *testing.T) {
	a, b := canonicalPair(9, 3)
	assert.Equal(t, int64(3), a)
	assert.Equal(t, int64(9), b)

	a, b = canonicalPair(3, 9)
	assert.Equal(t, int64(3), a)
	assert.Equal(t, int64(9), b)
}

func TestStartConversationConvergesForBothSides(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeBroadcaster(), &fakeNotifier{})

	first, err := svc.StartConversation(context.Background(), 9, 3)
	require.NoError(t, err)

	second, err := svc.StartConversation(context.Background(), 3, 9)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.conversations, 1)
}

func TestStartConversationWithSelfRejected(t *testing.T) {
	svc := newTestService(newFakeRepo(), newFakeBroadcaster(), &fakeNotifier{})

	_, err := svc.StartConversation(context.Background(), 5, 5)
	assert.ErrorIs(t, err, ErrSelfConversation)
}

func TestSendMessageToOfflineRecipient(t *testing.T) {
	repo := newFakeRepo()
	broadcaster := newFakeBroadcaster()
	notifier := &fakeNotifier{}
	svc := newTestService(repo, broadcaster, notifier)

	conv, err := svc.StartConversation(context.Background(), 1, 2)
	require.NoError(t, err)

	msg, err := svc.SendMessage(context.Background(), conv.ID, 1, &SendMessageRequest{Content: "hello"})
	require.NoError(t, err)

	// Recipient offline: status stays sent, notification fired
	assert.Equal(t, StatusSent, msg.Status)
	assert.Equal(t, StatusSent, repo.statuses[msg.ID][2])
	assert.Equal(t, []int64{2}, notifier.recipients)

	// Both sides still get the wire event for when they reconnect a session
	assert.Len(t, broadcaster.eventsOfType(2, event.TypeNewPrivateMessage), 1)
	assert.Len(t, broadcaster.eventsOfType(1, event.TypeNewPrivateMessage), 1)
}

func TestSendMessageToOnlineRecipientDelivers(t *testing.T) {
	repo := newFakeRepo()
	broadcaster := newFakeBroadcaster()
	broadcaster.online[2] = true
	notifier := &fakeNotifier{}
	svc := newTestService(repo, broadcaster, notifier)

	conv, err := svc.StartConversation(context.Background(), 1, 2)
	require.NoError(t, err)

	msg, err := svc.SendMessage(context.Background(), conv.ID, 1, &SendMessageRequest{Content: "hello"})
	require.NoError(t, err)

	assert.Equal(t, StatusDelivered, msg.Status)
	assert.Equal(t, StatusDelivered, repo.statuses[msg.ID][2])

	// No offline notification, but the sender sees the delivery receipt
	assert.Empty(t, notifier.recipients)
	assert.Len(t, broadcaster.eventsOfType(1, event.TypeMessageStatus), 1)
}

func TestSendMessageRequiresParticipation(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeBroadcaster(), &fakeNotifier{})

	conv, err := svc.StartConversation(context.Background(), 1, 2)
	require.NoError(t, err)

	_, err = svc.SendMessage(context.Background(), conv.ID, 3, &SendMessageRequest{Content: "intrude"})
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestSendMessageValidatesReplyTarget(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeBroadcaster(), &fakeNotifier{})

	conv, err := svc.StartConversation(context.Background(), 1, 2)
	require.NoError(t, err)
	other, err := svc.StartConversation(context.Background(), 1, 3)
	require.NoError(t, err)

	parent, err := svc.SendMessage(context.Background(), conv.ID, 1, &SendMessageRequest{Content: "parent"})
	require.NoError(t, err)
	foreign, err := svc.SendMessage(context.Background(), other.ID, 1, &SendMessageRequest{Content: "elsewhere"})
	require.NoError(t, err)

	missing := int64(9999)
	_, err = svc.SendMessage(context.Background(), conv.ID, 2, &SendMessageRequest{Content: "r", ReplyTo: &missing})
	assert.ErrorIs(t, err, ErrInvalidReply)

	// Replies cannot cross conversations
	_, err = svc.SendMessage(context.Background(), conv.ID, 2, &SendMessageRequest{Content: "r", ReplyTo: &foreign.ID})
	assert.ErrorIs(t, err, ErrInvalidReply)

	reply, err := svc.SendMessage(context.Background(), conv.ID, 2, &SendMessageRequest{Content: "r", ReplyTo: &parent.ID})
	require.NoError(t, err)
	assert.Equal(t, parent.ID, *reply.ReplyTo)
}

func TestSendMessageTypeValidation(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeBroadcaster(), &fakeNotifier{})

	conv, err := svc.StartConversation(context.Background(), 1, 2)
	require.NoError(t, err)

	// Voice and video notes are first-class message types
	for _, typ := range []string{"voice", "video"} {
		msg, err := svc.SendMessage(context.Background(), conv.ID, 1, &SendMessageRequest{Content: "note", Type: typ})
		require.NoError(t, err, typ)
		assert.Equal(t, typ, msg.Type)
	}

	_, err = svc.SendMessage(context.Background(), conv.ID, 1, &SendMessageRequest{Content: "x", Type: "hologram"})
	assert.ErrorIs(t, err, ErrInvalidMessageType)
}

func TestEditMessageOnlyBySender(t *testing.T) {
	repo := newFakeRepo()
	broadcaster := newFakeBroadcaster()
	svc := newTestService(repo, broadcaster, &fakeNotifier{})

	conv, err := svc.StartConversation(context.Background(), 1, 2)
	require.NoError(t, err)

	msg, err := svc.SendMessage(context.Background(), conv.ID, 1, &SendMessageRequest{Content: "typo"})
	require.NoError(t, err)

	_, err = svc.EditMessage(context.Background(), msg.ID, 2, "hijacked")
	assert.ErrorIs(t, err, ErrNotSender)

	edited, err := svc.EditMessage(context.Background(), msg.ID, 1, "fixed")
	require.NoError(t, err)
	assert.Equal(t, "fixed", edited.Content)
	assert.True(t, edited.IsEdited)

	// Both participants see the edit on the wire
	assert.Len(t, broadcaster.eventsOfType(1, event.TypeMessageEdited), 1)
	assert.Len(t, broadcaster.eventsOfType(2, event.TypeMessageEdited), 1)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	broadcaster := newFakeBroadcaster()
	svc := newTestService(repo, broadcaster, &fakeNotifier{})

	conv, err := svc.StartConversation(context.Background(), 1, 2)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = svc.SendMessage(context.Background(), conv.ID, 1, &SendMessageRequest{Content: "msg"})
		require.NoError(t, err)
	}

	marked, err := svc.MarkRead(context.Background(), conv.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, marked)

	// The sender got exactly one read receipt covering all three messages
	receipts := broadcaster.eventsOfType(1, event.TypeMessageStatus)
	require.Len(t, receipts, 1)

	// Second call finds nothing to advance and stays silent
	marked, err = svc.MarkRead(context.Background(), conv.ID, 2)
	require.NoError(t, err)
	assert.Zero(t, marked)
	assert.Len(t, broadcaster.eventsOfType(1, event.TypeMessageStatus), 1)
}

func TestMarkReadNeverRegresses(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeBroadcaster(), &fakeNotifier{})

	conv, err := svc.StartConversation(context.Background(), 1, 2)
	require.NoError(t, err)

	msg, err := svc.SendMessage(context.Background(), conv.ID, 1, &SendMessageRequest{Content: "msg"})
	require.NoError(t, err)

	_, err = svc.MarkRead(context.Background(), conv.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, StatusRead, repo.statuses[msg.ID][2])

	// A late delivered transition must not downgrade read
	svc.MarkDelivered(context.Background(), 2)
	assert.Equal(t, StatusRead, repo.statuses[msg.ID][2])
}

func TestMarkDeliveredOnConnect(t *testing.T) {
	repo := newFakeRepo()
	broadcaster := newFakeBroadcaster()
	svc := newTestService(repo, broadcaster, &fakeNotifier{})

	conv, err := svc.StartConversation(context.Background(), 1, 2)
	require.NoError(t, err)

	msg, err := svc.SendMessage(context.Background(), conv.ID, 1, &SendMessageRequest{Content: "offline msg"})
	require.NoError(t, err)
	require.Equal(t, StatusSent, repo.statuses[msg.ID][2])

	// Recipient comes online; pending statuses advance and sender is told
	svc.MarkDelivered(context.Background(), 2)
	assert.Equal(t, StatusDelivered, repo.statuses[msg.ID][2])
	assert.Len(t, broadcaster.eventsOfType(1, event.TypeMessageStatus), 1)
}

func TestMarkDeliveredCoversArchivedConversations(t *testing.T) {
	repo := newFakeRepo()
	broadcaster := newFakeBroadcaster()
	svc := newTestService(repo, broadcaster, &fakeNotifier{})

	conv, err := svc.StartConversation(context.Background(), 1, 2)
	require.NoError(t, err)

	// The recipient archived the thread, then a message arrived offline
	require.NoError(t, svc.SetArchived(context.Background(), conv.ID, 2, true))
	msg, err := svc.SendMessage(context.Background(), conv.ID, 1, &SendMessageRequest{Content: "while away"})
	require.NoError(t, err)
	require.Equal(t, StatusSent, repo.statuses[msg.ID][2])

	// Reconnecting still advances the receipt; archival only hides the list
	svc.MarkDelivered(context.Background(), 2)
	assert.Equal(t, StatusDelivered, repo.statuses[msg.ID][2])
	assert.Len(t, broadcaster.eventsOfType(1, event.TypeMessageStatus), 1)
}

func TestArchiveHidesConversationPerUser(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeBroadcaster(), &fakeNotifier{})

	conv, err := svc.StartConversation(context.Background(), 1, 2)
	require.NoError(t, err)

	require.NoError(t, svc.SetArchived(context.Background(), conv.ID, 1, true))

	active, err := svc.ListConversations(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	archived, err := svc.ListConversations(context.Background(), 1, true)
	require.NoError(t, err)
	assert.Len(t, archived, 1)

	// The peer's view is untouched
	peerActive, err := svc.ListConversations(context.Background(), 2, false)
	require.NoError(t, err)
	assert.Len(t, peerActive, 1)
}

func TestPreviewTruncatesOnRuneBoundaries(t *testing.T) {
	short := previewOf(&Message{Content: "hello"})
	assert.Equal(t, "hello", short)

	attachment := previewOf(&Message{})
	assert.Equal(t, "Sent an attachment", attachment)

	// Multibyte content must never split mid-character
	long := previewOf(&Message{Content: strings.Repeat("日", 100)})
	assert.True(t, utf8.ValidString(long))
	assert.Equal(t, strings.Repeat("日", 77)+"...", long)
	assert.Equal(t, 80, utf8.RuneCountInString(long))
}

func TestUnreadCountsFallBackWithoutCache(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeBroadcaster(), &fakeNotifier{})

	conv, err := svc.StartConversation(context.Background(), 1, 2)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = svc.SendMessage(context.Background(), conv.ID, 1, &SendMessageRequest{Content: "m"})
		require.NoError(t, err)
	}

	total, err := svc.TotalUnread(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	got, err := svc.GetConversation(context.Background(), conv.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.UnreadCount)

	_, err = svc.MarkRead(context.Background(), conv.ID, 2)
	require.NoError(t, err)

	total, err = svc.TotalUnread(context.Background(), 2)
	require.NoError(t, err)
	assert.Zero(t, total)
}
