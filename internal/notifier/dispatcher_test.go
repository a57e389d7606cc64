package notifier

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/byteboard/internal/docstore"
	"github.com/anonto42/byteboard/internal/logger"
	"github.com/anonto42/byteboard/internal/models"
)

type fakeChannel struct {
	name string
	err  error

	mu   sync.Mutex
	sent []models.NotificationEvent
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(_ context.Context, ev models.NotificationEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, ev)
	return nil
}

func (c *fakeChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type switchPerms struct {
	mu      sync.Mutex
	granted map[string]bool
}

func (p *switchPerms) set(userID string, granted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.granted == nil {
		p.granted = make(map[string]bool)
	}
	p.granted[userID] = granted
}

func (p *switchPerms) NativeGranted(_ context.Context, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted[userID]
}

func TestDispatcher_RoutesByPermissionPerEvent(t *testing.T) {
	native := &fakeChannel{name: "push"}
	inApp := &fakeChannel{name: "in-app"}
	perms := &switchPerms{}
	d := NewDispatcher(native, inApp, perms, logger.Discard())
	ctx := context.Background()

	require.NoError(t, d.Deliver(ctx, LikeEvent("owner", "r1", "Ann", time.Now())))
	assert.Equal(t, 0, native.count())
	assert.Equal(t, 1, inApp.count())

	// Granting mid-session takes effect on the next event.
	perms.set("owner", true)
	require.NoError(t, d.Deliver(ctx, LikeEvent("owner", "r2", "Bob", time.Now())))
	assert.Equal(t, 1, native.count())
	assert.Equal(t, 1, inApp.count())

	perms.set("owner", false)
	require.NoError(t, d.Deliver(ctx, LikeEvent("owner", "r3", "Cid", time.Now())))
	assert.Equal(t, 1, native.count())
	assert.Equal(t, 2, inApp.count())
}

func TestDispatcher_NativeFailureFallsBack(t *testing.T) {
	native := &fakeChannel{name: "push", err: errors.New("fcm down")}
	inApp := &fakeChannel{name: "in-app"}
	perms := &switchPerms{}
	perms.set("owner", true)
	d := NewDispatcher(native, inApp, perms, logger.Discard())

	require.NoError(t, d.Deliver(context.Background(), SaveEvent("owner", "r1", "Ann", time.Now())))
	assert.Equal(t, 1, inApp.count())
}

func TestDispatcher_InAppFailureIsReturned(t *testing.T) {
	inApp := &fakeChannel{name: "in-app", err: errors.New("db down")}
	d := NewDispatcher(nil, inApp, nil, logger.Discard())

	err := d.Deliver(context.Background(), SaveEvent("owner", "r1", "Ann", time.Now()))
	assert.ErrorContains(t, err, "db down")
	assert.False(t, d.NativeGranted(context.Background(), "owner"))
}

type fakeTokens struct {
	tokens  map[string]string
	revoked []string
}

func (f *fakeTokens) Token(userID string) (string, bool, error) {
	tok, ok := f.tokens[userID]
	return tok, ok, nil
}

func (f *fakeTokens) Revoke(userID string) error {
	delete(f.tokens, userID)
	f.revoked = append(f.revoked, userID)
	return nil
}

type fakeSender struct {
	err  error
	sent []*messaging.Message
}

func (f *fakeSender) Send(_ context.Context, msg *messaging.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "projects/test/messages/1", nil
}

func TestPushChannel_Send(t *testing.T) {
	tokens := &fakeTokens{tokens: map[string]string{"owner": "device-token"}}
	sender := &fakeSender{}
	ch := NewPushChannel(sender, tokens, logger.Discard())

	ev := MilestoneEvent("owner", 4, "Great work", time.Now())
	require.NoError(t, ch.Send(context.Background(), ev))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "device-token", msg.Token)
	assert.Equal(t, MilestoneTitle, msg.Notification.Title)
	assert.Equal(t, "Great work! You now have 4 total likes on your posts.", msg.Notification.Body)
	assert.Equal(t, "milestone", msg.Data["kind"])
	assert.Equal(t, "4", msg.Data["total"])
	assert.Equal(t, ev.ID, msg.Data["event_id"])
}

func TestPushChannel_NoDevice(t *testing.T) {
	ch := NewPushChannel(&fakeSender{}, &fakeTokens{tokens: map[string]string{}}, logger.Discard())
	err := ch.Send(context.Background(), LikeEvent("owner", "r1", "Ann", time.Now()))
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestPushChannel_SendError(t *testing.T) {
	tokens := &fakeTokens{tokens: map[string]string{"owner": "device-token"}}
	ch := NewPushChannel(&fakeSender{err: errors.New("quota")}, tokens, logger.Discard())

	err := ch.Send(context.Background(), LikeEvent("owner", "r1", "Ann", time.Now()))
	assert.ErrorContains(t, err, "quota")
	assert.Empty(t, tokens.revoked, "only unregistered tokens are revoked")
}

func TestTokenPermissions(t *testing.T) {
	perms := NewTokenPermissions(&fakeTokens{tokens: map[string]string{"a": "tok"}}, logger.Discard())
	assert.True(t, perms.NativeGranted(context.Background(), "a"))
	assert.False(t, perms.NativeGranted(context.Background(), "b"))
}

type fakeInbox struct {
	created []*models.Notification
	err     error
}

func (f *fakeInbox) CreateNotification(n *models.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, n)
	return nil
}

func (f *fakeInbox) GetByRecipientID(string, int, int) ([]models.Notification, int64, error) {
	return nil, 0, nil
}

func (f *fakeInbox) GetGrouped(string) (today, yesterday, thisWeek, older []models.Notification, err error) {
	return nil, nil, nil, nil, nil
}

func (f *fakeInbox) GetUnreadCount(string) (int64, error) { return 0, nil }

func (f *fakeInbox) MarkAsRead(string, uint) error { return nil }

func (f *fakeInbox) MarkAllAsRead(string) error { return nil }

type fakeHub struct {
	published map[string][]*models.Notification
}

func (h *fakeHub) Publish(userID string, n *models.Notification) {
	if h.published == nil {
		h.published = make(map[string][]*models.Notification)
	}
	h.published[userID] = append(h.published[userID], n)
}

func TestInAppChannel_StoresAndPublishes(t *testing.T) {
	inbox := &fakeInbox{}
	hub := &fakeHub{}
	ch := NewInAppChannel(inbox, hub, logger.Discard())

	ev := LikeEvent("owner", "r1", "Ann", time.Now())
	require.NoError(t, ch.Send(context.Background(), ev))

	require.Len(t, inbox.created, 1)
	assert.Equal(t, ev.ID, inbox.created[0].EventID)
	assert.Equal(t, "owner", inbox.created[0].RecipientID)
	assert.Equal(t, "Ann liked your post.", inbox.created[0].Message)
	assert.Len(t, hub.published["owner"], 1)
}

func TestInAppChannel_SystemEventsSkipInbox(t *testing.T) {
	inbox := &fakeInbox{}
	hub := &fakeHub{}
	ch := NewInAppChannel(inbox, hub, logger.Discard())

	require.NoError(t, ch.Send(context.Background(), SelfTestEvent("owner", time.Now())))
	assert.Empty(t, inbox.created)
	assert.Len(t, hub.published["owner"], 1)
}

func TestInAppChannel_InboxFailure(t *testing.T) {
	hub := &fakeHub{}
	ch := NewInAppChannel(&fakeInbox{err: errors.New("db down")}, hub, logger.Discard())

	err := ch.Send(context.Background(), LikeEvent("owner", "r1", "Ann", time.Now()))
	assert.Error(t, err)
	assert.Empty(t, hub.published)
}

func TestManager_RefCountsSessions(t *testing.T) {
	store := docstore.NewMemoryStore()
	defer store.Close()
	rec := newRecorder()
	perms := &switchPerms{}
	perms.set("owner", true)

	n := New(store, newMemCursors(), rec, Config{}, rand.New(rand.NewPCG(1, 1)), logger.Discard())
	m := NewManager(n, rec, perms, ManagerConfig{}, logger.Discard())
	defer m.Close()

	require.NoError(t, m.Acquire("owner"))
	require.NoError(t, m.Acquire("owner"))
	assert.Equal(t, 2, m.Sessions("owner"))
	assert.Equal(t, 2, store.Calls(docstore.OpSubscribe), "second session shares the subscription")

	sub := m.sessions["owner"].sub
	m.Release("owner")
	assert.Equal(t, 1, m.Sessions("owner"))
	select {
	case <-sub.Done():
		t.Fatal("subscription stopped while a session is open")
	default:
	}

	m.Release("owner")
	assert.Equal(t, 0, m.Sessions("owner"))
	<-sub.Done()

	m.Release("owner")
	rec.none(t)
}

func TestManager_HintAndSelfTest(t *testing.T) {
	store := docstore.NewMemoryStore()
	defer store.Close()
	rec := newRecorder()

	n := New(store, newMemCursors(), rec, Config{}, rand.New(rand.NewPCG(1, 1)), logger.Discard())
	m := NewManager(n, rec, &switchPerms{}, ManagerConfig{SelfTestDelay: 20 * time.Millisecond}, logger.Discard())
	defer m.Close()

	require.NoError(t, m.Acquire("owner"))

	hint := rec.next(t)
	assert.Equal(t, HintBody, hint.Body)
	assert.Equal(t, models.NotificationSystem, hint.Kind)

	selfTest := rec.next(t)
	assert.Equal(t, SelfTestTitle, selfTest.Title)
	assert.Equal(t, SelfTestBody, selfTest.Body)

	// A second session for the same owner gets neither.
	require.NoError(t, m.Acquire("owner"))
	rec.none(t)
}

func TestManager_ReleaseBeforeSelfTestCancelsIt(t *testing.T) {
	store := docstore.NewMemoryStore()
	defer store.Close()
	rec := newRecorder()
	perms := &switchPerms{}
	perms.set("owner", true)

	n := New(store, newMemCursors(), rec, Config{}, rand.New(rand.NewPCG(1, 1)), logger.Discard())
	m := NewManager(n, rec, perms, ManagerConfig{SelfTestDelay: 50 * time.Millisecond}, logger.Discard())
	defer m.Close()

	require.NoError(t, m.Acquire("owner"))
	m.Release("owner")
	rec.none(t)
}

// gatedStore holds its first Subscribe call until release is closed.
type gatedStore struct {
	*docstore.MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		MemoryStore: docstore.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (g *gatedStore) Subscribe(ctx context.Context, collection string, filters ...docstore.Filter) (docstore.Subscription, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.MemoryStore.Subscribe(ctx, collection, filters...)
}

func acquireAsync(m *Manager, ownerID string) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- m.Acquire(ownerID) }()
	return errc
}

func waitErr(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Acquire")
		return nil
	}
}

func TestManager_SlowSubscribeDoesNotBlockOtherOwners(t *testing.T) {
	store := newGatedStore()
	defer store.Close()
	rec := newRecorder()
	perms := &switchPerms{}
	perms.set("slow", true)
	perms.set("fast", true)

	n := New(store, newMemCursors(), rec, Config{}, rand.New(rand.NewPCG(1, 1)), logger.Discard())
	m := NewManager(n, rec, perms, ManagerConfig{}, logger.Discard())
	defer m.Close()

	slow := acquireAsync(m, "slow")
	<-store.entered

	require.NoError(t, waitErr(t, acquireAsync(m, "fast")))
	assert.Equal(t, 1, m.Sessions("fast"))

	// A second session for the pending owner waits for the first subscription.
	second := acquireAsync(m, "slow")
	select {
	case err := <-second:
		t.Fatalf("second session returned before the subscription was ready: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	require.NoError(t, waitErr(t, slow))
	require.NoError(t, waitErr(t, second))
	assert.Equal(t, 2, m.Sessions("slow"))
	assert.Equal(t, 4, store.Calls(docstore.OpSubscribe))
}

func TestManager_ReleaseWhileSubscribing(t *testing.T) {
	store := newGatedStore()
	defer store.Close()
	rec := newRecorder()
	perms := &switchPerms{}
	perms.set("owner", true)

	n := New(store, newMemCursors(), rec, Config{}, rand.New(rand.NewPCG(1, 1)), logger.Discard())
	m := NewManager(n, rec, perms, ManagerConfig{SelfTestDelay: 20 * time.Millisecond}, logger.Discard())
	defer m.Close()

	errc := acquireAsync(m, "owner")
	<-store.entered
	m.Release("owner")
	assert.Equal(t, 0, m.Sessions("owner"))

	close(store.release)
	require.NoError(t, waitErr(t, errc))
	assert.Equal(t, 0, m.Sessions("owner"))
	rec.none(t)
}
