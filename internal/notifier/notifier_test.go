package notifier

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/byteboard/internal/docstore"
	"github.com/anonto42/byteboard/internal/kv"
	"github.com/anonto42/byteboard/internal/logger"
	"github.com/anonto42/byteboard/internal/models"
)

// recorder is a Deliverer that forwards every event to a channel.
type recorder struct {
	events chan models.NotificationEvent
}

func newRecorder() *recorder {
	return &recorder{events: make(chan models.NotificationEvent, 64)}
}

func (r *recorder) Deliver(_ context.Context, ev models.NotificationEvent) error {
	r.events <- ev
	return nil
}

func (r *recorder) next(t *testing.T) models.NotificationEvent {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return models.NotificationEvent{}
	}
}

func (r *recorder) none(t *testing.T) {
	t.Helper()
	select {
	case ev := <-r.events:
		t.Fatalf("unexpected notification: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func setupNotifier(t *testing.T, step int) (*Notifier, *docstore.MemoryStore, *kv.MilestoneCursors, *recorder) {
	t.Helper()

	store := docstore.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	kvStore, err := kv.Open("", logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kvStore.Close() })

	cursors := kv.NewMilestoneCursors(kvStore)
	rec := newRecorder()
	n := New(store, cursors, rec, Config{MilestoneStep: step}, rand.New(rand.NewPCG(3, 5)), logger.Discard())
	return n, store, cursors, rec
}

func addLike(t *testing.T, store docstore.Store, userID, postID, ownerID, name string) {
	t.Helper()
	like := models.Like{UserID: userID, PostID: postID, PostOwnerID: ownerID, LikerName: name, CreatedAt: time.Now()}
	require.NoError(t, store.Set(context.Background(), models.LikesCollection, models.RelationID(userID, postID), like.Fields(), false))
}

func addSave(t *testing.T, store docstore.Store, userID, postID, ownerID, name string) {
	t.Helper()
	save := models.SavedPost{UserID: userID, PostID: postID, PostOwnerID: ownerID, SaverName: name, CreatedAt: time.Now()}
	require.NoError(t, store.Set(context.Background(), models.SavedPostsCollection, models.RelationID(userID, postID), save.Fields(), false))
}

func TestSubscribe_NewActivityOnly(t *testing.T) {
	n, store, _, rec := setupNotifier(t, 100)
	for _, u := range []string{"a", "b", "c"} {
		addLike(t, store, u, "p1", "owner", u)
	}
	addSave(t, store, "a", "p1", "owner", "a")

	sub, err := n.Subscribe(context.Background(), "owner")
	require.NoError(t, err)
	defer sub.Cancel()

	addLike(t, store, "d", "p1", "owner", "Dana")
	ev := rec.next(t)
	assert.Equal(t, models.NotificationLike, ev.Kind)
	assert.Equal(t, "Dana liked your post.", ev.Body)

	addSave(t, store, "e", "p1", "owner", "Eve")
	ev = rec.next(t)
	assert.Equal(t, models.NotificationSave, ev.Kind)
	assert.Equal(t, "Eve saved your post.", ev.Body)

	// Other owners' activity is not ours.
	addLike(t, store, "f", "p9", "someone-else", "Finn")
	rec.none(t)
}

func TestSubscribe_UnlikeAndRelikeInSameSessionNotifiesOnce(t *testing.T) {
	n, store, _, rec := setupNotifier(t, 100)
	sub, err := n.Subscribe(context.Background(), "owner")
	require.NoError(t, err)
	defer sub.Cancel()

	addLike(t, store, "d", "p1", "owner", "Dana")
	rec.next(t)

	require.NoError(t, store.Delete(context.Background(), models.LikesCollection, "d_p1"))
	addLike(t, store, "d", "p1", "owner", "Dana")
	rec.none(t)
}

func TestSubscribe_MilestoneAcrossSessions(t *testing.T) {
	n, store, cursors, rec := setupNotifier(t, 2)
	addLike(t, store, "a", "p1", "owner", "A")

	sub, err := n.Subscribe(context.Background(), "owner")
	require.NoError(t, err)

	addLike(t, store, "b", "p1", "owner", "B")
	assert.Equal(t, models.NotificationLike, rec.next(t).Kind)
	ms := rec.next(t)
	assert.Equal(t, models.NotificationMilestone, ms.Kind)
	assert.Equal(t, 2, ms.Total)

	addLike(t, store, "c", "p2", "owner", "C")
	assert.Equal(t, models.NotificationLike, rec.next(t).Kind)
	rec.none(t)

	addLike(t, store, "d", "p2", "owner", "D")
	assert.Equal(t, models.NotificationLike, rec.next(t).Kind)
	assert.Equal(t, 4, rec.next(t).Total)

	sub.Cancel()
	<-sub.Done()

	cursor, ok, err := cursors.Load("owner")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, cursor)

	// A fresh subscription re-seeds its seen set and does not repeat Milestone(4).
	sub, err = n.Subscribe(context.Background(), "owner")
	require.NoError(t, err)
	defer sub.Cancel()
	rec.none(t)
}

func TestSubscribe_CancelIsIdempotent(t *testing.T) {
	n, store, _, rec := setupNotifier(t, 100)
	sub, err := n.Subscribe(context.Background(), "owner")
	require.NoError(t, err)

	sub.Cancel()
	sub.Cancel()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}

	addLike(t, store, "d", "p1", "owner", "Dana")
	rec.none(t)
}

func TestSubscribe_CancelAfterStoreClosed(t *testing.T) {
	n, store, _, _ := setupNotifier(t, 100)
	sub, err := n.Subscribe(context.Background(), "owner")
	require.NoError(t, err)

	require.NoError(t, store.Close())
	<-sub.Done()
	assert.NotPanics(t, sub.Cancel)
}

func TestSubscribe_Errors(t *testing.T) {
	n, store, _, _ := setupNotifier(t, 100)

	_, err := n.Subscribe(context.Background(), "")
	assert.Error(t, err)

	boom := errors.New("boom")
	store.FailNext(docstore.OpSubscribe, nil)
	store.FailNext(docstore.OpSubscribe, boom)
	_, err = n.Subscribe(context.Background(), "owner")
	assert.ErrorIs(t, err, boom)
}

func TestSubscribe_DeliveryErrorsDoNotStopStream(t *testing.T) {
	store := docstore.NewMemoryStore()
	defer store.Close()

	var mu sync.Mutex
	var bodies []string
	calls := 0
	deliverer := DelivererFunc(func(_ context.Context, ev models.NotificationEvent) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		bodies = append(bodies, ev.Body)
		if calls == 1 {
			return errors.New("channel down")
		}
		return nil
	})

	n := New(store, newMemCursors(), deliverer, Config{MilestoneStep: 100}, rand.New(rand.NewPCG(1, 1)), logger.Discard())
	sub, err := n.Subscribe(context.Background(), "owner")
	require.NoError(t, err)
	defer sub.Cancel()

	addSave(t, store, "a", "p1", "owner", "Ann")
	addSave(t, store, "b", "p1", "owner", "Bob")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(bodies) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"Ann saved your post.", "Bob saved your post."}, bodies)
}

func TestNew_DefaultStep(t *testing.T) {
	n := New(docstore.NewMemoryStore(), newMemCursors(), newRecorder(), Config{}, rand.New(rand.NewPCG(1, 1)), logger.Discard())
	assert.Equal(t, DefaultMilestoneStep, n.Step())
}
