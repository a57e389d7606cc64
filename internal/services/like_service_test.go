package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/byteboard/internal/docstore"
	apperrors "github.com/anonto42/byteboard/internal/errors"
	"github.com/anonto42/byteboard/internal/logger"
	"github.com/anonto42/byteboard/internal/models"
	"github.com/anonto42/byteboard/internal/repositories"
)

var errStoreDown = errors.New("store unavailable")

// setupLikeService creates a like service over an in-memory store with one post.
func setupLikeService(t *testing.T) (*LikeService, *docstore.MemoryStore) {
	t.Helper()

	store := docstore.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Set(context.Background(), models.PostsCollection, "p1", map[string]any{
		models.PostFieldAuthID:     "owner",
		models.PostFieldLikesCount: int64(0),
	}, false))

	svc := NewLikeService(
		repositories.NewDocLikeRepository(store),
		repositories.NewDocPostRepository(store),
		logger.Discard(),
	)
	return svc, store
}

func likesCount(t *testing.T, store docstore.Store, postID string) int64 {
	t.Helper()
	doc, ok, err := store.Get(context.Background(), models.PostsCollection, postID)
	require.NoError(t, err)
	require.True(t, ok)
	return doc.Int(models.PostFieldLikesCount)
}

func TestLikeToggle_LikeThenUnlike(t *testing.T) {
	ctx := context.Background()
	svc, store := setupLikeService(t)

	state, err := svc.Toggle(ctx, "p1", "u1", "owner", "Ada")
	require.NoError(t, err)
	assert.Equal(t, Liked, state)
	assert.Equal(t, int64(1), likesCount(t, store, "p1"))

	doc, ok, err := store.Get(ctx, models.LikesCollection, "u1_p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u1", doc.String(models.LikeFieldUserID))
	assert.Equal(t, "p1", doc.String(models.LikeFieldPostID))
	assert.Equal(t, "owner", doc.String(models.LikeFieldOwnerID))
	assert.Equal(t, "Ada", doc.String(models.LikeFieldLikerName))
	assert.False(t, doc.Time(models.LikeFieldTimestamp).IsZero())

	state, err = svc.Toggle(ctx, "p1", "u1", "owner", "Ada")
	require.NoError(t, err)
	assert.Equal(t, Unliked, state)
	assert.Equal(t, int64(0), likesCount(t, store, "p1"))

	_, ok, _ = store.Get(ctx, models.LikesCollection, "u1_p1")
	assert.False(t, ok)
}

func TestLikeToggle_ManyUsersLikeThenUnlike(t *testing.T) {
	ctx := context.Background()
	svc, store := setupLikeService(t)

	users := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7"}
	for i, u := range users {
		state, err := svc.Toggle(ctx, "p1", u, "owner", u)
		require.NoError(t, err)
		assert.Equal(t, Liked, state)
		assert.Equal(t, int64(i+1), likesCount(t, store, "p1"))
	}
	for i, u := range users {
		state, err := svc.Toggle(ctx, "p1", u, "owner", u)
		require.NoError(t, err)
		assert.Equal(t, Unliked, state)
		assert.Equal(t, int64(len(users)-i-1), likesCount(t, store, "p1"))
	}

	n, err := svc.Recount(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLikeToggle_Parity(t *testing.T) {
	ctx := context.Background()
	svc, store := setupLikeService(t)

	for k := 1; k <= 9; k++ {
		state, err := svc.Toggle(ctx, "p1", "u1", "owner", "Ada")
		require.NoError(t, err)

		odd := k%2 == 1
		if odd {
			assert.Equal(t, Liked, state, "toggle %d", k)
		} else {
			assert.Equal(t, Unliked, state, "toggle %d", k)
		}
		liked, err := svc.IsLiked(ctx, "p1", "u1")
		require.NoError(t, err)
		assert.Equal(t, odd, liked, "toggle %d", k)
		assert.Equal(t, int64(k%2), likesCount(t, store, "p1"), "toggle %d", k)
	}
}

func TestLikeToggle_StoreFailureIsUnavailable(t *testing.T) {
	ctx := context.Background()
	svc, store := setupLikeService(t)

	store.FailNext(docstore.OpGet, errStoreDown)
	_, err := svc.Toggle(ctx, "p1", "u1", "owner", "Ada")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnavailable))

	store.FailNext(docstore.OpIncrement, errStoreDown)
	_, err = svc.Toggle(ctx, "p1", "u1", "owner", "Ada")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnavailable))
	assert.ErrorIs(t, err, ErrCounterDrift)
}

func TestLikeToggle_BlankNameBecomesSomeone(t *testing.T) {
	ctx := context.Background()
	svc, store := setupLikeService(t)

	_, err := svc.Toggle(ctx, "p1", "u1", "owner", "   ")
	require.NoError(t, err)

	doc, _, _ := store.Get(ctx, models.LikesCollection, "u1_p1")
	assert.Equal(t, "Someone", doc.String(models.LikeFieldLikerName))
}

func TestLikeToggle_Preconditions(t *testing.T) {
	ctx := context.Background()
	svc, store := setupLikeService(t)
	writes := store.Calls(docstore.OpSet)

	tests := []struct {
		name                string
		target, user, owner string
	}{
		{name: "missing target", target: "", user: "u1", owner: "owner"},
		{name: "missing user", target: "p1", user: "", owner: "owner"},
		{name: "missing owner on like", target: "p1", user: "u1", owner: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := svc.Toggle(ctx, tt.target, tt.user, tt.owner, "Ada")
			assert.Equal(t, LikeFailed, state)
			assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
		})
	}
	assert.Equal(t, writes, store.Calls(docstore.OpSet))
}

func TestLikeToggle_UnlikeDoesNotNeedOwner(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupLikeService(t)

	_, err := svc.Toggle(ctx, "p1", "u1", "owner", "Ada")
	require.NoError(t, err)

	state, err := svc.Toggle(ctx, "p1", "u1", "", "")
	require.NoError(t, err)
	assert.Equal(t, Unliked, state)
}

func TestLikeToggle_ReadFailure(t *testing.T) {
	ctx := context.Background()
	svc, store := setupLikeService(t)
	writes := store.Calls(docstore.OpSet)
	store.FailNext(docstore.OpGet, errStoreDown)

	state, err := svc.Toggle(ctx, "p1", "u1", "owner", "Ada")
	assert.Equal(t, LikeFailed, state)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, writes, store.Calls(docstore.OpSet))
	assert.Equal(t, int64(0), likesCount(t, store, "p1"))
}

func TestLikeToggle_RelationWriteFailureLeavesCounter(t *testing.T) {
	ctx := context.Background()
	svc, store := setupLikeService(t)
	store.FailNext(docstore.OpSet, errStoreDown)

	state, err := svc.Toggle(ctx, "p1", "u1", "owner", "Ada")
	assert.Equal(t, LikeFailed, state)
	assert.ErrorIs(t, err, errStoreDown)
	assert.NotErrorIs(t, err, ErrCounterDrift)
	assert.Equal(t, 0, store.Calls(docstore.OpIncrement))
}

func TestLikeToggle_CounterFailureReportsDrift(t *testing.T) {
	ctx := context.Background()
	svc, store := setupLikeService(t)
	store.FailNext(docstore.OpIncrement, errStoreDown)

	state, err := svc.Toggle(ctx, "p1", "u1", "owner", "Ada")
	assert.Equal(t, LikeFailed, state)
	assert.ErrorIs(t, err, ErrCounterDrift)
	assert.ErrorIs(t, err, errStoreDown)

	// The relation stays; the counter is behind until a recount.
	liked, err := svc.IsLiked(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, int64(0), likesCount(t, store, "p1"))

	n, err := svc.Recount(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(1), likesCount(t, store, "p1"))
}

func TestLikeToggle_CounterMayGoNegative(t *testing.T) {
	ctx := context.Background()
	svc, store := setupLikeService(t)

	require.NoError(t, store.Set(ctx, models.LikesCollection, "u1_p1", models.Like{
		UserID: "u1", PostID: "p1", PostOwnerID: "owner",
	}.Fields(), false))

	state, err := svc.Toggle(ctx, "p1", "u1", "owner", "Ada")
	require.NoError(t, err)
	assert.Equal(t, Unliked, state)
	assert.Equal(t, int64(-1), likesCount(t, store, "p1"))

	doc, _, _ := store.Get(ctx, models.PostsCollection, "p1")
	assert.Equal(t, int64(0), models.PostFromDocument(doc).DisplayLikes())
}

func TestLikeState_Apply(t *testing.T) {
	assert.Equal(t, 4, Liked.Apply(3))
	assert.Equal(t, 2, Unliked.Apply(3))
	assert.Equal(t, 0, Unliked.Apply(0))
	assert.Equal(t, 3, LikeFailed.Apply(3))
}

func TestLikeService_RecountAll(t *testing.T) {
	ctx := context.Background()
	svc, store := setupLikeService(t)

	require.NoError(t, store.Set(ctx, models.PostsCollection, "p2", map[string]any{
		models.PostFieldLikesCount: int64(7),
	}, false))
	for _, u := range []string{"u1", "u2"} {
		require.NoError(t, store.Set(ctx, models.LikesCollection, models.RelationID(u, "p2"), models.Like{
			UserID: u, PostID: "p2", PostOwnerID: "owner",
		}.Fields(), false))
	}

	changed, err := svc.RecountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, int64(2), likesCount(t, store, "p2"))
	assert.Equal(t, int64(0), likesCount(t, store, "p1"))
}
