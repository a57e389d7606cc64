package repositories

import (
	"context"

	"github.com/anonto42/byteboard/internal/docstore"
	"github.com/anonto42/byteboard/internal/models"
)

// SavedPostRepository defines the interface for saved post operations
type SavedPostRepository interface {
	SavePost(ctx context.Context, savedPost *models.SavedPost) error
	UnsavePost(ctx context.Context, userID, postID string) error
	IsPostSaved(ctx context.Context, userID, postID string) (bool, error)
	GetSavedPostIDs(ctx context.Context, userID string) ([]string, error)
}

// DocSavedPostRepository implements SavedPostRepository on the document store
type DocSavedPostRepository struct {
	store docstore.Store
}

func NewDocSavedPostRepository(store docstore.Store) *DocSavedPostRepository {
	return &DocSavedPostRepository{store: store}
}

func (r *DocSavedPostRepository) SavePost(ctx context.Context, savedPost *models.SavedPost) error {
	id := models.RelationID(savedPost.UserID, savedPost.PostID)
	return r.store.Set(ctx, models.SavedPostsCollection, id, savedPost.Fields(), false)
}

func (r *DocSavedPostRepository) UnsavePost(ctx context.Context, userID, postID string) error {
	return r.store.Delete(ctx, models.SavedPostsCollection, models.RelationID(userID, postID))
}

func (r *DocSavedPostRepository) IsPostSaved(ctx context.Context, userID, postID string) (bool, error) {
	_, ok, err := r.store.Get(ctx, models.SavedPostsCollection, models.RelationID(userID, postID))
	return ok, err
}

func (r *DocSavedPostRepository) GetSavedPostIDs(ctx context.Context, userID string) ([]string, error) {
	docs, err := r.store.Query(ctx, models.SavedPostsCollection, docstore.Where(models.SaveFieldUserID, userID))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, models.SavedPostFromDocument(d).PostID)
	}
	return ids, nil
}
