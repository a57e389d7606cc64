package repositories

import (
	"context"

	"github.com/anonto42/byteboard/internal/docstore"
	"github.com/anonto42/byteboard/internal/models"
)

// LikeRepository defines the interface for like data operations
type LikeRepository interface {
	CreateLike(ctx context.Context, like *models.Like) error
	DeleteLike(ctx context.Context, postID, userID string) error
	HasUserLikedPost(ctx context.Context, postID, userID string) (bool, error)
	GetLikesByPostID(ctx context.Context, postID string) ([]models.Like, error)
	GetLikesCountByPostID(ctx context.Context, postID string) (int, error)
}

// DocLikeRepository implements LikeRepository on the document store
type DocLikeRepository struct {
	store docstore.Store
}

// NewDocLikeRepository creates a new DocLikeRepository
func NewDocLikeRepository(store docstore.Store) *DocLikeRepository {
	return &DocLikeRepository{store: store}
}

// CreateLike writes the like relation under its composite id
func (r *DocLikeRepository) CreateLike(ctx context.Context, like *models.Like) error {
	return r.store.Set(ctx, models.LikesCollection, models.RelationID(like.UserID, like.PostID), like.Fields(), false)
}

// DeleteLike hard-deletes the like relation
func (r *DocLikeRepository) DeleteLike(ctx context.Context, postID, userID string) error {
	return r.store.Delete(ctx, models.LikesCollection, models.RelationID(userID, postID))
}

// HasUserLikedPost checks whether the relation document exists
func (r *DocLikeRepository) HasUserLikedPost(ctx context.Context, postID, userID string) (bool, error) {
	_, ok, err := r.store.Get(ctx, models.LikesCollection, models.RelationID(userID, postID))
	return ok, err
}

// GetLikesByPostID retrieves all likes for a specific post
func (r *DocLikeRepository) GetLikesByPostID(ctx context.Context, postID string) ([]models.Like, error) {
	docs, err := r.store.Query(ctx, models.LikesCollection, docstore.Where(models.LikeFieldPostID, postID))
	if err != nil {
		return nil, err
	}
	likes := make([]models.Like, 0, len(docs))
	for _, d := range docs {
		likes = append(likes, models.LikeFromDocument(d))
	}
	return likes, nil
}

// GetLikesCountByPostID counts the like relations of a post
func (r *DocLikeRepository) GetLikesCountByPostID(ctx context.Context, postID string) (int, error) {
	docs, err := r.store.Query(ctx, models.LikesCollection, docstore.Where(models.LikeFieldPostID, postID))
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}
