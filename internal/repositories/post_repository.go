package repositories

import (
	"context"
	"fmt"

	"github.com/anonto42/byteboard/internal/docstore"
	apperrors "github.com/anonto42/byteboard/internal/errors"
	"github.com/anonto42/byteboard/internal/models"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetAllPosts(ctx context.Context) ([]models.Post, error)
	IncrementLikesCount(ctx context.Context, postID string) error
	DecrementLikesCount(ctx context.Context, postID string) error
	SetLikesCount(ctx context.Context, postID string, count int) error
}

// DocPostRepository implements PostRepository on the document store
type DocPostRepository struct {
	store docstore.Store
}

// NewDocPostRepository creates a new DocPostRepository
func NewDocPostRepository(store docstore.Store) *DocPostRepository {
	return &DocPostRepository{store: store}
}

// GetPostByID retrieves a post by ID
func (r *DocPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	doc, ok, err := r.store.Get(ctx, models.PostsCollection, id)
	if err != nil {
		return nil, apperrors.Unavailable(err, "Could not load the post. Please try again.")
	}
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("post %s not found", id))
	}
	post := models.PostFromDocument(doc)
	return &post, nil
}

// GetAllPosts retrieves every post
func (r *DocPostRepository) GetAllPosts(ctx context.Context) ([]models.Post, error) {
	docs, err := r.store.Query(ctx, models.PostsCollection)
	if err != nil {
		return nil, err
	}
	posts := make([]models.Post, 0, len(docs))
	for _, d := range docs {
		posts = append(posts, models.PostFromDocument(d))
	}
	return posts, nil
}

// IncrementLikesCount increments the likes count of a post
func (r *DocPostRepository) IncrementLikesCount(ctx context.Context, postID string) error {
	return r.store.Increment(ctx, models.PostsCollection, postID, models.PostFieldLikesCount, 1)
}

// DecrementLikesCount decrements the likes count of a post. There is no
// floor at zero; readers clamp with Post.DisplayLikes.
func (r *DocPostRepository) DecrementLikesCount(ctx context.Context, postID string) error {
	return r.store.Increment(ctx, models.PostsCollection, postID, models.PostFieldLikesCount, -1)
}

// SetLikesCount overwrites the likes count, used by recounts
func (r *DocPostRepository) SetLikesCount(ctx context.Context, postID string, count int) error {
	return r.store.Set(ctx, models.PostsCollection, postID, map[string]any{
		models.PostFieldLikesCount: int64(count),
	}, true)
}
