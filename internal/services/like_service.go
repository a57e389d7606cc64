// Package services holds the interaction logic that sits between the HTTP
// handlers and the document store: like and save toggles, the profile
// directory and account sign-up.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/anonto42/byteboard/internal/errors"
	"github.com/anonto42/byteboard/internal/models"
	"github.com/anonto42/byteboard/internal/repositories"
)

// ErrCounterDrift marks a toggle whose relation write succeeded but whose
// post counter update failed. The relation is authoritative; Recount repairs
// the counter.
var ErrCounterDrift = apperrors.New("like counter out of sync with relations")

// LikeState is the outcome of a like toggle.
type LikeState int

const (
	LikeFailed LikeState = iota
	Liked
	Unliked
)

func (s LikeState) String() string {
	switch s {
	case Liked:
		return "liked"
	case Unliked:
		return "unliked"
	default:
		return "failed"
	}
}

// Apply returns the optimistic display count after the toggle. It never
// goes below zero.
func (s LikeState) Apply(count int) int {
	switch s {
	case Liked:
		return count + 1
	case Unliked:
		return max(count-1, 0)
	default:
		return count
	}
}

// LikeService toggles likes and keeps the per-post counter in step.
type LikeService struct {
	likes  repositories.LikeRepository
	posts  repositories.PostRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewLikeService creates a new like service.
func NewLikeService(likes repositories.LikeRepository, posts repositories.PostRepository, logger *slog.Logger) *LikeService {
	return &LikeService{
		likes:  likes,
		posts:  posts,
		logger: logger,
		now:    time.Now,
	}
}

// Toggle flips the user's like on the target post.
//
// The existence read and the following writes are separate operations, so
// two concurrent toggles by the same user can both observe the same state
// and leave the counter off by one until the next Recount.
func (s *LikeService) Toggle(ctx context.Context, targetID, userID, ownerID, actorName string) (LikeState, error) {
	if strings.TrimSpace(targetID) == "" || strings.TrimSpace(userID) == "" {
		return LikeFailed, apperrors.Validation("target id and user id are required")
	}

	liked, err := s.likes.HasUserLikedPost(ctx, targetID, userID)
	if err != nil {
		return LikeFailed, likeUnavailable(fmt.Errorf("check like: %w", err))
	}

	if liked {
		if err := s.likes.DeleteLike(ctx, targetID, userID); err != nil {
			return LikeFailed, likeUnavailable(fmt.Errorf("delete like: %w", err))
		}
		if err := s.posts.DecrementLikesCount(ctx, targetID); err != nil {
			return LikeFailed, s.drift(targetID, userID, err)
		}
		return Unliked, nil
	}

	if strings.TrimSpace(ownerID) == "" {
		return LikeFailed, apperrors.Validation("post owner id is required to like a post")
	}

	like := &models.Like{
		UserID:      userID,
		PostID:      targetID,
		PostOwnerID: ownerID,
		LikerName:   models.DisplayName(actorName),
		CreatedAt:   s.now(),
	}
	if err := s.likes.CreateLike(ctx, like); err != nil {
		return LikeFailed, likeUnavailable(fmt.Errorf("create like: %w", err))
	}
	if err := s.posts.IncrementLikesCount(ctx, targetID); err != nil {
		return LikeFailed, s.drift(targetID, userID, err)
	}
	return Liked, nil
}

func (s *LikeService) drift(targetID, userID string, err error) error {
	s.logger.Warn("like relation written but counter update failed",
		"post_id", targetID,
		"user_id", userID,
		"error", err,
	)
	return likeUnavailable(fmt.Errorf("%w: %w", ErrCounterDrift, err))
}

func likeUnavailable(err error) error {
	return apperrors.Unavailable(err, "Could not update the like. Please try again.")
}

// IsLiked reports whether the user currently likes the target.
func (s *LikeService) IsLiked(ctx context.Context, targetID, userID string) (bool, error) {
	if targetID == "" || userID == "" {
		return false, apperrors.Validation("target id and user id are required")
	}
	return s.likes.HasUserLikedPost(ctx, targetID, userID)
}

// Recount rebuilds the target's LikesCount from its like relations.
func (s *LikeService) Recount(ctx context.Context, targetID string) (int, error) {
	if targetID == "" {
		return 0, apperrors.Validation("target id is required")
	}

	n, err := s.likes.GetLikesCountByPostID(ctx, targetID)
	if err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	if err := s.posts.SetLikesCount(ctx, targetID, n); err != nil {
		return 0, fmt.Errorf("set likes count: %w", err)
	}

	s.logger.Info("likes recounted", "post_id", targetID, "count", n)
	return n, nil
}

// RecountAll recounts every post and returns how many were changed.
func (s *LikeService) RecountAll(ctx context.Context) (int, error) {
	posts, err := s.posts.GetAllPosts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list posts: %w", err)
	}

	changed := 0
	for _, p := range posts {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		n, err := s.likes.GetLikesCountByPostID(ctx, p.ID)
		if err != nil {
			return changed, fmt.Errorf("count likes for %s: %w", p.ID, err)
		}
		if int64(n) == p.LikesCount {
			continue
		}
		if err := s.posts.SetLikesCount(ctx, p.ID, n); err != nil {
			return changed, fmt.Errorf("set likes count for %s: %w", p.ID, err)
		}
		s.logger.Info("likes count repaired", "post_id", p.ID, "was", p.LikesCount, "now", n)
		changed++
	}
	return changed, nil
}
