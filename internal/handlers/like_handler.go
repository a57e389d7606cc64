package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/anonto42/byteboard/internal/middleware"
	"github.com/anonto42/byteboard/internal/models"
	"github.com/anonto42/byteboard/internal/repositories"
	"github.com/anonto42/byteboard/internal/services"
)

// LikeHandler handles HTTP requests related to likes
type LikeHandler struct {
	likeService    *services.LikeService
	postRepository repositories.PostRepository // owner id and counter for the post
	profiles       *services.ProfileDirectory  // display name of the liker
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(likeService *services.LikeService, postRepo repositories.PostRepository, profiles *services.ProfileDirectory) *LikeHandler {
	return &LikeHandler{
		likeService:    likeService,
		postRepository: postRepo,
		profiles:       profiles,
	}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/posts/:post_id/likes/toggle", h.ToggleLike)
	g.GET("/posts/:post_id/likes/count", h.GetLikesCountForPost)
	g.GET("/posts/:post_id/likes/status", h.GetUserLikeStatusForPost)
	g.POST("/posts/:post_id/likes/recount", h.RecountLikes)
}

// ToggleLike likes the post, or unlikes it if the user already liked it.
// likes_count in the response is the client's optimistic count; the stored
// counter catches up asynchronously.
func (h *LikeHandler) ToggleLike(c echo.Context) error {
	ctx := c.Request().Context()
	uid := middleware.UID(c)
	postID := c.Param("post_id")

	post, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return httpError(err)
	}

	state, err := h.likeService.Toggle(ctx, postID, uid, post.AuthID, actorName(c, h.profiles))
	if err != nil {
		return httpError(err)
	}

	return ok(c, echo.Map{
		"post_id":     postID,
		"state":       state.String(),
		"has_liked":   state == services.Liked,
		"likes_count": state.Apply(int(post.DisplayLikes())),
	})
}

// GetLikesCountForPost retrieves the total number of likes for a specific post
func (h *LikeHandler) GetLikesCountForPost(c echo.Context) error {
	post, err := h.postRepository.GetPostByID(c.Request().Context(), c.Param("post_id"))
	if err != nil {
		return httpError(err)
	}

	return ok(c, echo.Map{"post_id": post.ID, "likes_count": post.DisplayLikes()})
}

// GetUserLikeStatusForPost checks if the authenticated user has liked a specific post
func (h *LikeHandler) GetUserLikeStatusForPost(c echo.Context) error {
	postID := c.Param("post_id")

	hasLiked, err := h.likeService.IsLiked(c.Request().Context(), postID, middleware.UID(c))
	if err != nil {
		return httpError(err)
	}

	return ok(c, echo.Map{"post_id": postID, "has_liked": hasLiked})
}

// RecountLikes rewrites the post's counter from its like documents.
func (h *LikeHandler) RecountLikes(c echo.Context) error {
	ctx := c.Request().Context()
	postID := c.Param("post_id")

	if _, err := h.postRepository.GetPostByID(ctx, postID); err != nil {
		return httpError(err)
	}
	count, err := h.likeService.Recount(ctx, postID)
	if err != nil {
		return httpError(err)
	}

	return ok(c, echo.Map{"post_id": postID, "likes_count": count})
}

// actorName is the name shown to the post owner: the stored profile name,
// else the name on the ID token.
func actorName(c echo.Context, profiles *services.ProfileDirectory) string {
	id := middleware.Identity(c)
	p := profiles.Resolve(c.Request().Context(), middleware.UID(c), models.Profile{DisplayName: id.DisplayName})
	return models.DisplayName(p.DisplayName)
}
