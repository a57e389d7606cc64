package handlers

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/byteboard/internal/middleware"
	"github.com/anonto42/byteboard/internal/models"
	"github.com/anonto42/byteboard/internal/repositories"
	"github.com/anonto42/byteboard/internal/services"
)

// PostHandler serves the feed: posts with their author profile and the
// viewer's like/save flags.
type PostHandler struct {
	postRepository repositories.PostRepository
	likeService    *services.LikeService
	savedSet       *services.SavedSet
	profiles       *services.ProfileDirectory
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(postRepo repositories.PostRepository, likeService *services.LikeService, savedSet *services.SavedSet, profiles *services.ProfileDirectory) *PostHandler {
	return &PostHandler{
		postRepository: postRepo,
		likeService:    likeService,
		savedSet:       savedSet,
		profiles:       profiles,
	}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.GET("/posts", h.GetFeed)
	g.GET("/posts/:post_id", h.GetPost)
}

// EnrichedPost is a post with author info and user-specific flags
type EnrichedPost struct {
	models.Post
	LikesCount int64          `json:"likes_count"`
	Author     models.Profile `json:"author"`
	IsLiked    bool           `json:"is_liked"`
	IsSaved    bool           `json:"is_saved"`
}

// GetFeed returns enriched posts, newest first
func (h *PostHandler) GetFeed(c echo.Context) error {
	ctx := c.Request().Context()
	uid := middleware.UID(c)
	page, limit := pageParams(c, 10)

	posts, err := h.postRepository.GetAllPosts(ctx)
	if err != nil {
		return httpError(err)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	totalItems := int64(len(posts))
	start := min((page-1)*limit, len(posts))
	end := min(start+limit, len(posts))
	posts = posts[start:end]

	if err := h.savedSet.Load(ctx, uid); err != nil {
		return httpError(err)
	}

	enrichedPosts := make([]EnrichedPost, 0, len(posts))
	for _, p := range posts {
		enriched, err := h.enrich(c, uid, p)
		if err != nil {
			return httpError(err)
		}
		enrichedPosts = append(enrichedPosts, enriched)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"posts": enrichedPosts,
		},
		"meta": pageMeta(page, limit, totalItems),
	})
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	ctx := c.Request().Context()
	uid := middleware.UID(c)

	post, err := h.postRepository.GetPostByID(ctx, c.Param("post_id"))
	if err != nil {
		return httpError(err)
	}
	if err := h.savedSet.Load(ctx, uid); err != nil {
		return httpError(err)
	}

	enriched, err := h.enrich(c, uid, *post)
	if err != nil {
		return httpError(err)
	}
	return ok(c, enriched)
}

func (h *PostHandler) enrich(c echo.Context, uid string, p models.Post) (EnrichedPost, error) {
	liked, err := h.likeService.IsLiked(c.Request().Context(), p.ID, uid)
	if err != nil {
		return EnrichedPost{}, err
	}
	return EnrichedPost{
		Post:       p,
		LikesCount: p.DisplayLikes(),
		Author:     h.profiles.Resolve(c.Request().Context(), p.AuthID, p.AuthorFallback()),
		IsLiked:    liked,
		IsSaved:    h.savedSet.Contains(uid, p.ID),
	}, nil
}
