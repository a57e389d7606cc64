package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/anonto42/byteboard/internal/middleware"
	"github.com/anonto42/byteboard/internal/repositories"
	"github.com/anonto42/byteboard/internal/services"
)

// SavedPostHandler handles HTTP requests for saved posts
type SavedPostHandler struct {
	saveService    *services.SaveService
	savedSet       *services.SavedSet
	postRepository repositories.PostRepository
	profiles       *services.ProfileDirectory
}

// NewSavedPostHandler creates a new SavedPostHandler
func NewSavedPostHandler(saveService *services.SaveService, savedSet *services.SavedSet, postRepo repositories.PostRepository, profiles *services.ProfileDirectory) *SavedPostHandler {
	return &SavedPostHandler{
		saveService:    saveService,
		savedSet:       savedSet,
		postRepository: postRepo,
		profiles:       profiles,
	}
}

// RegisterSavedPostRoutes registers saved post routes
func (h *SavedPostHandler) RegisterSavedPostRoutes(g *echo.Group) {
	g.POST("/posts/:post_id/saves/toggle", h.ToggleSave)
	g.GET("/posts/:post_id/saves/status", h.GetSaveStatus)
	g.GET("/saved-posts", h.GetSavedPosts)
}

// ToggleSave saves the post, or unsaves it if already saved.
func (h *SavedPostHandler) ToggleSave(c echo.Context) error {
	ctx := c.Request().Context()
	uid := middleware.UID(c)
	postID := c.Param("post_id")

	post, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return httpError(err)
	}

	state, err := h.saveService.Toggle(ctx, postID, uid, post.AuthID, actorName(c, h.profiles))
	if err != nil {
		return httpError(err)
	}

	return ok(c, echo.Map{
		"post_id":  postID,
		"state":    state.String(),
		"is_saved": state == services.Saved,
	})
}

// GetSaveStatus checks if the authenticated user has saved the post
func (h *SavedPostHandler) GetSaveStatus(c echo.Context) error {
	postID := c.Param("post_id")

	saved, err := h.saveService.IsSaved(c.Request().Context(), postID, middleware.UID(c))
	if err != nil {
		return httpError(err)
	}

	return ok(c, echo.Map{"post_id": postID, "is_saved": saved})
}

// GetSavedPosts returns the ids of the posts the user saved
func (h *SavedPostHandler) GetSavedPosts(c echo.Context) error {
	ids, err := h.savedSet.SavedIDs(c.Request().Context(), middleware.UID(c))
	if err != nil {
		return httpError(err)
	}

	return ok(c, echo.Map{"post_ids": ids, "count": len(ids)})
}
