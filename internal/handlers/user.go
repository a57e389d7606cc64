package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/byteboard/internal/middleware"
	"github.com/anonto42/byteboard/internal/models"
	"github.com/anonto42/byteboard/internal/services"
)

// UserHandler handles HTTP requests related to user profiles
type UserHandler struct {
	accountService *services.AccountService
	profiles       *services.ProfileDirectory
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(accountService *services.AccountService, profiles *services.ProfileDirectory) *UserHandler {
	return &UserHandler{accountService: accountService, profiles: profiles}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)    // Get own profile
	g.PUT("/profile", h.UpdateProfile) // Update own profile
	g.GET("/users/:id", h.GetUser)     // Get other user's profile by ID
}

// GetUser returns the display profile of any author
func (h *UserHandler) GetUser(c echo.Context) error {
	fallback := models.Profile{
		DisplayName: models.AnonymousName,
		AvatarURL:   models.DefaultAvatarURL,
	}
	return ok(c, h.profiles.Resolve(c.Request().Context(), c.Param("id"), fallback))
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	id := middleware.Identity(c)
	fallback := models.Profile{
		DisplayName: models.DisplayName(id.DisplayName),
		AvatarURL:   models.DefaultAvatarURL,
	}
	return ok(c, h.profiles.Resolve(c.Request().Context(), middleware.UID(c), fallback))
}

// UpdateProfile updates the authenticated user's name, handle and photo
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req services.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	profile, err := h.accountService.UpdateProfile(c.Request().Context(), middleware.UID(c), req)
	if err != nil {
		return httpError(err)
	}
	return ok(c, profile)
}
