package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/byteboard/internal/middleware"
	"github.com/anonto42/byteboard/internal/models"
	"github.com/anonto42/byteboard/internal/services"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	accountService *services.AccountService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(accountService *services.AccountService) *AuthHandler {
	return &AuthHandler{accountService: accountService}
}

// RegisterAuthRoutes registers the unauthenticated sign-up route
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/signup", h.Signup)
}

// RegisterSessionRoutes registers routes that need a verified ID token
func (h *AuthHandler) RegisterSessionRoutes(g *echo.Group) {
	g.POST("/auth/firebase-login", h.FirebaseLogin)
}

// Signup creates an email/password account with its profile
func (h *AuthHandler) Signup(c echo.Context) error {
	var req models.SignupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	user, err := h.accountService.Signup(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": user})
}

// FirebaseLogin makes sure a user who signed in with a federated provider
// has a profile, creating one with a generated handle on first sign-in.
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	created, err := h.accountService.EnsureProfile(c.Request().Context(), middleware.Identity(c))
	if err != nil {
		return httpError(err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, echo.Map{"success": true, "data": echo.Map{"uid": middleware.UID(c), "created": created}})
}
