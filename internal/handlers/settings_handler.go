package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/byteboard/internal/kv"
	"github.com/anonto42/byteboard/internal/middleware"
)

// SettingsHandler serves the settings page: theme and native notification
// device registration.
type SettingsHandler struct {
	preferences *kv.Preferences
	pushTokens  *kv.PushTokens
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(preferences *kv.Preferences, pushTokens *kv.PushTokens) *SettingsHandler {
	return &SettingsHandler{preferences: preferences, pushTokens: pushTokens}
}

// RegisterSettingsRoutes registers settings routes
func (h *SettingsHandler) RegisterSettingsRoutes(g *echo.Group) {
	g.GET("/settings/theme", h.GetTheme)
	g.PUT("/settings/theme", h.SetTheme)
	g.POST("/settings/devices", h.RegisterDevice)
	g.DELETE("/settings/devices", h.RevokeDevice)
	g.GET("/settings/notifications", h.GetNotificationPermission)
}

type themeRequest struct {
	Theme string `json:"theme"`
}

type deviceRequest struct {
	Token string `json:"token"`
}

func (h *SettingsHandler) GetTheme(c echo.Context) error {
	theme, err := h.preferences.Theme(middleware.UID(c))
	if err != nil {
		return httpError(err)
	}
	return ok(c, echo.Map{"theme": theme})
}

func (h *SettingsHandler) SetTheme(c echo.Context) error {
	var req themeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	theme := strings.ToLower(strings.TrimSpace(req.Theme))
	if theme != kv.ThemeLight && theme != kv.ThemeDark {
		return echo.NewHTTPError(http.StatusBadRequest, "Theme must be light or dark")
	}

	if err := h.preferences.SetTheme(middleware.UID(c), theme); err != nil {
		return httpError(err)
	}
	return ok(c, echo.Map{"theme": theme})
}

// RegisterDevice stores the browser's push token, which grants native
// notifications.
func (h *SettingsHandler) RegisterDevice(c echo.Context) error {
	var req deviceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if strings.TrimSpace(req.Token) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Device token is required")
	}

	if err := h.pushTokens.Register(middleware.UID(c), req.Token); err != nil {
		return httpError(err)
	}
	return ok(c, echo.Map{"native_granted": true})
}

func (h *SettingsHandler) RevokeDevice(c echo.Context) error {
	if err := h.pushTokens.Revoke(middleware.UID(c)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SettingsHandler) GetNotificationPermission(c echo.Context) error {
	_, granted, err := h.pushTokens.Token(middleware.UID(c))
	if err != nil {
		return httpError(err)
	}
	return ok(c, echo.Map{"native_granted": granted})
}
