package router

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/byteboard/internal/handlers"
	"github.com/anonto42/byteboard/internal/kv"
	"github.com/anonto42/byteboard/internal/middleware"
	"github.com/anonto42/byteboard/internal/notifier"
	"github.com/anonto42/byteboard/internal/realtime"
	"github.com/anonto42/byteboard/internal/repositories"
	"github.com/anonto42/byteboard/internal/services"
)

// Dependencies are the wired components the routes are built from.
type Dependencies struct {
	Verifier      middleware.TokenVerifier
	Posts         repositories.PostRepository
	Notifications repositories.NotificationRepository // may be nil
	Likes         *services.LikeService
	Saves         *services.SaveService
	SavedSet      *services.SavedSet
	Profiles      *services.ProfileDirectory
	Accounts      *services.AccountService
	Preferences   *kv.Preferences
	PushTokens    *kv.PushTokens
	Hub           *realtime.Hub
	Sessions      *notifier.Manager
	Logger        *slog.Logger
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, d Dependencies) {
	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(d.Accounts)
	authHandler.RegisterAuthRoutes(authGroup)
	d.Logger.Info("Auth routes configured.")

	// --- Protected routes (require a Firebase ID token) ---
	api := e.Group("/api/v1")
	api.Use(middleware.FirebaseAuthMiddleware(d.Verifier))
	authHandler.RegisterSessionRoutes(api)

	userHandler := handlers.NewUserHandler(d.Accounts, d.Profiles)
	userHandler.RegisterProfileRoutes(api)
	d.Logger.Info("User profile routes configured.")

	postHandler := handlers.NewPostHandler(d.Posts, d.Likes, d.SavedSet, d.Profiles)
	postHandler.RegisterPostRoutes(api)
	d.Logger.Info("Post routes configured.")

	likeHandler := handlers.NewLikeHandler(d.Likes, d.Posts, d.Profiles)
	likeHandler.RegisterLikeRoutes(api)
	d.Logger.Info("Like routes configured.")

	savedPostHandler := handlers.NewSavedPostHandler(d.Saves, d.SavedSet, d.Posts, d.Profiles)
	savedPostHandler.RegisterSavedPostRoutes(api)
	d.Logger.Info("Saved post routes configured.")

	settingsHandler := handlers.NewSettingsHandler(d.Preferences, d.PushTokens)
	settingsHandler.RegisterSettingsRoutes(api)
	d.Logger.Info("Settings routes configured.")

	notificationHandler := handlers.NewNotificationHandler(d.Notifications, d.Hub, d.Sessions, d.Logger)
	notificationHandler.RegisterNotificationRoutes(api)
	d.Logger.Info("Notification routes configured.")

	d.Logger.Info("All routes configured.")
}
