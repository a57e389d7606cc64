package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/byteboard/internal/kv"
	"github.com/anonto42/byteboard/internal/logger"
	"github.com/anonto42/byteboard/internal/notifier"
	"github.com/anonto42/byteboard/internal/realtime"
	"github.com/anonto42/byteboard/internal/repositories"
	"github.com/anonto42/byteboard/internal/router"
	"github.com/anonto42/byteboard/internal/services"
	"github.com/anonto42/byteboard/internal/validators"
	"github.com/anonto42/byteboard/pkg/config"
	"github.com/anonto42/byteboard/pkg/firebase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Environment: cfg.Env,
		Level:       logger.ParseLevel(cfg.LogLevel),
	})

	if err := run(cfg, log); err != nil {
		log.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx := context.Background()

	// Initialize database connections
	db, err := config.InitDB(cfg, log)
	if err != nil {
		return err
	}
	defer db.CloseDB()

	// Initialize Firebase
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseProjectID, log)
	if err != nil {
		return err
	}

	store, closeStore, err := config.OpenStore(ctx, cfg, db, firebaseApp, log)
	if err != nil {
		return err
	}
	defer closeStore()

	kvStore, err := kv.Open(cfg.KVPath, log)
	if err != nil {
		return err
	}
	defer kvStore.Close()

	seed := uint64(time.Now().UnixNano())

	// --- Initialize Repositories ---
	likeRepo := repositories.NewDocLikeRepository(store)
	savedPostRepo := repositories.NewDocSavedPostRepository(store)
	postRepo := repositories.NewDocPostRepository(store)
	userRepo := repositories.NewDocUserRepository(store)
	var notificationRepo repositories.NotificationRepository
	if db.Postgres != nil {
		notificationRepo = repositories.NewPostgresNotificationRepository(db.Postgres)
	}

	// --- Services ---
	validate := validators.New()
	profiles := services.NewProfileDirectory(userRepo, log)
	savedSet := services.NewSavedSet(savedPostRepo)
	likeService := services.NewLikeService(likeRepo, postRepo, log)
	saveService := services.NewSaveService(savedPostRepo, log, savedSet)
	accountService := services.NewAccountService(userRepo, firebase.NewIdentities(firebaseApp.AuthClient), profiles, validate, rand.New(rand.NewPCG(seed, 1)), log)

	// --- Notifications ---
	hub := realtime.NewHub(log)
	defer hub.Close()

	pushTokens := kv.NewPushTokens(kvStore)
	perms := notifier.NewTokenPermissions(pushTokens, log)
	dispatcher := notifier.NewDispatcher(
		notifier.NewPushChannel(firebaseApp.MessagingClient, pushTokens, log),
		notifier.NewInAppChannel(notificationRepo, hub, log),
		perms,
		log,
	)
	activity := notifier.New(store, kv.NewMilestoneCursors(kvStore), dispatcher,
		notifier.Config{MilestoneStep: cfg.MilestoneStep}, rand.New(rand.NewPCG(seed, 2)), log)
	sessions := notifier.NewManager(activity, dispatcher, perms,
		notifier.ManagerConfig{SelfTestDelay: cfg.NotifySelfTestDelay}, log)
	defer sessions.Close()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validate.Echo()

	// Setup global middleware
	config.SetupMiddleware(e, log)

	// Setup routes and dependencies
	router.SetupRoutes(e, router.Dependencies{
		Verifier:      firebaseApp.AuthClient,
		Posts:         postRepo,
		Notifications: notificationRepo,
		Likes:         likeService,
		Saves:         saveService,
		SavedSet:      savedSet,
		Profiles:      profiles,
		Accounts:      accountService,
		Preferences:   kv.NewPreferences(kvStore),
		PushTokens:    pushTokens,
		Hub:           hub,
		Sessions:      sessions,
		Logger:        log,
	})

	// Start server
	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", "port", cfg.Port, "store", cfg.StoreBackend)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	log.Info("Shutting down server...")
	// Websockets are hijacked and not tracked by Shutdown; close them first.
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
