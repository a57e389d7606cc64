package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/docopt/docopt-go"

	"github.com/anonto42/byteboard/internal/logger"
	"github.com/anonto42/byteboard/internal/repositories"
	"github.com/anonto42/byteboard/internal/services"
	"github.com/anonto42/byteboard/pkg/config"
	"github.com/anonto42/byteboard/pkg/firebase"
)

const version = "1.0.0"

func main() {
	usage := `Like counter repair.

Rewrites each post's LikesCount from its like documents. The store is
chosen by STORE_BACKEND, exactly as for the server.

Usage:
    recount all
    recount post <post_id>

Options:
    -h --help     Show this screen.
    --version     Show version.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Environment: cfg.Env, Level: logger.ParseLevel(cfg.LogLevel)})

	if err := run(opts, cfg, log); err != nil {
		log.Error("Recount failed", "error", err)
		os.Exit(1)
	}
}

func run(opts docopt.Opts, cfg *config.Config, log *slog.Logger) error {
	ctx := context.Background()

	db, err := config.InitDB(cfg, log)
	if err != nil {
		return err
	}
	defer db.CloseDB()

	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseProjectID, log)
	if err != nil {
		return err
	}

	store, closeStore, err := config.OpenStore(ctx, cfg, db, firebaseApp, log)
	if err != nil {
		return err
	}
	defer closeStore()

	likeService := services.NewLikeService(
		repositories.NewDocLikeRepository(store),
		repositories.NewDocPostRepository(store),
		log,
	)

	if all, _ := opts.Bool("all"); all {
		changed, err := likeService.RecountAll(ctx)
		if err != nil {
			return err
		}
		log.Info("Recount finished", "changed_posts", changed)
		return nil
	}

	postID, _ := opts.String("<post_id>")
	count, err := likeService.Recount(ctx, postID)
	if err != nil {
		return fmt.Errorf("post %s: %w", postID, err)
	}
	log.Info("Recount finished", "post_id", postID, "likes_count", count)
	return nil
}
