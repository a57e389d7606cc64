package config

import (
	"context"
	"log/slog"

	"github.com/anonto42/byteboard/internal/docstore"
	"github.com/anonto42/byteboard/pkg/firebase"
)

// OpenStore returns the document store selected by STORE_BACKEND and the
// function that closes it. The MongoDB client itself is closed by CloseDB.
func OpenStore(ctx context.Context, cfg *Config, db *DB, app *firebase.App, logger *slog.Logger) (docstore.Store, func() error, error) {
	switch cfg.StoreBackend {
	case BackendMongo:
		store := docstore.NewMongoStore(db.Mongo.Database(cfg.MongoDatabase), logger)
		return store, func() error { return nil }, nil
	case BackendMemory:
		logger.Warn("Using in-memory document store, data will not survive a restart")
		store := docstore.NewMemoryStore()
		return store, store.Close, nil
	default:
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, nil, err
		}
		store := docstore.NewFirestoreStore(client, logger)
		return store, store.Close, nil
	}
}
