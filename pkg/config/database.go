package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/anonto42/byteboard/internal/models"
)

// DB holds the database connections. Either may be nil when not configured.
type DB struct {
	Postgres *gorm.DB
	Mongo    *mongo.Client
	logger   *slog.Logger
}

// InitDB opens the connections the configuration asks for. PostgreSQL
// backs the notification inbox and is optional; MongoDB is opened only for
// the mongo store backend.
func InitDB(cfg *Config, logger *slog.Logger) (*DB, error) {
	db := &DB{logger: logger}

	if cfg.PostgresConnStr != "" {
		postgresDB, err := initPostgres(cfg.PostgresConnStr, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		db.Postgres = postgresDB
	} else {
		logger.Warn("POSTGRES_CONN_STR not set, in-app notifications will not be stored")
	}

	if cfg.StoreBackend == BackendMongo {
		mongoClient, err := initMongo(cfg.MongoURI, logger)
		if err != nil {
			db.CloseDB()
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		db.Mongo = mongoClient
	}

	return db, nil
}

// initPostgres initializes the PostgreSQL database connection using GORM
func initPostgres(connStr string, logger *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(connStr), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Ping the database to verify connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.Notification{}); err != nil {
		return nil, fmt.Errorf("migrate notifications: %w", err)
	}

	logger.Info("Successfully connected to PostgreSQL!")
	return db, nil
}

// initMongo initializes the MongoDB connection
func initMongo(uri string, logger *slog.Logger) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(uri)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the primary to verify connection
	if err = client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	logger.Info("Successfully connected to MongoDB!")
	return client, nil
}

// CloseDB closes the database connections
func (db *DB) CloseDB() {
	if db.Postgres != nil {
		sqlDB, err := db.Postgres.DB()
		if err != nil {
			db.logger.Error("Error getting SQL DB from GORM", "error", err)
		} else {
			if err := sqlDB.Close(); err != nil {
				db.logger.Error("Error closing PostgreSQL connection", "error", err)
			} else {
				db.logger.Info("PostgreSQL connection closed.")
			}
		}
	}

	if db.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Mongo.Disconnect(ctx); err != nil {
			db.logger.Error("Error closing MongoDB connection", "error", err)
		} else {
			db.logger.Info("MongoDB connection closed.")
		}
	}
}
