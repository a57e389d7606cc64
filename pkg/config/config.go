package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Document store backends.
const (
	BackendFirestore = "firestore"
	BackendMongo     = "mongo"
	BackendMemory    = "memory"
)

type Config struct {
	Port                    string
	Env                     string
	LogLevel                string
	StoreBackend            string
	FirebaseCredentialsPath string
	FirebaseProjectID       string
	PostgresConnStr         string
	MongoURI                string
	MongoDatabase           string
	KVPath                  string
	MilestoneStep           int
	NotifySelfTestDelay     time.Duration
}

// Load reads the configuration from the environment, after loading a .env
// file if one exists.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		StoreBackend:            strings.ToLower(getEnv("STORE_BACKEND", BackendFirestore)),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		PostgresConnStr:         getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "byteboard"),
		KVPath:                  getEnv("KV_PATH", "data/kv"),
	}

	step, err := strconv.Atoi(getEnv("MILESTONE_STEP", "2"))
	if err != nil || step <= 0 {
		return nil, fmt.Errorf("MILESTONE_STEP must be a positive integer")
	}
	cfg.MilestoneStep = step

	delay, err := time.ParseDuration(getEnv("NOTIFY_SELF_TEST_DELAY", "150ms"))
	if err != nil || delay < 0 {
		return nil, fmt.Errorf("NOTIFY_SELF_TEST_DELAY must be a non-negative duration")
	}
	cfg.NotifySelfTestDelay = delay

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.FirebaseCredentialsPath == "" {
		return fmt.Errorf("FIREBASE_CREDENTIALS_PATH environment variable not set")
	}
	switch c.StoreBackend {
	case BackendFirestore:
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI environment variable not set")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
