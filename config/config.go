package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Token          string
	DatabaseDriver string
	DatabaseURL    string
	SyncInterval   time.Duration
	CallTimeout    time.Duration
	CommandTimeout time.Duration
	SyncWorkers    int
	LogLevel       string
}

var (
	ErrMissingToken       = errors.New("BOT_TOKEN is not set")
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is not set")
)

// Load reads the configuration from the environment, after loading a .env
// file if one exists. A .env file that cannot be parsed is an error.
// The token and the database URL are required.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Token:          getEnv("BOT_TOKEN", ""),
		DatabaseDriver: getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		SyncInterval:   getDurationEnv("SYNC_INTERVAL_SECONDS", 10) * time.Second,
		CallTimeout:    getDurationEnv("CALL_TIMEOUT_SECONDS", 5) * time.Second,
		CommandTimeout: getDurationEnv("COMMAND_TIMEOUT_SECONDS", 60) * time.Second,
		SyncWorkers:    getIntEnv("SYNC_WORKERS", 4),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	var errs []error
	if cfg.Token == "" {
		errs = append(errs, ErrMissingToken)
	}
	if cfg.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int) time.Duration {
	return time.Duration(getIntEnv(key, defaultValue))
}
