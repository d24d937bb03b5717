// Package cli holds the start-up steps shared by the binaries under cmd/.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"budgetpipe/internal/config"
	"budgetpipe/internal/log"
	"budgetpipe/internal/rules"
	"budgetpipe/internal/storage"
)

// SetupLogger builds the process logger from LOG_LEVEL and makes it the
// slog default.
func SetupLogger(level, component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Component = component
	if lvl, err := log.ParseLevel(level); err == nil {
		cfg.Level = lvl
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and exits
// the process when it is invalid.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// LoadRules reads the rules file or exits the process.
func LoadRules(logger *log.Logger, path string) *rules.Config {
	cfg, err := rules.Load(path)
	if err != nil {
		logger.Error("Failed to load rules", log.FieldError, err, "path", path)
		os.Exit(1)
	}
	logger.WithComponent(log.ComponentRules).Info("Loaded rules",
		"path", path,
		log.FieldRulesDigest, cfg.Digest,
		"steps", len(cfg.Transformations),
		"categories", len(cfg.CustomCategoryMap))
	return cfg
}

// InitSQLite opens the run store or exits the process.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
