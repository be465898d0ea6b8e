// Package cli provides common initialization utilities shared by
// cmd/sheetlink and cmd/sheetlink-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sheetlink/internal/config"
	applog "sheetlink/internal/log"
	"sheetlink/internal/sheets"
	"sheetlink/internal/sheets/google"
	"sheetlink/internal/sheets/memory"
	"sheetlink/internal/storage"
)

// SetupLogger initializes structured logging with default settings.
// Returns the configured logger and sets it as the default logger.
func SetupLogger() *applog.Logger {
	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSnapshotStore initializes the SQLite snapshot repository.
// Returns the repository or exits the process on failure.
func InitSnapshotStore(logger *applog.Logger, dbPath string) *storage.Repository {
	repo, err := storage.NewRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize snapshot store", applog.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// InitConnector builds the spreadsheet backend selected by the config:
// the Google connector for "sheets", the in-memory store otherwise.
func InitConnector(ctx context.Context, logger *applog.Logger, cfg *config.Config) sheets.Connector {
	switch cfg.DataBackend {
	case "sheets":
		connector, err := google.New(ctx, google.Config{
			CredentialsFile: cfg.GoogleServiceAccountFile,
			ShareWith:       cfg.ShareWith,
		}, logger.WithComponent(applog.ComponentSheets).Logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets connector", applog.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Initialized Google Sheets backend", "service_account", connector.ServiceAccount())
		return connector
	default:
		logger.Info("Initialized memory backend")
		return memory.New(cfg.ShareWith)
	}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that is cancelled on shutdown signals, a cancel
// function so callers can trigger shutdown on internal failures, and a
// channel that closes once cleanup has finished. The context is always
// cancelled before cleanup runs, so blocking loops observe ctx.Done()
// no later than their resources being torn down.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func()) (context.Context, context.CancelFunc, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}

		cancel()

		if cleanup != nil {
			cleanupDone := make(chan struct{})
			go func() {
				cleanup()
				close(cleanupDone)
			}()
			select {
			case <-cleanupDone:
				logger.Info("Shutdown complete")
			case <-time.After(timeout):
				logger.Warn("Shutdown timeout reached")
			}
		}
		close(done)
	}()

	return ctx, cancel, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
