// Package cli provides the process setup shared by cmd/teamledger and
// cmd/ledger-import, plus the import command tree.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"teamledger/internal/amqp"
	"teamledger/internal/config"
	"teamledger/internal/log"
	"teamledger/internal/services"
	"teamledger/internal/storage"
)

// SetupLogger builds the application logger from cfg and installs it as the
// slog default.
func SetupLogger(cfg *config.Config, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stdout
	}
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    w,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile(filenames ...string) {
	_ = godotenv.Load(filenames...)
}

// LoadAndValidateConfig loads configuration, sets up logging and validates.
// It exits the process on validation failure.
func LoadAndValidateConfig(w io.Writer) (*config.Config, *log.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg, w)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg, logger
}

// NewOperationService opens the record store selected by cfg and, when
// AMQP_URL is set, the event publisher. A broker that cannot be reached at
// startup only disables events.
func NewOperationService(ctx context.Context, cfg *config.Config, logger *log.Logger) (*services.OperationService, error) {
	store, err := storage.Open(ctx, cfg.DatabaseURL, storage.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			logger.WithComponent(log.ComponentAMQP).Warn("AMQP unavailable, operation events disabled",
				log.FieldError, err.Error())
		} else {
			publisher = client
			logger.WithComponent(log.ComponentAMQP).Info("AMQP publisher ready",
				"exchange", cfg.AMQPExchange,
				"routing_key", cfg.AMQPRoutingKey)
		}
	}

	return services.NewOperationService(store, publisher, services.Options{
		CacheTTL:  cfg.DashboardCacheTTL,
		CacheSize: cfg.DashboardCacheSize,
	}, logger), nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has finished.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached", "timeout", timeout.String())
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
