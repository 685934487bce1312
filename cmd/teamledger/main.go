package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"teamledger/internal/cache"
	"teamledger/internal/cli"
	apphttp "teamledger/internal/http"
	"teamledger/internal/log"
)

const cacheCleanupInterval = 5 * time.Minute

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(os.Stdout)

	logger.Info("Starting teamledger", log.FieldOperation, log.OpStartup, "env", cfg.Env)

	svc, err := cli.NewOperationService(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize record store",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeDatabase)
		os.Exit(1)
	}

	cacheManager := cache.NewManager()
	if c := svc.Cache(); c != nil {
		cacheManager.Register(c)
		cacheManager.StartCleanup(cacheCleanupInterval)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Registry:           registry,
		Logger:             logger,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		cacheManager.Stop()
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close service", log.FieldError, err.Error())
		}
	})

	logger.Info("Server listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
