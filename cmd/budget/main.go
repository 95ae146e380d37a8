package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budget/internal/cli"
	"budget/internal/editor"
	apphttp "budget/internal/http"
	"budget/internal/log"
)

func main() {
	// Load .env file for local development (ignored when absent)
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentApp)

	ctx, stop := cli.GracefulShutdown(logger)
	defer stop()

	be, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	session := editor.NewSession(be.Service, logger)
	if err := session.Reload(ctx); err != nil {
		// The table shows the error banner; the user can retry from the UI.
		logger.Warn("Initial load failed", log.FieldError, err)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Session:            session,
		Renderer:           cli.NewRenderer(cfg),
		Ready:              be.Service.Ping,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting budget server", "port", cfg.Port, "backend", cfg.DataBackend, "events", be.AMQP != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
