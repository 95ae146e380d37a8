package main

import (
	"context"
	"errors"
	"os"

	"budget/internal/cli"
	"budget/internal/log"
	"budget/internal/sheets"
	gsheet "budget/internal/sheets/google"
	"budget/internal/worker"
)

func main() {
	// Load .env file for local development (ignored when absent)
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)
	logger.Info("Starting budget-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

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
	if be.AMQP == nil {
		logger.Error("AMQP broker unreachable", "url_set", cfg.AMQPURL != "")
		os.Exit(1)
	}

	// Initialize the Google Sheets mirror (optional)
	var mirror sheets.MirrorWriter
	if cfg.MirrorEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "interval", cfg.MirrorInterval)
	} else {
		logger.Info("Google Sheets mirror disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	w := worker.NewRenderWorker(be.Service, be.Store, cli.NewRenderer(cfg), mirror, cfg.MirrorInterval, logger)

	// Recover renders missed while the worker was down.
	if err := w.StartupRender(ctx); err != nil {
		logger.Error("Startup render failed", log.FieldError, err)
	}

	if err := w.Run(ctx, be.AMQP.ConsumeItemChanges); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	rendered, mirrored := w.Stats()
	logger.Info("Worker shutdown complete", "rendered", rendered, "mirrored", mirrored)
}
