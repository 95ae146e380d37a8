package main

import (
	"context"
	"fmt"
	"os"

	"budget/internal/cli"
	"budget/internal/log"
	"budget/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		return err
	}

	// Command output goes to stdout; keep logs on stderr and quiet by default.
	level := cfg.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	logger := log.NewText(os.Stderr, log.ParseLevel(level), log.ComponentCLI)
	log.SetDefault(logger)

	ctx := context.Background()
	be, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	app := &cli.App{
		Items:    be.Service,
		HTML:     be.Store,
		Renderer: cli.NewRenderer(cfg),
	}
	if cfg.DataBackend == "sqlite" {
		app.Migrate = func() (uint, error) { return storage.MigrateUp(cfg.SQLiteDBPath) }
	}

	return cli.NewRootCmd(app).ExecuteContext(ctx)
}
