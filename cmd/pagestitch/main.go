package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pagestitch/internal/cli"
	"pagestitch/internal/config"
	"pagestitch/internal/logging"
	"pagestitch/internal/pipeline"
	"pagestitch/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pagestitch:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}

	store, err := storage.New(cfg.Paths.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening job database: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipe := pipeline.New(ctx, cfg.Processing.ParallelJobs, logger, store, cfg)
	defer pipe.Stop()

	return cli.NewRootCmd(cfg, logger, store, pipe).ExecuteContext(ctx)
}
