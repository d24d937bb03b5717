package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"budgetpipe/internal/amqp"
	"budgetpipe/internal/backend"
	"budgetpipe/internal/cli"
	"budgetpipe/internal/log"
	"budgetpipe/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting budgetpipe-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, stop := cli.SignalContext()
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid export backend", log.FieldError, err)
		os.Exit(1)
	}
	store, err := backend.New(ctx, bcfg, logger)
	if err != nil {
		logger.Error("Failed to initialize export backend", log.FieldError, err)
		os.Exit(1)
	}

	client, err := amqp.Connect(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 10)
	if err != nil {
		logger.Error("Failed to connect to AMQP", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	exporter := worker.NewExportWorker(repo, store, cfg.GoogleSheetName)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeRunCompleted(gctx, exporter.HandleRunCompleted)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
