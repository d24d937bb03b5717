package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetpipe/internal/amqp"
	"budgetpipe/internal/backend"
	"budgetpipe/internal/cli"
	apphttp "budgetpipe/internal/http"
	"budgetpipe/internal/log"
	"budgetpipe/internal/services"
	"budgetpipe/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	rulesCfg := cli.LoadRules(logger, cfg.RulesPath)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, stop := cli.SignalContext()
	defer stop()

	var publisher services.RunPublisher
	if cfg.AMQPEnabled() {
		client, err := amqp.Connect(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 5)
		if err != nil {
			logger.Error("Failed to connect to AMQP", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
		logger.Info("Publishing run events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
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
		publisher = worker.Inline{Worker: worker.NewExportWorker(repo, store, cfg.GoogleSheetName)}
		logger.Info("AMQP disabled, exporting runs inline", "backend", bcfg.Type)
	}

	svc := services.NewPipelineService(repo, publisher)
	srv, err := apphttp.NewServer(svc, apphttp.Options{
		Addr:               ":" + cfg.Port,
		Rules:              rulesCfg,
		Logger:             logger,
		RunCacheSize:       cfg.RunCacheSize,
		RunCacheTTL:        cfg.RunCacheTTL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		logger.Error("Failed to build server", log.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting server", "addr", srv.Addr)
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
