package main

import (
	"context"
	"errors"
	"os"

	"saldo/internal/amqp"
	"saldo/internal/backend"
	"saldo/internal/cache"
	"saldo/internal/cli"
	"saldo/internal/config"
	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/records"
	"saldo/internal/sheets"
	gsheet "saldo/internal/sheets/google"
	"saldo/internal/sheets/memory"
	"saldo/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker, (*config.Config).ValidateWorker)
	logger.Info("Starting saldo-worker")
	ctx := context.Background()

	goal, _ := cfg.DefaultGoal()

	// The worker reads the same document store the servers write.
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	stores, err := backend.NewFactory(logger).CreateStore(ctx, bc)
	if err != nil {
		logger.Error("Failed to initialize document store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	snapshots := cache.NewLRUCache[core.Ledger](cfg.SnapshotCacheSize, cfg.SnapshotCacheTTL)
	adapter := records.New(stores.Store, nil, nil,
		records.WithCache(snapshots),
		records.WithDefaultGoal(goal),
		records.WithLogger(logger))

	var mirror sheets.Mirror
	switch cfg.MirrorBackend {
	case "memory":
		mirror = memory.New()
		logger.Warn("Mirroring into memory; nothing is written to a spreadsheet")
	default:
		creds, err := cfg.GoogleCredentials()
		if err != nil {
			logger.Error("Failed to read Google credentials", "error", err)
			os.Exit(1)
		}
		mirror, err = gsheet.New(ctx, cfg.GoogleSpreadsheetID, creds, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	mirrorWorker := worker.NewMirrorWorker(adapter, mirror, 0, logger)

	runCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(context.Context) {
		_ = client.Close()
		if stores.Cleanup != nil {
			if err := stores.Cleanup(); err != nil {
				logger.Error("Store cleanup error", "error", err)
			}
		}
	})

	// Catch up on scopes whose changes may have been missed while down.
	if len(cfg.ResyncScopes) > 0 {
		synced, failed := mirrorWorker.Resync(runCtx, cfg.ResyncScopes)
		logger.Info("Startup resync finished", "synced", synced, "failed", failed)
	}

	go func() {
		q := amqp.Queue{Name: cfg.AMQPQueue, Durable: true}
		err := client.Consume(runCtx, q, mirrorWorker.HandleChange)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Worker stopped gracefully")
}
