package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/attachments"
	"saldo/internal/auth"
	"saldo/internal/backend"
	"saldo/internal/cache"
	"saldo/internal/cli"
	"saldo/internal/core"
	apphttp "saldo/internal/http"
	"saldo/internal/log"
	"saldo/internal/records"
	"saldo/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)
	ctx := context.Background()

	loc, _ := cfg.Location()
	goal, _ := cfg.DefaultGoal()

	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger)
	stores, err := factory.CreateStore(ctx, bc)
	if err != nil {
		logger.Error("Failed to initialize document store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	blobs, err := factory.CreateBlobs(ctx, bc)
	if err != nil {
		logger.Error("Failed to initialize blob store", "error", err, "backend", cfg.BlobBackend)
		os.Exit(1)
	}

	files := attachments.NewManager(blobs.Store, cfg.AppID,
		attachments.WithMaxBytes(cfg.MaxUploadBytes),
		attachments.WithLogger(logger))

	snapshots := cache.NewLRUCache[core.Ledger](cfg.SnapshotCacheSize, cfg.SnapshotCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(snapshots)
	caches.StartCleanup(5 * time.Minute)

	opts := []records.Option{
		records.WithCache(snapshots),
		records.WithDefaultGoal(goal),
		records.WithLogger(logger),
	}

	// AMQP is optional; without it changes only reach this process
	var broker *amqp.Client
	if cfg.AMQPURL != "" {
		broker, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change feed", "error", err)
		} else {
			opts = append(opts, records.WithPublisher(broker))
			logger.Info("Initialized AMQP change feed", "exchange", cfg.AMQPExchange)
		}
	}
	adapter := records.New(stores.Store, files, nil, opts...)

	issuer, err := auth.NewIssuer(cfg.AuthSecret, cfg.AppID, cfg.AuthTokenTTL)
	if err != nil {
		logger.Error("Failed to initialize token issuer", "error", err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Records:            adapter,
		Issuer:             issuer,
		Store:              stores.Store,
		Blobs:              blobs.Handler,
		Location:           loc,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.AllowedOrigins,
		TrustedProxies:     cfg.TrustedProxies,
		MaxUploadBytes:     cfg.MaxUploadBytes,
	})
	srv.ReadTimeout = 30 * time.Second
	srv.IdleTimeout = 120 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	runCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if broker != nil {
			_ = broker.Close()
		}
		if stores.Cleanup != nil {
			if err := stores.Cleanup(); err != nil {
				logger.Error("Store cleanup error", "error", err)
			}
		}
	})

	// Changes committed by other server instances refresh local sessions.
	if broker != nil {
		go func() {
			q := amqp.Queue{Exclusive: true, AutoDelete: true}
			err := broker.Consume(runCtx, q, worker.Relay(adapter, broker.Origin(), logger))
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Change feed consumer stopped", "error", err)
			}
		}()
	}

	logger.Info("Starting saldo server",
		"port", cfg.Port,
		"data_backend", cfg.DataBackend,
		"blob_backend", cfg.BlobBackend,
		"timezone", loc.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Server stopped gracefully")
}
