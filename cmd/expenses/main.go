package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/cache"
	"expenses/internal/cli"
	apphttp "expenses/internal/http"
	"expenses/internal/ingest"
	"expenses/internal/log"
)

const cacheSweepInterval = 10 * time.Minute

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadConfig("expenses")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	reportSvc, err := cli.NewReportService(cfg, repo, logger)
	if err != nil {
		logger.Error("Failed to initialize reports", log.FieldError, err.Error())
		os.Exit(1)
	}

	ingestOpts := []ingest.Option{ingest.WithLogger(logger)}
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// Uploads still work without the bus; the worker just misses them.
			logger.Warn("AMQP unavailable, upload events disabled", log.FieldError, err.Error())
		} else {
			defer client.Close()
			ingestOpts = append(ingestOpts, ingest.WithPublisher(client))
			logger.Info("Publishing upload events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	ingestSvc := ingest.NewService(repo, ingestOpts...)

	srv := apphttp.NewServer(":"+cfg.Port, repo, ingestSvc, reportSvc,
		apphttp.WithLogger(logger),
		apphttp.WithMaxUploadBytes(cfg.UploadMaxBytes),
		apphttp.WithUploadRateLimit(cfg.UploadRateLimit),
	)
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	caches := cache.NewManager(logger)
	caches.Register(reportSvc.Cache())
	caches.Register(srv.Limiter())
	caches.StartCleanup(cacheSweepInterval)
	defer caches.Stop()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting expenses server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	cli.RunCleanup(logger, 30*time.Second, func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	})
	logger.Info("Server stopped gracefully")
}
