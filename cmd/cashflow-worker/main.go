package main

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"cashflow/internal/amqp"
	"cashflow/internal/cli"
	"cashflow/internal/log"
	"cashflow/internal/storage"
	"cashflow/internal/worker"
)

const statsInterval = 5 * time.Minute

func main() {
	logger, cfg := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting cashflow-worker", "queue", cfg.AMQPQueue, "prefetch", cfg.ActivityPrefetch)
	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "AMQP_URL is required for the worker")
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
	}
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		repo.Close()
		cli.Fatal(logger, "Failed to initialize AMQP client", "error", err)
	}
	activity := worker.NewActivityWorker(repo)

	shutdown := cli.NewShutdown(logger, 30*time.Second)
	shutdown.OnStop(func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close failed", "error", err)
		}
		if err := repo.Close(); err != nil {
			logger.Warn("SQLite close failed", "error", err)
		}
	})

	g, gctx := errgroup.WithContext(shutdown.Context())
	g.Go(func() error {
		err := amqpClient.ConsumeActivity(gctx, cfg.ActivityPrefetch, activity.HandleActivityMessage)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				processed, duplicates := activity.Stats()
				logger.Info("Activity worker stats", "processed", processed, "duplicates", duplicates)
			}
		}
	})

	err = g.Wait()
	shutdown.Trigger()
	shutdown.Wait()
	if err != nil {
		cli.Fatal(logger, "Message consumption failed", "error", err)
	}

	processed, duplicates := activity.Stats()
	logger.Info("Worker stopped", "processed", processed, "duplicates", duplicates)
}
