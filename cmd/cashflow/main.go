package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"cashflow/internal/ai"
	"cashflow/internal/amqp"
	"cashflow/internal/app"
	"cashflow/internal/auth"
	"cashflow/internal/backend"
	"cashflow/internal/cache"
	"cashflow/internal/cli"
	"cashflow/internal/core"
	"cashflow/internal/export"
	apphttp "cashflow/internal/http"
	"cashflow/internal/ledger"
	"cashflow/internal/log"
	"cashflow/internal/middleware/ratelimit"
)

const (
	searchCacheSize = 256
	searchCacheTTL  = 5 * time.Minute
)

func main() {
	logger, cfg := cli.Bootstrap(log.ComponentApp)
	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", "error", err)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Slog()).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
	}

	// Activity publishing is best effort; the ledger works without a broker.
	var publisher ledger.ActivityPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, activity will not be published", "error", err)
		} else {
			publisher = amqpClient
		}
	}

	var provider auth.Provider
	if res.Firebase != nil {
		fb, err := auth.NewFirebase(ctx, res.Firebase, cfg.FirebaseAPIKey, logger.Base())
		if err != nil {
			logger.Warn("Authentication unavailable, cloud mode disabled", "error", err)
		} else {
			provider = fb
		}
	}

	var gen ai.Generator
	if cfg.GeminiAPIKey != "" {
		g, err := ai.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("Gemini client unavailable", "error", err)
		} else {
			gen = g
		}
	}
	advisor := ai.NewAdvisor(gen, cfg.AILanguage, logger.Base())

	var archiver apphttp.ReportArchiver
	var archive *export.Archiver
	if cfg.ExportBucket != "" {
		var opts []option.ClientOption
		if cfg.GoogleCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
		}
		a, err := export.NewArchiver(ctx, cfg.ExportBucket, opts...)
		if err != nil {
			logger.Warn("Report archival disabled", "error", err, "bucket", cfg.ExportBucket)
		} else {
			archive, archiver = a, a
		}
	}

	searchCache := cache.NewLRUCache[[]core.Transaction](searchCacheSize, searchCacheTTL)
	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache).Slog())
	cacheManager.Register("search", searchCache)
	cacheManager.Start(time.Minute)

	opts := app.Options{
		Local:       res.Local,
		Publisher:   publisher,
		SearchCache: searchCache,
		Logger:      logger.Base(),
	}
	if res.Cloud != nil && provider != nil {
		opts.Cloud = res.Cloud
		opts.Auth = provider
	}
	shell := app.New(opts)
	if err := shell.Start(ctx); err != nil {
		cli.Fatal(logger, "Failed to start session", "error", err)
	}

	deps := apphttp.Deps{
		Shell:        shell,
		Advisor:      advisor,
		Archiver:     archiver,
		Logger:       logger,
		CORSOrigins:  cfg.CORSOrigins,
		WriteTimeout: cfg.HTTPWriteTimeout,
		RateLimit:    ratelimit.DefaultConfig(),
	}
	// The worker writes the activity log into the same SQLite file.
	if res.Repository != nil {
		deps.Activity = res.Repository
	}
	srv := apphttp.NewServer(":"+cfg.Port, deps)

	shutdown := cli.NewShutdown(logger, 30*time.Second)
	shutdown.OnStop(func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})
	shutdown.OnStop(func(context.Context) {
		shell.Close()
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close failed", "error", err)
			}
		}
		if archive != nil {
			if err := archive.Close(); err != nil {
				logger.Warn("Archive client close failed", "error", err)
			}
		}
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", "error", err)
		}
	})

	var g errgroup.Group
	g.Go(func() error {
		defer shutdown.Trigger()
		logger.Info("Starting cashflow server",
			"port", cfg.Port,
			"mode", shell.Mode(),
			"cloud", shell.CloudAvailable(),
			"fell_back", res.FellBack,
			"ai", advisor.Enabled(),
			"archive", archiver != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	shutdown.Wait()
	if err := g.Wait(); err != nil {
		cli.Fatal(logger, "Server error", "error", err, "port", cfg.Port)
	}
	logger.Info("Server stopped gracefully")
}
