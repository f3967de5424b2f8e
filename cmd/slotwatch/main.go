// Package main wires together the slot crawler service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcppubsub "cloud.google.com/go/pubsub"
	gcpstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/volcanotrek/slotwatch/internal/api"
	artifactgcs "github.com/volcanotrek/slotwatch/internal/artifact/gcs"
	artifactmemory "github.com/volcanotrek/slotwatch/internal/artifact/memory"
	"github.com/volcanotrek/slotwatch/internal/browser"
	"github.com/volcanotrek/slotwatch/internal/clock/system"
	"github.com/volcanotrek/slotwatch/internal/config"
	"github.com/volcanotrek/slotwatch/internal/crawl"
	"github.com/volcanotrek/slotwatch/internal/id/uuid"
	"github.com/volcanotrek/slotwatch/internal/logging"
	pubmemory "github.com/volcanotrek/slotwatch/internal/publisher/memory"
	pubgcp "github.com/volcanotrek/slotwatch/internal/publisher/pubsub"
	storagememory "github.com/volcanotrek/slotwatch/internal/storage/memory"
	storagepg "github.com/volcanotrek/slotwatch/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slots, runs, closeStores, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer closeStores()

	publisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	artifacts, err := buildArtifacts(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("artifact store init failed", zap.Error(err))
	}

	engine, err := browser.NewEngine(browser.EngineConfig{
		UserAgent:   cfg.Upstream.UserAgent,
		MaxSessions: cfg.Crawler.Concurrency + 1,
	})
	if err != nil {
		logger.Fatal("browser engine init failed", zap.Error(err))
	}
	defer engine.Close()

	querier := browser.NewQuerier(browser.QuerierConfig{
		FormURL:      cfg.Upstream.FormURL,
		StepDelay:    cfg.StepDelay(),
		QueryTimeout: cfg.QueryTimeout(),
	})
	prober := browser.NewProber(browser.ProbeConfig{
		FormURL:   cfg.Upstream.FormURL,
		UserAgent: cfg.Upstream.UserAgent,
		Timeout:   cfg.ProbeTimeout(),
	})

	metrics := crawl.NewMetrics()
	clock := system.New()
	idGen := uuid.New()

	runner := crawl.NewRunner(
		slots,
		runs,
		engine,
		querier,
		prober,
		publisher,
		artifacts,
		clock,
		idGen,
		metrics,
		crawl.RunnerConfig{
			StartOffsetDays: cfg.Crawler.StartOffsetDays,
			WindowDays:      cfg.Crawler.WindowDays,
			Concurrency:     cfg.Crawler.Concurrency,
			RetryAttempts:   cfg.Crawler.RetryAttempts,
			RunTimeout:      cfg.RunTimeout(),
			Topic:           cfg.PubSub.TopicName,
			ArchiveUnknown:  cfg.Artifacts.ArchiveUnknown,
			ArtifactPrefix:  cfg.Artifacts.Prefix,
		},
		logger.Named("runner"),
	)

	apiServer := api.NewServer(slots, runs, runner, clock, cfg, metrics.Registry, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawl.SlotStore, crawl.RunStore, func(), error) {
	if cfg.DB.DSN == "" {
		logger.Info("no db.dsn configured, using in-memory stores")
		return storagememory.NewSlotStore(), storagememory.NewRunStore(), func() {}, nil
	}
	pool, err := storagepg.NewPool(ctx, storagepg.PoolConfig{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	slots, err := storagepg.NewSlotStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	runs, err := storagepg.NewRunStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	return slots, runs, pool.Close, nil
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawl.Publisher, error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		logger.Info("pubsub not configured, using in-memory publisher")
		return pubmemory.New(), nil
	}
	client, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	return pubgcp.New(client)
}

func buildArtifacts(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawl.ArtifactStore, error) {
	if !cfg.Artifacts.ArchiveUnknown {
		return nil, nil
	}
	if cfg.Artifacts.GCSBucket == "" {
		logger.Info("artifact bucket not configured, using in-memory archive")
		return artifactmemory.New(), nil
	}
	client, err := gcpstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return artifactgcs.New(client, artifactgcs.Config{Bucket: cfg.Artifacts.GCSBucket})
}
