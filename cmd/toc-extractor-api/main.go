// Package main provides the TOC extractor API server entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lexatlas/toc-extractor/internal/async"
	"github.com/lexatlas/toc-extractor/internal/cache"
	"github.com/lexatlas/toc-extractor/internal/config"
	"github.com/lexatlas/toc-extractor/internal/extract"
	"github.com/lexatlas/toc-extractor/internal/llm"
	"github.com/lexatlas/toc-extractor/internal/observability"
	"github.com/lexatlas/toc-extractor/internal/pdf"
	"github.com/lexatlas/toc-extractor/internal/storage"
)

func main() {
	// Optional .env file for local development
	_ = godotenv.Load()

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "toc-extractor-api",
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("model", cfg.OpenAI.Model).
		Str("job_db", cfg.Jobs.DBPath).
		Msg("Starting TOC extractor API")

	// Open the job store
	db, err := storage.Open(cfg.Jobs.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Jobs.DBPath).Msg("Failed to open job store")
	}
	defer db.Close()
	repo := storage.NewJobRepository(db)

	// Optional result cache
	cacheClient, err := cache.New(cfg.Cache)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize cache, continuing without it")
		cacheClient = nil
	}
	if cacheClient != nil {
		defer cacheClient.Close()
	}

	// Build the extraction pipeline
	rasterizer := pdf.NewRasterizer(cfg.PDF.RenderWorkers, logger)
	gateway := llm.NewClient(cfg.OpenAI, logger)
	opts := []extract.Option{extract.WithFetcher(extract.NewFetcher(logger))}
	if cacheClient != nil {
		opts = append(opts, extract.WithCache(cacheClient, cfg.Cache.TTL))
	}
	extractor := extract.NewService(rasterizer, gateway, logger, opts...)

	// Background job runner and eviction sweeps
	runner := async.NewRunner(repo, extractor, logger,
		async.WithWorkers(cfg.Jobs.Workers),
		async.WithQueueSize(cfg.Jobs.QueueSize),
	)
	evictor := async.NewEvictor(repo, logger, cfg.Jobs.Retention, cfg.Jobs.EvictionInterval)
	evictCtx, stopEvictor := context.WithCancel(context.Background())
	defer stopEvictor()
	go evictor.Run(evictCtx)

	// Initialize router with all handlers
	router := NewRouter(logger, cfg, extractor, runner)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt or error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	// Graceful shutdown: stop accepting requests, then drain the queue
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	runner.Shutdown(ctx)
	stopEvictor()

	logger.Info().Msg("Server stopped")
}
