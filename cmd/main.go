package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wgomg/affinity/internal/api"
	"github.com/wgomg/affinity/internal/config"
	"github.com/wgomg/affinity/internal/processor"
	"github.com/wgomg/affinity/internal/semantic"
	"github.com/wgomg/affinity/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := utils.NewLogger("error", false, true)
		log.Fatal("Failed to load configuration: ", err)
	}
	if err := cfg.Validate(); err != nil {
		log := utils.NewLogger("error", cfg.App.RawBodyLog, true)
		log.Fatal("Invalid configuration: ", err)
	}

	logger := utils.NewLogger(cfg.App.LogLevel, cfg.App.RawBodyLog, cfg.App.Env == config.Development)
	logger.Info(nil, "Starting Recommendation Service")
	logger.Info(nil, "Environment: %s", cfg.App.Env)
	logger.Info(nil, "Log level: %s", cfg.App.LogLevel)
	logger.Info(nil, "Embedding provider: %s, model: %s", cfg.Semantic.Provider, cfg.Semantic.Model)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The model is loaded before the port opens so no request sees a cold start.
	embedder, err := semantic.NewEmbedder(ctx, logger, cfg)
	if err != nil {
		logger.Error(nil, "Failed to create embedder: %v", err)
		logger.Fatal("Failed to initialize embedding model")
	}
	defer embedder.Close()

	ranker := processor.NewRanker(embedder, logger)
	handler := api.NewHandler(logger, ranker, embedder, cfg)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.App.ServerPort,
		Handler:           api.NewRouter(handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(nil, "Starting server on port %s", cfg.App.ServerPort)
		logger.Info(nil, "Endpoints:")
		logger.Info(nil, "  GET  /health")
		logger.Info(nil, "  POST /recommendations_with_scores/")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info(nil, "Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error(nil, "Server error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.App.ShutdownTimeoutSeconds)*time.Second,
	)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(nil, "Graceful shutdown failed: %v", err)
	}
	logger.Info(nil, "Server stopped")
}
