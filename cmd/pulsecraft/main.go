package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pulsecraft/pulsecraft/internal/composition"
	"github.com/pulsecraft/pulsecraft/internal/config"
	"github.com/pulsecraft/pulsecraft/internal/experiment"
	"github.com/pulsecraft/pulsecraft/internal/pipeline"
	"github.com/pulsecraft/pulsecraft/internal/safety"
	"github.com/pulsecraft/pulsecraft/internal/server"
	"github.com/pulsecraft/pulsecraft/internal/storage"
	"github.com/pulsecraft/pulsecraft/internal/storage/memory"
	"github.com/pulsecraft/pulsecraft/internal/storage/sqlite"
	"github.com/pulsecraft/pulsecraft/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	shutdown, err := telemetry.InitTracer("pulsecraft", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	runs, err := newRunStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer runs.Close()

	var orchOpts []experiment.Option
	if cfg.Experiment.Seed != nil {
		orchOpts = append(orchOpts, experiment.WithSeed(*cfg.Experiment.Seed))
	}
	orch := experiment.New(orchOpts...)

	composer := composition.New(composition.BrandVoice{
		Tone:      cfg.Composition.BrandVoice.Tone,
		Formality: cfg.Composition.BrandVoice.Formality,
		MaxLength: cfg.Composition.BrandVoice.MaxLength,
	})

	checker, err := safety.New(cfg.Safety.BlockedPatterns)
	if err != nil {
		log.Fatalf("Failed to initialize safety checker: %v", err)
	}

	p, err := pipeline.New(pipeline.Config{
		Experiments: orch,
		Composition: composer,
		Safety:      checker,
	})
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}

	srv := server.New(cfg.Server.Port, logger)
	handler := server.NewHandler(p, orch, runs, logger)
	handler.RegisterRoutes(srv.Router)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("pulsecraft started",
		slog.Int("port", cfg.Server.Port),
		slog.String("storage", cfg.Storage.Type))

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	case <-sigChan:
	}

	logger.Info("Shutdown signal received, stopping server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Shutdown complete")
}

func newRunStore(cfg *config.Config) (storage.RunStore, error) {
	switch cfg.Storage.Type {
	case "sqlite":
		path := cfg.Storage.SQLite.Path
		if path == "" {
			path = "./data/pulsecraft.db"
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create storage directory %s: %w", dir, err)
			}
		}
		return sqlite.New(path)
	default:
		return memory.New(), nil
	}
}
