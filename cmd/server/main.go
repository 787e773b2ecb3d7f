package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookgloss/internal/annotate"
	"bookgloss/internal/api"
	"bookgloss/internal/config"
	"bookgloss/internal/jobs"
	"bookgloss/internal/llm"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the Gemini client.
	gemini := llm.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.RequestsPerMinute)

	// Initialize the job manager and its worker pool.
	manager := jobs.NewManager(jobs.Config{
		WorkerCount:    cfg.WorkerCount,
		MaxQueueSize:   cfg.MaxQueueSize,
		MaxUploadBytes: cfg.MaxUploadBytes,
		JobTTL:         cfg.JobTTL,
		Pipeline: annotate.Config{
			ChapterConcurrency: cfg.ChapterConcurrency,
			Session: annotate.SessionConfig{
				MaxAttempts: uint(cfg.MaxRetries),
				RetryDelay:  cfg.RetryDelay,
				TokenBudget: cfg.ContextTokenBudget,
			},
		},
	}, gemini, log)
	manager.Start(ctx)

	// Initialize the HTTP server.
	srv := api.NewServer(manager, gemini, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		manager.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		gemini.Close()
	}()

	log.Info("starting bookgloss", "port", cfg.Port, "model", cfg.GeminiModel)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
