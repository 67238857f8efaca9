package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/avela/lectern/config"
	"github.com/avela/lectern/internal/adapter/artifacts/jsonfile"
	"github.com/avela/lectern/internal/adapter/artifacts/srt"
	"github.com/avela/lectern/internal/adapter/artifacts/workbook"
	"github.com/avela/lectern/internal/adapter/converter/ffmpeg"
	HTTPAdapter "github.com/avela/lectern/internal/adapter/http"
	"github.com/avela/lectern/internal/adapter/ollama"
	sqlitestore "github.com/avela/lectern/internal/adapter/storage/sqlite"
	"github.com/avela/lectern/internal/adapter/whisperd"
	"github.com/avela/lectern/internal/infrastructure/logger"
	"github.com/avela/lectern/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Error.Printf("failed to load config: %v", err)
		os.Exit(1)
	}

	logger.Info.Printf("starting lectern on port %d, model=%s", cfg.Port, cfg.OllamaModel)

	workDir := filepath.Join(cfg.DataDir, "work")
	outputDir := filepath.Join(cfg.DataDir, "outputs")
	for _, dir := range []string{cfg.DataDir, filepath.Join(cfg.DataDir, "uploads"), workDir, outputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error.Printf("failed to create directory %s: %v", dir, err)
			os.Exit(1)
		}
	}

	store, err := sqlitestore.NewStore(cfg.DataDir)
	if err != nil {
		logger.Error.Printf("failed to create store: %v", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	registry := sqlitestore.NewRegistry(store)
	eventBus := service.NewEventBus()

	extractor := ffmpeg.NewExtractor()
	transcriber := whisperd.New(cfg.WhisperURL, cfg.WhisperTimeout)
	analyzer := ollama.New(cfg.OllamaURL, cfg.OllamaModel,
		ollama.WithBaseTimeout(cfg.AnalyzeTimeout),
		ollama.WithMaxRetries(cfg.AnalyzeRetries),
	)

	pipeline := service.NewPipeline(service.PipelineDeps{
		Registry:    registry,
		Extractor:   extractor,
		Transcriber: transcriber,
		Analyzer:    analyzer,
		Subtitles:   srt.NewWriter(),
		Documents:   workbook.NewWriter(),
		Results:     jsonfile.NewWriter(),
		Events:      eventBus,
		WorkDir:     workDir,
		OutputDir:   outputDir,
	})

	jobSvc := service.NewJobService(registry, analyzer, extractor, transcriber, cfg.DataDir)

	// Worker pool for async pipeline jobs
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	workerPool := service.NewWorkerPool(registry, pipeline, cfg.Workers)
	workerPool.Start(workerCtx)

	server := HTTPAdapter.NewServer(jobSvc, analyzer, eventBus, cfg.MaxUploadSizeMB, cfg.BehindProxy)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info.Printf("received %s, shutting down", sig)

		// Stop accepting new requests
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error.Printf("http shutdown error: %v", err)
		}

		// Cancel workers. In-flight stages are aborted; interrupted jobs are
		// failed as stalled on the next start.
		workerCancel()

		logger.Info.Printf("shutdown complete")
	}()

	logger.Info.Printf("server listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error.Printf("server failed: %v", err)
		os.Exit(1)
	}
}
