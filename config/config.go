package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            int
	DataDir         string
	MaxUploadSizeMB int
	Workers         int
	BehindProxy     bool

	OllamaURL      string
	OllamaModel    string
	AnalyzeTimeout time.Duration
	AnalyzeRetries int

	WhisperURL     string
	WhisperTimeout time.Duration
}

func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8000"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	maxUploadSizeMB, err := strconv.Atoi(getEnv("MAX_UPLOAD_SIZE_MB", "1024"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE_MB: %w", err)
	}

	workers, err := strconv.Atoi(getEnv("WORKERS", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKERS: %w", err)
	}
	if workers < 1 {
		return nil, fmt.Errorf("WORKERS must be at least 1, got %d", workers)
	}

	analyzeTimeoutSec, err := strconv.Atoi(getEnv("ANALYZE_TIMEOUT_SEC", "120"))
	if err != nil {
		return nil, fmt.Errorf("invalid ANALYZE_TIMEOUT_SEC: %w", err)
	}

	analyzeRetries, err := strconv.Atoi(getEnv("ANALYZE_RETRIES", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid ANALYZE_RETRIES: %w", err)
	}

	whisperTimeoutSec, err := strconv.Atoi(getEnv("WHISPER_TIMEOUT_SEC", "600"))
	if err != nil {
		return nil, fmt.Errorf("invalid WHISPER_TIMEOUT_SEC: %w", err)
	}

	return &Config{
		Port:            port,
		DataDir:         getEnv("DATA_DIR", "data"),
		MaxUploadSizeMB: maxUploadSizeMB,
		Workers:         workers,
		BehindProxy:     getEnv("BEHIND_PROXY", "") != "",
		OllamaURL:       getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:     getEnv("OLLAMA_MODEL", "llama3.1"),
		AnalyzeTimeout:  time.Duration(analyzeTimeoutSec) * time.Second,
		AnalyzeRetries:  analyzeRetries,
		WhisperURL:      getEnv("WHISPER_URL", "http://localhost:9000"),
		WhisperTimeout:  time.Duration(whisperTimeoutSec) * time.Second,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
