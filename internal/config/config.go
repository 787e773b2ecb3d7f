package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Gemini annotation
	GeminiAPIKey string
	GeminiModel  string

	// Worker pool
	WorkerCount        int
	MaxQueueSize       int
	ChapterConcurrency int

	// Upload limits
	MaxUploadBytes int64

	// Annotation behavior
	MaxRetries         int
	RetryDelay         time.Duration
	RequestsPerMinute  int
	ContextTokenBudget int

	// Job state
	JobTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("BOOKGLOSS_API_KEY"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  envOr("GEMINI_MODEL", "gemini-2.0-flash"),

		WorkerCount:        envInt("WORKER_COUNT", 2),
		MaxQueueSize:       envInt("MAX_QUEUE_SIZE", 32),
		ChapterConcurrency: envInt("CHAPTER_CONCURRENCY", 2),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 10485760), // 10MB

		MaxRetries:         envInt("MAX_RETRIES", 3),
		RetryDelay:         envDuration("RETRY_DELAY", 2*time.Second),
		RequestsPerMinute:  envInt("LLM_REQUESTS_PER_MINUTE", 60),
		ContextTokenBudget: envInt("CONTEXT_TOKEN_BUDGET", 24000),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 32
	}
	if cfg.ChapterConcurrency <= 0 {
		cfg.ChapterConcurrency = 2
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10485760
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.ContextTokenBudget <= 0 {
		cfg.ContextTokenBudget = 24000
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("BOOKGLOSS_API_KEY is required")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
