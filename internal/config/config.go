package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderVertex     = "vertex"
)

type Config struct {
	Port         string
	DatabasePath string
	LogLevel     string

	// Model provider
	ModelProvider     string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string
	VertexProjectID   string
	VertexRegion      string
	VertexModel       string

	// Prompt cache
	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration

	// Optional pricing overrides, merged over the embedded table
	PricingFile string

	// S3 document archive; disabled when S3Endpoint is empty
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3BucketName      string
	S3UseSSL          bool

	// Upload limits
	MaxUploadSize int64
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := Read()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read builds a Config from the environment, after applying a .env file from
// the working directory if one exists. It does not validate model settings,
// so maintenance commands can run without provider credentials.
func Read() *Config {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		DatabasePath:         getEnv("DATABASE_PATH", "data/invoices.db"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		ModelProvider:        strings.ToLower(getEnv("MODEL_PROVIDER", ProviderOpenRouter)),
		OpenRouterAPIKey:     getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterModel:      getEnv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
		OpenRouterBaseURL:    getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		VertexProjectID:      getEnv("VERTEX_PROJECT_ID", ""),
		VertexRegion:         getEnv("VERTEX_REGION", "us-central1"),
		VertexModel:          getEnv("VERTEX_MODEL", "gemini-1.5-flash"),
		CacheTTL:             getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheCleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 0),
		PricingFile:          getEnv("PRICING_FILE", ""),
		S3Endpoint:           getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:        getEnv("S3_ACCESS_KEY_ID", "minioadmin"),
		S3SecretAccessKey:    getEnv("S3_SECRET_ACCESS_KEY", "minioadmin"),
		S3BucketName:         getEnv("S3_BUCKET_NAME", "invoices"),
		S3UseSSL:             getEnv("S3_USE_SSL", "false") == "true",
		MaxUploadSize:        getEnvInt64("MAX_UPLOAD_SIZE", 20<<20),
	}

	return cfg
}

// Validate checks the settings the selected model provider depends on.
func (c *Config) Validate() error {
	switch c.ModelProvider {
	case ProviderOpenRouter:
		if c.OpenRouterAPIKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required")
		}
	case ProviderVertex:
		if c.VertexProjectID == "" || c.VertexRegion == "" {
			return fmt.Errorf("VERTEX_PROJECT_ID and VERTEX_REGION are required")
		}
	default:
		return fmt.Errorf("unknown MODEL_PROVIDER %q (want %q or %q)", c.ModelProvider, ProviderOpenRouter, ProviderVertex)
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}

	return nil
}

// ArchiveEnabled reports whether uploaded documents should be copied to object storage.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Endpoint != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s", "5m") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
