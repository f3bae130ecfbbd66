package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	Env string // development, staging, production

	// Warehouse
	Warehouse string // postgres, csv, memory
	OutputDir string
	Database  DatabaseConfig

	// Redis
	Redis RedisConfig

	// Inputs
	Artifacts     ArtifactConfig
	Catalog       string        // universe catalog YAML (optional)
	ScrapeTimeout time.Duration // per-request timeout for constituent pages

	// Pipeline
	Truth    TruthConfig
	Pipeline PipelineConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	PushgatewayURL string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// ArtifactConfig describes where prediction CSVs live
type ArtifactConfig struct {
	Backend        string // local, gcs
	Root           string // local root or GCS prefix
	Marker         string // directory name preceding the universe segment
	GCSBucket      string
	GCSCredentials string
}

// TruthConfig holds price fetch tuning
type TruthConfig struct {
	BatchSize   int
	Concurrency int
	PaddingDays int
	RPS         int
	MaxRetries  int
}

// PipelineConfig holds run-level switches
type PipelineConfig struct {
	IngestWorkers    int
	WindowDays       int
	RequireArtifacts bool
	PersistRaw       bool
	ReportPath       string
}

// MaxTruthBatchSize is the largest symbol batch a single price request may carry
const MaxTruthBatchSize = 50

// MinTruthPaddingDays covers the longest market closure (a long weekend plus
// a holiday) so the first requested date still has a prior close
const MinTruthPaddingDays = 4

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Warehouse: getEnv("WAREHOUSE", "csv"),
		OutputDir: getEnv("OUTPUT_DIR", "artifacts/warehouse"),
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Artifacts: ArtifactConfig{
			Backend:        getEnv("ARTIFACT_BACKEND", "local"),
			Root:           getEnv("ARTIFACT_ROOT", "artifacts/predictions"),
			Marker:         getEnv("ARTIFACT_MARKER", "predictions"),
			GCSBucket:      getEnv("GCS_BUCKET", ""),
			GCSCredentials: getEnv("GCS_CREDENTIALS", ""),
		},
		Catalog:       getEnv("UNIVERSE_CATALOG", ""),
		ScrapeTimeout: getEnvAsDuration("UNIVERSE_SCRAPE_TIMEOUT", "15s"),

		Truth: TruthConfig{
			BatchSize:   getEnvAsInt("TRUTH_BATCH_SIZE", MaxTruthBatchSize),
			Concurrency: getEnvAsInt("TRUTH_CONCURRENCY", 4),
			PaddingDays: getEnvAsInt("TRUTH_PADDING_DAYS", 5),
			RPS:         getEnvAsInt("PRICE_RPS", 5),
			MaxRetries:  getEnvAsInt("PRICE_MAX_RETRIES", 3),
		},

		Pipeline: PipelineConfig{
			IngestWorkers:    getEnvAsInt("INGEST_WORKERS", 4),
			WindowDays:       getEnvAsInt("METRICS_WINDOW_DAYS", 0),
			RequireArtifacts: getEnvAsBool("REQUIRE_ARTIFACTS", true),
			PersistRaw:       getEnvAsBool("PERSIST_RAW", false),
			ReportPath:       getEnv("REPORT_PATH", "docs/model_skill_over_time.html"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		PushgatewayURL: getEnv("PUSHGATEWAY_URL", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Warehouse {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when WAREHOUSE=postgres")
		}
	case "csv":
		if c.OutputDir == "" {
			return fmt.Errorf("OUTPUT_DIR is required when WAREHOUSE=csv")
		}
	case "memory":
	default:
		return fmt.Errorf("WAREHOUSE must be one of: postgres, csv, memory")
	}

	switch c.Artifacts.Backend {
	case "local":
	case "gcs":
		if c.Artifacts.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required when ARTIFACT_BACKEND=gcs")
		}
	default:
		return fmt.Errorf("ARTIFACT_BACKEND must be one of: local, gcs")
	}

	if c.Truth.BatchSize < 1 || c.Truth.BatchSize > MaxTruthBatchSize {
		return fmt.Errorf("TRUTH_BATCH_SIZE must be between 1 and %d", MaxTruthBatchSize)
	}
	if c.Truth.Concurrency < 1 {
		return fmt.Errorf("TRUTH_CONCURRENCY must be positive")
	}
	if c.Truth.PaddingDays < MinTruthPaddingDays {
		return fmt.Errorf("TRUTH_PADDING_DAYS must be at least %d calendar days", MinTruthPaddingDays)
	}
	if c.Pipeline.WindowDays < 0 {
		return fmt.Errorf("METRICS_WINDOW_DAYS must not be negative")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
