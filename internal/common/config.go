package common

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Storage  StorageConfig
	Rules    RulesConfig
	Ingest   IngestConfig
	Pipeline PipelineConfig
	OCR      OCRConfig
}

// DatabaseConfig holds record-store configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr string
}

// StorageConfig holds file-storage paths
type StorageConfig struct {
	DocumentRoot     string // root of the uploaded-document store
	ArtifactCacheDir string // stage artifacts (fetched bytes, page images)
	CheckpointPath   string // sqlite file holding job checkpoints
}

// RulesConfig holds extraction rule-set configuration
type RulesConfig struct {
	Dir string
}

// IngestConfig holds the optional document-root watcher configuration
type IngestConfig struct {
	Watch       bool          // auto-submit documents appearing under the root
	RuleSetID   string        // rule-set applied to auto-submitted documents
	InitialScan bool          // submit files already present at startup
	Debounce    time.Duration // coalesce rapid filesystem event bursts
}

// PipelineConfig holds orchestration knobs
type PipelineConfig struct {
	Workers          int
	QueueSize        int
	MaxStageAttempts int
	BackoffBase      time.Duration
	BackoffCap       time.Duration
	FetchTimeout     time.Duration
	RecognizeTimeout time.Duration
	PersistTimeout   time.Duration
	JobTimeout       time.Duration
}

// OCRConfig holds external recognition tooling configuration
type OCRConfig struct {
	Tesseract     string
	TesseractLang string
	Pdftoppm      string
	DPI           int
	PSM           int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		},
		Storage: StorageConfig{
			DocumentRoot:     getEnv("DOCUMENT_ROOT", ""),
			ArtifactCacheDir: getEnv("ARTIFACT_CACHE_DIR", "./tmp"),
			CheckpointPath:   getEnv("CHECKPOINT_PATH", "./docverify.db"),
		},
		Rules: RulesConfig{
			Dir: getEnv("RULESET_DIR", "./rulesets"),
		},
		Ingest: IngestConfig{
			Watch:       getEnvAsBool("INGEST_WATCH", false),
			RuleSetID:   getEnv("INGEST_RULESET", ""),
			InitialScan: getEnvAsBool("INGEST_INITIAL_SCAN", false),
			Debounce:    getEnvAsDuration("INGEST_DEBOUNCE", 500*time.Millisecond),
		},
		Pipeline: PipelineConfig{
			Workers:          getEnvAsInt("PIPELINE_WORKERS", 4),
			QueueSize:        getEnvAsInt("PIPELINE_QUEUE_SIZE", 256),
			MaxStageAttempts: getEnvAsInt("PIPELINE_MAX_ATTEMPTS", 3),
			BackoffBase:      getEnvAsDuration("PIPELINE_BACKOFF_BASE", 1*time.Second),
			BackoffCap:       getEnvAsDuration("PIPELINE_BACKOFF_CAP", 1*time.Minute),
			FetchTimeout:     getEnvAsDuration("FETCH_TIMEOUT", 10*time.Second),
			RecognizeTimeout: getEnvAsDuration("RECOGNIZE_TIMEOUT", 45*time.Second),
			PersistTimeout:   getEnvAsDuration("PERSIST_TIMEOUT", 10*time.Second),
			JobTimeout:       getEnvAsDuration("JOB_TIMEOUT", 3*time.Minute),
		},
		OCR: OCRConfig{
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			PSM:           getEnvAsInt("OCR_PSM", 6),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("%w: DB_URL is required", ErrInvalidConfig)
	}
	if c.Storage.DocumentRoot == "" {
		return fmt.Errorf("%w: DOCUMENT_ROOT is required", ErrInvalidConfig)
	}
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("%w: HTTP_ADDR is required", ErrInvalidConfig)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("%w: PIPELINE_WORKERS must be positive", ErrInvalidConfig)
	}
	if c.Ingest.Watch && c.Ingest.RuleSetID == "" {
		return fmt.Errorf("%w: INGEST_RULESET is required when INGEST_WATCH is on", ErrInvalidConfig)
	}
	return nil
}
