package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration loaded from environment variables.
// It is immutable after Load() returns.
type Config struct {
	Environment      string
	DatabaseURL      string
	DatabaseMaxConns int

	// Per-worker pool (spec §9): each worker process opens its own tiny pool.
	WorkerPoolMaxConns      int
	WorkerStatementTimeoutMs int
	WorkerLockTimeoutMs      int

	// Repair Service dedicated pool (spec.md:224): cleanup operations get
	// their own connection with a statement/lock timeout floor, independent
	// of the controller's general-purpose pool.
	RepairPoolMaxConns        int
	RepairStatementTimeoutMs  int
	RepairLockTimeoutMs       int

	GCPProject string
	GCPRegion  string

	EmbeddingLocation   string
	EmbeddingModel      string
	EmbeddingDimensions int

	GCSBucketName    string
	DocAIProcessorID string
	DocAILocation    string

	// OCRProvider selects the concrete OCR Gateway implementation (§6.4, §12.4).
	OCRProvider string // "tesseract" | "documentai"

	// Image-analysis fallback for images OCR can't read (spec §4.5's Image
	// branch). Empty AzureVisionEndpoint/Key disables it entirely.
	ImageAnalysisEnabled             bool
	AzureVisionEndpoint              string
	AzureVisionKey                   string
	ImageAnalysisConfidenceThreshold float64

	ChunkSizeTokens     int
	ChunkOverlapPercent int

	// KeywordVariant selects the keyword extractor algorithm (§4.6, §12.3).
	KeywordVariant string // "standard" | "fast" | "simplified"

	CatalogBaseURL  string
	CatalogPageSize int

	FilesConcurrencySize int // max documents processed concurrently (spec §9)

	// PhantomWorkerThresholdHours: a worker subprocess still running its
	// current document after this many hours is declared phantom and
	// killed by the dispatcher, and the document is logged as a failure
	// (spec §4.2).
	PhantomWorkerThresholdHours int

	PubSubTopic string // optional completion-event publisher (§11); empty disables it
	RedisURL    string // optional progress-tracker mirror (§11); empty disables it

	AdminPort       int // 0 disables the admin sidecar (§12.7)
	AdminAuthSecret string

	// Startup schema bootstrap (spec §4.8).
	AutoCreateExtension bool // CREATE EXTENSION IF NOT EXISTS vector
	ResetDBOnStartup    bool // dev-only: drop and recreate tables before migrating
}

// Load reads configuration from environment variables.
// Required variables (DATABASE_URL, GOOGLE_CLOUD_PROJECT) cause an error if missing.
// Optional variables use sensible defaults.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_URL is required")
	}

	gcpProject := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if gcpProject == "" {
		return nil, fmt.Errorf("config.Load: GOOGLE_CLOUD_PROJECT is required")
	}

	cfg := &Config{
		Environment:      envStr("ENVIRONMENT", "development"),
		DatabaseURL:      dbURL,
		DatabaseMaxConns: envInt("DATABASE_MAX_CONNS", 25),

		WorkerPoolMaxConns:       envInt("WORKER_POOL_MAX_CONNS", 3),
		WorkerStatementTimeoutMs: envInt("WORKER_STATEMENT_TIMEOUT_MS", 300_000),
		WorkerLockTimeoutMs:      envInt("WORKER_LOCK_TIMEOUT_MS", 60_000),

		RepairPoolMaxConns:       envInt("REPAIR_POOL_MAX_CONNS", 2),
		RepairStatementTimeoutMs: envInt("REPAIR_STATEMENT_TIMEOUT_MS", 300_000),
		RepairLockTimeoutMs:      envInt("REPAIR_LOCK_TIMEOUT_MS", 60_000),

		GCPProject: gcpProject,
		GCPRegion:  envStr("GCP_REGION", "us-east4"),

		EmbeddingLocation:   envStr("VERTEX_AI_EMBEDDING_LOCATION", envStr("GCP_REGION", "us-east4")),
		EmbeddingModel:      envStr("VERTEX_AI_EMBEDDING_MODEL", "text-embedding-004"),
		EmbeddingDimensions: envInt("EMBEDDING_DIMENSIONS", 768),

		GCSBucketName:    envStr("GCS_BUCKET_NAME", ""),
		DocAIProcessorID: envStr("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocAILocation:    envStr("DOCUMENT_AI_LOCATION", "us"),

		OCRProvider: envStr("OCR_PROVIDER", "tesseract"),

		ImageAnalysisEnabled:             envBool("IMAGE_ANALYSIS_ENABLED", true),
		AzureVisionEndpoint:              envStr("AZURE_VISION_ENDPOINT", ""),
		AzureVisionKey:                   envStr("AZURE_VISION_KEY", ""),
		ImageAnalysisConfidenceThreshold: envFloat("IMAGE_ANALYSIS_CONFIDENCE_THRESHOLD", 0.5),

		ChunkSizeTokens:     envInt("CHUNK_SIZE_TOKENS", 768),
		ChunkOverlapPercent: envInt("CHUNK_OVERLAP_PERCENT", 20),

		KeywordVariant: envStr("KEYWORD_VARIANT", "standard"),

		CatalogBaseURL:  envStr("CATALOG_BASE_URL", ""),
		CatalogPageSize: envInt("CATALOG_PAGE_SIZE", 100),

		FilesConcurrencySize: envInt("FILES_CONCURRENCY_SIZE", 4),

		PhantomWorkerThresholdHours: envInt("PHANTOM_WORKER_THRESHOLD_HOURS", 4),

		PubSubTopic: envStr("PUBSUB_TOPIC", ""),
		RedisURL:    envStr("REDIS_URL", ""),

		AdminPort:       envInt("ADMIN_PORT", 0),
		AdminAuthSecret: envStr("ADMIN_AUTH_SECRET", ""),

		AutoCreateExtension: envBool("AUTO_CREATE_EXTENSION", true),
		ResetDBOnStartup:    envBool("RESET_DB", false),
	}

	if cfg.AdminPort != 0 && cfg.AdminAuthSecret == "" && cfg.Environment != "development" {
		return nil, fmt.Errorf("config.Load: ADMIN_AUTH_SECRET is required when ADMIN_PORT is set in %s environment", cfg.Environment)
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
