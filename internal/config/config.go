package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"qaai"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"qaai"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd    string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost      string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP      string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	NSQMaxMsgSize int64  `envconfig:"NSQ_MAX_MSG_SIZE" default:"10485760"` // 10MB

	EnableAPI          bool   `envconfig:"ENABLE_API" default:"true"`
	EnableIngestWorker bool   `envconfig:"ENABLE_INGEST_WORKER" default:"true"`
	MigrationPath      string `envconfig:"MIGRATION_PATH" default:"file://migrations"`
	GeminiAPIKey       string `envconfig:"GEMINI_API_KEY"`

	// Ingestion
	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"800"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"120"`

	// Retrieval
	RetrievalTopK       int     `envconfig:"RETRIEVAL_TOP_K" default:"10"`
	CandidateMultiplier int     `envconfig:"CANDIDATE_MULTIPLIER" default:"4"`
	MinSimilarity       float64 `envconfig:"MIN_SIMILARITY" default:"0.15"`
	CitationThreshold   float64 `envconfig:"CITATION_THRESHOLD" default:"0.25"`

	// Embedding
	EmbedMaxRetries     int `envconfig:"EMBED_MAX_RETRIES" default:"3"`
	EmbedRetryBaseMS    int `envconfig:"EMBED_RETRY_BASE_MS" default:"200"`
	EmbedTimeoutSeconds int `envconfig:"EMBED_TIMEOUT_SECONDS" default:"60"`

	// Server
	ServerPort   int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	// Try finding root .env (assuming 2 levels up if in apps/backend)
	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP must be smaller than CHUNK_SIZE", ErrMissingRequired)
	}
	return nil
}
