// Package config loads all control-plane configuration from environment
// variables. Deliberately dependency-free: this mirrors the zero-config,
// single-binary posture the rest of the platform defaults to (in-memory
// store, in-memory task queue) when no external services are configured.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every option enumerated for the control plane.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Chunking  ChunkingConfig
	Embedding EmbeddingConfig
	Retrieval RetrievalConfig
	Routing   RoutingConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	VectorDB  VectorDBConfig
	Assignment AssignmentConfig
	ChannelFabric ChannelFabricConfig
	Worker WorkerConfig
}

type ServerConfig struct {
	Host    string
	Port    int
	Workers int
	Reload  bool
}

type StorageConfig struct {
	UploadDir       string
	MaxFileSize     int64
	AllowedFileTypes []string
}

type ChunkingConfig struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

type EmbeddingConfig struct {
	Provider  string // openai | openai_compatible | qwen3
	Model     string
	Dimensions int
	BatchSize int
	APIKey    string
	BaseURL   string
}

type RetrievalConfig struct {
	DefaultSearchLimit  int
	MaxSearchLimit      int
	MinSimilarityScore  float64
	RRFK                int
	CandidateMultiplier int
	QAGenerationBatchSize int
}

type RoutingConfig struct {
	QueueDefaultTimeoutMinutes int
}

// AssignmentConfig configures the chat-completion backend used by the
// Assignment Engine's LLM candidate-resolution step (spec §4.8 step 4).
// A rule only attempts LLM assignment when LLMAssignmentEnabled and
// AIProviderID are both set on the VisitorAssignmentRule row *and* this
// backend has an APIKey configured; any other combination load-balances.
type AssignmentConfig struct {
	APIKey           string
	BaseURL          string
	DefaultModel     string
	RequestTimeout   time.Duration
}

// ChannelFabricConfig points the Channel Fabric Adapter at its messaging
// substrate. When BaseURL is empty the adapter is a no-op: database
// membership/history changes still happen, only outbound substrate
// calls are skipped (spec §4.9: "best-effort on outbound side-effects").
type ChannelFabricConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	EventStreamURL string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
}

// RedisConfig configures the background task queue (internal/worker).
// When Addr is empty the worker pool falls back to an in-memory channel
// queue — the zero-config default.
type RedisConfig struct {
	Addr string
	DB   int
}

// WorkerConfig sizes the background worker pool and its periodic
// maintenance sweep (expired waiting-queue rows, stale soft-deleted
// rows).
type WorkerConfig struct {
	PoolSize            int
	QueueKey            string
	MaintenanceInterval time.Duration
	SoftDeleteRetention time.Duration
}

// VectorDBConfig selects the C2 vector store driver. Kind "memory" (the
// zero-config default) needs nothing else; "pgvector" reuses Database.URL;
// "qdrant" needs its own address.
type VectorDBConfig struct {
	Kind       string // memory | pgvector | qdrant
	QdrantAddr string
}

// Load reads configuration from environment variables with sensible
// zero-config defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    envStr("DESKWISE_HOST", "0.0.0.0"),
			Port:    envInt("DESKWISE_PORT", 8080),
			Workers: envInt("DESKWISE_WORKERS", 4),
			Reload:  envBool("DESKWISE_RELOAD", false),
		},
		Storage: StorageConfig{
			UploadDir:        envStr("DESKWISE_UPLOAD_DIR", "./data/uploads"),
			MaxFileSize:      envInt64("DESKWISE_MAX_FILE_SIZE", 50*1024*1024),
			AllowedFileTypes: envList("DESKWISE_ALLOWED_FILE_TYPES", []string{
				"application/pdf", "text/plain", "text/markdown",
				"application/msword",
				"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
				"text/html", "application/xhtml+xml",
			}),
		},
		Chunking: ChunkingConfig{
			ChunkSize:    envInt("DESKWISE_CHUNK_SIZE", 1000),
			ChunkOverlap: envInt("DESKWISE_CHUNK_OVERLAP", 200),
			BatchSize:    envInt("DESKWISE_CHUNK_BATCH_SIZE", 50),
		},
		Embedding: EmbeddingConfig{
			Provider:   envStr("DESKWISE_EMBEDDING_PROVIDER", "openai"),
			Model:      envStr("DESKWISE_EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions: envInt("DESKWISE_EMBEDDING_DIMENSIONS", 1536),
			BatchSize:  envInt("DESKWISE_EMBEDDING_BATCH_SIZE", 100),
			APIKey:     envStr("DESKWISE_EMBEDDING_API_KEY", ""),
			BaseURL:    envStr("DESKWISE_EMBEDDING_BASE_URL", ""),
		},
		Retrieval: RetrievalConfig{
			DefaultSearchLimit:    envInt("DESKWISE_DEFAULT_SEARCH_LIMIT", 10),
			MaxSearchLimit:        envInt("DESKWISE_MAX_SEARCH_LIMIT", 100),
			MinSimilarityScore:    envFloat("DESKWISE_MIN_SIMILARITY_SCORE", 0.0),
			RRFK:                  envInt("DESKWISE_RRF_K", 60),
			CandidateMultiplier:   envInt("DESKWISE_CANDIDATE_MULTIPLIER", 2),
			QAGenerationBatchSize: envInt("DESKWISE_QA_GENERATION_BATCH_SIZE", 5),
		},
		Routing: RoutingConfig{
			QueueDefaultTimeoutMinutes: envInt("QUEUE_DEFAULT_TIMEOUT_MINUTES", 30),
		},
		Database: DatabaseConfig{
			URL:            envStr("DATABASE_URL", ""),
			MaxConnections: envInt("DATABASE_MAX_CONNECTIONS", 25),
		},
		Redis: RedisConfig{
			Addr: envStr("REDIS_ADDR", ""),
			DB:   envInt("REDIS_DB", 0),
		},
		VectorDB: VectorDBConfig{
			Kind:       envStr("DESKWISE_VECTORDB_KIND", "memory"),
			QdrantAddr: envStr("QDRANT_ADDR", ""),
		},
		Assignment: AssignmentConfig{
			APIKey:         envStr("DESKWISE_ASSIGNMENT_LLM_API_KEY", ""),
			BaseURL:        envStr("DESKWISE_ASSIGNMENT_LLM_BASE_URL", ""),
			DefaultModel:   envStr("DESKWISE_ASSIGNMENT_LLM_MODEL", "gpt-4"),
			RequestTimeout: envDuration("DESKWISE_ASSIGNMENT_LLM_TIMEOUT", 60*time.Second),
		},
		ChannelFabric: ChannelFabricConfig{
			BaseURL:        envStr("DESKWISE_SUBSTRATE_URL", ""),
			APIKey:         envStr("DESKWISE_SUBSTRATE_API_KEY", ""),
			RequestTimeout: envDuration("DESKWISE_SUBSTRATE_TIMEOUT", 10*time.Second),
			EventStreamURL: envStr("DESKWISE_SUBSTRATE_EVENT_STREAM_URL", ""),
		},
		Worker: WorkerConfig{
			PoolSize:            envInt("DESKWISE_WORKER_POOL_SIZE", 4),
			QueueKey:            envStr("DESKWISE_WORKER_QUEUE_KEY", "deskwise:jobs"),
			MaintenanceInterval: envDuration("DESKWISE_MAINTENANCE_INTERVAL", 10*time.Minute),
			SoftDeleteRetention: envDuration("DESKWISE_SOFT_DELETE_RETENTION", 30*24*time.Hour),
		},
	}
}

// EmbeddingBatchCap returns the hard per-provider batch ceiling (the Qwen3
// driver caps at 10 regardless of configured BatchSize, per spec §4.1).
func (c *EmbeddingConfig) EmbeddingBatchCap() int {
	if c.Provider == "qwen3" && c.BatchSize > 10 {
		return 10
	}
	return c.BatchSize
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
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
