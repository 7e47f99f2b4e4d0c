package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the full application configuration. It is built once at
// process start and passed explicitly into each component's constructor.
type Config struct {
	// Database settings
	Database DatabaseConfig

	// Embedding backend settings
	Embedding EmbeddingConfig

	// Vector store settings
	VectorStore VectorStoreConfig

	// Inference backend registry, keyed by agent type
	Backends map[string]BackendConfig

	// Chunking settings
	MaxChunkChars int
	OverlapChars  int

	// Inference dispatch settings
	RetryLimit         int
	TimeoutSeconds     int
	DefaultMaxTokens   int
	DefaultTemperature float64

	// Backend health tracking
	HealthDegradedAfter int
	HealthDownAfter     int
	HealthProbeSeconds  int

	// Audit retention window in days (7 years by default)
	RetentionDays int
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// EmbeddingConfig holds settings for the embedding backend.
type EmbeddingConfig struct {
	URL       string
	Model     string
	Dimension int
	BatchSize int
}

// VectorStoreConfig holds settings for the vector store.
type VectorStoreConfig struct {
	// Kind selects the implementation: "qdrant" or "postgres".
	Kind string
	URL  string
	// APIKey is optional and only used by the qdrant store.
	APIKey string
	// DocumentCollection is the collection that holds ingested document chunks.
	DocumentCollection string
}

// BackendConfig describes one model-inference endpoint.
type BackendConfig struct {
	Endpoint         string
	Model            string
	MaxContextTokens int
	APIKey           string
}

// Load reads configuration from environment variables, optionally loading a
// .env file first.
func Load(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// A missing file is fine; the process may be configured through
			// environment variables alone.
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "vault"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "vault"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Embedding: EmbeddingConfig{
			URL:       getEnv("EMBEDDING_BACKEND_URL", "http://localhost:8100"),
			Model:     getEnv("EMBEDDING_MODEL", "bge-large-en-v1.5"),
			Dimension: getEnvAsInt("EMBEDDING_DIMENSION", 1024),
			BatchSize: getEnvAsInt("EMBEDDING_BATCH_SIZE", 32),
		},
		VectorStore: VectorStoreConfig{
			Kind:               getEnv("VECTOR_STORE_KIND", "qdrant"),
			URL:                getEnv("VECTOR_STORE_URL", "http://localhost:6333"),
			APIKey:             getEnv("VECTOR_STORE_API_KEY", ""),
			DocumentCollection: getEnv("VECTOR_STORE_DOCUMENT_COLLECTION", "legal_documents"),
		},
		Backends: map[string]BackendConfig{
			"contract_review": backendFromEnv("VLLM_CONTRACT", "contract-review"),
			"compliance":      backendFromEnv("VLLM_COMPLIANCE", "compliance"),
			"router":          backendFromEnv("VLLM_ROUTER", "router"),
			"research":        backendFromEnv("VLLM_RESEARCH", "research"),
		},
		MaxChunkChars:       getEnvAsInt("MAX_CHUNK_CHARS", 20000),
		OverlapChars:        getEnvAsInt("OVERLAP_CHARS", 500),
		RetryLimit:          getEnvAsInt("RETRY_LIMIT", 3),
		TimeoutSeconds:      getEnvAsInt("TIMEOUT_SECONDS", 120),
		DefaultMaxTokens:    getEnvAsInt("DEFAULT_MAX_TOKENS", 4096),
		DefaultTemperature:  getEnvAsFloat("DEFAULT_TEMPERATURE", 0.3),
		HealthDegradedAfter: getEnvAsInt("HEALTH_DEGRADED_AFTER", 3),
		HealthDownAfter:     getEnvAsInt("HEALTH_DOWN_AFTER", 3),
		HealthProbeSeconds:  getEnvAsInt("HEALTH_PROBE_SECONDS", 30),
		RetentionDays:       getEnvAsInt("RETENTION_DAYS", 2555),
	}

	return cfg, nil
}

// backendFromEnv reads the endpoint settings for one inference backend.
// For prefix "VLLM_CONTRACT" the recognized variables are
// VLLM_CONTRACT_URL, VLLM_CONTRACT_MODEL, VLLM_CONTRACT_MAX_CONTEXT and
// VLLM_CONTRACT_API_KEY.
func backendFromEnv(prefix, defaultModel string) BackendConfig {
	return BackendConfig{
		Endpoint:         getEnv(prefix+"_URL", ""),
		Model:            getEnv(prefix+"_MODEL", defaultModel),
		MaxContextTokens: getEnvAsInt(prefix+"_MAX_CONTEXT", 16384),
		APIKey:           getEnv(prefix+"_API_KEY", ""),
	}
}

// getEnv returns the value of an environment variable, or a default when unset.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as an integer.
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

// getEnvAsFloat reads an environment variable as a float.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
