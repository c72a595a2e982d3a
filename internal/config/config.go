// Package config loads all environment variables for the dialogue core process.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all process-level configuration for the dialogue core.
type Config struct {
	// Server
	APIHost string
	APIPort string

	// Database (catalog + vector store)
	DatabaseURL string

	// Catalog config artifacts (spec.md §4.D)
	CatalogConfigDir string

	// Vector search
	KVec                  int
	EmbedEndpoint         string
	EmbedCacheSize        int
	VectorSearchTimeoutMS int

	// LLM
	LLMProvider  string
	LLMModel     string
	LLMAPIKey    string
	LLMAPIURL    string
	LLMMaxTokens int
	LLMTimeoutMS int

	// Prompt / table rendering
	MaxCellWidth int

	// Retrieval
	RetrievalTimeoutMS int

	// Funnel sessions
	SessionTTL             time.Duration
	SessionCleanupInterval time.Duration

	// Timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		APIHost: envOr("API_HOST", "0.0.0.0"),
		APIPort: envOr("API_PORT", "8000"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		CatalogConfigDir: envOr("CATALOG_CONFIG_DIR", "/etc/mgfd/config"),

		KVec:                  envInt("K_VEC", 20),
		EmbedEndpoint:         envOr("EMBED_ENDPOINT", "http://embed:8001/embed"),
		EmbedCacheSize:        envInt("EMBED_CACHE_SIZE", 512),
		VectorSearchTimeoutMS: envInt("VECTOR_SEARCH_TIMEOUT_MS", 2000),

		LLMProvider:  envOr("LLM_PROVIDER", "hosted-chat"),
		LLMModel:     envOr("LLM_MODEL", "default"),
		LLMAPIKey:    os.Getenv("LLM_API_KEY"),
		LLMAPIURL:    envOr("LLM_API_URL", "http://llm:9000/v1/complete"),
		LLMMaxTokens: envInt("LLM_MAX_TOKENS", 1024),
		LLMTimeoutMS: envInt("LLM_TIMEOUT_MS", 20000),

		MaxCellWidth: envInt("MAX_CELL_WIDTH", 50),

		RetrievalTimeoutMS: envInt("RETRIEVAL_TIMEOUT_MS", 1500),

		SessionTTL:             time.Duration(envInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		SessionCleanupInterval: time.Duration(envInt("SESSION_CLEANUP_MINUTES", 60)) * time.Minute,

		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// Addr returns the listen address as "host:port".
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.APIHost, c.APIPort)
}

// VectorSearchTimeout returns the vector store search timeout as a time.Duration.
func (c *Config) VectorSearchTimeout() time.Duration {
	return time.Duration(c.VectorSearchTimeoutMS) * time.Millisecond
}

// LLMTimeout returns the LLM call timeout as a time.Duration.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutMS) * time.Millisecond
}

// RetrievalTimeout returns the retrieval planner's internal timeout.
func (c *Config) RetrievalTimeout() time.Duration {
	return time.Duration(c.RetrievalTimeoutMS) * time.Millisecond
}

func envOr(key, fallback string) string {
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
