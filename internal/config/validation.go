package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider validation
	switch c.Provider {
	case ProviderGemini:
		// API key required for all Gemini operations
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty", ErrInvalidOllamaHost)
		}
		if _, err := url.ParseRequestURI(c.OllamaHost); err != nil {
			return fmt.Errorf("%w: %q is not a valid URL", ErrInvalidOllamaHost, c.OllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q (supported: %s, %s)",
			ErrInvalidProvider, c.Provider, ProviderGemini, ProviderOllama)
	}

	// 2. Embedder validation
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	if c.EmbedderDimension < 1 || c.EmbedderDimension > 8192 {
		return fmt.Errorf("%w: must be between 1 and 8192, got %d",
			ErrInvalidEmbedderDimension, c.EmbedderDimension)
	}

	// 3. Vector store validation
	if c.VectorBackend != BackendPgvector && c.VectorBackend != BackendMemory {
		return fmt.Errorf("%w: %q (supported: %s, %s)",
			ErrInvalidVectorBackend, c.VectorBackend, BackendPgvector, BackendMemory)
	}

	if c.SearchTopK < 1 || c.SearchTopK > 100 {
		return fmt.Errorf("%w: must be between 1 and 100, got %d", ErrInvalidSearchTopK, c.SearchTopK)
	}

	// PostgreSQL settings only matter for the pgvector backend
	if c.VectorBackend == BackendPgvector {
		if err := c.validatePostgres(); err != nil {
			return err
		}
	}

	// 4. Chunking validation. Overlap must leave a positive step so the
	// splitter always advances.
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d with chunk_size %d",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}

	// 5. Cache validation. Capacity 0 disables a cache; TTL 0 disables expiry.
	if c.DocCacheCapacity < 0 {
		return fmt.Errorf("%w: doc_cache_capacity cannot be negative, got %d",
			ErrInvalidCacheSize, c.DocCacheCapacity)
	}
	if c.EmbedCacheCapacity < 0 {
		return fmt.Errorf("%w: embed_cache_capacity cannot be negative, got %d",
			ErrInvalidCacheSize, c.EmbedCacheCapacity)
	}
	if c.DocCacheTTL < 0 {
		return fmt.Errorf("%w: doc_cache_ttl cannot be negative, got %s",
			ErrInvalidCacheTTL, c.DocCacheTTL)
	}
	if c.EmbedCacheTTL < 0 {
		return fmt.Errorf("%w: embed_cache_ttl cannot be negative, got %s",
			ErrInvalidCacheTTL, c.EmbedCacheTTL)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("%w: sweep_interval must be positive, got %s",
			ErrInvalidSweepInterval, c.SweepInterval)
	}

	// 6. Embedding request shaping
	if c.EmbedBatchSize < 1 || c.EmbedBatchSize > 250 {
		return fmt.Errorf("%w: must be between 1 and 250, got %d",
			ErrInvalidBatchSize, c.EmbedBatchSize)
	}
	if c.EmbedRatePerSec <= 0 {
		return fmt.Errorf("%w: must be positive, got %.2f",
			ErrInvalidRateLimit, c.EmbedRatePerSec)
	}

	return nil
}

func (c *Config) validatePostgres() error {
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml",
			ErrInvalidPostgresPassword)
	}

	// Warn if using default dev password (but don't block - user might be in dev)
	if c.PostgresPassword == "signal23_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	// Validate password strength (minimum 8 characters)
	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	// Reference: https://www.postgresql.org/docs/current/libpq-ssl.html
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q (supported: %v)",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
