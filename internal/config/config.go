// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.signal23/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: Provider selection and embedder model/dimension
//   - Storage: PostgreSQL connection for the pgvector backend (see storage.go)
//   - Caching: Document and embedding cache sizing, TTLs, snapshot directory
//   - Chunking: Window size and overlap
//   - Notion: Integration token for the page loader
//
// Security: Sensitive data (Notion token, postgres password) is never logged;
// config directory uses 0750 permissions.
// Validation: Comprehensive range checks in validation.go with clear error messages.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbedderDimension indicates the embedder dimension is out of range.
	ErrInvalidEmbedderDimension = errors.New("invalid embedder dimension")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidVectorBackend indicates an unrecognized vector store backend.
	ErrInvalidVectorBackend = errors.New("invalid vector backend")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidChunking indicates the chunk size/overlap pair is invalid.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidCacheSize indicates a cache capacity is out of range.
	ErrInvalidCacheSize = errors.New("invalid cache capacity")

	// ErrInvalidCacheTTL indicates a cache TTL is out of range.
	ErrInvalidCacheTTL = errors.New("invalid cache TTL")

	// ErrInvalidBatchSize indicates the embedding batch size is out of range.
	ErrInvalidBatchSize = errors.New("invalid embedding batch size")

	// ErrInvalidRateLimit indicates the embedding rate limit is out of range.
	ErrInvalidRateLimit = errors.New("invalid embedding rate limit")

	// ErrInvalidSweepInterval indicates the cache sweep interval is out of range.
	ErrInvalidSweepInterval = errors.New("invalid sweep interval")

	// ErrInvalidSearchTopK indicates the search result count is out of range.
	ErrInvalidSearchTopK = errors.New("invalid search top-k")
)

const (
	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default, but supports
	// truncation to 768 via OutputDimensionality (Matryoshka Representation
	// Learning). Our pgvector schema uses 768 dimensions; see vector.VectorDimension.
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultEmbedderDimension matches the pgvector schema width.
	DefaultEmbedderDimension = 768

	// DefaultDocCacheTTL keeps cached documents for a week; Notion pages
	// change rarely and fingerprint mismatches force reloads anyway.
	DefaultDocCacheTTL = 7 * 24 * time.Hour
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Vector store backend identifiers used in Config.VectorBackend.
// Mirrors vector.BackendPgvector / vector.BackendMemory.
const (
	BackendPgvector = "pgvector"
	BackendMemory   = "memory"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI provider and embedder configuration
	Provider          string `mapstructure:"provider" json:"provider"` // "gemini" (default), "ollama"
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Vector store backend: "pgvector" (default) or "memory"
	VectorBackend string `mapstructure:"vector_backend" json:"vector_backend"`
	SearchTopK    int    `mapstructure:"search_top_k" json:"search_top_k"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Notion integration token. Not validated at startup: only the sync
	// command needs it, and notion.NewClient rejects an empty token.
	NotionToken string `mapstructure:"notion_token" json:"notion_token"` // SENSITIVE: masked in MarshalJSON

	// Chunking configuration
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Cache configuration. TTLs of 0 mean entries never expire.
	CacheDir           string        `mapstructure:"cache_dir" json:"cache_dir"`
	DocCacheCapacity   int           `mapstructure:"doc_cache_capacity" json:"doc_cache_capacity"`
	DocCacheTTL        time.Duration `mapstructure:"doc_cache_ttl" json:"doc_cache_ttl"`
	EmbedCacheCapacity int           `mapstructure:"embed_cache_capacity" json:"embed_cache_capacity"`
	EmbedCacheTTL      time.Duration `mapstructure:"embed_cache_ttl" json:"embed_cache_ttl"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval" json:"sweep_interval"`

	// Embedding request shaping
	EmbedBatchSize  int     `mapstructure:"embed_batch_size" json:"embed_batch_size"`
	EmbedRatePerSec float64 `mapstructure:"embed_rate_per_sec" json:"embed_rate_per_sec"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.signal23/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".signal23")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	// Configure Viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	// Set default values
	setDefaults(configDir)

	// Bind environment variables
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	// Use Unmarshal to automatically map to struct (type-safe)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Parse DATABASE_URL if set (highest priority for PostgreSQL config)
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(configDir string) {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	viper.SetDefault("embedder_dimension", DefaultEmbedderDimension)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Vector store defaults
	viper.SetDefault("vector_backend", BackendPgvector)
	viper.SetDefault("search_top_k", 5)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "signal23")
	viper.SetDefault("postgres_password", "signal23_dev_password")
	viper.SetDefault("postgres_db_name", "signal23")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Chunking defaults
	viper.SetDefault("chunk_size", 500)
	viper.SetDefault("chunk_overlap", 50)

	// Cache defaults. Embedding entries never expire on their own:
	// the content hash key already invalidates them when text changes.
	viper.SetDefault("cache_dir", filepath.Join(configDir, "cache"))
	viper.SetDefault("doc_cache_capacity", 1000)
	viper.SetDefault("doc_cache_ttl", DefaultDocCacheTTL)
	viper.SetDefault("embed_cache_capacity", 10000)
	viper.SetDefault("embed_cache_ttl", time.Duration(0))
	viper.SetDefault("sweep_interval", 5*time.Minute)

	// Embedding request shaping
	viper.SetDefault("embed_batch_size", 10)
	viper.SetDefault("embed_rate_per_sec", 5.0)
}

// bindEnvVariables binds environment variables explicitly.
// Secrets come only from the environment in typical deployments:
//  1. GEMINI_API_KEY - Read directly by Genkit (not via Viper), validated in cfg.Validate()
//  2. NOTION_TOKEN - Notion integration token for the page loader
//  3. DATABASE_URL - Parsed separately in parseDatabaseURL()
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// Notion integration token
	mustBind("notion_token", "NOTION_TOKEN")

	// AI provider and embedder overrides
	mustBind("provider", "SIGNAL23_PROVIDER")
	mustBind("embedder_model", "SIGNAL23_EMBEDDER_MODEL")
	mustBind("ollama_host", "SIGNAL23_OLLAMA_HOST")

	// Vector store and cache overrides
	mustBind("vector_backend", "SIGNAL23_VECTOR_BACKEND")
	mustBind("cache_dir", "SIGNAL23_CACHE_DIR")

	// NOTE: GEMINI_API_KEY is read directly by Genkit, not via Viper
	// Validation checks its presence based on the selected provider in cfg.Validate()
}

// DocCachePath returns the document cache snapshot file path.
func (c *Config) DocCachePath() string {
	return filepath.Join(c.CacheDir, "documents.json")
}

// EmbedCachePath returns the embedding cache snapshot file path.
func (c *Config) EmbedCachePath() string {
	return filepath.Join(c.CacheDir, "embeddings.json")
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full-width blocks U+2588) to avoid substring matching
// Previous attempts:
// - "****" failed: passwords with "*" leaked
// - "[REDACTED]" failed: passwords with "A", "D", "E", etc. leaked
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
// For longer secrets, shows partial chars with unique separator.
//
// THREAT MODEL: This defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	// Fully mask short secrets to prevent substring matching attacks
	// Example attack: input "00***" → output "00******" contains "00***"
	if len(s) <= 8 {
		return maskedValue
	}
	// For longer secrets, show first/last 2 chars for debug utility
	// Example: "ntn_abcdefghij123" → "nt<████████>23"
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//   - NotionToken
//
// When adding new sensitive fields, update this method.
// The compiler will remind you when tests fail.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.NotionToken = maskSecret(a.NotionToken)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
