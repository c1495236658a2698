package config

import (
	"errors"
	"testing"
	"time"
)

// validConfig returns a config that passes Validate with the gemini provider.
// Callers mutate single fields to probe individual checks.
func validConfig() *Config {
	return &Config{
		Provider:           ProviderGemini,
		EmbedderModel:      DefaultGeminiEmbedderModel,
		EmbedderDimension:  DefaultEmbedderDimension,
		OllamaHost:         "http://localhost:11434",
		VectorBackend:      BackendPgvector,
		SearchTopK:         5,
		PostgresHost:       "localhost",
		PostgresPort:       5432,
		PostgresUser:       "signal23",
		PostgresPassword:   "signal23_test_password",
		PostgresDBName:     "signal23",
		PostgresSSLMode:    "disable",
		ChunkSize:          500,
		ChunkOverlap:       50,
		CacheDir:           "/tmp/signal23-cache",
		DocCacheCapacity:   1000,
		DocCacheTTL:        DefaultDocCacheTTL,
		EmbedCacheCapacity: 10000,
		EmbedCacheTTL:      0,
		SweepInterval:      5 * time.Minute,
		EmbedBatchSize:     10,
		EmbedRatePerSec:    5.0,
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: nil,
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "anthropic" },
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "empty embedder model",
			mutate:  func(c *Config) { c.EmbedderModel = "" },
			wantErr: ErrInvalidEmbedderModel,
		},
		{
			name:    "zero embedder dimension",
			mutate:  func(c *Config) { c.EmbedderDimension = 0 },
			wantErr: ErrInvalidEmbedderDimension,
		},
		{
			name:    "unknown vector backend",
			mutate:  func(c *Config) { c.VectorBackend = "faiss" },
			wantErr: ErrInvalidVectorBackend,
		},
		{
			name:    "top-k too large",
			mutate:  func(c *Config) { c.SearchTopK = 101 },
			wantErr: ErrInvalidSearchTopK,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgresHost,
		},
		{
			name:    "postgres port out of range",
			mutate:  func(c *Config) { c.PostgresPort = 70000 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "empty postgres db name",
			mutate:  func(c *Config) { c.PostgresDBName = "" },
			wantErr: ErrInvalidPostgresDBName,
		},
		{
			name:    "short postgres password",
			mutate:  func(c *Config) { c.PostgresPassword = "short" },
			wantErr: ErrInvalidPostgresPassword,
		},
		{
			name:    "deprecated ssl mode",
			mutate:  func(c *Config) { c.PostgresSSLMode = "prefer" },
			wantErr: ErrInvalidPostgresSSLMode,
		},
		{
			name: "memory backend skips postgres checks",
			mutate: func(c *Config) {
				c.VectorBackend = BackendMemory
				c.PostgresHost = ""
				c.PostgresPassword = ""
			},
			wantErr: nil,
		},
		{
			name:    "zero chunk size",
			mutate:  func(c *Config) { c.ChunkSize = 0 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "overlap equals chunk size",
			mutate:  func(c *Config) { c.ChunkOverlap = 500 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "negative doc cache capacity",
			mutate:  func(c *Config) { c.DocCacheCapacity = -1 },
			wantErr: ErrInvalidCacheSize,
		},
		{
			name:    "negative embed cache ttl",
			mutate:  func(c *Config) { c.EmbedCacheTTL = -time.Hour },
			wantErr: ErrInvalidCacheTTL,
		},
		{
			name:    "zero sweep interval",
			mutate:  func(c *Config) { c.SweepInterval = 0 },
			wantErr: ErrInvalidSweepInterval,
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.EmbedBatchSize = 0 },
			wantErr: ErrInvalidBatchSize,
		},
		{
			name:    "zero rate limit",
			mutate:  func(c *Config) { c.EmbedRatePerSec = 0 },
			wantErr: ErrInvalidRateLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() = %v, want ErrConfigNil", err)
	}
}

func TestValidateGeminiRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg := validConfig()
	if err := cfg.Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate() = %v, want ErrMissingAPIKey", err)
	}
}

func TestValidateOllamaProvider(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg := validConfig()
	cfg.Provider = ProviderOllama
	cfg.EmbedderModel = "nomic-embed-text"

	// Ollama does not need GEMINI_API_KEY
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	cfg.OllamaHost = "not a url"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidOllamaHost) {
		t.Errorf("Validate() = %v, want ErrInvalidOllamaHost", err)
	}
}
