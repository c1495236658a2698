package config

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		want   string
	}{
		{"empty", "", ""},
		{"short fully masked", "pass", maskedValue},
		{"exactly eight fully masked", "12345678", maskedValue},
		{"long shows edges", "ntn_abcdefghij1234", "nt<" + maskedValue + ">34"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSecret(tt.secret); got != tt.want {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.secret, got, tt.want)
			}
		})
	}
}

func TestMaskSecretNeverLeaks(t *testing.T) {
	// The masked form must not contain the full secret for any length.
	secrets := []string{"a", "secret", "12345678", "a-much-longer-secret-value"}
	for _, s := range secrets {
		if masked := maskSecret(s); strings.Contains(masked, s) {
			t.Errorf("maskSecret(%q) = %q leaks the secret", s, masked)
		}
	}
}

func TestMarshalJSONMasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "super_secret_password"
	cfg.NotionToken = "ntn_verysecrettoken123"

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	out := string(data)
	if strings.Contains(out, "super_secret_password") {
		t.Error("marshaled config leaks postgres password")
	}
	if strings.Contains(out, "ntn_verysecrettoken123") {
		t.Error("marshaled config leaks notion token")
	}
	if !strings.Contains(out, maskedValue) {
		t.Error("marshaled config has no masked placeholder")
	}
}

func TestStringMasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.NotionToken = "ntn_donotprintme9999"

	if s := cfg.String(); strings.Contains(s, "ntn_donotprintme9999") {
		t.Errorf("String() leaks notion token: %s", s)
	}
}

func TestCachePaths(t *testing.T) {
	cfg := validConfig()
	cfg.CacheDir = filepath.Join("/data", "cache")

	if got, want := cfg.DocCachePath(), filepath.Join("/data", "cache", "documents.json"); got != want {
		t.Errorf("DocCachePath() = %q, want %q", got, want)
	}
	if got, want := cfg.EmbedCachePath(), filepath.Join("/data", "cache", "embeddings.json"); got != want {
		t.Errorf("EmbedCachePath() = %q, want %q", got, want)
	}
}
