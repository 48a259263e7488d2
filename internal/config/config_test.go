package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWithDefaults(t *testing.T) {
	c := GameConfig{GameLifespanMs: 5_000}.WithDefaults()
	if c.GameLifespanMs != 5_000 {
		t.Fatalf("GameLifespanMs = %d, want 5000", c.GameLifespanMs)
	}
	if c.PlayerLifespanMs != Default().PlayerLifespanMs {
		t.Fatalf("PlayerLifespanMs = %d, want default", c.PlayerLifespanMs)
	}
	if c.PasswordAttempts != 5 {
		t.Fatalf("PasswordAttempts = %d, want 5", c.PasswordAttempts)
	}
}

func TestLoadServerConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("CLEANUP_INTERVAL", "15s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	c, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("LoadServerConfig() error = %v", err)
	}
	if c.CleanupInterval.Seconds() != 15 {
		t.Fatalf("CleanupInterval = %v, want 15s", c.CleanupInterval)
	}
	if len(c.AllowedOrigins) != 2 || c.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("AllowedOrigins = %v", c.AllowedOrigins)
	}

	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatalf("postgres without DATABASE_URL should fail")
	}
}

func TestShippedConfigParses(t *testing.T) {
	path := filepath.Join("..", "..", "data", "ito_config.json")
	if _, err := os.Stat(path); err != nil {
		t.Skipf("config file not present: %v", err)
	}
	if err := LoadGameConfig(path); err != nil {
		t.Fatalf("LoadGameConfig() error = %v", err)
	}
	if got := GetGameConfig().CreationRateLimitThreshold; got != 30 {
		t.Fatalf("CreationRateLimitThreshold = %d, want 30", got)
	}
}
