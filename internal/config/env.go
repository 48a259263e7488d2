package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig is the environment of the standalone HTTP server.
type ServerConfig struct {
	Port            string
	JWTSecret       string
	AdminKey        string
	StoreBackend    string // "memory" or "postgres"
	DatabaseURL     string
	GameConfigPath  string
	LogFormat       string // "console" or "json"
	CleanupInterval time.Duration
	AllowedOrigins  []string
}

// LoadServerConfig reads .env (if present) and the process environment.
func LoadServerConfig() (ServerConfig, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	c := ServerConfig{
		Port:           getEnv("PORT", "8080"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AdminKey:       os.Getenv("ADMIN_KEY"),
		StoreBackend:   getEnv("STORE_BACKEND", "memory"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		GameConfigPath: getEnv("ITO_CONFIG_PATH", "data/ito_config.json"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
	}
	if v := os.Getenv("CLEANUP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return ServerConfig{}, fmt.Errorf("CLEANUP_INTERVAL: %w", err)
		}
		c.CleanupInterval = d
	}

	if c.JWTSecret == "" {
		return ServerConfig{}, fmt.Errorf("JWT_SECRET is required")
	}
	switch c.StoreBackend {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return ServerConfig{}, fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return ServerConfig{}, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return c, nil
}

// MustLoadServerConfig is LoadServerConfig that panics on error.
func MustLoadServerConfig() ServerConfig {
	c, err := LoadServerConfig()
	if err != nil {
		panic(err)
	}
	return c
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
