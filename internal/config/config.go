package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// GameConfig holds the tunables of the room engine and the reaper.
// Durations are in milliseconds, matching the timestamps stored on records.
type GameConfig struct {
	// GameLifespanMs is how long a room may go without an update before it expires.
	GameLifespanMs int64 `json:"game_lifespan_ms"`
	// PlayerLifespanMs is how long a player record survives without activity.
	PlayerLifespanMs  int64 `json:"player_lifespan_ms"`
	AccountCooldownMs int64 `json:"account_cooldown_ms"`

	CreationRateLimitWindowMs  int64 `json:"creation_rate_limit_window_ms"`
	CreationRateLimitThreshold int   `json:"creation_rate_limit_threshold"`

	PasswordAttempts int `json:"password_attempts"`

	CleanupIntervalSeconds int `json:"cleanup_interval_seconds"`
	// IdentityPageSize bounds each page fetched by the orphan identity sweep.
	IdentityPageSize int `json:"identity_page_size"`
}

// Default returns the production values.
func Default() GameConfig {
	return GameConfig{
		GameLifespanMs:             30_000,
		PlayerLifespanMs:           3_600_000,
		AccountCooldownMs:          4_000,
		CreationRateLimitWindowMs:  60_000,
		CreationRateLimitThreshold: 30,
		PasswordAttempts:           5,
		CleanupIntervalSeconds:     60,
		IdentityPageSize:           1000,
	}
}

// WithDefaults fills every zero field from Default.
func (c GameConfig) WithDefaults() GameConfig {
	d := Default()
	if c.GameLifespanMs <= 0 {
		c.GameLifespanMs = d.GameLifespanMs
	}
	if c.PlayerLifespanMs <= 0 {
		c.PlayerLifespanMs = d.PlayerLifespanMs
	}
	if c.AccountCooldownMs <= 0 {
		c.AccountCooldownMs = d.AccountCooldownMs
	}
	if c.CreationRateLimitWindowMs <= 0 {
		c.CreationRateLimitWindowMs = d.CreationRateLimitWindowMs
	}
	if c.CreationRateLimitThreshold <= 0 {
		c.CreationRateLimitThreshold = d.CreationRateLimitThreshold
	}
	if c.PasswordAttempts <= 0 {
		c.PasswordAttempts = d.PasswordAttempts
	}
	if c.CleanupIntervalSeconds <= 0 {
		c.CleanupIntervalSeconds = d.CleanupIntervalSeconds
	}
	if c.IdentityPageSize <= 0 {
		c.IdentityPageSize = d.IdentityPageSize
	}
	return c
}

func (c GameConfig) GameLifespan() time.Duration {
	return time.Duration(c.GameLifespanMs) * time.Millisecond
}

func (c GameConfig) PlayerLifespan() time.Duration {
	return time.Duration(c.PlayerLifespanMs) * time.Millisecond
}

func (c GameConfig) AccountCooldown() time.Duration {
	return time.Duration(c.AccountCooldownMs) * time.Millisecond
}

func (c GameConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSeconds) * time.Second
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

// LoadGameConfig loads the game configuration from the given path.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read game config: %w", err)
			return
		}

		var c GameConfig
		if err := json.Unmarshal(data, &c); err != nil {
			loadErr = fmt.Errorf("failed to unmarshal game config: %w", err)
			return
		}
		c = c.WithDefaults()
		cfg = &c
	})
	return loadErr
}

// GetGameConfig returns the loaded configuration, or the defaults when
// nothing was loaded.
func GetGameConfig() GameConfig {
	if cfg == nil {
		return Default()
	}
	return *cfg
}
