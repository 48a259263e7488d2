package nakama

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"ito/internal/app"
	"ito/internal/app/cleanup"
	"ito/internal/config"
	"ito/internal/ports/docstore"

	"github.com/heroiclabs/nakama-common/runtime"
)

// InitModule wires the room service, the reaper and every RPC into the Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)

	configPath := defaultConfigPath
	if v := env[EnvConfigPath]; v != "" {
		configPath = v
	}
	if err := config.LoadGameConfig(configPath); err != nil {
		logger.Warn("Failed to load game config from %s, using defaults: %v", configPath, err)
	}
	cfg := config.GetGameConfig()

	store := docstore.New(NewNakamaStorageBackend(nk))
	identities := NewNakamaAccountAdapter(nk, db)
	roomService = app.NewService(store, identities, cfg, nil)
	cleanupService = cleanup.NewService(store, identities, logger, cfg)

	if err := RegisterRPCs(initializer); err != nil {
		return err
	}
	if err := initializer.RegisterAfterAuthenticateDevice(AfterAuthenticateDevice); err != nil {
		return err
	}

	interval := cfg.CleanupInterval()
	if v, ok := env[EnvCleanupInterval]; ok {
		if sec, err := strconv.Atoi(v); err == nil {
			interval = time.Duration(sec) * time.Second
		}
	}
	if interval > 0 {
		go cleanupService.Start(context.Background(), interval)
	}

	logger.Info("Ito Go module loaded (cleanup every %s).", interval)
	return nil
}
