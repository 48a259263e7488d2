// Command itod runs the room engine as a standalone HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ito/internal/app"
	"ito/internal/app/cleanup"
	"ito/internal/config"
	"ito/internal/logging"
	"ito/internal/ports/docstore"
	"ito/internal/ports/httpapi"
	"ito/internal/ports/postgres"

	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		boot := logging.New("console", zerolog.InfoLevel)
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logging.New(cfg.LogFormat, zerolog.InfoLevel)

	if err := config.LoadGameConfig(cfg.GameConfigPath); err != nil {
		log.Warn().Err(err).Str("path", cfg.GameConfigPath).Msg("game config not loaded, using defaults")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, closeStore, err := newServer(ctx, cfg, config.GetGameConfig(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("build server")
	}
	defer closeStore()

	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.StoreBackend).Msg("itod listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("itod stopped")
}

// newServer wires the store, services, reaper loop and router. The reaper
// stops with ctx; the returned func releases the store.
func newServer(ctx context.Context, cfg config.ServerConfig, gameCfg config.GameConfig, log zerolog.Logger) (*http.Server, func(), error) {
	var (
		backend    docstore.Backend
		closeStore = func() {}
	)
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := postgres.NewBackend(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		backend, closeStore = pg, pg.Close
	default:
		backend = docstore.NewMemoryBackend()
	}

	store := docstore.New(backend)
	identities := docstore.NewIdentityRegistry(backend)
	rooms := app.NewService(store, identities, gameCfg, nil)
	reaper := cleanup.NewService(store, identities, logging.NewAdapter(log), gameCfg)

	interval := gameCfg.CleanupInterval()
	if cfg.CleanupInterval > 0 {
		interval = cfg.CleanupInterval
	}
	if interval > 0 {
		go reaper.Start(ctx, interval)
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Rooms:          rooms,
			Cleanup:        reaper,
			Identities:     identities,
			Sessions:       httpapi.NewSessionIssuer(cfg.JWTSecret, 0),
			Logger:         log,
			AdminKey:       cfg.AdminKey,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv, closeStore, nil
}
