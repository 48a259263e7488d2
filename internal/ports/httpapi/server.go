// Package httpapi serves the room operations over HTTP for the standalone server.
package httpapi

import (
	"crypto/subtle"
	"net/http"
	"time"

	"ito/internal/app"
	"ito/internal/app/cleanup"
	"ito/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const defaultRateLimit = 120

// Deps are the collaborators of the HTTP API.
type Deps struct {
	Rooms      *app.Service
	Cleanup    *cleanup.Service
	Identities ports.IdentityRegistry
	Sessions   *SessionIssuer
	Logger     zerolog.Logger

	// AdminKey guards /internal routes. Empty disables them.
	AdminKey       string
	AllowedOrigins []string
	// RateLimit is requests per minute per client IP.
	RateLimit int
}

type handler struct {
	Deps
}

// NewRouter builds the chi router with every route mounted.
func NewRouter(deps Deps) http.Handler {
	if deps.RateLimit <= 0 {
		deps.RateLimit = defaultRateLimit
	}
	h := handler{deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(deps.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.Heartbeat("/healthz"))

	r.Route("/v1", func(r chi.Router) {
		r.With(httprate.LimitByIP(10, time.Minute)).Post("/session", h.createSession)

		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(deps.RateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint)))
			r.Use(deps.Sessions.requireSession)

			r.Post("/players/init", h.initPlayer)
			r.Post("/rooms", h.createRoom)
			r.Post("/rooms/join", h.joinRoom)

			r.Route("/rooms/{roomId}", func(r chi.Router) {
				r.Post("/start", h.roomAction(deps.Rooms.StartRoom))
				r.Post("/end", h.roomAction(deps.Rooms.EndRoom))
				r.Post("/reset", h.roomAction(deps.Rooms.ResetRoom))
				r.Post("/exit", h.roomAction(deps.Rooms.ExitRoom))
				r.Post("/submit", h.roomAction(deps.Rooms.Submit))
				r.Post("/withdraw", h.roomAction(deps.Rooms.Withdraw))
				r.Post("/heartbeat", h.roomAction(deps.Rooms.Heartbeat))
				r.Post("/kick", h.kickPlayer)

				r.Put("/topic", h.updateTopic)
				r.Put("/name", h.updateName)
				r.Put("/avatar", h.updateAvatar)
				r.Put("/hint", h.updateHint)

				r.Get("/config", h.getRoomConfig)
				r.Get("/value", h.getValue)
				r.Get("/info", h.getRoomInfo)
			})
		})
	})

	r.With(h.requireAdminKey).Post("/internal/cleanup", h.runCleanup)
	return r
}

func (h handler) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Admin-Key")
		if h.AdminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.AdminKey)) != 1 {
			writeError(w, r, errUnauthenticated("admin key required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
