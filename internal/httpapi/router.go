// Package httpapi serves the engine's view-state and operations as a small
// local JSON API for headless use.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/five82/ubike/internal/state"
	"github.com/five82/ubike/internal/youbike"
)

// Engine is the query surface the API drives.
type Engine interface {
	Snapshot() state.Snapshot
	Search(ctx context.Context, query string) error
	RefreshSearch(ctx context.Context, query string) error
	ClearSearch()
	RefreshFavorites(ctx context.Context) error
	ToggleFavorite(ctx context.Context, station youbike.StationInfo) (bool, error)
	LookupStation(ctx context.Context, stationNo string) (youbike.StationInfo, error)
	FindNearby(ctx context.Context, loc state.Location) error
	RefreshNearby(ctx context.Context) error
	ClearToast()
}

// Settings is the preference surface the API exposes.
type Settings interface {
	RefreshIntervalSeconds() int
	SetRefreshIntervalSeconds(n int) error
	Theme() string
	SetTheme(name string) error
}

// Config wires the router.
type Config struct {
	Engine   Engine
	Settings Settings
	Logger   zerolog.Logger
	// Themes, when set, restricts the accepted theme names.
	Themes []string
	// MutationLimit is the per-IP request budget per minute for routes that
	// call the YouBike API or write preferences. Zero uses 60.
	MutationLimit int
}

// NewRouter returns the API handler.
func NewRouter(cfg Config) http.Handler {
	h := &handler{
		engine:   cfg.Engine,
		settings: cfg.Settings,
		themes:   cfg.Themes,
	}
	limit := cfg.MutationLimit
	if limit <= 0 {
		limit = 60
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(requestLogger(cfg.Logger.With().Str("component", "httpapi").Logger()))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.state)
		r.Get("/settings", h.getSettings)
		r.Delete("/toast", h.clearToast)

		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(limit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(rateLimited),
			))

			r.Post("/search", h.search)
			r.Post("/search/refresh", h.refreshSearch)
			r.Delete("/search", h.clearSearch)

			r.Post("/favorites/refresh", h.refreshFavorites)
			r.Post("/favorites/{stationNo}/toggle", h.toggleFavorite)

			r.Post("/nearby", h.nearby)
			r.Post("/nearby/refresh", h.refreshNearby)

			r.Put("/settings", h.putSettings)
		})
	})
	return r
}

// requestLogger logs one line per request.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.Info().
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}
