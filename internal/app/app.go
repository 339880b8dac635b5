package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/five82/ubike/internal/config"
	"github.com/five82/ubike/internal/httpapi"
	"github.com/five82/ubike/internal/prefs"
	"github.com/five82/ubike/internal/query"
	"github.com/five82/ubike/internal/state"
	"github.com/five82/ubike/internal/ui"
	"github.com/five82/ubike/internal/youbike"
)

// Options configure the ubike application.
type Options struct {
	ConfigPath string
	PrefsPath  string // overrides the configured preference location
	Headless   bool   // serve the JSON API instead of the TUI
	ListenAddr string // overrides the configured API address
}

// Run boots ubike until the context is cancelled or the user quits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.PrefsPath != "" {
		cfg.PrefsPath = opts.PrefsPath
	}
	if opts.ListenAddr != "" {
		cfg.ListenAddr = opts.ListenAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, logCloser, err := newLogger(cfg.LogLevel, cfg.LogPath, opts.Headless)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	backend, err := openBackend(cfg)
	if err != nil {
		return err
	}
	userPrefs := prefs.Open(backend, logger)
	defer func() {
		if err := userPrefs.Close(); err != nil {
			logger.Warn().Err(err).Msg("close preferences")
		}
	}()

	client, err := youbike.NewClient(youbike.ClientConfig{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("init youbike client: %w", err)
	}

	engine := query.New(client, userPrefs,
		query.WithLogger(logger),
		query.WithRosterTTL(cfg.RosterTTL),
		query.WithBatchConcurrency(cfg.BatchConcurrency),
		query.WithNearby(cfg.NearbyRadiusM, cfg.NearbyLimit),
	)
	defer engine.Close()

	logger.Info().
		Str("api", cfg.APIBaseURL).
		Str("prefs_backend", cfg.PrefsBackend).
		Bool("headless", opts.Headless).
		Msg("ubike starting")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		NewScheduler(engine, userPrefs, logger).Run(gctx)
		return nil
	})

	if cfg.Home != nil {
		home := state.Location{Lat: cfg.Home.Lat, Lng: cfg.Home.Lng}
		g.Go(func() error {
			// Failures are already on the snapshot.
			_ = engine.FindNearby(gctx, home)
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		if opts.Headless {
			router := httpapi.NewRouter(httpapi.Config{
				Engine:   engine,
				Settings: userPrefs,
				Logger:   logger,
				Themes:   ui.ThemeNames(),
			})
			return httpapi.Serve(gctx, cfg.ListenAddr, router, logger)
		}
		return ui.Run(gctx, ui.Options{
			Engine:  engine,
			Prefs:   userPrefs,
			Logger:  logger,
			LogPath: cfg.LogPath,
		})
	})

	return g.Wait()
}

func openBackend(cfg config.Config) (prefs.Backend, error) {
	path := cfg.ResolvedPrefsPath()
	switch cfg.PrefsBackend {
	case config.BackendSQLite:
		b, err := prefs.OpenSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite preferences: %w", err)
		}
		return b, nil
	default:
		b, err := prefs.NewFileBackend(path)
		if err != nil {
			return nil, fmt.Errorf("open preferences file: %w", err)
		}
		return b, nil
	}
}

// Ensure the concrete stores satisfy the interfaces the front ends use.
var (
	_ query.FavoritesStore = (*prefs.Store)(nil)
	_ httpapi.Engine       = (*query.Engine)(nil)
	_ httpapi.Settings     = (*prefs.Store)(nil)
	_ ui.Engine            = (*query.Engine)(nil)
	_ ui.Prefs             = (*prefs.Store)(nil)
	_ IntervalSource       = (*prefs.Store)(nil)
	_ Refresher            = (*query.Engine)(nil)
)
