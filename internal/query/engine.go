package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/five82/ubike/internal/state"
	"github.com/five82/ubike/internal/youbike"
)

var (
	// ErrInvalidLocation is returned for coordinates outside WGS84 range.
	ErrInvalidLocation = errors.New("invalid location")
	// ErrNoLocation is returned when a nearby refresh has no location to use.
	ErrNoLocation = errors.New("no location set")
	// ErrStationNotFound is returned when a station number is not in the roster.
	ErrStationNotFound = errors.New("station not found")
)

// Toast texts published after a refresh.
const (
	ToastRefreshed     = "Refreshed"
	ToastRefreshFailed = "Refresh failed"
)

// FavoritesStore is the subset of the preference store the engine uses.
type FavoritesStore interface {
	Favorites() []youbike.StationInfo
	SubscribeFavorites(ctx context.Context) <-chan []youbike.StationInfo
	UpdateFavorites(fn func([]youbike.StationInfo) []youbike.StationInfo) ([]youbike.StationInfo, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithStore publishes into an existing state store.
func WithStore(s *state.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithRosterTTL expires the cached roster after ttl. Zero keeps it until
// InvalidateRoster.
func WithRosterTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.rosterTTL = ttl }
}

// WithBatchConcurrency bounds how many availability batches run at once.
func WithBatchConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchConcurrency = n
		}
	}
}

// WithNearby sets the nearby search radius in metres and the result limit.
func WithNearby(radiusM float64, limit int) Option {
	return func(e *Engine) {
		if radiusM > 0 {
			e.nearbyRadiusM = radiusM
		}
		if limit > 0 {
			e.nearbyLimit = limit
		}
	}
}

// Engine owns the view-state and runs every station query against it.
type Engine struct {
	dir    youbike.Directory
	favs   FavoritesStore
	store  *state.Store
	logger zerolog.Logger
	roster *rosterCache

	rosterTTL        time.Duration
	batchConcurrency int
	nearbyRadiusM    float64
	nearbyLimit      int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	search    opGroup
	nearby    opGroup
	reconcile opGroup

	// Busy counters backing the snapshot flags. Only touched inside store
	// update callbacks, which the store serializes.
	loadingOps    int
	refreshingOps int
	locatingOps   int
}

// New starts an engine. It immediately follows the favorites store so the
// favorites list stays reconciled until Close.
func New(dir youbike.Directory, favs FavoritesStore, opts ...Option) *Engine {
	e := &Engine{
		dir:              dir,
		favs:             favs,
		logger:           zerolog.Nop(),
		batchConcurrency: 4,
		nearbyRadiusM:    1000,
		nearbyLimit:      20,
	}
	for _, o := range opts {
		o(e)
	}
	if e.store == nil {
		e.store = &state.Store{}
	}
	e.logger = e.logger.With().Str("component", "query").Logger()
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.roster = newRosterCache(e.ctx, dir, e.rosterTTL, e.logger)

	updates := favs.SubscribeFavorites(e.ctx)
	e.wg.Add(1)
	go e.watchFavorites(updates)
	return e
}

// Close cancels every in-flight operation and waits for background work.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

// Store returns the state store the engine publishes to.
func (e *Engine) Store() *state.Store { return e.store }

// Snapshot returns the current view-state.
func (e *Engine) Snapshot() state.Snapshot { return e.store.Snapshot() }

// Subscribe streams view-state snapshots until ctx is done.
func (e *Engine) Subscribe(ctx context.Context) <-chan state.Snapshot {
	return e.store.Subscribe(ctx)
}

// InvalidateRoster drops the cached station roster.
func (e *Engine) InvalidateRoster() { e.roster.Invalidate() }

// Search runs query against the roster and publishes the results. A newer
// Search, RefreshSearch or ClearSearch supersedes this one.
func (e *Engine) Search(ctx context.Context, query string) error {
	ctx, seq, done := e.search.begin(ctx, e.ctx)
	defer done()
	log := e.opLogger("search").With().Str("query", query).Logger()
	start := time.Now()

	e.store.Update(func(s *state.Snapshot) {
		e.loadingOps++
		s.IsLoading = true
		s.IsSearching = true
		s.CurrentQuery = query
		s.ErrorMessage = ""
	})

	rows, err := e.searchRows(ctx, query)

	e.store.Update(func(s *state.Snapshot) {
		e.loadingOps--
		s.IsLoading = e.loadingOps > 0
		if !e.search.current(seq) || ctx.Err() != nil {
			return
		}
		if err != nil {
			s.ErrorMessage = describe(err)
			s.ConsecutiveFailures++
			if s.ResultsQuery != query {
				s.SearchResults = nil
				s.ResultsQuery = query
			}
			return
		}
		stamp(rows, idSet(e.favs.Favorites()))
		s.SearchResults = rows
		s.ResultsQuery = query
		s.ConsecutiveFailures = 0
	})

	if err != nil {
		logFailure(ctx, log, err, "search failed")
		return err
	}
	log.Debug().Int("results", len(rows)).Dur("took", time.Since(start)).Msg("search complete")
	return nil
}

// RefreshSearch re-runs query without blocking the current results and
// reports the outcome as a toast.
func (e *Engine) RefreshSearch(ctx context.Context, query string) error {
	ctx, seq, done := e.search.begin(ctx, e.ctx)
	defer done()
	log := e.opLogger("refresh_search").With().Str("query", query).Logger()

	e.store.Update(func(s *state.Snapshot) {
		e.refreshingOps++
		s.IsRefreshing = true
		s.IsSearching = true
		s.CurrentQuery = query
		s.ErrorMessage = ""
	})

	rows, err := e.searchRows(ctx, query)

	e.store.Update(func(s *state.Snapshot) {
		e.refreshingOps--
		s.IsRefreshing = e.refreshingOps > 0
		if !e.search.current(seq) || ctx.Err() != nil {
			return
		}
		if err != nil {
			s.ToastMessage = ToastRefreshFailed
			s.ConsecutiveFailures++
			return
		}
		stamp(rows, idSet(e.favs.Favorites()))
		s.SearchResults = rows
		s.ResultsQuery = query
		s.ToastMessage = ToastRefreshed
		s.ConsecutiveFailures = 0
	})

	if err != nil {
		logFailure(ctx, log, err, "search refresh failed")
		return err
	}
	log.Debug().Int("results", len(rows)).Msg("search refreshed")
	return nil
}

// ClearSearch leaves search mode and cancels any search in flight.
func (e *Engine) ClearSearch() {
	e.search.supersede()
	e.store.Update(func(s *state.Snapshot) {
		s.SearchResults = nil
		s.IsSearching = false
		s.CurrentQuery = ""
		s.ResultsQuery = ""
		s.ErrorMessage = ""
	})
}

// RefreshFavorites fetches availability for the current favorites.
func (e *Engine) RefreshFavorites(ctx context.Context) error {
	list := e.favs.Favorites()
	if len(list) == 0 {
		e.store.Update(func(s *state.Snapshot) {
			s.IsRefreshing = e.refreshingOps > 0
		})
		return nil
	}
	ctx, cancel := e.bind(ctx)
	defer cancel()
	log := e.opLogger("refresh_favorites").With().Int("favorites", len(list)).Logger()

	e.store.Update(func(s *state.Snapshot) {
		e.refreshingOps++
		s.IsRefreshing = true
		s.ErrorMessage = ""
	})

	avail, err := e.fetchAvailability(ctx, youbike.StationIDs(list))

	e.store.Update(func(s *state.Snapshot) {
		e.refreshingOps--
		s.IsRefreshing = e.refreshingOps > 0
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.ToastMessage = ToastRefreshFailed
			s.ConsecutiveFailures++
			return
		}
		// A favorites change since the fetch started is handled by
		// reconciliation; only publish rows for the list we fetched.
		if latest := e.favs.Favorites(); sameStations(latest, list) {
			rows := buildRows(list, avail)
			stamp(rows, idSet(latest))
			s.FavoriteStations = rows
		}
		s.ToastMessage = ToastRefreshed
		s.ConsecutiveFailures = 0
	})

	if err != nil {
		logFailure(ctx, log, err, "favorites refresh failed")
		return err
	}
	log.Debug().Msg("favorites refreshed")
	return nil
}

// ToggleFavorite adds station to the favorites, or removes it when present.
// It reports whether the station is a favorite afterwards.
func (e *Engine) ToggleFavorite(ctx context.Context, station youbike.StationInfo) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	log := e.opLogger("toggle_favorite").With().Str("station", station.StationNo).Logger()

	var added bool
	_, err := e.favs.UpdateFavorites(func(cur []youbike.StationInfo) []youbike.StationInfo {
		for i, f := range cur {
			if f.SameStation(station) {
				added = false
				return append(cur[:i:i], cur[i+1:]...)
			}
		}
		added = true
		return append(cur, station)
	})
	if err != nil {
		e.store.Update(func(s *state.Snapshot) {
			s.ErrorMessage = "Could not save favorites"
		})
		log.Error().Err(err).Msg("save favorites failed")
		return false, err
	}

	e.store.Update(func(s *state.Snapshot) {
		favs := idSet(e.favs.Favorites())
		stamp(s.SearchResults, favs)
		stamp(s.NearbyStations, favs)
	})
	log.Info().Bool("favorite", added).Msg("favorite toggled")
	return added, nil
}

// ClearToast acknowledges the current toast.
func (e *Engine) ClearToast() {
	e.store.UpdateIf(func(s *state.Snapshot) bool {
		if s.ToastMessage == "" {
			return false
		}
		s.ToastMessage = ""
		return true
	})
}

// ClearError dismisses the current error message.
func (e *Engine) ClearError() {
	e.store.UpdateIf(func(s *state.Snapshot) bool {
		if s.ErrorMessage == "" {
			return false
		}
		s.ErrorMessage = ""
		return true
	})
}

// SetFocus switches between the favorites and nearby lists.
func (e *Engine) SetFocus(f state.Focus) {
	e.store.Update(func(s *state.Snapshot) { s.Focus = f })
}

// RefreshActive refreshes whatever list the user is looking at. It does
// nothing while another load or refresh is running.
func (e *Engine) RefreshActive(ctx context.Context) error {
	snap := e.store.Snapshot()
	switch {
	case snap.IsRefreshing || snap.IsLoading || snap.IsLocating:
		return nil
	case snap.IsSearching:
		return e.RefreshSearch(ctx, snap.CurrentQuery)
	case snap.Focus == state.FocusNearby && snap.Location != nil:
		return e.RefreshNearby(ctx)
	default:
		return e.RefreshFavorites(ctx)
	}
}

// LookupStation resolves a station number, checking favorites before the roster.
func (e *Engine) LookupStation(ctx context.Context, stationNo string) (youbike.StationInfo, error) {
	for _, f := range e.favs.Favorites() {
		if f.StationNo == stationNo {
			return f, nil
		}
	}
	roster, err := e.roster.Get(ctx)
	if err != nil {
		return youbike.StationInfo{}, err
	}
	for _, s := range roster {
		if s.StationNo == stationNo {
			return s, nil
		}
	}
	return youbike.StationInfo{}, fmt.Errorf("%s: %w", stationNo, ErrStationNotFound)
}

func (e *Engine) searchRows(ctx context.Context, query string) ([]state.StationResult, error) {
	roster, err := e.roster.Get(ctx)
	if err != nil {
		return nil, err
	}
	matches := FilterStations(roster, query, MaxSearchResults)
	avail, err := e.fetchAvailability(ctx, youbike.StationIDs(matches))
	if err != nil {
		return nil, err
	}
	return buildRows(matches, avail), nil
}

func (e *Engine) watchFavorites(updates <-chan []youbike.StationInfo) {
	defer e.wg.Done()
	for list := range updates {
		e.reconcileFavorites(list)
	}
}

// reconcileFavorites publishes placeholder rows for list at once, then fills
// in availability in the background. A newer list cancels the fetch.
func (e *Engine) reconcileFavorites(list []youbike.StationInfo) {
	ctx, seq, done := e.reconcile.begin(e.ctx, e.ctx)
	favs := idSet(list)

	e.store.Update(func(s *state.Snapshot) {
		s.FavoriteStations = placeholderRows(list)
		stamp(s.SearchResults, favs)
		stamp(s.NearbyStations, favs)
	})
	if len(list) == 0 {
		done()
		return
	}

	log := e.opLogger("reconcile_favorites").With().Int("favorites", len(list)).Logger()
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer done()

		avail, err := e.fetchAvailability(ctx, youbike.StationIDs(list))
		e.store.UpdateIf(func(s *state.Snapshot) bool {
			if !e.reconcile.current(seq) || ctx.Err() != nil {
				return false
			}
			if err != nil {
				s.ErrorMessage = describe(err)
				s.ConsecutiveFailures++
				return true
			}
			rows := buildRows(list, avail)
			stamp(rows, favs)
			s.FavoriteStations = rows
			s.ConsecutiveFailures = 0
			return true
		})
		if err != nil {
			logFailure(ctx, log, err, "favorites reconciliation failed")
		}
	}()
}

// bind ties ctx to the engine lifetime.
func (e *Engine) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (e *Engine) opLogger(op string) zerolog.Logger {
	return e.logger.With().Str("op", op).Str("op_id", uuid.NewString()).Logger()
}

func logFailure(ctx context.Context, log zerolog.Logger, err error, msg string) {
	if ctx.Err() != nil {
		log.Debug().Err(err).Msg("operation cancelled")
		return
	}
	log.Warn().Err(err).Msg(msg)
}

// describe turns an error into a message for the user.
func describe(err error) string {
	switch {
	case errors.Is(err, youbike.ErrCircuitOpen):
		return "YouBike service unavailable, try again shortly"
	case youbike.IsNetworkError(err):
		return "Network error: could not reach YouBike"
	case youbike.IsDecodeError(err):
		return "Unexpected response from YouBike"
	case errors.Is(err, ErrInvalidLocation):
		return "Invalid location"
	case errors.Is(err, ErrNoLocation):
		return "Set a location first"
	default:
		return err.Error()
	}
}

// opGroup tracks one family of mutually superseding operations.
type opGroup struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// begin cancels the running operation of the group and starts a new one. The
// returned context ends with parent, with life, or on supersession.
func (g *opGroup) begin(parent, life context.Context) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(life, cancel)

	g.mu.Lock()
	if g.cancel != nil {
		g.cancel()
	}
	g.seq++
	seq := g.seq
	g.cancel = cancel
	g.mu.Unlock()

	return ctx, seq, func() {
		stop()
		cancel()
		g.mu.Lock()
		if g.seq == seq {
			g.cancel = nil
		}
		g.mu.Unlock()
	}
}

// current reports whether seq is still the latest operation.
func (g *opGroup) current(seq uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq == seq
}

// supersede cancels the running operation without starting a new one.
func (g *opGroup) supersede() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.seq++
}
