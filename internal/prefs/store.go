// Package prefs persists ubike user preferences: the favorite stations, the
// auto-refresh interval and the UI theme. Values live in a Backend (a TOML file
// by default, or SQLite) and are exposed as observable state.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/five82/ubike/internal/state"
	"github.com/five82/ubike/internal/youbike"
)

// Persisted keys.
const (
	KeyFavorites       = "favorite_stations_json"
	KeyRefreshInterval = "refresh_interval_seconds"
	KeyTheme           = "theme"
)

// DefaultTheme is used when no theme has been saved.
const DefaultTheme = "Nightfox"

// Store serializes preference writes and broadcasts changes.
type Store struct {
	backend Backend
	logger  zerolog.Logger

	// mu is the single writer lock for every mutation.
	mu sync.Mutex

	favorites *state.Broadcaster[[]youbike.StationInfo]
	interval  *state.Broadcaster[int]
	theme     string
}

// Open reads the current preferences from backend. Values that cannot be read
// or decoded fall back to defaults and are logged.
func Open(backend Backend, logger zerolog.Logger) *Store {
	s := &Store{
		backend: backend,
		logger:  logger.With().Str("component", "prefs").Logger(),
	}
	s.favorites = state.NewBroadcaster(s.loadFavorites(), cloneStations)
	s.interval = state.NewBroadcaster(s.loadInterval(), nil)
	s.theme = s.loadTheme()
	return s
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Favorites returns the current favorites in order.
func (s *Store) Favorites() []youbike.StationInfo {
	return s.favorites.Latest()
}

// SubscribeFavorites streams the favorites list, starting with the current
// value. A slow reader only sees the latest list.
func (s *Store) SubscribeFavorites(ctx context.Context) <-chan []youbike.StationInfo {
	return s.favorites.Subscribe(ctx)
}

// SetFavorites replaces the whole favorites list.
func (s *Store) SetFavorites(list []youbike.StationInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFavorites(list)
}

// UpdateFavorites applies fn to the current list and stores the result. Every
// favorites mutation goes through the writer lock, so concurrent updates are
// never lost. fn receives a copy and must not call back into the Store.
func (s *Store) UpdateFavorites(fn func([]youbike.StationInfo) []youbike.StationInfo) ([]youbike.StationInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fn(s.favorites.Latest())
	if err := s.writeFavorites(next); err != nil {
		return nil, err
	}
	return cloneStations(next), nil
}

func (s *Store) writeFavorites(list []youbike.StationInfo) error {
	if list == nil {
		list = []youbike.StationInfo{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return &StorageError{Op: "encode", Key: KeyFavorites, Err: err}
	}
	if err := s.backend.Set(KeyFavorites, string(data)); err != nil {
		return &StorageError{Op: "write", Key: KeyFavorites, Err: err}
	}
	s.favorites.Publish(cloneStations(list))
	s.logger.Debug().Int("favorites", len(list)).Msg("favorites saved")
	return nil
}

// RefreshIntervalSeconds returns the auto-refresh interval; 0 means never.
func (s *Store) RefreshIntervalSeconds() int {
	return s.interval.Latest()
}

// SubscribeRefreshInterval streams the interval, starting with the current value.
func (s *Store) SubscribeRefreshInterval(ctx context.Context) <-chan int {
	return s.interval.Subscribe(ctx)
}

// SetRefreshIntervalSeconds stores n. Negative values are rejected.
func (s *Store) SetRefreshIntervalSeconds(n int) error {
	if n < 0 {
		return fmt.Errorf("refresh interval must not be negative, got %d", n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Set(KeyRefreshInterval, strconv.Itoa(n)); err != nil {
		return &StorageError{Op: "write", Key: KeyRefreshInterval, Err: err}
	}
	s.interval.Publish(n)
	return nil
}

// Theme returns the saved theme name.
func (s *Store) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// SetTheme stores the theme name.
func (s *Store) SetTheme(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTheme
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Set(KeyTheme, name); err != nil {
		return &StorageError{Op: "write", Key: KeyTheme, Err: err}
	}
	s.theme = name
	return nil
}

func (s *Store) loadFavorites() []youbike.StationInfo {
	raw, ok, err := s.backend.Get(KeyFavorites)
	if err != nil {
		s.logger.Warn().Err(err).Msg("read favorites; using empty list")
		return []youbike.StationInfo{}
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []youbike.StationInfo{}
	}
	var list []youbike.StationInfo
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		s.logger.Warn().Err(err).Msg("decode favorites; using empty list")
		return []youbike.StationInfo{}
	}
	if list == nil {
		list = []youbike.StationInfo{}
	}
	return list
}

func (s *Store) loadInterval() int {
	raw, ok, err := s.backend.Get(KeyRefreshInterval)
	if err != nil {
		s.logger.Warn().Err(err).Msg("read refresh interval; using 0")
		return 0
	}
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		s.logger.Warn().Str("value", raw).Msg("invalid refresh interval; using 0")
		return 0
	}
	return n
}

func (s *Store) loadTheme() string {
	raw, ok, err := s.backend.Get(KeyTheme)
	if err != nil || !ok || strings.TrimSpace(raw) == "" {
		return DefaultTheme
	}
	return strings.TrimSpace(raw)
}

func cloneStations(list []youbike.StationInfo) []youbike.StationInfo {
	if list == nil {
		return []youbike.StationInfo{}
	}
	return slices.Clone(list)
}
