package state

import (
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/five82/ubike/internal/youbike"
)

// Focus selects which non-search list the user is looking at.
type Focus int

const (
	FocusFavorites Focus = iota
	FocusNearby
)

func (f Focus) String() string {
	switch f {
	case FocusNearby:
		return "nearby"
	default:
		return "favorites"
	}
}

// ParseFocus maps "favorites" and "nearby" to a Focus.
func ParseFocus(s string) (Focus, bool) {
	switch s {
	case "favorites":
		return FocusFavorites, true
	case "nearby":
		return FocusNearby, true
	}
	return FocusFavorites, false
}

// Location is a WGS84 coordinate.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is finite and within range.
func (l Location) Valid() bool {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lng) || math.IsInf(l.Lat, 0) || math.IsInf(l.Lng, 0) {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// StationResult is one display row: a station, whether it is a favorite, and
// its availability. A nil count means availability is unknown.
type StationResult struct {
	Info            youbike.StationInfo `json:"info"`
	IsFavorite      bool                `json:"is_favorite"`
	AvailableBikes  *int                `json:"available_bikes"`
	AvailableEBikes *int                `json:"available_ebikes"`
	EmptySpaces     *int                `json:"empty_spaces"`
	Distance        *float64            `json:"distance_m,omitempty"`
}

// HasAvailability reports whether live counts are known for the row.
func (r StationResult) HasAvailability() bool {
	return r.AvailableBikes != nil || r.AvailableEBikes != nil || r.EmptySpaces != nil
}

// Snapshot represents the latest view-state.
type Snapshot struct {
	SearchResults    []StationResult `json:"search_results"`
	FavoriteStations []StationResult `json:"favorite_stations"`
	NearbyStations   []StationResult `json:"nearby_stations"`

	IsSearching  bool `json:"is_searching"`
	IsLoading    bool `json:"is_loading"`
	IsRefreshing bool `json:"is_refreshing"`
	IsLocating   bool `json:"is_locating"`

	ErrorMessage string `json:"error_message,omitempty"`
	ToastMessage string `json:"toast_message,omitempty"`

	CurrentQuery string `json:"current_query"`
	// ResultsQuery is the query SearchResults were produced for.
	ResultsQuery string `json:"results_query"`

	Focus    Focus     `json:"focus"`
	Location *Location `json:"location,omitempty"`

	LastUpdated         time.Time `json:"last_updated"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// IsOffline returns true when the API has failed several operations in a row.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// ActiveList returns the rows the user is currently looking at.
func (s Snapshot) ActiveList() []StationResult {
	switch {
	case s.IsSearching:
		return s.SearchResults
	case s.Focus == FocusNearby:
		return s.NearbyStations
	default:
		return s.FavoriteStations
	}
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	dup := s
	dup.SearchResults = cloneResults(s.SearchResults)
	dup.FavoriteStations = cloneResults(s.FavoriteStations)
	dup.NearbyStations = cloneResults(s.NearbyStations)
	if s.Location != nil {
		loc := *s.Location
		dup.Location = &loc
	}
	return dup
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.Mutex
	snapshot Snapshot
	once     sync.Once
	bc       *Broadcaster[Snapshot]
}

func (s *Store) broadcaster() *Broadcaster[Snapshot] {
	s.once.Do(func() {
		s.bc = NewBroadcaster(Snapshot{}, Snapshot.Clone)
	})
	return s.bc
}

// Update applies fn to the stored snapshot and publishes the result.
// fn runs under the store lock and must not call back into the Store.
func (s *Store) Update(fn func(*Snapshot)) {
	bc := s.broadcaster()

	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.snapshot)
	s.snapshot.LastUpdated = time.Now()
	bc.Publish(s.snapshot.Clone())
}

// UpdateIf is like Update but publishes only when fn reports a change.
func (s *Store) UpdateIf(fn func(*Snapshot) bool) bool {
	bc := s.broadcaster()

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snapshot.Clone()
	if !fn(&next) {
		return false
	}
	next.LastUpdated = time.Now()
	s.snapshot = next
	bc.Publish(s.snapshot.Clone())
	return true
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone()
}

// Subscribe streams snapshots, starting with the current one. The channel is
// closed when ctx is done.
func (s *Store) Subscribe(ctx context.Context) <-chan Snapshot {
	return s.broadcaster().Subscribe(ctx)
}

func cloneResults(rows []StationResult) []StationResult {
	if rows == nil {
		return nil
	}
	dup := slices.Clone(rows)
	for i, r := range dup {
		dup[i].AvailableBikes = cloneInt(r.AvailableBikes)
		dup[i].AvailableEBikes = cloneInt(r.AvailableEBikes)
		dup[i].EmptySpaces = cloneInt(r.EmptySpaces)
		if r.Distance != nil {
			d := *r.Distance
			dup[i].Distance = &d
		}
	}
	return dup
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
