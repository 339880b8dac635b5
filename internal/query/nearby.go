package query

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/mmcloughlin/geohash"

	"github.com/five82/ubike/internal/state"
	"github.com/five82/ubike/internal/youbike"
)

const (
	earthRadiusM    = 6371000.0
	prefilterMaxLat = 60.0
)

// Approximate half-width in metres of a geohash cell by precision. A cell and
// its eight neighbours cover at least this distance from any point in the
// cell. The figures hold up to about 60 degrees of latitude; east-west cell
// widths shrink with cos(lat), so prefilterMaxLat turns the prefilter off
// beyond that.
var geohashCoverM = map[uint]float64{
	4: 19500,
	5: 2400,
	6: 500,
}

type nearbyCandidate struct {
	info     youbike.StationInfo
	distance float64
}

// nearbyStations returns stations within radiusM of loc, nearest first, at
// most limit of them.
func nearbyStations(roster []youbike.StationInfo, loc state.Location, radiusM float64, limit int) []nearbyCandidate {
	if limit <= 0 || radiusM <= 0 {
		return nil
	}

	var precision uint
	if math.Abs(loc.Lat) <= prefilterMaxLat {
		precision = cellPrecision(radiusM)
	}
	cells := coverCells(loc, precision)
	out := make([]nearbyCandidate, 0, limit)
	for _, s := range roster {
		if cells != nil {
			if _, ok := cells[geohash.EncodeWithPrecision(s.Latitude, s.Longitude, precision)]; !ok {
				continue
			}
		}
		d := haversine(loc.Lat, loc.Lng, s.Latitude, s.Longitude)
		if d <= radiusM {
			out = append(out, nearbyCandidate{info: s, distance: d})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].distance < out[j].distance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// cellPrecision picks the finest geohash precision whose neighbourhood still
// covers radiusM. Zero means no prefilter.
func cellPrecision(radiusM float64) uint {
	for _, p := range []uint{6, 5, 4} {
		if radiusM <= geohashCoverM[p] {
			return p
		}
	}
	return 0
}

// coverCells returns the geohash cell containing loc plus its neighbours, or
// nil when p is zero.
func coverCells(loc state.Location, p uint) map[string]struct{} {
	if p == 0 {
		return nil
	}
	center := geohash.EncodeWithPrecision(loc.Lat, loc.Lng, p)
	cells := map[string]struct{}{center: {}}
	for _, n := range geohash.Neighbors(center) {
		cells[n] = struct{}{}
	}
	return cells
}

// haversine returns the great-circle distance in metres.
func haversine(lat1, lng1, lat2, lng2 float64) float64 {
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	dφ := (lat2 - lat1) * math.Pi / 180
	dλ := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dφ/2)*math.Sin(dφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// FindNearby sets the user's location and lists the stations around it.
func (e *Engine) FindNearby(ctx context.Context, loc state.Location) error {
	if !loc.Valid() {
		e.store.Update(func(s *state.Snapshot) {
			s.ErrorMessage = describe(ErrInvalidLocation)
		})
		return fmt.Errorf("%w: %v,%v", ErrInvalidLocation, loc.Lat, loc.Lng)
	}

	ctx, seq, done := e.nearby.begin(ctx, e.ctx)
	defer done()
	log := e.opLogger("find_nearby").With().Float64("lat", loc.Lat).Float64("lng", loc.Lng).Logger()

	e.store.Update(func(s *state.Snapshot) {
		e.locatingOps++
		s.IsLocating = true
		if s.Location == nil || *s.Location != loc {
			s.NearbyStations = nil
		}
		s.Location = &loc
		s.Focus = state.FocusNearby
		s.ErrorMessage = ""
	})

	rows, err := e.nearbyRows(ctx, loc)

	e.store.Update(func(s *state.Snapshot) {
		e.locatingOps--
		s.IsLocating = e.locatingOps > 0
		if !e.nearby.current(seq) || ctx.Err() != nil {
			return
		}
		if err != nil {
			s.ErrorMessage = describe(err)
			s.ConsecutiveFailures++
			return
		}
		stamp(rows, idSet(e.favs.Favorites()))
		s.NearbyStations = rows
		s.ConsecutiveFailures = 0
	})

	if err != nil {
		logFailure(ctx, log, err, "nearby search failed")
		return err
	}
	log.Debug().Int("stations", len(rows)).Msg("nearby stations found")
	return nil
}

// RefreshNearby re-runs the nearby search for the current location and
// reports the outcome as a toast.
func (e *Engine) RefreshNearby(ctx context.Context) error {
	snap := e.store.Snapshot()
	if snap.Location == nil {
		return ErrNoLocation
	}
	loc := *snap.Location

	ctx, seq, done := e.nearby.begin(ctx, e.ctx)
	defer done()
	log := e.opLogger("refresh_nearby")

	e.store.Update(func(s *state.Snapshot) {
		e.refreshingOps++
		s.IsRefreshing = true
		s.ErrorMessage = ""
	})

	rows, err := e.nearbyRows(ctx, loc)

	e.store.Update(func(s *state.Snapshot) {
		e.refreshingOps--
		s.IsRefreshing = e.refreshingOps > 0
		if !e.nearby.current(seq) || ctx.Err() != nil {
			return
		}
		if err != nil {
			s.ToastMessage = ToastRefreshFailed
			s.ConsecutiveFailures++
			return
		}
		stamp(rows, idSet(e.favs.Favorites()))
		s.NearbyStations = rows
		s.ToastMessage = ToastRefreshed
		s.ConsecutiveFailures = 0
	})

	if err != nil {
		logFailure(ctx, log, err, "nearby refresh failed")
		return err
	}
	return nil
}

func (e *Engine) nearbyRows(ctx context.Context, loc state.Location) ([]state.StationResult, error) {
	roster, err := e.roster.Get(ctx)
	if err != nil {
		return nil, err
	}
	found := nearbyStations(roster, loc, e.nearbyRadiusM, e.nearbyLimit)
	stations := make([]youbike.StationInfo, len(found))
	for i, c := range found {
		stations[i] = c.info
	}
	avail, err := e.fetchAvailability(ctx, youbike.StationIDs(stations))
	if err != nil {
		return nil, err
	}
	rows := buildRows(stations, avail)
	for i := range rows {
		d := found[i].distance
		rows[i].Distance = &d
	}
	return rows, nil
}
