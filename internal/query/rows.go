package query

import (
	"github.com/five82/ubike/internal/state"
	"github.com/five82/ubike/internal/youbike"
)

// buildRows merges stations with availability. A station missing from avail
// keeps nil counts.
func buildRows(stations []youbike.StationInfo, avail map[string]youbike.VehicleInfo) []state.StationResult {
	rows := make([]state.StationResult, len(stations))
	for i, s := range stations {
		rows[i] = state.StationResult{Info: s}
		if v, ok := avail[s.StationNo]; ok {
			rows[i].AvailableBikes = state.IntPtr(v.Detail.Standard)
			rows[i].AvailableEBikes = state.IntPtr(v.Detail.Electric)
			rows[i].EmptySpaces = state.IntPtr(v.EmptySpaces)
		}
	}
	return rows
}

func placeholderRows(stations []youbike.StationInfo) []state.StationResult {
	rows := buildRows(stations, nil)
	for i := range rows {
		rows[i].IsFavorite = true
	}
	return rows
}

// stamp sets IsFavorite on every row from favs.
func stamp(rows []state.StationResult, favs map[string]struct{}) {
	for i := range rows {
		_, rows[i].IsFavorite = favs[rows[i].Info.StationNo]
	}
}

func idSet(stations []youbike.StationInfo) map[string]struct{} {
	set := make(map[string]struct{}, len(stations))
	for _, s := range stations {
		set[s.StationNo] = struct{}{}
	}
	return set
}

func sameStations(a, b []youbike.StationInfo) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].SameStation(b[i]) {
			return false
		}
	}
	return true
}
