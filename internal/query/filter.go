package query

import (
	"strings"

	"github.com/five82/ubike/internal/youbike"
)

// MaxSearchResults caps how many stations a search fetches availability for.
const MaxSearchResults = 100

// FilterStations returns the stations matching query in roster order, at most
// limit of them. A blank query matches every station. Otherwise a station
// matches when its name or address contains query (case-insensitive) or its
// station number equals query exactly.
func FilterStations(roster []youbike.StationInfo, query string, limit int) []youbike.StationInfo {
	if limit <= 0 {
		return nil
	}
	blank := strings.TrimSpace(query) == ""
	needle := strings.ToLower(query)

	out := make([]youbike.StationInfo, 0, min(limit, len(roster)))
	for _, s := range roster {
		if len(out) == limit {
			break
		}
		if blank || matches(s, query, needle) {
			out = append(out, s)
		}
	}
	return out
}

func matches(s youbike.StationInfo, query, needle string) bool {
	return s.StationNo == query ||
		strings.Contains(strings.ToLower(s.Name), needle) ||
		strings.Contains(strings.ToLower(s.Address), needle)
}
