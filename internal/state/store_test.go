package state

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/five82/ubike/internal/youbike"
)

func TestStore_UpdateAndSnapshotClone(t *testing.T) {
	var s Store

	before := time.Now()
	s.Update(func(snap *Snapshot) {
		snap.FavoriteStations = []StationResult{
			{Info: youbike.StationInfo{StationNo: "1"}, AvailableBikes: IntPtr(4)},
			{Info: youbike.StationInfo{StationNo: "2"}},
		}
		snap.Location = &Location{Lat: 25, Lng: 121}
	})

	snap := s.Snapshot()
	if len(snap.FavoriteStations) != 2 || snap.FavoriteStations[0].Info.StationNo != "1" {
		t.Fatalf("favorites = %#v, want 2 rows", snap.FavoriteStations)
	}
	if snap.LastUpdated.Before(before) {
		t.Fatalf("LastUpdated = %v, want >= %v", snap.LastUpdated, before)
	}

	// Returned snapshot should be independent of the stored one.
	snap.FavoriteStations[0].Info.StationNo = "999"
	*snap.FavoriteStations[0].AvailableBikes = 99
	snap.Location.Lat = 0

	snap2 := s.Snapshot()
	if got := snap2.FavoriteStations[0].Info.StationNo; got != "1" {
		t.Fatalf("station no = %q, want %q", got, "1")
	}
	if got := *snap2.FavoriteStations[0].AvailableBikes; got != 4 {
		t.Fatalf("available bikes = %d, want 4", got)
	}
	if snap2.Location.Lat != 25 {
		t.Fatalf("location lat = %v, want 25", snap2.Location.Lat)
	}
}

func TestStore_SubscribeEmitsCurrentThenUpdates(t *testing.T) {
	var s Store
	s.Update(func(snap *Snapshot) { snap.CurrentQuery = "first" })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := s.Subscribe(ctx)

	got := recv(t, ch)
	if got.CurrentQuery != "first" {
		t.Fatalf("initial CurrentQuery = %q, want %q", got.CurrentQuery, "first")
	}

	s.Update(func(snap *Snapshot) { snap.CurrentQuery = "second" })
	got = recv(t, ch)
	if got.CurrentQuery != "second" {
		t.Fatalf("CurrentQuery = %q, want %q", got.CurrentQuery, "second")
	}
}

func TestStore_SubscribeConflatesForSlowReader(t *testing.T) {
	var s Store
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := s.Subscribe(ctx)

	for _, q := range []string{"a", "b", "c"} {
		s.Update(func(snap *Snapshot) { snap.CurrentQuery = q })
	}

	got := recv(t, ch)
	if got.CurrentQuery != "c" {
		t.Fatalf("CurrentQuery = %q, want latest %q", got.CurrentQuery, "c")
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra snapshot %q", extra.CurrentQuery)
	default:
	}
}

func TestStore_SubscribeClosesOnCancel(t *testing.T) {
	var s Store
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	<-ch
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestStore_UpdateIfSkipsWhenUnchanged(t *testing.T) {
	var s Store
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := s.Subscribe(ctx)
	<-ch

	changed := s.UpdateIf(func(snap *Snapshot) bool {
		snap.CurrentQuery = "discarded"
		return false
	})
	if changed {
		t.Fatal("UpdateIf returned true for a rejected change")
	}
	if got := s.Snapshot().CurrentQuery; got != "" {
		t.Fatalf("CurrentQuery = %q, want rejected edit discarded", got)
	}
	select {
	case snap := <-ch:
		t.Fatalf("unexpected publication %#v", snap)
	case <-time.After(50 * time.Millisecond):
	}

	if !s.UpdateIf(func(snap *Snapshot) bool { snap.CurrentQuery = "kept"; return true }) {
		t.Fatal("UpdateIf returned false for an accepted change")
	}
	if got := recv(t, ch).CurrentQuery; got != "kept" {
		t.Fatalf("CurrentQuery = %q, want %q", got, "kept")
	}
}

func TestSnapshot_ActiveList(t *testing.T) {
	snap := Snapshot{
		SearchResults:    []StationResult{{Info: youbike.StationInfo{StationNo: "s"}}},
		FavoriteStations: []StationResult{{Info: youbike.StationInfo{StationNo: "f"}}},
		NearbyStations:   []StationResult{{Info: youbike.StationInfo{StationNo: "n"}}},
	}

	tests := []struct {
		name      string
		searching bool
		focus     Focus
		want      string
	}{
		{"favorites", false, FocusFavorites, "f"},
		{"nearby", false, FocusNearby, "n"},
		{"search wins", true, FocusNearby, "s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap.IsSearching = tt.searching
			snap.Focus = tt.focus
			rows := snap.ActiveList()
			if len(rows) != 1 || rows[0].Info.StationNo != tt.want {
				t.Fatalf("ActiveList = %#v, want station %q", rows, tt.want)
			}
		})
	}
}

func TestSnapshot_IsOffline(t *testing.T) {
	if (Snapshot{ConsecutiveFailures: 1}).IsOffline() {
		t.Fatal("one failure should not be offline")
	}
	if !(Snapshot{ConsecutiveFailures: 2}).IsOffline() {
		t.Fatal("two failures should be offline")
	}
}

func TestLocation_Valid(t *testing.T) {
	tests := []struct {
		loc  Location
		want bool
	}{
		{Location{25.03, 121.56}, true},
		{Location{-90, 180}, true},
		{Location{91, 0}, false},
		{Location{0, -181}, false},
		{Location{math.NaN(), 0}, false},
		{Location{0, math.Inf(1)}, false},
	}
	for _, tt := range tests {
		if got := tt.loc.Valid(); got != tt.want {
			t.Errorf("Valid(%v) = %v, want %v", tt.loc, got, tt.want)
		}
	}
}

func TestParseFocus(t *testing.T) {
	if f, ok := ParseFocus("nearby"); !ok || f != FocusNearby {
		t.Fatalf("ParseFocus(nearby) = %v, %v", f, ok)
	}
	if _, ok := ParseFocus("bogus"); ok {
		t.Fatal("ParseFocus(bogus) should fail")
	}
	if FocusNearby.String() != "nearby" || FocusFavorites.String() != "favorites" {
		t.Fatal("unexpected Focus.String output")
	}
}

func recv(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot{}
}
