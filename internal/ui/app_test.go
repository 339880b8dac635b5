package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/five82/ubike/internal/state"
	"github.com/five82/ubike/internal/youbike"
)

type fakeEngine struct {
	mu       sync.Mutex
	snap     state.Snapshot
	calls    []string
	query    string
	toggled  youbike.StationInfo
	location state.Location
	focus    state.Focus
}

func (f *fakeEngine) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeEngine) Snapshot() state.Snapshot { return f.snap }

func (f *fakeEngine) Subscribe(ctx context.Context) <-chan state.Snapshot {
	return make(chan state.Snapshot)
}

func (f *fakeEngine) Search(_ context.Context, q string) error {
	f.query = q
	f.record("search")
	return nil
}

func (f *fakeEngine) ClearSearch() { f.record("clear_search") }

func (f *fakeEngine) RefreshActive(context.Context) error {
	f.record("refresh")
	return nil
}

func (f *fakeEngine) ToggleFavorite(_ context.Context, s youbike.StationInfo) (bool, error) {
	f.toggled = s
	f.record("toggle")
	return true, nil
}

func (f *fakeEngine) FindNearby(_ context.Context, loc state.Location) error {
	f.location = loc
	f.record("find_nearby")
	return nil
}

func (f *fakeEngine) SetFocus(focus state.Focus) {
	f.focus = focus
	f.record("set_focus")
}

func (f *fakeEngine) ClearToast() { f.record("clear_toast") }
func (f *fakeEngine) ClearError() { f.record("clear_error") }

type fakePrefs struct {
	interval int
	theme    string
	failSet  bool
}

func (p *fakePrefs) RefreshIntervalSeconds() int { return p.interval }

func (p *fakePrefs) SetRefreshIntervalSeconds(n int) error {
	if p.failSet {
		return errors.New("disk full")
	}
	p.interval = n
	return nil
}

func (p *fakePrefs) Theme() string { return p.theme }

func (p *fakePrefs) SetTheme(name string) error {
	p.theme = name
	return nil
}

func newTestModel(t *testing.T, snap state.Snapshot) (Model, *fakeEngine, *fakePrefs) {
	t.Helper()
	eng := &fakeEngine{snap: snap}
	prefs := &fakePrefs{theme: "Nightfox"}
	m := New(context.Background(), Options{Engine: eng, Prefs: prefs, Logger: zerolog.Nop()})
	return m, eng, prefs
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		m = next.(Model)
	}
	return m, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m, _ = press(t, m, runes(string(r)))
	}
	return m
}

// run executes an engine command synchronously.
func run(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	msg := cmd()
	if done, ok := msg.(opDoneMsg); ok && done.err != nil {
		t.Fatalf("command failed: %v", done.err)
	}
}

func stationRow(no, name string) state.StationResult {
	return state.StationResult{
		Info:           youbike.StationInfo{StationNo: no, Name: name, Address: "Somewhere Rd."},
		IsFavorite:     true,
		AvailableBikes: state.IntPtr(4),
		EmptySpaces:    state.IntPtr(0),
	}
}

func TestParseLocation(t *testing.T) {
	cases := []struct {
		in      string
		want    state.Location
		wantErr bool
	}{
		{"25.03,121.56", state.Location{Lat: 25.03, Lng: 121.56}, false},
		{" 25.03 , 121.56 ", state.Location{Lat: 25.03, Lng: 121.56}, false},
		{"25.03 121.56", state.Location{Lat: 25.03, Lng: 121.56}, false},
		{"25.03", state.Location{}, true},
		{"north,east", state.Location{}, true},
		{"95,121", state.Location{}, true},
		{"", state.Location{}, true},
	}
	for _, tc := range cases {
		got, err := parseLocation(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseLocation(%q) error = nil, want error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseLocation(%q) error = %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parseLocation(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestStepInterval(t *testing.T) {
	cases := []struct {
		current, delta, want int
	}{
		{0, 1, 10},
		{0, -1, 0},
		{10, 1, 15},
		{30, 1, 30},
		{20, -1, 15},
		{12, 1, 15},
		{12, -1, 10},
		{45, -1, 30},
		{45, 1, 45},
	}
	for _, tc := range cases {
		if got := stepInterval(tc.current, tc.delta); got != tc.want {
			t.Fatalf("stepInterval(%d, %d) = %d, want %d", tc.current, tc.delta, got, tc.want)
		}
	}
}

func TestSearchPrompt(t *testing.T) {
	m, eng, _ := newTestModel(t, state.Snapshot{})

	m, _ = press(t, m, runes("/"))
	if m.prompt != promptSearch {
		t.Fatalf("prompt = %v, want search", m.prompt)
	}
	m = typeText(t, m, "abc")
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.prompt != promptNone {
		t.Fatalf("prompt still open after enter")
	}
	run(t, cmd)
	if eng.query != "abc" {
		t.Fatalf("Search query = %q, want abc", eng.query)
	}
}

func TestSearchPrompt_PrefillsCurrentQuery(t *testing.T) {
	m, _, _ := newTestModel(t, state.Snapshot{IsSearching: true, CurrentQuery: "daan"})
	m, _ = press(t, m, runes("/"))
	if got := m.input.Value(); got != "daan" {
		t.Fatalf("prompt value = %q, want daan", got)
	}
}

func TestSearchPrompt_EmptyQuerySearchesAll(t *testing.T) {
	m, eng, _ := newTestModel(t, state.Snapshot{})
	eng.query = "stale"
	m, _ = press(t, m, runes("/"))
	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	run(t, cmd)
	if calls := eng.Calls(); len(calls) != 1 || calls[0] != "search" {
		t.Fatalf("calls = %v, want [search]", calls)
	}
	if eng.query != "" {
		t.Fatalf("Search query = %q, want empty", eng.query)
	}
}

func TestPrompt_EscapeCancels(t *testing.T) {
	m, eng, _ := newTestModel(t, state.Snapshot{})
	m, _ = press(t, m, runes("/"))
	m = typeText(t, m, "x")
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.prompt != promptNone || cmd != nil {
		t.Fatalf("esc did not close prompt cleanly")
	}
	if calls := eng.Calls(); len(calls) != 0 {
		t.Fatalf("calls = %v, want none", calls)
	}
}

func TestLocationPrompt(t *testing.T) {
	m, eng, _ := newTestModel(t, state.Snapshot{})

	m, _ = press(t, m, runes("L"))
	if m.prompt != promptLocation {
		t.Fatalf("prompt = %v, want location", m.prompt)
	}
	m = typeText(t, m, "oops")
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || m.prompt != promptLocation || m.promptErr == "" {
		t.Fatalf("invalid location accepted (prompt=%v err=%q)", m.prompt, m.promptErr)
	}

	m.input.SetValue("25.04,121.55")
	_, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	run(t, cmd)
	if eng.location != (state.Location{Lat: 25.04, Lng: 121.55}) {
		t.Fatalf("FindNearby location = %+v", eng.location)
	}
	if eng.focus != state.FocusNearby {
		t.Fatalf("focus = %v, want nearby", eng.focus)
	}
}

func TestToggleFavoriteUsesSelectedRow(t *testing.T) {
	snap := state.Snapshot{FavoriteStations: []state.StationResult{
		stationRow("500101001", "Alpha"),
		stationRow("500101002", "Beta"),
	}}
	m, eng, _ := newTestModel(t, snap)

	m, _ = press(t, m, runes("j"))
	if m.selectedRow != 1 {
		t.Fatalf("selectedRow = %d, want 1", m.selectedRow)
	}
	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	run(t, cmd)
	if eng.toggled.StationNo != "500101002" {
		t.Fatalf("toggled = %q, want 500101002", eng.toggled.StationNo)
	}
}

func TestToggleFavorite_EmptyListIsNoop(t *testing.T) {
	m, _, _ := newTestModel(t, state.Snapshot{})
	if _, cmd := press(t, m, runes("f")); cmd != nil {
		t.Fatalf("expected no command on empty list")
	}
}

func TestNavigationBounds(t *testing.T) {
	snap := state.Snapshot{FavoriteStations: []state.StationResult{
		stationRow("1", "A"), stationRow("2", "B"), stationRow("3", "C"),
	}}
	m, _, _ := newTestModel(t, snap)

	m, _ = press(t, m, runes("G"))
	if m.selectedRow != 2 {
		t.Fatalf("G selectedRow = %d, want 2", m.selectedRow)
	}
	m, _ = press(t, m, runes("j"))
	if m.selectedRow != 2 {
		t.Fatalf("j past end selectedRow = %d, want 2", m.selectedRow)
	}
	m, _ = press(t, m, runes("g"), runes("k"))
	if m.selectedRow != 0 {
		t.Fatalf("k past top selectedRow = %d, want 0", m.selectedRow)
	}
}

func TestSnapshotClampsSelection(t *testing.T) {
	snap := state.Snapshot{FavoriteStations: []state.StationResult{
		stationRow("1", "A"), stationRow("2", "B"), stationRow("3", "C"),
	}}
	m, _, _ := newTestModel(t, snap)
	m.selectedRow = 2

	next, _ := m.Update(snapshotMsg(state.Snapshot{FavoriteStations: []state.StationResult{stationRow("1", "A")}}))
	m = next.(Model)
	if m.selectedRow != 0 {
		t.Fatalf("selectedRow = %d, want 0", m.selectedRow)
	}
}

func TestEscape(t *testing.T) {
	m, eng, _ := newTestModel(t, state.Snapshot{IsSearching: true})
	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	run(t, cmd)

	m, eng2, _ := newTestModel(t, state.Snapshot{ErrorMessage: "Network error"})
	_, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	run(t, cmd)

	if got := eng.Calls(); len(got) != 1 || got[0] != "clear_search" {
		t.Fatalf("searching esc calls = %v, want [clear_search]", got)
	}
	if got := eng2.Calls(); len(got) != 1 || got[0] != "clear_error" {
		t.Fatalf("idle esc calls = %v, want [clear_error]", got)
	}
}

func TestSwitchList(t *testing.T) {
	loc := state.Location{Lat: 25.03, Lng: 121.56}
	m, eng, _ := newTestModel(t, state.Snapshot{IsSearching: true, Location: &loc})

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	run(t, cmd)
	if m.prompt != promptNone {
		t.Fatalf("prompt opened with a known location")
	}
	if got := eng.Calls(); len(got) != 2 || got[0] != "clear_search" || got[1] != "set_focus" {
		t.Fatalf("calls = %v, want [clear_search set_focus]", got)
	}
	if eng.focus != state.FocusNearby {
		t.Fatalf("focus = %v, want nearby", eng.focus)
	}
}

func TestSwitchList_NoLocationOpensPrompt(t *testing.T) {
	m, _, _ := newTestModel(t, state.Snapshot{})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.prompt != promptLocation {
		t.Fatalf("prompt = %v, want location", m.prompt)
	}
}

func TestRefreshKey(t *testing.T) {
	m, eng, _ := newTestModel(t, state.Snapshot{})
	_, cmd := press(t, m, runes("r"))
	run(t, cmd)
	if got := eng.Calls(); len(got) != 1 || got[0] != "refresh" {
		t.Fatalf("calls = %v, want [refresh]", got)
	}
}

func TestSettingsInterval(t *testing.T) {
	m, _, prefs := newTestModel(t, state.Snapshot{})

	m, _ = press(t, m, runes("s"))
	if m.currentView != ViewSettings {
		t.Fatalf("view = %v, want settings", m.currentView)
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight}, tea.KeyMsg{Type: tea.KeyRight})
	if prefs.interval != 15 {
		t.Fatalf("interval = %d, want 15", prefs.interval)
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	if prefs.interval != 10 {
		t.Fatalf("interval = %d, want 10", prefs.interval)
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.currentView != ViewStations {
		t.Fatalf("esc view = %v, want stations", m.currentView)
	}
}

func TestSettingsInterval_SaveFailure(t *testing.T) {
	m, _, prefs := newTestModel(t, state.Snapshot{})
	prefs.failSet = true

	m, _ = press(t, m, runes("s"), tea.KeyMsg{Type: tea.KeyRight})
	if prefs.interval != 0 {
		t.Fatalf("interval = %d, want 0", prefs.interval)
	}
	if m.settingsErr == "" {
		t.Fatalf("expected settings error")
	}
}

func TestCycleThemePersists(t *testing.T) {
	m, _, prefs := newTestModel(t, state.Snapshot{})
	m, _ = press(t, m, runes("T"))
	if m.theme.Name != "Kanagawa" || prefs.theme != "Kanagawa" {
		t.Fatalf("theme = %q, saved %q, want Kanagawa", m.theme.Name, prefs.theme)
	}
}

func TestHelpOverlay(t *testing.T) {
	m, eng, _ := newTestModel(t, state.Snapshot{})
	m, _ = press(t, m, runes("?"))
	if !m.showHelp {
		t.Fatalf("help not shown")
	}
	m, cmd := press(t, m, runes("r"))
	if m.showHelp || cmd != nil {
		t.Fatalf("key did not just close help")
	}
	if got := eng.Calls(); len(got) != 0 {
		t.Fatalf("calls = %v, want none", got)
	}
}

func TestToastExpiry(t *testing.T) {
	m, eng, _ := newTestModel(t, state.Snapshot{ToastMessage: "Refreshed"})

	if _, cmd := m.Update(toastExpiredMsg("Older toast")); cmd != nil {
		t.Fatalf("stale expiry produced a command")
	}
	_, cmd := m.Update(toastExpiredMsg("Refreshed"))
	run(t, cmd)
	if got := eng.Calls(); len(got) != 1 || got[0] != "clear_toast" {
		t.Fatalf("calls = %v, want [clear_toast]", got)
	}
}

func TestQuit(t *testing.T) {
	m, _, _ := newTestModel(t, state.Snapshot{})
	_, cmd := press(t, m, runes("e"))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("command did not quit")
	}
}

func TestViewRendersRows(t *testing.T) {
	dist := 420.0
	row := stationRow("500101001", "YouBike2.0_Alpha")
	row.Distance = &dist
	loc := state.Location{Lat: 25.03, Lng: 121.56}
	m, _, _ := newTestModel(t, state.Snapshot{
		Focus:          state.FocusNearby,
		Location:       &loc,
		NearbyStations: []state.StationResult{row},
		ToastMessage:   "Refreshed",
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 20})
	m = next.(Model)

	out := m.View()
	for _, want := range []string{"Nearby Stations", "YouBike2.0_Alpha", "420 m", "--", "Refreshed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("View() missing %q", want)
		}
	}
	if lines := strings.Count(out, "\n") + 1; lines != 20 {
		t.Fatalf("View() has %d lines, want 20", lines)
	}
}

func TestViewEmptyFavorites(t *testing.T) {
	m, _, _ := newTestModel(t, state.Snapshot{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 12})
	m = next.(Model)
	if out := m.View(); !strings.Contains(out, "No favorites yet") {
		t.Fatalf("View() missing empty favorites message")
	}
}

func TestLogsView(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ubike.log")
	content := `{"level":"info","time":"2026-03-01T08:00:00Z","message":"ubike starting"}` + "\n" +
		`{"level":"warn","component":"query","op":"search","error":"network error","time":"2026-03-01T08:00:05Z","message":"search failed"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	eng := &fakeEngine{}
	m := New(context.Background(), Options{Engine: eng, Prefs: &fakePrefs{}, Logger: zerolog.Nop(), LogPath: path})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 16})
	m = next.(Model)

	m, cmd := press(t, m, runes("l"))
	if m.currentView != ViewLogs {
		t.Fatalf("view = %v, want logs", m.currentView)
	}
	if cmd == nil {
		t.Fatalf("expected log load command")
	}
	next, _ = m.Update(cmd())
	m = next.(Model)
	if len(m.logState.entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(m.logState.entries))
	}

	out := m.View()
	for _, want := range []string{"ubike starting", "WARN", "[query]", "search: search failed", "error=network error"} {
		if !strings.Contains(out, want) {
			t.Fatalf("View() missing %q", want)
		}
	}

	m, _ = press(t, m, runes("k"))
	if m.logState.scroll != 1 {
		t.Fatalf("scroll = %d, want 1", m.logState.scroll)
	}
	m, _ = press(t, m, runes("G"))
	if m.logState.scroll != 0 {
		t.Fatalf("scroll after G = %d, want 0", m.logState.scroll)
	}
	m, _ = press(t, m, runes("l"))
	if m.currentView != ViewStations {
		t.Fatalf("view = %v, want stations", m.currentView)
	}
}
