package ui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/five82/ubike/internal/state"
	"github.com/five82/ubike/internal/youbike"
)

// Engine is the query surface the TUI drives.
type Engine interface {
	Snapshot() state.Snapshot
	Subscribe(ctx context.Context) <-chan state.Snapshot
	Search(ctx context.Context, query string) error
	ClearSearch()
	RefreshActive(ctx context.Context) error
	ToggleFavorite(ctx context.Context, station youbike.StationInfo) (bool, error)
	FindNearby(ctx context.Context, loc state.Location) error
	SetFocus(f state.Focus)
	ClearToast()
	ClearError()
}

// Prefs is the settings surface the TUI edits.
type Prefs interface {
	RefreshIntervalSeconds() int
	SetRefreshIntervalSeconds(n int) error
	Theme() string
	SetTheme(name string) error
}

// View represents the current active view.
type View int

const (
	ViewStations View = iota
	ViewSettings
	ViewLogs
)

// promptMode selects what the input line is collecting.
type promptMode int

const (
	promptNone promptMode = iota
	promptSearch
	promptLocation
)

// Options configures the UI.
type Options struct {
	Engine Engine
	Prefs  Prefs
	Logger zerolog.Logger
	// LogPath is the file the log view tails. Empty hides the log view content.
	LogPath string
	// ClockTick is how often the header clock re-renders. Zero uses one second.
	ClockTick time.Duration
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	engine    Engine
	prefs     Prefs
	logger    zerolog.Logger
	keys      keyMap
	clockTick time.Duration
	updates   <-chan state.Snapshot
	logPath   string

	// UI state
	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool
	showHelp    bool
	now         time.Time

	// Data state
	snapshot   state.Snapshot
	shownToast string

	// List state
	selectedRow int

	// Prompt state
	prompt    promptMode
	input     textinput.Model
	promptErr string

	// Settings state
	settingsErr string

	// Log view state
	logState logState
}

// New creates a new Bubble Tea model. It subscribes to engine snapshots for
// the lifetime of ctx.
func New(ctx context.Context, opts Options) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	clockTick := opts.ClockTick
	if clockTick <= 0 {
		clockTick = DefaultClockTick
	}

	input := textinput.New()
	input.CharLimit = 64

	themeName := ""
	if opts.Prefs != nil {
		themeName = opts.Prefs.Theme()
	}

	m := Model{
		ctx:         ctx,
		engine:      opts.Engine,
		prefs:       opts.Prefs,
		logger:      opts.Logger.With().Str("component", "ui").Logger(),
		keys:        DefaultKeyMap(),
		clockTick:   clockTick,
		logPath:     opts.LogPath,
		theme:       GetTheme(themeName),
		currentView: ViewStations,
		input:       input,
		now:         time.Now(),
	}
	if m.engine != nil {
		m.snapshot = m.engine.Snapshot()
		m.updates = m.engine.Subscribe(ctx)
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(m.clockTick),
		waitForSnapshot(m.updates),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-20, 10)
		m.ready = true
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		if m.currentView == ViewLogs {
			var load tea.Cmd
			m, load = m.refreshLogs()
			return m, tea.Batch(tickCmd(m.clockTick), load)
		}
		return m, tickCmd(m.clockTick)

	case logsLoadedMsg:
		return m.handleLogsLoaded(msg), nil

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.clampSelection()
		cmds := []tea.Cmd{waitForSnapshot(m.updates)}
		if toast := m.snapshot.ToastMessage; toast != "" && toast != m.shownToast {
			cmds = append(cmds, toastTimeoutCmd(toast))
		}
		m.shownToast = m.snapshot.ToastMessage
		return m, tea.Batch(cmds...)

	case toastExpiredMsg:
		if m.snapshot.ToastMessage == string(msg) {
			return m, m.engineCmd(func(e Engine) error { e.ClearToast(); return nil })
		}
		return m, nil

	case opDoneMsg:
		// The engine reports failures on the snapshot; this is for the log.
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.logger.Debug().Err(msg.err).Str("op", msg.op).Msg("operation failed")
		}
		return m, nil
	}

	if m.prompt != promptNone {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	if m.prompt != promptNone {
		return m.handlePromptKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		return m.cycleTheme()

	case key.Matches(msg, m.keys.Settings):
		m.settingsErr = ""
		m.currentView = ternaryView(m.currentView == ViewSettings, ViewStations, ViewSettings)
		return m, nil

	case key.Matches(msg, m.keys.Logs):
		if m.currentView == ViewLogs {
			m.currentView = ViewStations
			return m, nil
		}
		m.currentView = ViewLogs
		m.logState.scroll = 0
		return m.refreshLogs()
	}

	switch m.currentView {
	case ViewSettings:
		return m.handleSettingsKey(msg)
	case ViewLogs:
		return m.handleLogsKey(msg)
	default:
		return m.handleStationsKey(msg)
	}
}

// handleStationsKey processes keyboard input for the station lists.
func (m Model) handleStationsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Search):
		return m.openPrompt(promptSearch, m.snapshot.CurrentQuery)

	case key.Matches(msg, m.keys.Location):
		initial := ""
		if loc := m.snapshot.Location; loc != nil {
			initial = formatLocation(*loc)
		}
		return m.openPrompt(promptLocation, initial)

	case key.Matches(msg, m.keys.Escape):
		if m.snapshot.IsSearching {
			m.selectedRow = 0
			return m, m.engineCmd(func(e Engine) error { e.ClearSearch(); return nil })
		}
		return m, m.engineCmd(func(e Engine) error { e.ClearError(); return nil })

	case key.Matches(msg, m.keys.SwitchList):
		return m.switchList()

	case key.Matches(msg, m.keys.Refresh):
		return m, m.opCmd("refresh", func(ctx context.Context, e Engine) error {
			return e.RefreshActive(ctx)
		})

	case key.Matches(msg, m.keys.ToggleFavorite):
		row, ok := m.selectedStation()
		if !ok {
			return m, nil
		}
		station := row.Info
		return m, m.opCmd("toggle_favorite", func(ctx context.Context, e Engine) error {
			_, err := e.ToggleFavorite(ctx, station)
			return err
		})
	}

	m.moveSelection(msg)
	return m, nil
}

// switchList flips between favorites and nearby, leaving search mode.
func (m Model) switchList() (tea.Model, tea.Cmd) {
	next := state.FocusNearby
	if m.snapshot.Focus == state.FocusNearby {
		next = state.FocusFavorites
	}
	searching := m.snapshot.IsSearching
	m.selectedRow = 0

	cmd := m.engineCmd(func(e Engine) error {
		if searching {
			e.ClearSearch()
		}
		e.SetFocus(next)
		return nil
	})
	if next == state.FocusNearby && m.snapshot.Location == nil {
		model, open := m.openPrompt(promptLocation, "")
		return model, tea.Batch(cmd, open)
	}
	return m, cmd
}

func (m *Model) moveSelection(msg tea.KeyMsg) {
	count := len(m.snapshot.ActiveList())
	if count == 0 {
		return
	}
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.selectedRow < count-1 {
			m.selectedRow++
		}
	case key.Matches(msg, m.keys.Up):
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case key.Matches(msg, m.keys.Top):
		m.selectedRow = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selectedRow = count - 1
	}
}

func (m *Model) clampSelection() {
	count := len(m.snapshot.ActiveList())
	if m.selectedRow >= count {
		m.selectedRow = max(count-1, 0)
	}
}

func (m Model) selectedStation() (state.StationResult, bool) {
	rows := m.snapshot.ActiveList()
	if m.selectedRow < 0 || m.selectedRow >= len(rows) {
		return state.StationResult{}, false
	}
	return rows[m.selectedRow], true
}

func (m Model) cycleTheme() (tea.Model, tea.Cmd) {
	m.theme = GetTheme(NextTheme(m.theme.Name))
	if m.prefs != nil {
		if err := m.prefs.SetTheme(m.theme.Name); err != nil {
			m.settingsErr = "Could not save theme"
			m.logger.Warn().Err(err).Str("theme", m.theme.Name).Msg("save theme failed")
		}
	}
	return m, nil
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type toastExpiredMsg string

type opDoneMsg struct {
	op  string
	err error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForSnapshot delivers the next published snapshot.
func waitForSnapshot(ch <-chan state.Snapshot) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}

func toastTimeoutCmd(toast string) tea.Cmd {
	return tea.Tick(ToastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg(toast)
	})
}

// opCmd runs a blocking engine operation off the UI goroutine.
func (m Model) opCmd(op string, fn func(context.Context, Engine) error) tea.Cmd {
	if m.engine == nil {
		return nil
	}
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx, engine)}
	}
}

// engineCmd runs a non-blocking engine call off the UI goroutine.
func (m Model) engineCmd(fn func(Engine) error) tea.Cmd {
	if m.engine == nil {
		return nil
	}
	engine := m.engine
	return func() tea.Msg {
		return opDoneMsg{err: fn(engine)}
	}
}

func ternaryView(cond bool, a, b View) View {
	if cond {
		return a
	}
	return b
}

// Run starts the Bubble Tea program and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, opts Options) error {
	m := New(ctx, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
