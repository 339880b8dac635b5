package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/five82/ubike/internal/logtail"
)

// logState holds the log view. scroll counts lines up from the newest entry;
// zero follows the tail.
type logState struct {
	entries []logtail.Entry
	err     string
	scroll  int
	loading bool
}

type logsLoadedMsg struct {
	entries []logtail.Entry
	err     error
}

// loadLogsCmd reads the log tail off the UI goroutine.
func (m Model) loadLogsCmd() tea.Cmd {
	path := m.logPath
	return func() tea.Msg {
		entries, err := logtail.Tail(path, LogTailLimit)
		return logsLoadedMsg{entries: entries, err: err}
	}
}

// refreshLogs schedules a reload unless one is already in flight.
func (m Model) refreshLogs() (Model, tea.Cmd) {
	if m.logState.loading || m.logPath == "" {
		return m, nil
	}
	m.logState.loading = true
	return m, m.loadLogsCmd()
}

func (m Model) handleLogsLoaded(msg logsLoadedMsg) Model {
	m.logState.loading = false
	if msg.err != nil {
		m.logState.err = msg.err.Error()
		return m
	}
	m.logState.err = ""
	m.logState.entries = msg.entries
	m.logState.scroll = min(m.logState.scroll, max(len(msg.entries)-1, 0))
	return m
}

func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	total := len(m.logState.entries)
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.currentView = ViewStations
	case key.Matches(msg, m.keys.Refresh):
		return m.refreshLogs()
	case key.Matches(msg, m.keys.Up):
		m.logState.scroll = min(m.logState.scroll+1, max(total-1, 0))
	case key.Matches(msg, m.keys.Down):
		m.logState.scroll = max(m.logState.scroll-1, 0)
	case key.Matches(msg, m.keys.Top):
		m.logState.scroll = max(total-1, 0)
	case key.Matches(msg, m.keys.Bottom):
		m.logState.scroll = 0
	}
	return m, nil
}

// renderLogs renders the log tail, newest at the bottom.
func (m Model) renderLogs(width, height int) string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	bg := NewBgStyle(m.theme.FocusBg)
	innerWidth := width - 2
	visible := max(height-2, 1)

	title := "Logs"
	if m.logState.scroll > 0 {
		title = fmt.Sprintf("Logs (+%d)", m.logState.scroll)
	}

	var lines []string
	switch {
	case m.logPath == "":
		lines = []string{bg.Render(" Logging to stderr; no log file to show", styles.MutedText)}
	case m.logState.err != "":
		lines = []string{bg.Render(" "+truncate(m.logState.err, innerWidth-2), styles.DangerText)}
	case len(m.logState.entries) == 0:
		lines = []string{bg.Render(" No log entries yet", styles.MutedText)}
	default:
		end := len(m.logState.entries) - m.logState.scroll
		start := max(end-visible, 0)
		for _, e := range m.logState.entries[start:end] {
			lines = append(lines, m.renderLogEntry(e, innerWidth, styles, bg))
		}
	}

	return m.renderTitledBox(title, strings.Join(lines, "\n"), width, height, true)
}

func (m Model) renderLogEntry(e logtail.Entry, width int, styles Styles, bg BgStyle) string {
	if e.Level == zerolog.NoLevel && e.Time.IsZero() {
		return bg.Space() + bg.Render(truncate(e.Raw, width-1), styles.FaintText)
	}

	var parts []string
	if !e.Time.IsZero() {
		parts = append(parts, bg.Render(e.Time.Local().Format("15:04:05"), styles.FaintText))
	}
	parts = append(parts, bg.Render(padRight(strings.ToUpper(e.Level.String()), 5), m.levelStyle(e.Level, styles)))
	if e.Component != "" {
		parts = append(parts, bg.Render("["+e.Component+"]", styles.AccentText))
	}

	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != "" {
		msg += " error=" + e.Err
	}
	if len(e.Fields) > 0 {
		msg += " " + strings.Join(e.Fields, " ")
	}

	prefix := bg.Space() + bg.Join(parts, " ") + bg.Space()
	room := max(width-lipgloss.Width(prefix), 8)
	return prefix + bg.Render(truncate(msg, room), styles.Text)
}

func (m Model) levelStyle(lvl zerolog.Level, styles Styles) lipgloss.Style {
	switch lvl {
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return styles.DangerText
	case zerolog.WarnLevel:
		return styles.WarningText
	case zerolog.InfoLevel:
		return styles.SuccessText
	case zerolog.DebugLevel, zerolog.TraceLevel:
		return styles.InfoText
	default:
		return styles.MutedText
	}
}
