package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/ubike/internal/query"
	"github.com/five82/ubike/internal/state"
)

// renderMain stacks the header, the active view, the status line and the
// command bar.
func (m Model) renderMain() string {
	bodyHeight := max(m.height-chromeHeight, minBodyHeight)

	var body string
	switch m.currentView {
	case ViewSettings:
		body = m.renderSettings(m.width, bodyHeight)
	case ViewLogs:
		body = m.renderLogs(m.width, bodyHeight)
	default:
		body = m.renderStations(m.width, bodyHeight)
	}

	return strings.Join([]string{
		m.renderHeader(),
		body,
		m.renderStatusLine(),
		m.renderCommandBar(),
	}, "\n")
}

// renderHeader renders the status bar with all information.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < LayoutCompactWidth

	parts := []string{bg.Render("ubike", styles.Logo)}

	// Active list and its size
	rows := m.snapshot.ActiveList()
	parts = append(parts, bg.Labeled(m.listLabel(), fmt.Sprintf("%d", len(rows)), styles.MutedText, styles.Text))

	// Busy indicators
	if m.snapshot.IsLoading {
		parts = append(parts, bg.Render("● Loading", styles.InfoText))
	}
	if m.snapshot.IsRefreshing {
		parts = append(parts, bg.Render("● Refreshing", styles.InfoText))
	}
	if m.snapshot.IsLocating {
		parts = append(parts, bg.Render("● Locating", styles.InfoText))
	}

	if m.snapshot.IsOffline() {
		parts = append(parts, bg.Render("OFFLINE", styles.DangerText.Bold(true)))
	}

	// Auto-refresh interval
	if m.prefs != nil {
		interval := m.prefs.RefreshIntervalSeconds()
		style := ternaryStyle(interval > 0, styles.SuccessText, styles.FaintText)
		parts = append(parts, bg.Labeled("Auto", formatInterval(interval), styles.MutedText, style))
	}

	if !compact {
		if loc := m.snapshot.Location; loc != nil {
			parts = append(parts, bg.Render("@ "+formatLocation(*loc), styles.FaintText))
		}
	}

	if ts := m.formatTimestamp(); ts != "" {
		parts = append(parts, bg.Render(ts, styles.MutedText))
	}

	return styles.Header.Width(m.width).MaxHeight(1).Render(bg.Join(parts, "  "))
}

// listLabel names the list currently on screen.
func (m Model) listLabel() string {
	switch {
	case m.snapshot.IsSearching:
		return "Search"
	case m.snapshot.Focus == state.FocusNearby:
		return "Nearby"
	default:
		return "Favorites"
	}
}

// formatTimestamp formats the last refresh time with a relative indicator.
func (m Model) formatTimestamp() string {
	last := m.snapshot.LastUpdated
	if last.IsZero() {
		return ""
	}
	since := m.now.Sub(last)
	ago := humanizeDuration(since)
	if ago != "now" {
		ago += " ago"
	}
	return fmt.Sprintf("%s (%s)", last.Local().Format("15:04:05"), ago)
}

// renderStatusLine shows the prompt when one is open, else the toast or the
// current error.
func (m Model) renderStatusLine() string {
	styles := m.theme.Styles().WithBackground(m.theme.Background)
	bg := NewBgStyle(m.theme.Background)

	var content string
	switch {
	case m.prompt != promptNone:
		content = m.renderPrompt(styles, bg)
	case m.settingsErr != "":
		content = bg.Render("!", styles.WarningText.Bold(true)) + bg.Space() +
			bg.Render(m.settingsErr, styles.WarningText)
	case m.snapshot.ErrorMessage != "":
		content = bg.Render("ERROR", styles.DangerText.Bold(true)) + bg.Space() +
			bg.Render(truncate(m.snapshot.ErrorMessage, max(m.width-10, 10)), styles.DangerText)
	case m.snapshot.ToastMessage != "":
		style := ternaryStyle(m.snapshot.ToastMessage == query.ToastRefreshFailed, styles.WarningText, styles.SuccessText)
		content = bg.Render(m.snapshot.ToastMessage, style)
	}

	return bg.FillLine(bg.Space()+content, m.width)
}

// renderCommandBar renders the command hints bar.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch {
	case m.prompt != promptNone:
		commands = []cmd{
			{"enter", "Confirm"},
			{"esc", "Cancel"},
		}
	case m.currentView == ViewLogs:
		commands = []cmd{
			{"j/k", "Scroll"},
			{"G", "Follow"},
			{"r", "Reload"},
			{"l", "Back"},
			{"?", "More"},
		}
	case m.currentView == ViewSettings:
		commands = []cmd{
			{"←/→", "Interval"},
			{"T", "Theme"},
			{"s", "Back"},
			{"?", "More"},
		}
	default:
		commands = []cmd{
			{"/", "Search"},
			{"Space", "Favorite"},
			{"r", "Refresh"},
			{"Tab", ternary(m.snapshot.Focus == state.FocusNearby, "Favorites", "Nearby")},
			{"L", "Location"},
			{"j/k", "Navigate"},
			{"s", "Settings"},
			{"?", "More"},
		}
		if m.snapshot.IsSearching {
			commands = append([]cmd{{"esc", "Clear"}}, commands...)
		}
	}

	segments := make([]string, 0, len(commands)+2)
	for _, c := range commands {
		segments = append(segments, bg.Hint(c.key, c.desc, styles.AccentText, styles.MutedText))
	}

	if q := m.snapshot.ResultsQuery; m.snapshot.IsSearching && q != "" {
		segments = append(segments, bg.Render("/"+truncate(q, 18), styles.AccentText))
	}

	segments = append(segments, bg.Hint("T", m.theme.Name, styles.AccentText, styles.FaintText))

	return styles.Footer.Width(m.width).MaxHeight(1).Render(bg.Join(segments, "  "))
}

func ternaryStyle(cond bool, a, b lipgloss.Style) lipgloss.Style {
	if cond {
		return a
	}
	return b
}
