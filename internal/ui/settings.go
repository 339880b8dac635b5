package ui

import (
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// refreshIntervals are the auto-refresh choices offered in settings, in
// seconds. Zero turns auto-refresh off.
var refreshIntervals = []int{0, 10, 15, 20, 30}

// stepInterval returns the interval delta steps away from current, clamped
// to the ends of refreshIntervals. Values not in the list move to the
// neighbouring choice in the step direction.
func stepInterval(current, delta int) int {
	idx := slices.Index(refreshIntervals, current)
	if idx >= 0 {
		idx = min(max(idx+delta, 0), len(refreshIntervals)-1)
		return refreshIntervals[idx]
	}
	if delta > 0 {
		for _, v := range refreshIntervals {
			if v > current {
				return v
			}
		}
		return current
	}
	for i := len(refreshIntervals) - 1; i >= 0; i-- {
		if refreshIntervals[i] < current {
			return refreshIntervals[i]
		}
	}
	return current
}

func (m Model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.settingsErr = ""
		m.currentView = ViewStations
		return m, nil
	case key.Matches(msg, m.keys.Prev):
		return m.changeInterval(-1)
	case key.Matches(msg, m.keys.Next):
		return m.changeInterval(1)
	}
	return m, nil
}

func (m Model) changeInterval(delta int) (tea.Model, tea.Cmd) {
	if m.prefs == nil {
		return m, nil
	}
	current := m.prefs.RefreshIntervalSeconds()
	next := stepInterval(current, delta)
	if next == current {
		return m, nil
	}
	m.settingsErr = ""
	if err := m.prefs.SetRefreshIntervalSeconds(next); err != nil {
		m.settingsErr = "Could not save refresh interval"
		m.logger.Warn().Err(err).Int("seconds", next).Msg("save refresh interval failed")
		return m, nil
	}
	m.logger.Info().Int("seconds", next).Msg("refresh interval changed")
	return m, nil
}

// renderSettings renders the settings view.
func (m Model) renderSettings(width, height int) string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	bg := NewBgStyle(m.theme.FocusBg)

	current := 0
	if m.prefs != nil {
		current = m.prefs.RefreshIntervalSeconds()
	}

	choices := make([]string, 0, len(refreshIntervals))
	for _, v := range refreshIntervals {
		label := formatInterval(v)
		if v == current {
			choices = append(choices, bg.Render("["+label+"]", styles.AccentText.Bold(true)))
		} else {
			choices = append(choices, bg.Render(" "+label+" ", styles.FaintText))
		}
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(bg.Space() + bg.Render(padRight("Auto refresh", 20), styles.MutedText) + bg.Join(choices, " "))
	b.WriteString("\n\n")
	b.WriteString(bg.Space() + bg.Render(padRight("Theme", 20), styles.MutedText) + bg.Render(m.theme.Name, styles.Text))
	b.WriteString("\n\n")
	b.WriteString(bg.Space() + bg.Render("Use left/right to change the interval, T to cycle themes.", styles.FaintText))

	return m.renderTitledBox("Settings", b.String(), width, height, true)
}
