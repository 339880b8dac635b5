package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/ubike/internal/state"
)

// Column widths for the station table.
const (
	colFavorite = 2
	colCount    = 6
	colDistance = 8
	colNumber   = 10
)

// renderStations renders the active station list inside a titled box.
func (m Model) renderStations(width, height int) string {
	rows := m.snapshot.ActiveList()
	innerWidth := width - 2
	visible := max(height-3, 1) // borders + column header

	var b strings.Builder
	b.WriteString(m.renderStationHeader(innerWidth))

	if len(rows) == 0 {
		styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
		bg := NewBgStyle(m.theme.FocusBg)
		b.WriteString("\n")
		b.WriteString(bg.Render(" "+m.emptyMessage(), styles.MutedText))
		return m.renderTitledBox(m.stationsTitle(), b.String(), width, height, true)
	}

	start := scrollOffset(m.selectedRow, len(rows), visible)
	end := min(start+visible, len(rows))
	for i := start; i < end; i++ {
		b.WriteString("\n")
		b.WriteString(m.renderStationRow(rows[i], innerWidth, i == m.selectedRow))
	}

	return m.renderTitledBox(m.stationsTitle(), b.String(), width, height, true)
}

// stationsTitle names the box after the list on screen.
func (m Model) stationsTitle() string {
	switch {
	case m.snapshot.IsSearching:
		if m.snapshot.ResultsQuery == "" {
			return "Search"
		}
		return fmt.Sprintf("Search: %s", truncate(m.snapshot.ResultsQuery, 24))
	case m.snapshot.Focus == state.FocusNearby:
		return "Nearby Stations"
	default:
		return "Favorite Stations"
	}
}

// emptyMessage explains why the list has no rows.
func (m Model) emptyMessage() string {
	s := m.snapshot
	switch {
	case s.IsSearching && s.IsLoading:
		return "Searching..."
	case s.IsSearching && s.CurrentQuery == "":
		return "Type a station name, area or number"
	case s.IsSearching:
		return fmt.Sprintf("No stations match %q", s.CurrentQuery)
	case s.Focus == state.FocusNearby && s.IsLocating:
		return "Finding stations near you..."
	case s.Focus == state.FocusNearby && s.Location == nil:
		return "No location set. Press L to enter coordinates"
	case s.Focus == state.FocusNearby:
		return "No stations nearby"
	default:
		return "No favorites yet. Press / to search and space to add one"
	}
}

// showDistance reports whether rows carry a distance column.
func (m Model) showDistance() bool {
	return !m.snapshot.IsSearching && m.snapshot.Focus == state.FocusNearby
}

// nameWidth returns the space left for the name and address column.
func (m Model) nameWidth(innerWidth int) int {
	fixed := colFavorite + 3*colCount + 1
	if m.width >= LayoutCompactWidth {
		fixed += colNumber
	}
	if m.showDistance() {
		fixed += colDistance
	}
	return max(innerWidth-fixed, 8)
}

func (m Model) renderStationHeader(innerWidth int) string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	bg := NewBgStyle(m.theme.FocusBg)
	head := styles.FaintText.Bold(true)

	line := bg.Spaces(colFavorite) +
		bg.Render(padRight("Station", m.nameWidth(innerWidth)), head)
	if m.width >= LayoutCompactWidth {
		line += bg.Render(padRight("No.", colNumber), head)
	}
	line += bg.Render(padLeft("Bikes", colCount), head) +
		bg.Render(padLeft("E-Bike", colCount), head) +
		bg.Render(padLeft("Docks", colCount), head)
	if m.showDistance() {
		line += bg.Render(padLeft("Dist", colDistance), head)
	}
	return line
}

// renderStationRow renders one station. Unknown counts show as "--".
func (m Model) renderStationRow(row state.StationResult, innerWidth int, selected bool) string {
	bgColor := m.theme.FocusBg
	if selected {
		bgColor = m.theme.SelectionBg
	}
	styles := m.theme.Styles().WithBackground(bgColor)
	bg := NewBgStyle(bgColor)
	textStyle := styles.Text
	if selected {
		textStyle = styles.Selected
	}

	heart := bg.Spaces(colFavorite)
	if row.IsFavorite {
		heart = bg.Render(padRight("♥", colFavorite), styles.FavoriteText)
	}

	nameW := m.nameWidth(innerWidth)
	label := row.Info.Name
	if addr := strings.TrimSpace(row.Info.Address); addr != "" && nameW > 30 {
		nameLen := lipgloss.Width(label)
		if nameLen+3 < nameW {
			label = truncate(label, nameW)
			rest := truncate(addr, nameW-nameLen-3)
			line := heart + bg.Render(label, textStyle) + bg.Spaces(2) +
				bg.Render(rest, styles.FaintText)
			line += bg.Spaces(max(nameW-nameLen-2-lipgloss.Width(rest), 0))
			return m.finishRow(line, row, bg, styles)
		}
	}
	line := heart + bg.Render(padRight(truncate(label, nameW), nameW), textStyle)
	return m.finishRow(line, row, bg, styles)
}

func (m Model) finishRow(line string, row state.StationResult, bg BgStyle, styles Styles) string {
	if m.width >= LayoutCompactWidth {
		line += bg.Render(padRight(truncate(row.Info.StationNo, colNumber-1), colNumber), styles.MutedText)
	}
	line += bg.Count(row.AvailableBikes, m.theme, colCount) +
		bg.Count(row.AvailableEBikes, m.theme, colCount) +
		bg.Count(row.EmptySpaces, m.theme, colCount)
	if m.showDistance() {
		line += bg.Render(padLeft(formatDistance(row.Distance), colDistance), styles.InfoText)
	}
	return line
}

// scrollOffset keeps the selected row inside a window of visible rows.
func scrollOffset(selected, total, visible int) int {
	if total <= visible || selected < visible/2 {
		return 0
	}
	offset := selected - visible/2
	return min(offset, total-visible)
}

// renderTitledBox renders a box with the title embedded in the top border:
// ┌─── Title ───┐
func (m Model) renderTitledBox(title, content string, width, height int, focused bool) string {
	borderColorStr, bgColorStr := m.theme.Border, m.theme.SurfaceAlt
	if focused {
		borderColorStr, bgColorStr = m.theme.BorderFocus, m.theme.FocusBg
	}
	bg := NewBgStyle(bgColorStr)
	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(borderColorStr))
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.Text))

	innerWidth := width - 2
	titleLen := lipgloss.Width(title)
	leftPad := max((innerWidth-titleLen-2)/2, 0)
	rightPad := max(innerWidth-titleLen-2-leftPad, 0)

	topBorder := bg.Render("┌", borderStyle) +
		bg.Render(strings.Repeat("─", leftPad), borderStyle) +
		bg.Render(" "+title+" ", titleStyle) +
		bg.Render(strings.Repeat("─", rightPad), borderStyle) +
		bg.Render("┐", borderStyle)

	bottomBorder := bg.Render("└", borderStyle) +
		bg.Render(strings.Repeat("─", max(innerWidth, 0)), borderStyle) +
		bg.Render("┘", borderStyle)

	contentStyle := lipgloss.NewStyle().Width(max(innerWidth, 0)).MaxHeight(1).
		Background(lipgloss.Color(bgColorStr))

	contentLines := strings.Split(content, "\n")
	boxHeight := height - 2

	lines := make([]string, 0, boxHeight+2)
	lines = append(lines, topBorder)
	for i := 0; i < boxHeight; i++ {
		var line string
		if i < len(contentLines) {
			line = contentLines[i]
		}
		lines = append(lines,
			bg.Render("│", borderStyle)+contentStyle.Render(line)+bg.Render("│", borderStyle))
	}
	lines = append(lines, bottomBorder)
	return strings.Join(lines, "\n")
}
