package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// truncate shortens a string to the given display width, adding an ellipsis
// if needed. Wide runes (CJK station names) count as two cells.
func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 || lipgloss.Width(value) <= limit {
		return value
	}
	runes := []rune(value)
	if limit <= 3 {
		return cutWidth(runes, limit)
	}
	return cutWidth(runes, limit-3) + "..."
}

func cutWidth(runes []rune, limit int) string {
	var b strings.Builder
	width := 0
	for _, r := range runes {
		w := lipgloss.Width(string(r))
		if width+w > limit {
			break
		}
		b.WriteRune(r)
		width += w
	}
	return b.String()
}

// padRight pads a string with spaces to the given display width.
func padRight(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

// padLeft right-aligns s in the given display width.
func padLeft(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return strings.Repeat(" ", gap) + s
	}
	return s
}

// formatCount renders an availability count; unknown is "--".
func formatCount(n *int) string {
	if n == nil {
		return "--"
	}
	return strconv.Itoa(*n)
}

// formatDistance renders metres as "350 m" or "1.2 km".
func formatDistance(m *float64) string {
	if m == nil {
		return ""
	}
	if *m < 1000 {
		return fmt.Sprintf("%d m", int(*m+0.5))
	}
	return fmt.Sprintf("%.1f km", *m/1000)
}

// formatInterval renders a refresh interval in seconds; zero is "Off".
func formatInterval(seconds int) string {
	if seconds <= 0 {
		return "Off"
	}
	return fmt.Sprintf("%ds", seconds)
}

func humanizeDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}

// ternary returns a if cond is true, otherwise b.
func ternary(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
