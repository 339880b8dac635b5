package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// BgStyle paints text segments onto one background colour. lipgloss resets
// the background after every styled run, so bare spaces between runs would
// show the terminal colour; every helper here styles its gaps as well.
type BgStyle struct {
	fill  lipgloss.Style
	space string
}

// NewBgStyle returns a painter for the given background colour.
func NewBgStyle(bgColor string) BgStyle {
	fill := lipgloss.NewStyle().Background(lipgloss.Color(bgColor))
	return BgStyle{fill: fill, space: fill.Render(" ")}
}

// Render styles text on the background. Station names and addresses carry
// inner spaces, so each word is styled and the gaps get painted spaces.
func (b BgStyle) Render(text string, style lipgloss.Style) string {
	if text == "" {
		return ""
	}
	style = style.Background(b.fill.GetBackground())
	if !strings.Contains(text, " ") {
		return style.Render(text)
	}

	var out strings.Builder
	for i, word := range strings.Split(text, " ") {
		if i > 0 {
			out.WriteString(b.space)
		}
		if word != "" {
			out.WriteString(style.Render(word))
		}
	}
	return out.String()
}

// Space returns one painted space.
func (b BgStyle) Space() string {
	return b.space
}

// Spaces returns n painted spaces.
func (b BgStyle) Spaces(n int) string {
	if n <= 0 {
		return ""
	}
	return b.fill.Render(strings.Repeat(" ", n))
}

// Sep paints a separator with no foreground of its own.
func (b BgStyle) Sep(sep string) string {
	return b.fill.Render(sep)
}

// Join joins parts with a painted separator.
func (b BgStyle) Join(parts []string, sep string) string {
	return strings.Join(parts, b.Sep(sep))
}

// Labeled renders "label: value" as used by the header segments.
func (b BgStyle) Labeled(label, value string, labelStyle, valueStyle lipgloss.Style) string {
	return b.Render(label+":", labelStyle) + b.space + b.Render(value, valueStyle)
}

// Hint renders a command bar entry such as "r:Refresh".
func (b BgStyle) Hint(key, desc string, keyStyle, descStyle lipgloss.Style) string {
	return b.Render(key, keyStyle) + b.Sep(":") + b.Render(desc, descStyle)
}

// Count renders a bike or dock count right-aligned in width cells, coloured
// by how much stock is left. Known counts are bold; unknown ones show "--".
func (b BgStyle) Count(n *int, t Theme, width int) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(t.AvailabilityColor(n)))
	if n != nil {
		style = style.Bold(true)
	}
	return b.Render(padLeft(formatCount(n), width), style)
}

// FillLine pads content to width on the background, cut to one line.
func (b BgStyle) FillLine(content string, width int) string {
	return b.fill.Width(width).MaxHeight(1).Render(content)
}
