package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/ubike/internal/state"
)

var errLocationFormat = errors.New("enter coordinates as lat,lng")

// parseLocation reads "lat,lng" (a space also separates) into a Location.
func parseLocation(s string) (state.Location, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) != 2 {
		return state.Location{}, errLocationFormat
	}
	lat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return state.Location{}, errLocationFormat
	}
	lng, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return state.Location{}, errLocationFormat
	}
	loc := state.Location{Lat: lat, Lng: lng}
	if !loc.Valid() {
		return state.Location{}, errors.New("coordinates out of range")
	}
	return loc, nil
}

func formatLocation(loc state.Location) string {
	return fmt.Sprintf("%.5f,%.5f", loc.Lat, loc.Lng)
}

func (m Model) openPrompt(mode promptMode, initial string) (Model, tea.Cmd) {
	m.prompt = mode
	m.promptErr = ""
	switch mode {
	case promptLocation:
		m.input.Placeholder = "25.03361,121.56500"
	default:
		m.input.Placeholder = "name, area or station number"
	}
	m.input.SetValue(initial)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m Model) closePrompt() Model {
	m.prompt = promptNone
	m.promptErr = ""
	m.input.Blur()
	m.input.Reset()
	return m
}

// handlePromptKey processes input while the prompt line is open.
func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		return m.closePrompt(), nil

	case key.Matches(msg, m.keys.Confirm):
		value := strings.TrimSpace(m.input.Value())
		switch m.prompt {
		case promptSearch:
			m = m.closePrompt()
			m.selectedRow = 0
			// An empty query lists the whole roster, capped; esc leaves search.
			return m, m.opCmd("search", func(ctx context.Context, e Engine) error {
				return e.Search(ctx, value)
			})

		case promptLocation:
			loc, err := parseLocation(value)
			if err != nil {
				m.promptErr = err.Error()
				return m, nil
			}
			m = m.closePrompt()
			m.selectedRow = 0
			searching := m.snapshot.IsSearching
			return m, m.opCmd("find_nearby", func(ctx context.Context, e Engine) error {
				if searching {
					e.ClearSearch()
				}
				e.SetFocus(state.FocusNearby)
				return e.FindNearby(ctx, loc)
			})
		}
		return m.closePrompt(), nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.promptErr = ""
	return m, cmd
}

// renderPrompt renders the open input line for the status row.
func (m Model) renderPrompt(styles Styles, bg BgStyle) string {
	label := "Search"
	if m.prompt == promptLocation {
		label = "Location"
	}
	line := bg.Render(label+":", styles.AccentText.Bold(true)) + bg.Space() + m.input.View()
	if m.promptErr != "" {
		line += bg.Spaces(2) + bg.Render(m.promptErr, styles.DangerText)
	}
	return line
}
