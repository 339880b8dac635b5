package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Escape     key.Binding

	// Lists
	Search         key.Binding
	ToggleFavorite key.Binding
	Refresh        key.Binding
	SwitchList     key.Binding
	Location       key.Binding
	Settings       key.Binding
	Logs           key.Binding

	// Navigation
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding

	// Settings
	Prev key.Binding
	Next key.Binding

	// Prompt
	Confirm key.Binding
	Cancel  key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "e"),
			key.WithHelp("e", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Clear search / back"),
		),

		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "Search stations"),
		),
		ToggleFavorite: key.NewBinding(
			key.WithKeys(" ", "f"),
			key.WithHelp("space/f", "Toggle favorite"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh list"),
		),
		SwitchList: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Favorites / nearby"),
		),
		Location: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Set location"),
		),
		Settings: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Settings"),
		),
		Logs: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "Logs"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),

		Prev: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("left", "Shorter interval"),
		),
		Next: key.NewBinding(
			key.WithKeys("right"),
			key.WithHelp("right", "Longer interval"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Cancel"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Search, k.Escape, k.SwitchList, k.Location},
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.ToggleFavorite, k.Refresh},
		{k.Settings, k.Prev, k.Next, k.Logs},
		{k.CycleTheme, k.Help, k.Quit},
	}
}
