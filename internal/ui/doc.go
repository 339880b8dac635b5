// Package ui provides the terminal front end for ubike.
//
// The TUI is a Bubble Tea program. Model subscribes to the query engine's
// snapshots and re-renders on every publish; user actions run the engine's
// operations as tea.Cmds so the event loop never blocks on the network.
//
// # Views
//
//   - Stations: the favorites list, the nearby list, or search results when a
//     search is active. Each row shows bikes, e-bikes and free docks colored
//     by availability.
//   - Settings: auto-refresh interval and theme, both persisted through Prefs.
//   - Logs: the tail of ubike's own log file, reloaded every clock tick while
//     visible.
//
// A one-line prompt handles search text and "lat,lng" location entry. The
// help overlay lists every binding from keyMap.
package ui
