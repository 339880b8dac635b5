// Package app provides the orchestration layer for ubike.
//
// # Overview
//
// This package wires together configuration, logging, preferences, the
// YouBike client, the query engine and a front end. It is the composition
// root where all dependencies are initialized and connected.
//
// # Startup
//
//  1. Load ~/.config/ubike/config.toml plus .env and UBIKE_* overrides
//  2. Open the zerolog logger (log file for the TUI, stderr when headless)
//  3. Open the preference backend (TOML file or SQLite) and prefs.Store
//  4. Build the youbike.Client and the query.Engine over it
//  5. Start the auto-refresh Scheduler
//  6. Run nearby search for the configured home location, if any
//  7. Run the TUI, or the JSON API with -headless, until exit or cancel
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       ├─────> config.Load()         Settings + overrides
//	       ├─────> prefs.Open()          Favorites, interval, theme
//	       ├─────> youbike.NewClient()   HTTP client behind a breaker
//	       ├─────> query.New()           Engine + state.Store
//	       ├─────> Scheduler.Run()       Interval-driven RefreshActive
//	       └─────> ui.Run() / httpapi    Front end (blocks)
//
// # Auto-refresh
//
// The Scheduler follows the refresh interval preference. Zero disables it and
// a new value restarts the timer. Each tick calls RefreshActive, which picks
// the search, nearby or favorites list and skips while another refresh runs.
// Consecutive failures stretch the wait with exponential backoff capped at
// 30 seconds, or the interval when that is longer.
//
// # Error Handling
//
// Configuration, log file and preference backend failures are fatal and
// returned from Run. API failures during operation are recoverable: they are
// logged and surfaced on the snapshot, and the next tick tries again.
package app
