package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which compact mode is used.
	LayoutCompactWidth = 100
)

// Vertical layout.
const (
	// chromeHeight is the header, status line and command bar.
	chromeHeight = 3

	// minBodyHeight keeps the station box drawable on tiny terminals.
	minBodyHeight = 5

	helpModalWidth = 40
)

// Timing constants.
const (
	// DefaultClockTick is how often the header clock re-renders.
	DefaultClockTick = time.Second

	// LogTailLimit is how many log entries the log view keeps.
	LogTailLimit = 500

	// ToastDuration is how long a toast stays before it is cleared.
	ToastDuration = 3 * time.Second
)
