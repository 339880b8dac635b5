package app

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// maxBackoff caps how far failed ticks push the next one out, unless the
// configured interval is already longer.
const maxBackoff = 30 * time.Second

// Refresher refreshes whatever the user is looking at.
type Refresher interface {
	RefreshActive(ctx context.Context) error
}

// IntervalSource streams the auto-refresh interval in seconds. Zero disables
// auto-refresh.
type IntervalSource interface {
	SubscribeRefreshInterval(ctx context.Context) <-chan int
}

// Scheduler ticks the engine at the user's refresh interval.
type Scheduler struct {
	target    Refresher
	intervals IntervalSource
	logger    zerolog.Logger
	unit      time.Duration
}

// NewScheduler returns a scheduler for target. Call Run to start it.
func NewScheduler(target Refresher, intervals IntervalSource, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		target:    target,
		intervals: intervals,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		unit:      time.Second,
	}
}

// Run blocks until ctx is cancelled. A new interval restarts the timer and
// clears the failure count.
func (s *Scheduler) Run(ctx context.Context) {
	updates := s.intervals.SubscribeRefreshInterval(ctx)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	var (
		interval time.Duration
		ticks    <-chan time.Time
		failures int
	)
	for {
		select {
		case <-ctx.Done():
			return

		case seconds, ok := <-updates:
			if !ok {
				return
			}
			timer.Stop()
			failures = 0
			interval = time.Duration(seconds) * s.unit
			if interval <= 0 {
				ticks = nil
				s.logger.Info().Msg("auto-refresh disabled")
				continue
			}
			timer.Reset(interval)
			ticks = timer.C
			s.logger.Info().Dur("interval", interval).Msg("auto-refresh scheduled")

		case <-ticks:
			err := s.target.RefreshActive(ctx)
			switch {
			case ctx.Err() != nil:
				return
			case err != nil:
				failures++
				s.logger.Warn().Err(err).Int("failures", failures).Msg("auto-refresh failed")
			default:
				failures = 0
			}
			next := calculateBackoff(failures, interval)
			if next > interval {
				s.logger.Debug().Dur("next", next).Msg("auto-refresh backing off")
			}
			timer.Reset(next)
		}
	}
}

// calculateBackoff returns the wait before the next tick after failures
// consecutive failed refreshes: base doubled per failure, capped at maxBackoff
// or base when that is larger.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 || base <= 0 {
		return base
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = max(maxBackoff, base)
	b.MaxElapsedTime = 0
	b.Reset()

	wait := b.NextBackOff()
	for range failures {
		wait = b.NextBackOff()
	}
	return wait
}
