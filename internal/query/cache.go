package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bluele/gcache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/five82/ubike/internal/youbike"
)

const rosterKey = "roster"

// rosterCache holds the station roster. Concurrent misses share one fetch and
// only successful fetches are stored. A zero ttl keeps the roster until
// Invalidate is called.
type rosterCache struct {
	dir    youbike.Directory
	cache  gcache.Cache
	group  singleflight.Group
	ttl    time.Duration
	base   context.Context
	logger zerolog.Logger
}

func newRosterCache(base context.Context, dir youbike.Directory, ttl time.Duration, logger zerolog.Logger) *rosterCache {
	return &rosterCache{
		dir:    dir,
		cache:  gcache.New(1).Simple().Build(),
		ttl:    ttl,
		base:   base,
		logger: logger,
	}
}

// Get returns the cached roster, fetching it on a miss. The shared fetch runs
// on the engine's lifetime context so one impatient caller cannot fail it for
// everyone else; ctx only bounds how long this caller waits.
func (c *rosterCache) Get(ctx context.Context) ([]youbike.StationInfo, error) {
	if v, err := c.cache.Get(rosterKey); err == nil {
		return v.([]youbike.StationInfo), nil
	} else if !errors.Is(err, gcache.KeyNotFoundError) {
		return nil, fmt.Errorf("roster cache: %w", err)
	}

	ch := c.group.DoChan(rosterKey, func() (any, error) {
		stations, err := c.dir.ListAllStations(c.base)
		if err != nil {
			return nil, err
		}
		if c.ttl > 0 {
			err = c.cache.SetWithExpire(rosterKey, stations, c.ttl)
		} else {
			err = c.cache.Set(rosterKey, stations)
		}
		if err != nil {
			c.logger.Warn().Err(err).Msg("store roster in cache")
		}
		c.logger.Info().Int("stations", len(stations)).Msg("roster loaded")
		return stations, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]youbike.StationInfo), nil
	}
}

// Invalidate drops the cached roster.
func (c *rosterCache) Invalidate() {
	c.cache.Purge()
}
