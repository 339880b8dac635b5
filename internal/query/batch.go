package query

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/five82/ubike/internal/youbike"
)

// chunk splits ids into consecutive groups of at most size.
func chunk(ids []string, size int) [][]string {
	if len(ids) == 0 || size <= 0 {
		return nil
	}
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}

// fetchAvailability queries ids in batches of youbike.MaxBatchSize, running up
// to batchConcurrency batches at once. Any failed batch cancels the others and
// fails the whole call. Within the merged result the first batch to report a
// station wins.
func (e *Engine) fetchAvailability(ctx context.Context, ids []string) (map[string]youbike.VehicleInfo, error) {
	batches := chunk(ids, youbike.MaxBatchSize)
	if len(batches) == 0 {
		return map[string]youbike.VehicleInfo{}, nil
	}

	results := make([]map[string]youbike.VehicleInfo, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.batchConcurrency)
	for i, batch := range batches {
		g.Go(func() error {
			got, err := e.dir.FetchAvailability(gctx, batch)
			if err != nil {
				return fmt.Errorf("availability batch %d/%d: %w", i+1, len(batches), err)
			}
			results[i] = got
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]youbike.VehicleInfo, len(ids))
	for _, got := range results {
		for id, info := range got {
			if _, seen := merged[id]; !seen {
				merged[id] = info
			}
		}
	}
	return merged, nil
}
