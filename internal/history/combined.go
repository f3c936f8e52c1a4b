package history

import (
	"context"
	"sort"

	"basey-transport/internal/models"
	"basey-transport/internal/penalty"

	"golang.org/x/sync/errgroup"
)

// Combined reads a plate's history from several sources at once and merges
// it oldest first. Records sharing a ticket number are counted once, so a
// remote service that mirrors locally issued tickets does not double them.
// Any failing source fails the whole lookup.
type Combined struct {
	sources []penalty.HistorySource
}

// Combine merges sources, typically the remote service and the local store.
func Combine(sources ...penalty.HistorySource) *Combined {
	return &Combined{sources: sources}
}

// ViolationHistory implements penalty.HistorySource.
func (c *Combined) ViolationHistory(ctx context.Context, plateNumber string) ([]models.ViolationRecord, error) {
	results := make([][]models.ViolationRecord, len(c.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range c.sources {
		i, src := i, src
		g.Go(func() error {
			records, err := src.ViolationHistory(gctx, plateNumber)
			if err != nil {
				return err
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var merged []models.ViolationRecord
	for _, records := range results {
		for _, r := range records {
			if r.TicketNumber != "" {
				if seen[r.TicketNumber] {
					continue
				}
				seen[r.TicketNumber] = true
			}
			merged = append(merged, r)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].ViolationDate.Before(merged[j].ViolationDate)
	})
	return merged, nil
}
