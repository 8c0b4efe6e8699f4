package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/rustradar/rustradar/internal/logging"
	"github.com/rustradar/rustradar/internal/models"
	"github.com/rustradar/rustradar/internal/sources"
	"github.com/rustradar/rustradar/internal/store"
)

// Aggregator runs the fetch/dedup/persist cycle. The fetcher slice order is
// the concatenation priority order: when two sources emit the same external
// id, the earlier fetcher's item survives deduplication.
type Aggregator struct {
	fetchers []sources.Fetcher
	store    *store.Store
	logger   *logging.Logger
}

func New(fetchers []sources.Fetcher, st *store.Store, logger *logging.Logger) *Aggregator {
	return &Aggregator{
		fetchers: fetchers,
		store:    st,
		logger:   logger,
	}
}

// RunCycle fires all adapters concurrently, waits for every one to settle,
// concatenates results in priority order, dedups by external id, and bulk
// upserts the unique set. Adapter failures degrade to empty contributions;
// a cycle where every adapter failed still completes with an empty result.
func (a *Aggregator) RunCycle(ctx context.Context) []models.Item {
	start := time.Now()

	var wg sync.WaitGroup
	resultsBySource := make([]sources.FetchResult, len(a.fetchers))

	for i, fetcher := range a.fetchers {
		wg.Add(1)
		go func(idx int, f sources.Fetcher) {
			defer wg.Done()

			items, err := f.Fetch(ctx)
			resultsBySource[idx] = sources.FetchResult{
				Items:  items,
				Source: f.SourceInfo(),
				Error:  err,
			}
		}(i, fetcher)
	}
	wg.Wait()

	breakdown := make(map[string]interface{}, len(a.fetchers))
	all := make([]models.Item, 0)
	for _, result := range resultsBySource {
		if result.Error != nil {
			a.logger.Warn("Source failed this cycle", logging.WithFields(map[string]interface{}{
				"source": result.Source.ID,
				"error":  result.Error.Error(),
			}))
			breakdown[result.Source.ID] = 0
			continue
		}
		breakdown[result.Source.ID] = len(result.Items)
		all = append(all, result.Items...)
	}

	unique := deduplicate(all)
	added := a.store.UpsertMany(unique)

	a.logger.Info("Aggregation cycle complete", logging.WithFields(map[string]interface{}{
		"fetched":  len(all),
		"unique":   len(unique),
		"new":      added,
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}))
	a.logger.Debug("Per-source breakdown", logging.WithFields(breakdown))

	return unique
}

// GetSources returns static metadata for every configured adapter.
func (a *Aggregator) GetSources() []models.SourceInfo {
	infos := make([]models.SourceInfo, 0, len(a.fetchers))
	for _, f := range a.fetchers {
		infos = append(infos, f.SourceInfo())
	}
	return infos
}

// deduplicate keeps the first occurrence of each external id, which in
// priority-ordered input means the highest-priority source wins.
func deduplicate(items []models.Item) []models.Item {
	seen := make(map[string]bool, len(items))
	result := make([]models.Item, 0, len(items))

	for _, item := range items {
		if item.ExternalID == "" || seen[item.ExternalID] {
			continue
		}
		seen[item.ExternalID] = true
		result = append(result, item)
	}

	return result
}
