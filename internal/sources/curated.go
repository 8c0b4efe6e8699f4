package sources

import (
	"context"
	"time"

	"github.com/rustradar/rustradar/internal/models"
)

// CuratedFetcher emits a static list of pinned entries. It never touches the
// network, always succeeds, and is concatenated first in priority order so
// its entries win deduplication.
type CuratedFetcher struct {
	entries []models.Item
}

// NewCuratedFetcher wraps a static entry list. Callers typically use
// DefaultCuratedEntries.
func NewCuratedFetcher(entries []models.Item) *CuratedFetcher {
	return &CuratedFetcher{entries: entries}
}

func (f *CuratedFetcher) Name() string {
	return "curated"
}

func (f *CuratedFetcher) SourceInfo() models.SourceInfo {
	return models.SourceInfo{
		ID:          "curated",
		Name:        "Curated",
		Kind:        "static",
		Description: "Pinned announcements and evergreen links",
		Dedicated:   true,
		Enabled:     true,
	}
}

func (f *CuratedFetcher) Fetch(ctx context.Context) ([]models.Item, error) {
	now := time.Now()
	items := make([]models.Item, len(f.entries))
	for i, entry := range f.entries {
		entry.FetchedAt = now
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		items[i] = entry
	}
	return items, nil
}

// DefaultCuratedEntries is the built-in pinned set.
func DefaultCuratedEntries() []models.Item {
	return []models.Item{
		{
			ExternalID:  "cur_this-week-in-rust",
			Title:       "This Week in Rust",
			Content:     "Weekly roundup of Rust news, crates, and RFC activity.",
			Author:      "TWiR editors",
			OriginLabel: "Curated",
			URL:         "https://this-week-in-rust.org",
			Source:      models.SourceCurated,
		},
		{
			ExternalID:  "cur_rust-forge",
			Title:       "Rust Forge",
			Content:     "Supplementary documentation for Rust team processes and releases.",
			Author:      "Rust project",
			OriginLabel: "Curated",
			URL:         "https://forge.rust-lang.org",
			Source:      models.SourceCurated,
		},
		{
			ExternalID:  "cur_crates-io-status",
			Title:       "crates.io status",
			Content:     "Live status page for the crates.io registry and CDN.",
			Author:      "crates.io team",
			OriginLabel: "Curated",
			URL:         "https://status.crates.io",
			Source:      models.SourceCurated,
		},
	}
}
