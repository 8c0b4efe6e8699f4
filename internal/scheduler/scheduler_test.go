package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustradar/rustradar/internal/aggregator"
	"github.com/rustradar/rustradar/internal/cache"
	"github.com/rustradar/rustradar/internal/models"
	"github.com/rustradar/rustradar/internal/sources"
	"github.com/rustradar/rustradar/internal/store"
	"github.com/rustradar/rustradar/internal/testutil"
	"github.com/rustradar/rustradar/internal/ws"
)

type stubFetcher struct {
	items []models.Item
	calls int
}

func (f *stubFetcher) Name() string { return "stub" }

func (f *stubFetcher) Fetch(ctx context.Context) ([]models.Item, error) {
	f.calls++
	return f.items, nil
}

func (f *stubFetcher) SourceInfo() models.SourceInfo {
	return models.SourceInfo{ID: "stub", Enabled: true}
}

func newTestScheduler(t *testing.T, fetcher *stubFetcher) (*Scheduler, *store.Store, string) {
	t.Helper()

	logger := testutil.NullLogger()
	dir := t.TempDir()
	st := store.New(filepath.Join(dir, "items.json"), filepath.Join(dir, "backups"), 30, logger)
	agg := aggregator.New([]sources.Fetcher{fetcher}, st, logger)
	hub := ws.NewHub(st.Stats, logger)
	t.Cleanup(hub.Close)
	c := cache.NewMemory(time.Minute)
	t.Cleanup(c.Stop)

	return New(agg, st, hub, c, logger, time.Hour, time.Minute, dir), st, dir
}

func TestUntilNextMidnight(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{
			"just after midnight",
			time.Date(2025, 6, 2, 0, 0, 1, 0, time.UTC),
			24*time.Hour - time.Second,
		},
		{
			"midday",
			time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
			12 * time.Hour,
		},
		{
			"just before midnight",
			time.Date(2025, 6, 2, 23, 59, 59, 0, time.UTC),
			time.Second,
		},
		{
			"month boundary",
			time.Date(2025, 6, 30, 18, 0, 0, 0, time.UTC),
			6 * time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := untilNextMidnight(tt.now); got != tt.want {
				t.Errorf("untilNextMidnight(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestRunOnce(t *testing.T) {
	now := time.Now()
	fetcher := &stubFetcher{items: []models.Item{
		{ExternalID: "a", Title: "One", CreatedAt: now, FetchedAt: now, Source: models.SourceReddit},
		{ExternalID: "b", Title: "Two", CreatedAt: now, FetchedAt: now, Source: models.SourceReddit},
	}}
	sched, st, _ := newTestScheduler(t, fetcher)

	count := sched.RunOnce(context.Background())
	if count != 2 {
		t.Errorf("RunOnce() = %d, want 2", count)
	}
	if st.Count() != 2 {
		t.Errorf("store.Count() = %d, want 2", st.Count())
	}
	if fetcher.calls != 1 {
		t.Errorf("fetcher called %d times, want 1", fetcher.calls)
	}
}

func TestRunOnce_InvalidatesCache(t *testing.T) {
	fetcher := &stubFetcher{}
	sched, _, _ := newTestScheduler(t, fetcher)

	sched.cache.Set("posts:stale", "cached")
	sched.RunOnce(context.Background())

	if _, ok := sched.cache.Get("posts:stale"); ok {
		t.Error("cycle should clear the response cache")
	}
}

func TestRunDaily(t *testing.T) {
	now := time.Now()
	fetcher := &stubFetcher{items: []models.Item{
		{ExternalID: "fresh", Title: "Fresh", CreatedAt: now, FetchedAt: now, Source: models.SourceReddit},
		{ExternalID: "stale", Title: "Stale", CreatedAt: now.AddDate(0, 0, -45), FetchedAt: now, Source: models.SourceReddit},
	}}
	sched, st, dir := newTestScheduler(t, fetcher)

	sched.RunOnce(context.Background())
	if st.Count() != 2 {
		t.Fatalf("store.Count() = %d after cycle, want 2", st.Count())
	}

	sched.runDaily()

	if st.Count() != 1 {
		t.Errorf("store.Count() = %d after daily job, want the stale item pruned", st.Count())
	}

	backups, err := filepath.Glob(filepath.Join(dir, "backups", "items-backup-*.json"))
	if err != nil || len(backups) == 0 {
		t.Errorf("daily job should write a backup snapshot, found %v (err %v)", backups, err)
	}

	reports, err := filepath.Glob(filepath.Join(dir, "report-*.json"))
	if err != nil || len(reports) == 0 {
		t.Errorf("daily job should write a report, found %v (err %v)", reports, err)
	}
}

func TestUptime(t *testing.T) {
	sched, _, _ := newTestScheduler(t, &stubFetcher{})
	if sched.Uptime() < 0 {
		t.Error("Uptime() must be non-negative")
	}
}
