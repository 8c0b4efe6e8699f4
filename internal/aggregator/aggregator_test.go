package aggregator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustradar/rustradar/internal/models"
	"github.com/rustradar/rustradar/internal/sources"
	"github.com/rustradar/rustradar/internal/store"
	"github.com/rustradar/rustradar/internal/testutil"
)

type stubFetcher struct {
	name  string
	items []models.Item
	err   error
	delay time.Duration
}

func (f *stubFetcher) Name() string { return f.name }

func (f *stubFetcher) SourceInfo() models.SourceInfo {
	return models.SourceInfo{ID: f.name, Name: f.name, Enabled: true}
}

func (f *stubFetcher) Fetch(ctx context.Context) ([]models.Item, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	return store.New(filepath.Join(dir, "items.json"), filepath.Join(dir, "backups"), 30, testutil.NullLogger())
}

func item(externalID string, source models.Source, score int) models.Item {
	return models.Item{
		ExternalID: externalID,
		Title:      "item " + externalID,
		Score:      score,
		CreatedAt:  time.Now(),
		FetchedAt:  time.Now(),
		Source:     source,
	}
}

func TestRunCycle_Deduplicates(t *testing.T) {
	st := newTestStore(t)
	agg := New([]sources.Fetcher{
		&stubFetcher{name: "blog", items: []models.Item{item("shared", models.SourceBlog, 1)}},
		&stubFetcher{name: "reddit", items: []models.Item{
			item("shared", models.SourceReddit, 2),
			item("only-reddit", models.SourceReddit, 3),
		}},
	}, st, testutil.NullLogger())

	unique := agg.RunCycle(context.Background())

	if len(unique) != 2 {
		t.Fatalf("unique count = %d, want 2", len(unique))
	}
	if st.Count() != 2 {
		t.Errorf("store count = %d, want 2", st.Count())
	}
}

func TestRunCycle_PriorityOrderWinsCollisions(t *testing.T) {
	st := newTestStore(t)

	blogItem := item("collide", models.SourceBlog, 7)
	redditItem := item("collide", models.SourceReddit, 800)

	agg := New([]sources.Fetcher{
		&stubFetcher{name: "blog", items: []models.Item{blogItem}},
		&stubFetcher{name: "reddit", items: []models.Item{redditItem}},
	}, st, testutil.NullLogger())

	unique := agg.RunCycle(context.Background())

	if len(unique) != 1 {
		t.Fatalf("unique count = %d, want 1", len(unique))
	}
	if unique[0].Source != models.SourceBlog {
		t.Errorf("winner source = %s, want the earlier (higher-priority) blog", unique[0].Source)
	}
	if unique[0].Score != 7 {
		t.Errorf("winner score = %d, want blog item's 7", unique[0].Score)
	}
}

func TestRunCycle_DegradedSource(t *testing.T) {
	st := newTestStore(t)
	agg := New([]sources.Fetcher{
		&stubFetcher{name: "ok1", items: []models.Item{item("a", models.SourceDevto, 1)}},
		&stubFetcher{name: "broken", err: errors.New("connection refused")},
		&stubFetcher{name: "ok2", items: []models.Item{item("b", models.SourceGitHub, 1)}},
	}, st, testutil.NullLogger())

	unique := agg.RunCycle(context.Background())

	if len(unique) != 2 {
		t.Fatalf("unique count = %d, want exactly the union of the healthy sources", len(unique))
	}
	got := map[string]bool{}
	for _, it := range unique {
		got[it.ExternalID] = true
	}
	if !got["a"] || !got["b"] {
		t.Errorf("unique = %v, want a and b", got)
	}
}

func TestRunCycle_AllSourcesFailed(t *testing.T) {
	st := newTestStore(t)
	agg := New([]sources.Fetcher{
		&stubFetcher{name: "down1", err: errors.New("timeout")},
		&stubFetcher{name: "down2", err: errors.New("status 500")},
	}, st, testutil.NullLogger())

	unique := agg.RunCycle(context.Background())

	if len(unique) != 0 {
		t.Errorf("unique count = %d, want 0", len(unique))
	}
	if st.Count() != 0 {
		t.Errorf("store count = %d, want 0", st.Count())
	}
}

func TestRunCycle_NoFetchers(t *testing.T) {
	st := newTestStore(t)
	agg := New(nil, st, testutil.NullLogger())

	unique := agg.RunCycle(context.Background())
	if len(unique) != 0 {
		t.Errorf("unique count = %d, want 0", len(unique))
	}
}

func TestRunCycle_WaitsForSlowSources(t *testing.T) {
	st := newTestStore(t)
	agg := New([]sources.Fetcher{
		&stubFetcher{name: "fast", items: []models.Item{item("fast", models.SourceDevto, 1)}},
		&stubFetcher{name: "slow", delay: 50 * time.Millisecond, items: []models.Item{item("slow", models.SourceReddit, 1)}},
	}, st, testutil.NullLogger())

	unique := agg.RunCycle(context.Background())
	if len(unique) != 2 {
		t.Errorf("unique count = %d, want 2 (slow source awaited)", len(unique))
	}
}

func TestGetSources(t *testing.T) {
	agg := New([]sources.Fetcher{
		&stubFetcher{name: "one"},
		&stubFetcher{name: "two"},
	}, newTestStore(t), testutil.NullLogger())

	infos := agg.GetSources()
	if len(infos) != 2 {
		t.Fatalf("len = %d, want 2", len(infos))
	}
	if infos[0].ID != "one" || infos[1].ID != "two" {
		t.Errorf("infos = %v, want fetcher order preserved", infos)
	}
}

func TestDeduplicate_SkipsEmptyIDs(t *testing.T) {
	in := []models.Item{
		{ExternalID: ""},
		{ExternalID: "x"},
		{ExternalID: "x"},
	}
	out := deduplicate(in)
	if len(out) != 1 || out[0].ExternalID != "x" {
		t.Errorf("deduplicate = %v, want single x", out)
	}
}
