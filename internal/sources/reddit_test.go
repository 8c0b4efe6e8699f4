package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rustradar/rustradar/internal/ratelimit"
)

func redditListingBody(posts ...redditPost) []byte {
	var listing redditListing
	for _, p := range posts {
		listing.Data.Children = append(listing.Data.Children, struct {
			Data redditPost `json:"data"`
		}{Data: p})
	}
	data, _ := json.Marshal(listing)
	return data
}

func subredditOf(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func TestRedditFetcher_RetriesFailingSubreddit(t *testing.T) {
	var mu sync.Mutex
	attempts := make(map[string]int)
	healthy := redditListingBody(redditPost{
		ID:        "abc1",
		Title:     "Rust 1.80 released",
		Author:    "u1",
		Permalink: "/r/rust/comments/abc1/",
		Created:   float64(time.Now().Unix()),
		Score:     10,
		NumComms:  2,
		Subreddit: "rust",
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub := subredditOf(r.URL.Path)
		mu.Lock()
		attempts[sub]++
		mu.Unlock()

		if sub == "broken" {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		w.Write(healthy)
	}))
	defer srv.Close()

	cfg := DefaultFetcherConfig()
	cfg.BackoffUnit = time.Millisecond
	cfg.Stagger = 0

	f := NewRedditFetcher(srv.URL,
		[]SubredditTarget{{Name: "rust", Dedicated: true}, {Name: "broken", Dedicated: true}},
		NewRelevance([]string{"rust"}),
		ratelimit.New(0),
		cfg,
		testLogger(),
	)

	start := time.Now()
	items, err := f.Fetch(context.Background())
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Fetch() error = %v, a dead subreddit must not fail the source", err)
	}
	if len(items) != 1 || items[0].ExternalID != "abc1" {
		t.Fatalf("items = %+v, want exactly the healthy subreddit's post", items)
	}
	if !strings.HasPrefix(items[0].URL, srv.URL) {
		t.Errorf("URL = %q, permalink should resolve against the base URL", items[0].URL)
	}

	mu.Lock()
	brokenAttempts, rustAttempts := attempts["broken"], attempts["rust"]
	mu.Unlock()
	if brokenAttempts != 3 {
		t.Errorf("broken subreddit attempted %d times, want 3", brokenAttempts)
	}
	if rustAttempts != 1 {
		t.Errorf("healthy subreddit attempted %d times, want 1", rustAttempts)
	}
	// Retry delays are 3 and then 9 backoff units.
	if elapsed < 12*time.Millisecond {
		t.Errorf("Fetch returned after %v, retries should back off between attempts", elapsed)
	}
}

func TestRedditFetcher_StaggersSubredditLaunch(t *testing.T) {
	var mu sync.Mutex
	arrival := make(map[string]time.Time)
	body := redditListingBody()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrival[subredditOf(r.URL.Path)] = time.Now()
		mu.Unlock()
		w.Write(body)
	}))
	defer srv.Close()

	cfg := DefaultFetcherConfig()
	cfg.Stagger = 60 * time.Millisecond

	f := NewRedditFetcher(srv.URL,
		[]SubredditTarget{{Name: "first", Dedicated: true}, {Name: "second", Dedicated: true}},
		NewRelevance(nil),
		ratelimit.New(0),
		cfg,
		testLogger(),
	)

	start := time.Now()
	if _, err := f.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got := arrival["first"].Sub(start); got > 40*time.Millisecond {
		t.Errorf("first target launched after %v, want no delay", got)
	}
	if got := arrival["second"].Sub(start); got < 50*time.Millisecond {
		t.Errorf("second target launched after %v, want at least the stagger increment", got)
	}
}

func TestRedditFetcher_KeywordFilterOnGeneralSubreddit(t *testing.T) {
	body := redditListingBody(
		redditPost{ID: "keep1", Title: "Why rust borrow checking works", Permalink: "/r/programming/comments/keep1/", Created: float64(time.Now().Unix()), Subreddit: "programming"},
		redditPost{ID: "drop1", Title: "JVM tuning notes", Permalink: "/r/programming/comments/drop1/", Created: float64(time.Now().Unix()), Subreddit: "programming"},
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	cfg := DefaultFetcherConfig()
	cfg.Stagger = 0

	f := NewRedditFetcher(srv.URL,
		[]SubredditTarget{{Name: "programming", Dedicated: false}},
		NewRelevance([]string{"rust"}),
		ratelimit.New(0),
		cfg,
		testLogger(),
	)

	items, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 1 || items[0].ExternalID != "keep1" {
		t.Errorf("items = %+v, want only the keyword match", items)
	}
}
