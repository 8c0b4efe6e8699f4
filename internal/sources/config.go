package sources

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rustradar/rustradar/internal/logging"
	"github.com/rustradar/rustradar/internal/ratelimit"
)

// SubredditTarget is one subreddit polled by the reddit fetcher. Dedicated
// subreddits skip the keyword relevance filter.
type SubredditTarget struct {
	Name      string `json:"name"`
	Dedicated bool   `json:"dedicated"`
}

// SourcesFile is the optional on-disk sources configuration. Any empty
// section falls back to the built-in defaults.
type SourcesFile struct {
	Keywords    []string          `json:"keywords"`
	Subreddits  []SubredditTarget `json:"subreddits"`
	HNQueries   []string          `json:"hn_queries"`
	GitHubQuery string            `json:"github_query"`
	DevtoTags   []string          `json:"devto_tags"`
	BlogFeeds   []BlogFeed        `json:"blog_feeds"`
}

// BlogFeed is one feed polled by the blog fetcher.
type BlogFeed struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// LoadSourcesFile reads a sources configuration from disk.
func LoadSourcesFile(path string) (*SourcesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources config: %w", err)
	}

	var cfg SourcesFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse sources config: %w", err)
	}

	return &cfg, nil
}

// DefaultSourcesFile returns the built-in Rust ecosystem source set.
func DefaultSourcesFile() *SourcesFile {
	return &SourcesFile{
		Keywords: []string{
			"rust", "cargo", "rustc", "crates.io", "tokio", "wasm", "borrow checker",
		},
		Subreddits: []SubredditTarget{
			{Name: "rust", Dedicated: true},
			{Name: "learnrust", Dedicated: true},
			{Name: "rust_gamedev", Dedicated: true},
			{Name: "programming", Dedicated: false},
			{Name: "systems", Dedicated: false},
		},
		HNQueries:   []string{"rust", "rustlang"},
		GitHubQuery: "language:rust stars:>5",
		DevtoTags:   []string{"rust"},
		BlogFeeds: []BlogFeed{
			{Name: "Rust Blog", URL: "https://blog.rust-lang.org/feed.xml"},
		},
	}
}

// CreateFetchers builds the adapter set in cycle priority order: curated
// entries first, then blog, dev.to, Hacker News, GitHub, and the fan-out
// reddit source last. Deduplication keeps the first occurrence, so this
// order decides which source wins a cross-source id collision.
func CreateFetchers(cfg *SourcesFile, limiter *ratelimit.Limiter, fetcherCfg FetcherConfig, logger *logging.Logger) []Fetcher {
	if cfg == nil {
		cfg = DefaultSourcesFile()
	} else {
		cfg.merge(DefaultSourcesFile())
	}

	relevance := NewRelevance(cfg.Keywords)

	return []Fetcher{
		NewCuratedFetcher(DefaultCuratedEntries()),
		NewBlogFetcher(cfg.BlogFeeds, limiter, fetcherCfg, logger),
		NewDevtoFetcher(cfg.DevtoTags, limiter, fetcherCfg, logger),
		NewHackerNewsFetcher(cfg.HNQueries, relevance, limiter, fetcherCfg, logger),
		NewGitHubFetcher(cfg.GitHubQuery, limiter, fetcherCfg),
		NewRedditFetcher("", cfg.Subreddits, relevance, limiter, fetcherCfg, logger),
	}
}

// merge fills empty sections of cfg from the defaults.
func (c *SourcesFile) merge(defaults *SourcesFile) {
	if len(c.Keywords) == 0 {
		c.Keywords = defaults.Keywords
	}
	if len(c.Subreddits) == 0 {
		c.Subreddits = defaults.Subreddits
	}
	if len(c.HNQueries) == 0 {
		c.HNQueries = defaults.HNQueries
	}
	if c.GitHubQuery == "" {
		c.GitHubQuery = defaults.GitHubQuery
	}
	if len(c.DevtoTags) == 0 {
		c.DevtoTags = defaults.DevtoTags
	}
	if len(c.BlogFeeds) == 0 {
		c.BlogFeeds = defaults.BlogFeeds
	}
}
