package models

import "time"

// Source identifies which adapter produced an item.
type Source string

const (
	SourceCurated    Source = "curated"
	SourceBlog       Source = "blog"
	SourceDevto      Source = "devto"
	SourceHackerNews Source = "hackernews"
	SourceGitHub     Source = "github"
	SourceReddit     Source = "reddit"
)

// Item is the normalized unit of content persisted and served to the
// dashboard. ExternalID is globally unique across sources; adapters prefix
// non-native ids with a source tag (gh_, hn_, dev_, blog_) to avoid
// collisions. ID is the internal surrogate id, assigned on first upsert and
// never rewritten.
type Item struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Title      string `json:"title"`
	Content    string `json:"content,omitempty"`
	Author     string `json:"author,omitempty"`
	// OriginLabel groups items for display and filtering: a subreddit name,
	// "GitHub", "Hacker News", "dev.to", or the blog name.
	OriginLabel string    `json:"subreddit"`
	Score       int       `json:"upvotes"`
	ReplyCount  int       `json:"comments"`
	CreatedAt   time.Time `json:"created_at"`
	FetchedAt   time.Time `json:"fetched_at"`
	URL         string    `json:"url"`
	Source      Source    `json:"source"`
}

// SourceInfo describes one adapter for the /api/sources endpoint.
type SourceInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	// Dedicated marks channels treated as inherently on-topic; their items
	// bypass the keyword relevance filter.
	Dedicated bool `json:"dedicated"`
	Enabled   bool `json:"enabled"`
}

// QueryParams selects, orders, and pages the stored collection.
type QueryParams struct {
	Search        string `json:"search"`
	Origin        string `json:"subreddit"`
	SortBy        string `json:"sortBy"`    // "created_at", "upvotes", "comments"
	SortOrder     string `json:"sortOrder"` // "asc" or "desc"
	Page          int    `json:"page"`
	Limit         int    `json:"limit"`
	MinScore      int    `json:"minUpvotes"`
	RetentionDays int    `json:"retentionDays"`
}

// QueryResult is one page of items plus pagination metadata.
type QueryResult struct {
	Items      []Item `json:"posts"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	Total      int    `json:"total"`
	TotalPages int    `json:"totalPages"`
	HasNext    bool   `json:"hasNext"`
	HasPrev    bool   `json:"hasPrev"`
}

// Stats is an aggregate snapshot of the stored collection.
type Stats struct {
	Total         int            `json:"total"`
	Last24h       int            `json:"last24h"`
	Last7d        int            `json:"last7d"`
	ByOrigin      map[string]int `json:"byOrigin"`
	LatestFetched *time.Time     `json:"latestFetched"`
}
