package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rustradar/rustradar/internal/logging"
	"github.com/rustradar/rustradar/internal/models"
	"github.com/rustradar/rustradar/internal/ratelimit"
)

const hnHost = "hn.algolia.com"

// HackerNewsFetcher searches the Algolia HN index, one request per configured
// query. HN has no dedicated channel, so the keyword filter always applies.
type HackerNewsFetcher struct {
	queries   []string
	relevance *Relevance
	limiter   *ratelimit.Limiter
	config    FetcherConfig
	logger    *logging.Logger
	client    *http.Client
}

type hnSearchResponse struct {
	Hits []hnHit `json:"hits"`
}

type hnHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	StoryText   string `json:"story_text"`
	CreatedAt   string `json:"created_at"`
}

func NewHackerNewsFetcher(queries []string, relevance *Relevance, limiter *ratelimit.Limiter, config FetcherConfig, logger *logging.Logger) *HackerNewsFetcher {
	return &HackerNewsFetcher{
		queries:   queries,
		relevance: relevance,
		limiter:   limiter,
		config:    config,
		logger:    logger,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

func (f *HackerNewsFetcher) Name() string {
	return "hackernews"
}

func (f *HackerNewsFetcher) SourceInfo() models.SourceInfo {
	return models.SourceInfo{
		ID:          "hackernews",
		Name:        "Hacker News",
		URL:         "https://news.ycombinator.com",
		Kind:        "link-aggregator",
		Description: fmt.Sprintf("Algolia search across %d queries", len(f.queries)),
		Enabled:     true,
	}
}

// Fetch runs the configured searches sequentially; a failed query is logged
// and skipped so the rest of the source still contributes.
func (f *HackerNewsFetcher) Fetch(ctx context.Context) ([]models.Item, error) {
	all := make([]models.Item, 0)
	for _, query := range f.queries {
		items, err := f.search(ctx, query)
		if err != nil {
			f.logger.Warn("HN query failed", logging.WithFields(map[string]interface{}{
				"query": query,
				"error": err.Error(),
			}))
			continue
		}
		all = append(all, items...)
	}
	return all, nil
}

func (f *HackerNewsFetcher) search(ctx context.Context, query string) ([]models.Item, error) {
	f.limiter.Wait(hnHost)

	u := fmt.Sprintf("https://%s/api/v1/search_by_date?query=%s&tags=story&hitsPerPage=%d",
		hnHost, url.QueryEscape(query), f.config.MaxItems)

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search HN: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HN search returned status %d", resp.StatusCode)
	}

	var data hnSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode HN response: %w", err)
	}

	now := time.Now()
	items := make([]models.Item, 0, len(data.Hits))
	for _, hit := range data.Hits {
		if hit.Title == "" {
			continue
		}

		createdAt := now
		if t, err := time.Parse(time.RFC3339, hit.CreatedAt); err == nil {
			createdAt = t
		}

		link := hit.URL
		if link == "" {
			link = "https://news.ycombinator.com/item?id=" + hit.ObjectID
		}

		item := models.Item{
			ExternalID:  "hn_" + hit.ObjectID,
			Title:       hit.Title,
			Content:     truncate(hit.StoryText, maxContentLen),
			Author:      hit.Author,
			OriginLabel: "Hacker News",
			Score:       hit.Points,
			ReplyCount:  hit.NumComments,
			CreatedAt:   createdAt,
			FetchedAt:   now,
			URL:         link,
			Source:      models.SourceHackerNews,
		}
		if !f.relevance.Keep(item, false) {
			continue
		}
		items = append(items, item)
	}

	return items, nil
}
