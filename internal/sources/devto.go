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

const devtoHost = "dev.to"

// DevtoFetcher pulls articles by tag. A tag is topic-exclusive, so dev.to is
// a dedicated channel and skips the keyword filter.
type DevtoFetcher struct {
	tags    []string
	limiter *ratelimit.Limiter
	config  FetcherConfig
	logger  *logging.Logger
	client  *http.Client
}

type devtoArticle struct {
	ID             int    `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	URL            string `json:"url"`
	PublishedAt    string `json:"published_at"`
	ReactionsCount int    `json:"positive_reactions_count"`
	CommentsCount  int    `json:"comments_count"`
	User           struct {
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"user"`
}

func NewDevtoFetcher(tags []string, limiter *ratelimit.Limiter, config FetcherConfig, logger *logging.Logger) *DevtoFetcher {
	return &DevtoFetcher{
		tags:    tags,
		limiter: limiter,
		config:  config,
		logger:  logger,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

func (f *DevtoFetcher) Name() string {
	return "devto"
}

func (f *DevtoFetcher) SourceInfo() models.SourceInfo {
	return models.SourceInfo{
		ID:          "devto",
		Name:        "dev.to",
		URL:         "https://dev.to",
		Kind:        "article-tag",
		Description: fmt.Sprintf("Tagged articles across %d tags", len(f.tags)),
		Dedicated:   true,
		Enabled:     true,
	}
}

// Fetch iterates the configured tags sequentially; the rate limiter spaces
// the sub-queries out.
func (f *DevtoFetcher) Fetch(ctx context.Context) ([]models.Item, error) {
	all := make([]models.Item, 0)
	for _, tag := range f.tags {
		items, err := f.fetchTag(ctx, tag)
		if err != nil {
			f.logger.Warn("dev.to tag fetch failed", logging.WithFields(map[string]interface{}{
				"tag":   tag,
				"error": err.Error(),
			}))
			continue
		}
		all = append(all, items...)
	}
	return all, nil
}

func (f *DevtoFetcher) fetchTag(ctx context.Context, tag string) ([]models.Item, error) {
	f.limiter.Wait(devtoHost)

	u := fmt.Sprintf("https://%s/api/articles?tag=%s&per_page=%d",
		devtoHost, url.QueryEscape(tag), f.config.MaxItems)

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dev.to articles: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dev.to returned status %d", resp.StatusCode)
	}

	var articles []devtoArticle
	if err := json.NewDecoder(resp.Body).Decode(&articles); err != nil {
		return nil, fmt.Errorf("failed to decode dev.to response: %w", err)
	}

	now := time.Now()
	items := make([]models.Item, 0, len(articles))
	for _, a := range articles {
		createdAt := now
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			createdAt = t
		}

		author := a.User.Name
		if author == "" {
			author = a.User.Username
		}

		items = append(items, models.Item{
			ExternalID:  fmt.Sprintf("dev_%d", a.ID),
			Title:       a.Title,
			Content:     truncate(a.Description, maxContentLen),
			Author:      author,
			OriginLabel: "dev.to",
			Score:       a.ReactionsCount,
			ReplyCount:  a.CommentsCount,
			CreatedAt:   createdAt,
			FetchedAt:   now,
			URL:         a.URL,
			Source:      models.SourceDevto,
		})
	}

	return items, nil
}
