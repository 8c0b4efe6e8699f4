package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/rustradar/rustradar/internal/logging"
	"github.com/rustradar/rustradar/internal/models"
	"github.com/rustradar/rustradar/internal/ratelimit"
)

// BlogFetcher polls official blog feeds with a real feed parser. Official
// blogs are dedicated channels. Feed summaries frequently arrive as HTML
// fragments, so they are reduced to plain text before truncation.
type BlogFetcher struct {
	feeds   []BlogFeed
	parser  *gofeed.Parser
	limiter *ratelimit.Limiter
	config  FetcherConfig
	logger  *logging.Logger
}

func NewBlogFetcher(feeds []BlogFeed, limiter *ratelimit.Limiter, config FetcherConfig, logger *logging.Logger) *BlogFetcher {
	return &BlogFetcher{
		feeds:   feeds,
		parser:  gofeed.NewParser(),
		limiter: limiter,
		config:  config,
		logger:  logger,
	}
}

func (f *BlogFetcher) Name() string {
	return "blog"
}

func (f *BlogFetcher) SourceInfo() models.SourceInfo {
	names := make([]string, 0, len(f.feeds))
	for _, feed := range f.feeds {
		names = append(names, feed.Name)
	}
	url := ""
	if len(f.feeds) > 0 {
		url = f.feeds[0].URL
	}
	return models.SourceInfo{
		ID:          "blog",
		Name:        "Blogs",
		URL:         url,
		Kind:        "blog",
		Description: "Official blog feeds: " + strings.Join(names, ", "),
		Dedicated:   true,
		Enabled:     true,
	}
}

func (f *BlogFetcher) Fetch(ctx context.Context) ([]models.Item, error) {
	all := make([]models.Item, 0)
	for _, feed := range f.feeds {
		items, err := f.fetchFeed(ctx, feed)
		if err != nil {
			f.logger.Warn("Blog feed fetch failed", logging.WithFields(map[string]interface{}{
				"feed":  feed.Name,
				"error": err.Error(),
			}))
			continue
		}
		all = append(all, items...)
	}
	return all, nil
}

func (f *BlogFetcher) fetchFeed(ctx context.Context, feed BlogFeed) ([]models.Item, error) {
	f.limiter.Wait(hostOf(feed.URL))

	ctxWithTimeout, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	parsed, err := f.parser.ParseURLWithContext(feed.URL, ctxWithTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feed.URL, err)
	}

	now := time.Now()
	items := make([]models.Item, 0, len(parsed.Items))
	for i, entry := range parsed.Items {
		if i >= f.config.MaxItems {
			break
		}

		createdAt := now
		if entry.PublishedParsed != nil {
			createdAt = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			createdAt = *entry.UpdatedParsed
		}

		author := ""
		if entry.Author != nil {
			author = entry.Author.Name
		}

		body := entry.Content
		if body == "" {
			body = entry.Description
		}

		items = append(items, models.Item{
			ExternalID:  generateID("blog", feed.Name+entry.Link),
			Title:       entry.Title,
			Content:     truncate(stripHTML(body), maxContentLen),
			Author:      author,
			OriginLabel: feed.Name,
			CreatedAt:   createdAt,
			FetchedAt:   now,
			URL:         entry.Link,
			Source:      models.SourceBlog,
		})
	}

	return items, nil
}

// stripHTML reduces an HTML fragment to its text content. Plain-text input
// passes through unchanged.
func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(strings.Join(strings.Fields(doc.Text()), " "))
}
