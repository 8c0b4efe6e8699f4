package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/rustradar/rustradar/internal/logging"
	"github.com/rustradar/rustradar/internal/models"
	"github.com/rustradar/rustradar/internal/ratelimit"
)

const defaultRedditBaseURL = "https://www.reddit.com"

// redditMaxAttempts bounds per-subreddit retries; the delay before attempt n
// is 3^n backoff units.
const redditMaxAttempts = 3

// RedditFetcher polls a list of subreddits. It is the highest fan-out source:
// per-subreddit requests are launched with a staggered delay to avoid
// bursting reddit, and each subreddit gets its own retry budget. A subreddit
// that exhausts its retries is skipped for the cycle.
type RedditFetcher struct {
	baseURL   string
	host      string
	targets   []SubredditTarget
	relevance *Relevance
	limiter   *ratelimit.Limiter
	config    FetcherConfig
	logger    *logging.Logger
	client    *http.Client
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Selftext  string  `json:"selftext"`
	Author    string  `json:"author"`
	Permalink string  `json:"permalink"`
	Created   float64 `json:"created_utc"`
	Score     int     `json:"score"`
	NumComms  int     `json:"num_comments"`
	Subreddit string  `json:"subreddit"`
}

// NewRedditFetcher polls the given targets against baseURL; an empty baseURL
// selects the public reddit API.
func NewRedditFetcher(baseURL string, targets []SubredditTarget, relevance *Relevance, limiter *ratelimit.Limiter, config FetcherConfig, logger *logging.Logger) *RedditFetcher {
	if baseURL == "" {
		baseURL = defaultRedditBaseURL
	}
	return &RedditFetcher{
		baseURL:   baseURL,
		host:      hostOf(baseURL),
		targets:   targets,
		relevance: relevance,
		limiter:   limiter,
		config:    config,
		logger:    logger,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

func (f *RedditFetcher) Name() string {
	return "reddit"
}

func (f *RedditFetcher) SourceInfo() models.SourceInfo {
	return models.SourceInfo{
		ID:          "reddit",
		Name:        "Reddit",
		URL:         f.baseURL,
		Kind:        "forum",
		Description: fmt.Sprintf("New posts across %d subreddits", len(f.targets)),
		Enabled:     true,
	}
}

// Fetch launches one goroutine per subreddit, staggered by the configured
// increment, and joins all of them before returning. Individual subreddit
// failures are logged and degrade to empty results.
func (f *RedditFetcher) Fetch(ctx context.Context) ([]models.Item, error) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	all := make([]models.Item, 0)

	for i, target := range f.targets {
		wg.Add(1)
		go func(idx int, t SubredditTarget) {
			defer wg.Done()

			select {
			case <-time.After(time.Duration(idx) * f.config.Stagger):
			case <-ctx.Done():
				return
			}

			items, err := f.fetchSubreddit(ctx, t)
			if err != nil {
				f.logger.Warn("Subreddit fetch abandoned", logging.WithFields(map[string]interface{}{
					"subreddit": t.Name,
					"error":     err.Error(),
				}))
				return
			}

			mu.Lock()
			all = append(all, items...)
			mu.Unlock()
		}(i, target)
	}

	wg.Wait()
	return all, nil
}

// fetchSubreddit retries a single subreddit with exponential backoff before
// giving up on it for this cycle.
func (f *RedditFetcher) fetchSubreddit(ctx context.Context, target SubredditTarget) ([]models.Item, error) {
	var lastErr error
	for attempt := 1; attempt <= redditMaxAttempts; attempt++ {
		items, err := f.fetchOnce(ctx, target)
		if err == nil {
			return items, nil
		}
		lastErr = err

		if attempt == redditMaxAttempts {
			break
		}
		delay := time.Duration(math.Pow(3, float64(attempt))) * f.config.BackoffUnit
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("r/%s failed after %d attempts: %w", target.Name, redditMaxAttempts, lastErr)
}

func (f *RedditFetcher) fetchOnce(ctx context.Context, target SubredditTarget) ([]models.Item, error) {
	f.limiter.Wait(f.host)

	url := fmt.Sprintf("%s/r/%s/new.json?limit=%d", f.baseURL, target.Name, f.config.MaxItems)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subreddit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit returned status %d", resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to decode reddit response: %w", err)
	}

	now := time.Now()
	items := make([]models.Item, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data

		subreddit := post.Subreddit
		if subreddit == "" {
			subreddit = target.Name
		}

		item := models.Item{
			ExternalID:  post.ID,
			Title:       post.Title,
			Content:     truncate(post.Selftext, maxContentLen),
			Author:      post.Author,
			OriginLabel: subreddit,
			Score:       post.Score,
			ReplyCount:  post.NumComms,
			CreatedAt:   time.Unix(int64(post.Created), 0).UTC(),
			FetchedAt:   now,
			URL:         f.baseURL + post.Permalink,
			Source:      models.SourceReddit,
		}
		if !f.relevance.Keep(item, target.Dedicated) {
			continue
		}
		items = append(items, item)
	}

	return items, nil
}
