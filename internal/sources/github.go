package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rustradar/rustradar/internal/models"
	"github.com/rustradar/rustradar/internal/ratelimit"
)

const githubHost = "api.github.com"

// GitHubFetcher searches recently updated repositories. The search query is
// already topic-exclusive, so GitHub is treated as a dedicated channel.
type GitHubFetcher struct {
	query   string
	limiter *ratelimit.Limiter
	config  FetcherConfig
	client  *http.Client
}

type githubSearchResponse struct {
	Items []githubRepo `json:"items"`
}

type githubRepo struct {
	ID          int64  `json:"id"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
	Stars       int    `json:"stargazers_count"`
	OpenIssues  int    `json:"open_issues_count"`
	PushedAt    string `json:"pushed_at"`
	Owner       struct {
		Login string `json:"login"`
	} `json:"owner"`
}

func NewGitHubFetcher(query string, limiter *ratelimit.Limiter, config FetcherConfig) *GitHubFetcher {
	return &GitHubFetcher{
		query:   query,
		limiter: limiter,
		config:  config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

func (f *GitHubFetcher) Name() string {
	return "github"
}

func (f *GitHubFetcher) SourceInfo() models.SourceInfo {
	return models.SourceInfo{
		ID:          "github",
		Name:        "GitHub",
		URL:         "https://github.com/search?q=" + url.QueryEscape(f.query),
		Kind:        "code-host",
		Description: "Recently updated repositories matching " + f.query,
		Dedicated:   true,
		Enabled:     true,
	}
}

func (f *GitHubFetcher) Fetch(ctx context.Context) ([]models.Item, error) {
	f.limiter.Wait(githubHost)

	u := fmt.Sprintf("https://%s/search/repositories?q=%s&sort=updated&order=desc&per_page=%d",
		githubHost, url.QueryEscape(f.query), f.config.MaxItems)

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search GitHub: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub search returned status %d", resp.StatusCode)
	}

	var data githubSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode GitHub response: %w", err)
	}

	now := time.Now()
	items := make([]models.Item, 0, len(data.Items))
	for _, repo := range data.Items {
		// pushed_at stands in for activity time; repo creation time would
		// push every listing outside the retention window.
		createdAt := now
		if t, err := time.Parse(time.RFC3339, repo.PushedAt); err == nil {
			createdAt = t
		}

		items = append(items, models.Item{
			ExternalID:  fmt.Sprintf("gh_%d", repo.ID),
			Title:       repo.FullName,
			Content:     truncate(repo.Description, maxContentLen),
			Author:      repo.Owner.Login,
			OriginLabel: "GitHub",
			Score:       repo.Stars,
			ReplyCount:  repo.OpenIssues,
			CreatedAt:   createdAt,
			FetchedAt:   now,
			URL:         repo.HTMLURL,
			Source:      models.SourceGitHub,
		})
	}

	return items, nil
}
