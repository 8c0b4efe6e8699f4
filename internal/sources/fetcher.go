package sources

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/url"
	"time"

	"github.com/rustradar/rustradar/internal/models"
)

// Fetcher retrieves and normalizes items from one external source. Fetch
// returns what it could get: a failed sub-query degrades to fewer items, and
// only a total failure of the source surfaces as an error.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]models.Item, error)
	SourceInfo() models.SourceInfo
}

// FetchResult carries one adapter's outcome through the aggregation cycle.
type FetchResult struct {
	Items  []models.Item
	Source models.SourceInfo
	Error  error
}

// FetcherConfig is shared tuning for all fetchers.
type FetcherConfig struct {
	Timeout   time.Duration
	MaxItems  int
	UserAgent string
	// BackoffUnit scales retry delays; tests shrink it so retries do not
	// sleep for real seconds.
	BackoffUnit time.Duration
	// Stagger is the per-target launch increment for the fan-out source.
	Stagger time.Duration
}

// DefaultFetcherConfig returns production fetch tuning.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:     10 * time.Second,
		MaxItems:    50,
		UserAgent:   "rustradar/1.0 (ecosystem activity dashboard)",
		BackoffUnit: time.Second,
		Stagger:     500 * time.Millisecond,
	}
}

const maxContentLen = 500

// truncate shortens s to at most maxLen runes, appending an ellipsis when
// anything was cut.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// generateID derives a stable external id for sources without a native one.
func generateID(prefix, seed string) string {
	hash := sha256.Sum256([]byte(seed))
	return fmt.Sprintf("%s_%x", prefix, hash[:8])
}

// hostOf extracts the host portion of raw for rate-limiter keying, falling
// back to the raw string when it does not parse as a URL.
func hostOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return raw
}
