package sources

import (
	"strings"

	"github.com/rustradar/rustradar/internal/models"
)

// Relevance decides which fetched items are kept. Channels flagged as
// dedicated (official or topic-exclusive) bypass the keyword check entirely;
// everything else must mention at least one configured keyword in its title
// or content, case-insensitive.
type Relevance struct {
	keywords []string
}

// NewRelevance creates a filter over the given keyword list. Keywords are
// matched as substrings, so shorter stems catch inflections.
func NewRelevance(keywords []string) *Relevance {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			lowered = append(lowered, k)
		}
	}
	return &Relevance{keywords: lowered}
}

// Keep reports whether item should survive filtering. dedicated marks the
// channel the item came from as inherently on-topic.
func (r *Relevance) Keep(item models.Item, dedicated bool) bool {
	if dedicated {
		return true
	}
	return r.matches(item.Title) || r.matches(item.Content)
}

// Apply filters a batch in place-order, keeping dedicated-channel items
// unconditionally.
func (r *Relevance) Apply(items []models.Item, dedicated bool) []models.Item {
	if dedicated {
		return items
	}
	kept := make([]models.Item, 0, len(items))
	for _, item := range items {
		if r.Keep(item, false) {
			kept = append(kept, item)
		}
	}
	return kept
}

func (r *Relevance) matches(text string) bool {
	if text == "" {
		return false
	}
	lowered := strings.ToLower(text)
	for _, k := range r.keywords {
		if strings.Contains(lowered, k) {
			return true
		}
	}
	return false
}
