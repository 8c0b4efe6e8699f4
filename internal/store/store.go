package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rustradar/rustradar/internal/logging"
	"github.com/rustradar/rustradar/internal/models"
)

// ErrSnapshotNotFound is returned by Restore when the snapshot file does not
// exist.
var ErrSnapshotNotFound = errors.New("snapshot file not found")

const (
	defaultLimit = 20
	maxLimit     = 100

	backupPrefix = "items-backup-"
	// backupRetentionDays bounds how long dated snapshot files are kept.
	backupRetentionDays = 30
)

var backupDatePattern = regexp.MustCompile(`^items-backup-(\d{4}-\d{2}-\d{2})\.json$`)

// Store owns the persisted item collection: an in-memory slice backed by a
// single JSON array file. It is the only component that touches the file.
// Writes are whole-file rewrites after each batch; a failed write is logged
// and the in-memory state stays authoritative until the next write succeeds.
type Store struct {
	mu            sync.RWMutex
	path          string
	backupDir     string
	retentionDays int
	logger        *logging.Logger
	items         []models.Item
	index         map[string]int // external_id -> position in items
}

// New opens (or creates) the store at path. An unreadable or corrupt backing
// file degrades to an empty collection rather than failing startup.
func New(path, backupDir string, retentionDays int, logger *logging.Logger) *Store {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	s := &Store{
		path:          path,
		backupDir:     backupDir,
		retentionDays: retentionDays,
		logger:        logger,
		items:         make([]models.Item, 0),
		index:         make(map[string]int),
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read data file, starting empty", logging.WithField("error", err.Error()))
		}
		return
	}

	var items []models.Item
	if err := json.Unmarshal(data, &items); err != nil {
		s.logger.Warn("Data file is corrupt, starting empty", logging.WithFields(map[string]interface{}{
			"path":  s.path,
			"error": err.Error(),
		}))
		return
	}

	s.replace(items)
	s.logger.Info("Loaded item collection", logging.WithField("count", len(items)))
}

// replace swaps the collection wholesale and rebuilds the index.
func (s *Store) replace(items []models.Item) {
	s.items = items
	s.index = make(map[string]int, len(items))
	for i, item := range items {
		s.index[item.ExternalID] = i
	}
}

func (s *Store) persist() {
	if err := s.writeFile(s.path, s.items); err != nil {
		s.logger.Error("Failed to persist collection", logging.WithFields(map[string]interface{}{
			"path":  s.path,
			"error": err.Error(),
		}))
	}
}

func (s *Store) writeFile(path string, items []models.Item) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal collection: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// UpsertMany merges a batch into the collection keyed by external id and
// rewrites the backing file once. Repeated ingestion of the same id is
// idempotent: mutable fields (title, content, score, reply count, created_at)
// take the incoming values, fetched_at reflects this ingestion, and the
// surrogate id from the first upsert is preserved. Returns the number of
// newly created records.
func (s *Store) UpsertMany(batch []models.Item) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	now := time.Now()

	for _, incoming := range batch {
		if incoming.ExternalID == "" {
			continue
		}
		if incoming.FetchedAt.IsZero() {
			incoming.FetchedAt = now
		}

		if pos, ok := s.index[incoming.ExternalID]; ok {
			existing := &s.items[pos]
			existing.Title = incoming.Title
			existing.Content = incoming.Content
			existing.Author = incoming.Author
			existing.OriginLabel = incoming.OriginLabel
			existing.Score = incoming.Score
			existing.ReplyCount = incoming.ReplyCount
			// created_at deliberately takes the incoming value on every
			// upsert; the source's own timestamp wins over first-seen time.
			existing.CreatedAt = incoming.CreatedAt
			existing.FetchedAt = incoming.FetchedAt
			existing.URL = incoming.URL
			existing.Source = incoming.Source
			continue
		}

		incoming.ID = uuid.NewString()
		s.items = append(s.items, incoming)
		s.index[incoming.ExternalID] = len(s.items) - 1
		added++
	}

	if len(batch) > 0 {
		s.persist()
	}
	return added
}

// Query filters, sorts, and pages the collection. Filters apply in a fixed
// order: retention window, minimum score, origin, free-text search. Out of
// range pages return an empty slice, never an error.
func (s *Store) Query(params models.QueryParams) models.QueryResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = s.retentionDays
	}

	cutoff := time.Now().AddDate(0, 0, -retention)
	origin := strings.ToLower(strings.TrimSpace(params.Origin))
	search := strings.ToLower(strings.TrimSpace(params.Search))

	filtered := make([]models.Item, 0, len(s.items))
	for _, item := range s.items {
		if item.CreatedAt.Before(cutoff) {
			continue
		}
		if params.MinScore > 0 && item.Score < params.MinScore {
			continue
		}
		if origin != "" && !strings.Contains(strings.ToLower(item.OriginLabel), origin) {
			continue
		}
		if search != "" {
			title := strings.ToLower(item.Title)
			author := strings.ToLower(item.Author)
			content := strings.ToLower(item.Content)
			if !strings.Contains(title, search) && !strings.Contains(author, search) && !strings.Contains(content, search) {
				continue
			}
		}
		filtered = append(filtered, item)
	}

	sortItems(filtered, params.SortBy, params.SortOrder)

	total := len(filtered)
	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}

	start := (page - 1) * limit
	var pageItems []models.Item
	if start >= total {
		pageItems = []models.Item{}
	} else {
		end := start + limit
		if end > total {
			end = total
		}
		pageItems = make([]models.Item, end-start)
		copy(pageItems, filtered[start:end])
	}

	return models.QueryResult{
		Items:      pageItems,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

func sortItems(items []models.Item, sortBy, sortOrder string) {
	asc := strings.EqualFold(sortOrder, "asc")

	less := func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	}
	switch sortBy {
	case "upvotes", "score":
		less = func(i, j int) bool {
			if items[i].Score != items[j].Score {
				return items[i].Score < items[j].Score
			}
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
	case "comments", "replies":
		less = func(i, j int) bool {
			if items[i].ReplyCount != items[j].ReplyCount {
				return items[i].ReplyCount < items[j].ReplyCount
			}
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
	}

	if asc {
		sort.SliceStable(items, less)
	} else {
		sort.SliceStable(items, func(i, j int) bool { return less(j, i) })
	}
}

// Backup writes a dated snapshot of the full collection and prunes snapshot
// files older than the backup retention period, matched by the date in the
// filename.
func (s *Store) Backup() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name := fmt.Sprintf("%s%s.json", backupPrefix, time.Now().Format("2006-01-02"))
	path := filepath.Join(s.backupDir, name)

	if err := s.writeFile(path, s.items); err != nil {
		return "", fmt.Errorf("backup failed: %w", err)
	}
	s.logger.Info("Backup written", logging.WithFields(map[string]interface{}{
		"path":  path,
		"count": len(s.items),
	}))

	s.pruneBackups()
	return path, nil
}

func (s *Store) pruneBackups() {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -backupRetentionDays)
	for _, entry := range entries {
		m := backupDatePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		day, err := time.ParseInLocation("2006-01-02", m[1], time.Local)
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			path := filepath.Join(s.backupDir, entry.Name())
			if err := os.Remove(path); err != nil {
				s.logger.Warn("Failed to remove old backup", logging.WithField("path", path))
				continue
			}
			s.logger.Info("Removed old backup", logging.WithField("path", path))
		}
	}
}

// Prune removes records whose created_at falls outside the window and
// persists only when something was removed. Returns the number of removed
// records.
func (s *Store) Prune(daysBack int) int {
	if daysBack <= 0 {
		daysBack = s.retentionDays
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -daysBack)

	kept := make([]models.Item, 0, len(s.items))
	for _, item := range s.items {
		if item.CreatedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, item)
	}

	removed := len(s.items) - len(kept)
	if removed == 0 {
		return 0
	}

	s.replace(kept)
	s.persist()
	s.logger.Info("Pruned old items", logging.WithFields(map[string]interface{}{
		"removed":   removed,
		"days_back": daysBack,
	}))
	return removed
}

// Stats returns an aggregate snapshot of the collection.
func (s *Store) Stats() models.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	dayAgo := now.Add(-24 * time.Hour)
	weekAgo := now.AddDate(0, 0, -7)

	stats := models.Stats{
		Total:    len(s.items),
		ByOrigin: make(map[string]int),
	}

	var latest time.Time
	for _, item := range s.items {
		if item.CreatedAt.After(dayAgo) {
			stats.Last24h++
		}
		if item.CreatedAt.After(weekAgo) {
			stats.Last7d++
		}
		stats.ByOrigin[item.OriginLabel]++
		if item.FetchedAt.After(latest) {
			latest = item.FetchedAt
		}
	}

	if !latest.IsZero() {
		stats.LatestFetched = &latest
	}
	return stats
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Restore replaces the collection wholesale from a snapshot file and
// persists the result.
func (s *Store) Restore(snapshotPath string) error {
	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, snapshotPath)
		}
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	var items []models.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to parse snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.replace(items)
	s.persist()
	s.logger.Info("Restored collection from snapshot", logging.WithFields(map[string]interface{}{
		"path":  snapshotPath,
		"count": len(items),
	}))
	return nil
}
