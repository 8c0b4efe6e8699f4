package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rustradar/rustradar/internal/aggregator"
	"github.com/rustradar/rustradar/internal/cache"
	"github.com/rustradar/rustradar/internal/logging"
	"github.com/rustradar/rustradar/internal/models"
	"github.com/rustradar/rustradar/internal/scheduler"
	"github.com/rustradar/rustradar/internal/store"
	"github.com/rustradar/rustradar/internal/ws"
)

// Server is the read/control HTTP surface in front of the store and the
// aggregation pipeline.
type Server struct {
	agg       *aggregator.Aggregator
	store     *store.Store
	sched     *scheduler.Scheduler
	hub       *ws.Hub
	cache     cache.Cache
	logger    *logging.Logger
	staticDir string
	server    *http.Server
}

func New(agg *aggregator.Aggregator, st *store.Store, sched *scheduler.Scheduler, hub *ws.Hub, c cache.Cache, logger *logging.Logger, staticDir string) *Server {
	return &Server{
		agg:       agg,
		store:     st,
		sched:     sched,
		hub:       hub,
		cache:     c,
		logger:    logger,
		staticDir: staticDir,
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/posts", s.corsMiddleware(s.handleGetPosts))
	mux.HandleFunc("/api/stats", s.corsMiddleware(s.handleStats))
	mux.HandleFunc("/api/refresh", s.corsMiddleware(s.handleRefresh))
	mux.HandleFunc("/api/sources", s.corsMiddleware(s.handleSources))
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/ws", s.hub.HandleWS)

	if s.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}

	return mux
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("HTTP API server starting", logging.WithField("addr", addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// handleGetPosts serves the paginated, filtered, sorted item query. Bad
// query parameters are clamped to defaults rather than rejected.
func (s *Server) handleGetPosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	params := parseQueryParams(r)

	cacheKey := postsCacheKey(params)
	if s.cache != nil {
		if cached, ok := s.cache.Get(cacheKey); ok {
			s.writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	result := s.store.Query(params)

	if s.cache != nil {
		s.cache.Set(cacheKey, result)
	}
	s.writeJSON(w, http.StatusOK, result)
}

func parseQueryParams(r *http.Request) models.QueryParams {
	query := r.URL.Query()

	page := 1
	if v := query.Get("page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			page = parsed
		}
	}

	limit := 20
	if v := query.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	minScore := 0
	if v := query.Get("minUpvotes"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			minScore = parsed
		}
	}

	return models.QueryParams{
		Search:    query.Get("search"),
		Origin:    query.Get("subreddit"),
		SortBy:    query.Get("sortBy"),
		SortOrder: query.Get("sortOrder"),
		Page:      page,
		Limit:     limit,
		MinScore:  minScore,
	}
}

func postsCacheKey(p models.QueryParams) string {
	return fmt.Sprintf("posts:%s:%s:%s:%s:%d:%d:%d",
		p.Search, p.Origin, p.SortBy, p.SortOrder, p.Page, p.Limit, p.MinScore)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get("stats"); ok {
			s.writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	stats := s.store.Stats()

	if s.cache != nil {
		s.cache.Set("stats", stats)
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// A forced cycle may run up to the refresh timeout, which exceeds the
	// server's write timeout; lift this request's deadline so the response
	// is not cut off mid-cycle.
	http.NewResponseController(w).SetWriteDeadline(time.Time{})

	count := s.sched.RunOnce(r.Context())

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"count":  count,
	})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sources := s.agg.GetSources()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sources": sources,
		"count":   len(sources),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"uptime":    s.sched.Uptime().Round(time.Second).String(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode response", logging.WithField("error", err.Error()))
	}
}
