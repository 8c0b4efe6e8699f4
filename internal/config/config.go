package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Poll    PollConfig
	Store   StoreConfig
	Cache   CacheConfig
	Sources SourcesConfig
	Logging LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr        string
	StaticDir       string
	ShutdownTimeout time.Duration
}

// PollConfig holds aggregation scheduling configuration
type PollConfig struct {
	Interval       time.Duration
	RefreshTimeout time.Duration
}

// StoreConfig holds flat-file persistence configuration
type StoreConfig struct {
	DataFile      string
	BackupDir     string
	ReportDir     string
	RetentionDays int
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	Backend   string // "memory" or "redis"
	TTL       time.Duration
	RedisAddr string
}

// SourcesConfig holds fetcher configuration
type SourcesConfig struct {
	RateLimitDur time.Duration
	FetchTimeout time.Duration
	MaxItems     int
	ConfigPath   string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// Load parses flags and environment variables to build configuration
func Load() *Config {
	httpAddr := flag.String("http", ":3000", "HTTP server address")
	staticDir := flag.String("static-dir", "public", "Directory of dashboard static files")
	shutdownTimeout := flag.Duration("shutdown-timeout", 10*time.Second, "Grace period for shutdown before force exit")
	pollInterval := flag.Duration("poll-interval", 5*time.Minute, "Interval between aggregation cycles")
	refreshTimeout := flag.Duration("refresh-timeout", 2*time.Minute, "Upper bound on a single aggregation cycle")
	dataFile := flag.String("data-file", "data/items.json", "Path of the JSON collection file")
	backupDir := flag.String("backup-dir", "data/backups", "Directory for dated snapshot files")
	reportDir := flag.String("report-dir", "data/reports", "Directory for daily report files")
	retentionDays := flag.Int("retention-days", 30, "Rolling retention window in days")
	cacheBackend := flag.String("cache-backend", "memory", "Cache backend: memory or redis")
	cacheTTL := flag.Duration("cache-ttl", 5*time.Minute, "Cache TTL for query responses")
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis server address")
	rateLimitDur := flag.Duration("rate-limit", time.Second, "Minimum delay between requests to same host")
	fetchTimeout := flag.Duration("fetch-timeout", 10*time.Second, "Per-request timeout for source fetches")
	maxItems := flag.Int("max-items", 50, "Maximum items kept per source sub-query")
	sourcesPath := flag.String("sources-config", "", "Optional sources.json path (subreddits, keywords, blog feeds)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")

	flag.Parse()

	applyEnvOverrides(httpAddr, staticDir, pollInterval, dataFile, backupDir, reportDir,
		retentionDays, cacheBackend, cacheTTL, redisAddr, rateLimitDur, sourcesPath, logLevel)

	return &Config{
		Server: ServerConfig{
			HTTPAddr:        *httpAddr,
			StaticDir:       *staticDir,
			ShutdownTimeout: *shutdownTimeout,
		},
		Poll: PollConfig{
			Interval:       *pollInterval,
			RefreshTimeout: *refreshTimeout,
		},
		Store: StoreConfig{
			DataFile:      *dataFile,
			BackupDir:     *backupDir,
			ReportDir:     *reportDir,
			RetentionDays: *retentionDays,
		},
		Cache: CacheConfig{
			Backend:   *cacheBackend,
			TTL:       *cacheTTL,
			RedisAddr: *redisAddr,
		},
		Sources: SourcesConfig{
			RateLimitDur: *rateLimitDur,
			FetchTimeout: *fetchTimeout,
			MaxItems:     *maxItems,
			ConfigPath:   *sourcesPath,
		},
		Logging: LoggingConfig{
			Level: *logLevel,
		},
	}
}

func applyEnvOverrides(
	httpAddr *string,
	staticDir *string,
	pollInterval *time.Duration,
	dataFile *string,
	backupDir *string,
	reportDir *string,
	retentionDays *int,
	cacheBackend *string,
	cacheTTL *time.Duration,
	redisAddr *string,
	rateLimitDur *time.Duration,
	sourcesPath *string,
	logLevel *string,
) {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		*httpAddr = v
	}
	if v := os.Getenv("PORT"); v != "" {
		*httpAddr = ":" + v
	}
	if v := os.Getenv("STATIC_DIR"); v != "" {
		*staticDir = v
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*pollInterval = d
		}
	}
	if v := os.Getenv("DATA_FILE"); v != "" {
		*dataFile = v
	}
	if v := os.Getenv("BACKUP_DIR"); v != "" {
		*backupDir = v
	}
	if v := os.Getenv("REPORT_DIR"); v != "" {
		*reportDir = v
	}
	if v := os.Getenv("RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*retentionDays = n
		}
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		*cacheBackend = v
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*cacheTTL = d
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		*redisAddr = v
	}
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*rateLimitDur = d
		}
	}
	if v := os.Getenv("SOURCES_CONFIG_PATH"); v != "" {
		*sourcesPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		*logLevel = v
	}
}
