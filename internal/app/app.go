package app

import (
	"context"

	"github.com/rustradar/rustradar/internal/aggregator"
	"github.com/rustradar/rustradar/internal/cache"
	"github.com/rustradar/rustradar/internal/config"
	"github.com/rustradar/rustradar/internal/httpapi"
	"github.com/rustradar/rustradar/internal/logging"
	"github.com/rustradar/rustradar/internal/ratelimit"
	"github.com/rustradar/rustradar/internal/scheduler"
	"github.com/rustradar/rustradar/internal/sources"
	"github.com/rustradar/rustradar/internal/store"
	"github.com/rustradar/rustradar/internal/ws"
)

// App holds all application dependencies. Everything with a lifecycle lives
// here: initialized once at process start, torn down on the shutdown signal,
// with nothing stashed in package-level state.
type App struct {
	Config     *config.Config
	Logger     *logging.Logger
	Cache      cache.Cache
	Store      *store.Store
	Aggregator *aggregator.Aggregator
	Hub        *ws.Hub
	Scheduler  *scheduler.Scheduler
	HTTPServer *httpapi.Server
}

// New creates and wires a new App instance
func New(cfg *config.Config) *App {
	a := &App{Config: cfg}

	a.Logger = logging.New(logging.ParseLevel(cfg.Logging.Level))
	a.Cache = a.initCache()

	a.Store = store.New(cfg.Store.DataFile, cfg.Store.BackupDir, cfg.Store.RetentionDays, a.Logger)

	limiter := ratelimit.New(cfg.Sources.RateLimitDur)
	fetchers := a.initFetchers(limiter)
	a.Aggregator = aggregator.New(fetchers, a.Store, a.Logger)

	a.Hub = ws.NewHub(a.Store.Stats, a.Logger)
	a.Scheduler = scheduler.New(a.Aggregator, a.Store, a.Hub, a.Cache, a.Logger,
		cfg.Poll.Interval, cfg.Poll.RefreshTimeout, cfg.Store.ReportDir)

	a.HTTPServer = httpapi.New(a.Aggregator, a.Store, a.Scheduler, a.Hub, a.Cache, a.Logger, cfg.Server.StaticDir)

	return a
}

func (a *App) initCache() cache.Cache {
	if a.Config.Cache.Backend == "redis" {
		a.Logger.Info("Using Redis cache backend", logging.WithField("addr", a.Config.Cache.RedisAddr))
		redisCache, err := cache.NewRedis(cache.RedisConfig{Addr: a.Config.Cache.RedisAddr}, a.Config.Cache.TTL)
		if err != nil {
			a.Logger.Error("Failed to connect to Redis, falling back to memory cache", logging.WithField("error", err.Error()))
			return cache.NewMemory(a.Config.Cache.TTL)
		}
		return redisCache
	}
	a.Logger.Info("Using in-memory cache backend")
	return cache.NewMemory(a.Config.Cache.TTL)
}

func (a *App) initFetchers(limiter *ratelimit.Limiter) []sources.Fetcher {
	fetcherCfg := sources.DefaultFetcherConfig()
	fetcherCfg.Timeout = a.Config.Sources.FetchTimeout
	fetcherCfg.MaxItems = a.Config.Sources.MaxItems

	var srcCfg *sources.SourcesFile
	if path := a.Config.Sources.ConfigPath; path != "" {
		loaded, err := sources.LoadSourcesFile(path)
		if err != nil {
			a.Logger.Warn("Failed to load sources config, using defaults", logging.WithField("error", err.Error()))
		} else {
			srcCfg = loaded
		}
	}

	return sources.CreateFetchers(srcCfg, limiter, fetcherCfg, a.Logger)
}

// Run starts the scheduler and serves HTTP until the context is cancelled or
// the listener fails.
func (a *App) Run(ctx context.Context) error {
	a.Scheduler.Start(ctx)
	return a.HTTPServer.Start(a.Config.Server.HTTPAddr)
}

// Shutdown tears the application down in order: live connections first, then
// the HTTP listener. The scheduler stops through its context.
func (a *App) Shutdown(ctx context.Context) error {
	a.Hub.Close()

	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error("HTTP server shutdown error", logging.WithField("error", err.Error()))
		return err
	}

	if mc, ok := a.Cache.(*cache.MemoryCache); ok {
		mc.Stop()
	}
	if rc, ok := a.Cache.(*cache.RedisCache); ok {
		if err := rc.Close(); err != nil {
			a.Logger.Error("Redis close error", logging.WithField("error", err.Error()))
		}
	}

	return nil
}
