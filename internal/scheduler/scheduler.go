package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rustradar/rustradar/internal/aggregator"
	"github.com/rustradar/rustradar/internal/cache"
	"github.com/rustradar/rustradar/internal/logging"
	"github.com/rustradar/rustradar/internal/store"
	"github.com/rustradar/rustradar/internal/ws"
)

// Scheduler drives the aggregation pipeline: a poll timer firing cycles on a
// fixed interval, and a daily job anchored to local midnight for backup and
// report generation. Cycles are serialized; a tick that arrives while the
// previous cycle is still running is skipped rather than queued.
type Scheduler struct {
	agg            *aggregator.Aggregator
	store          *store.Store
	hub            *ws.Hub
	cache          cache.Cache
	logger         *logging.Logger
	interval       time.Duration
	refreshTimeout time.Duration
	reportDir      string
	startedAt      time.Time

	cycleMu sync.Mutex
	wg      sync.WaitGroup
}

func New(agg *aggregator.Aggregator, st *store.Store, hub *ws.Hub, c cache.Cache, logger *logging.Logger, interval, refreshTimeout time.Duration, reportDir string) *Scheduler {
	return &Scheduler{
		agg:            agg,
		store:          st,
		hub:            hub,
		cache:          c,
		logger:         logger,
		interval:       interval,
		refreshTimeout: refreshTimeout,
		reportDir:      reportDir,
		startedAt:      time.Now(),
	}
}

// Uptime reports how long the scheduler has been running.
func (s *Scheduler) Uptime() time.Duration {
	return time.Since(s.startedAt)
}

// Start launches the poll and daily timers. Both stop when ctx is cancelled;
// Wait blocks until they have fully unwound.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(2)
	go s.pollLoop(ctx)
	go s.dailyLoop(ctx)
}

// Wait blocks until both timer goroutines have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// RunOnce executes one aggregation cycle end to end: fetch, dedup, persist,
// invalidate the response cache, and notify subscribers. It is shared by the
// poll timer and the forced-refresh endpoint, and serialized so overlapping
// callers cannot interleave cycles.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	cycleCtx, cancel := context.WithTimeout(ctx, s.refreshTimeout)
	defer cancel()

	unique := s.agg.RunCycle(cycleCtx)

	if s.cache != nil {
		s.cache.Clear()
	}
	s.hub.Broadcast(len(unique), time.Now())

	return len(unique)
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	// First cycle at startup, followed by the startup backup.
	s.RunOnce(ctx)
	if _, err := s.store.Backup(); err != nil {
		s.logger.Error("Startup backup failed", logging.WithField("error", err.Error()))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Poll timer stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *Scheduler) dailyLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		delay := untilNextMidnight(time.Now())
		s.logger.Info("Daily job scheduled", logging.WithField("in", delay.Round(time.Second).String()))

		select {
		case <-ctx.Done():
			s.logger.Info("Daily timer stopped")
			return
		case <-time.After(delay):
			s.runDaily()
		}
	}
}

func (s *Scheduler) runDaily() {
	if _, err := s.store.Backup(); err != nil {
		s.logger.Error("Daily backup failed", logging.WithField("error", err.Error()))
	}
	s.store.Prune(0)
	if _, err := s.store.WriteReport(s.reportDir, s.Uptime(), s.hub.ClientCount()); err != nil {
		s.logger.Error("Daily report failed", logging.WithField("error", err.Error()))
	}
}

// untilNextMidnight computes the delay from now to the next local midnight.
func untilNextMidnight(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return next.Sub(now)
}
