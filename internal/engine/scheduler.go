package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tidemark-ai/coxswain/internal/config"
	"github.com/tidemark-ai/coxswain/internal/logger"
)

const retentionSweepInterval = 24 * time.Hour

// Scheduler drives the engine's background cadences: the leaderboard
// refresh, the telemetry aggregation fold and the retention sweep. Each
// loop is independent; one failing cycle never stops the others.
type Scheduler struct {
	engine *Engine
	cfg    *config.Config
	logger *logger.StyledLogger

	cancel  context.CancelFunc
	group   *errgroup.Group
	started bool
	mu      sync.Mutex
}

func NewScheduler(engine *Engine, cfg *config.Config, styled *logger.StyledLogger) *Scheduler {
	return &Scheduler{
		engine: engine,
		cfg:    cfg,
		logger: styled,
	}
}

// Start runs an immediate refresh when the cache is cold, then launches
// the background loops. Idempotent; a second call is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	if s.engine.Snapshot().Size() == 0 {
		if _, err := s.engine.ForceRefresh(ctx); err != nil {
			s.logger.Error("initial refresh failed, will retry on schedule", "error", err)
		}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.group, loopCtx = errgroup.WithContext(loopCtx)

	s.group.Go(func() error { return s.refreshLoop(loopCtx) })
	s.group.Go(func() error { return s.aggregationLoop(loopCtx) })
	s.group.Go(func() error { return s.retentionLoop(loopCtx) })

	s.started = true
	s.logger.Info("scheduler started",
		"refresh_interval", s.cfg.Refresh.Interval,
		"aggregation_interval", s.cfg.Refresh.AggregationInterval,
		"telemetry_retention_days", s.cfg.Retention.TelemetryDays)
	return nil
}

// Stop cancels the loops and waits for them to drain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.cancel()
	_ = s.group.Wait()
	s.started = false
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) refreshLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Refresh.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.engine.ForceRefresh(ctx); err != nil {
				s.logger.Error("scheduled refresh failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) aggregationLoop(ctx context.Context) error {
	interval := s.cfg.Refresh.AggregationInterval
	if interval <= 0 {
		return nil
	}

	// The lookback window overlaps consecutive runs; the EWMA makes
	// re-counting an event cheap, while a gap would lose it entirely.
	window := 4 * interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.engine.aggregateTelemetry(ctx, window); err != nil {
				s.logger.Error("telemetry aggregation failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) retentionLoop(ctx context.Context) error {
	retention := time.Duration(s.cfg.Retention.TelemetryDays) * 24 * time.Hour
	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.engine.store.CleanupTelemetry(ctx, retention); err != nil {
				s.logger.Error("telemetry retention sweep failed", "error", err)
			}
		}
	}
}
