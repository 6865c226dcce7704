package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tidemark-ai/coxswain/internal/adapter/bandit"
	"github.com/tidemark-ai/coxswain/internal/adapter/leaderboard"
	"github.com/tidemark-ai/coxswain/internal/adapter/scoring"
	"github.com/tidemark-ai/coxswain/internal/config"
	"github.com/tidemark-ai/coxswain/internal/core/domain"
	"github.com/tidemark-ai/coxswain/internal/core/ports"
	"github.com/tidemark-ai/coxswain/internal/logger"
)

// ThresholdRelaxation is the single quality-threshold step granted when
// the strict filter would leave no candidates.
const ThresholdRelaxation = 0.1

// Engine ties the scorer, the selector, the snapshot cache and the store
// into the recommendation API. One Engine serves all task types; readers
// go through an atomic snapshot pointer and never block on refresh.
type Engine struct {
	cfg      *config.Config
	store    ports.PerformanceStore
	client   ports.LeaderboardClient
	scorer   ports.Scorer
	selector ports.ModelSelector
	emitter  ports.TelemetryEmitter
	logger   *logger.StyledLogger

	snapshot atomic.Pointer[domain.PerformanceSnapshot]
	// snapshotMu serializes snapshot writers (refresh, aggregation,
	// model registration). Readers go through the atomic pointer alone.
	snapshotMu sync.Mutex
	refreshMu  sync.Mutex

	lastRefresh atomic.Pointer[time.Time]
	degraded    atomic.Bool
}

func New(
	cfg *config.Config,
	store ports.PerformanceStore,
	client ports.LeaderboardClient,
	scorer ports.Scorer,
	selector ports.ModelSelector,
	emitter ports.TelemetryEmitter,
	styled *logger.StyledLogger,
) *Engine {
	e := &Engine{
		cfg:      cfg,
		store:    store,
		client:   client,
		scorer:   scorer,
		selector: selector,
		emitter:  emitter,
		logger:   styled,
	}
	e.snapshot.Store(domain.NewPerformanceSnapshot(nil))
	return e
}

// BootstrapPersistence initialises the schema, warm-loads the last known
// performance rows so recommendations can be served before the first
// refresh completes, and restores bandit posteriors. Safe to call on
// every start; all steps are idempotent.
func (e *Engine) BootstrapPersistence(ctx context.Context) error {
	if err := e.store.InitializeSchema(ctx); err != nil {
		return err
	}

	rows, err := e.store.LoadAllPerformance(ctx)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		e.snapshot.Store(domain.NewPerformanceSnapshot(rows))
		e.logger.InfoWithCount("warm-loaded performance cache", len(rows))
	}

	checkpoints, err := e.store.LoadBanditCheckpoints(ctx)
	if err != nil {
		return err
	}
	if len(checkpoints) > 0 {
		e.selector.Restore(checkpoints)
		e.logger.InfoWithCount("restored bandit checkpoints", len(checkpoints))
	}
	return nil
}

// Snapshot returns the current read-only performance view.
func (e *Engine) Snapshot() *domain.PerformanceSnapshot {
	return e.snapshot.Load()
}

type scoredCandidate struct {
	model string
	score float64
}

// Recommend picks a primary model plus up to two score-ranked fallbacks
// for the given task context. Candidates below the quality threshold are
// dropped; if that empties the set the threshold is relaxed once by
// ThresholdRelaxation and the result is flagged Degraded. An empty cache
// yields domain.ErrEmptyCache, a cache with no eligible model for the
// task yields domain.ErrNoCandidates.
func (e *Engine) Recommend(ctx context.Context, taskCtx domain.TaskContext) (domain.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Recommendation{}, err
	}
	if _, err := domain.ParseTaskType(string(taskCtx.TaskType)); err != nil {
		return domain.Recommendation{}, err
	}

	snap := e.snapshot.Load()
	if snap.Size() == 0 {
		return domain.Recommendation{}, domain.ErrEmptyCache
	}

	scored := e.scoreAll(taskCtx, snap)
	if len(scored) == 0 {
		return domain.Recommendation{}, domain.ErrNoCandidates
	}

	candidates, degraded := applyThreshold(scored, taskCtx.QualityThreshold)

	primary, err := e.selector.SelectArm(taskCtx.TaskType, toSelectorCandidates(candidates))
	if err != nil {
		return domain.Recommendation{}, err
	}

	fallbacks := make([]string, 0, domain.MaxFallbacks)
	for _, c := range candidates {
		if c.model == primary {
			continue
		}
		fallbacks = append(fallbacks, c.model)
		if len(fallbacks) == domain.MaxFallbacks {
			break
		}
	}

	e.logger.Debug("recommendation built",
		"task_type", taskCtx.TaskType,
		"primary", primary,
		"fallbacks", fallbacks,
		"degraded", degraded,
		"candidates", len(candidates))

	return domain.Recommendation{
		Primary:   primary,
		Fallbacks: fallbacks,
		Degraded:  degraded,
	}, nil
}

// scoreAll produces the eligible candidate set, sorted by score
// descending with the model name as a stable tie-break. Only models in
// the task's family compete; an embedding request never sees chat rows.
func (e *Engine) scoreAll(taskCtx domain.TaskContext, snap *domain.PerformanceSnapshot) []scoredCandidate {
	scored := make([]scoredCandidate, 0, snap.Size())
	for model, row := range snap.Models {
		if !row.ServesTask(taskCtx.TaskType) {
			continue
		}
		score := e.scorer.Score(model, taskCtx, snap)
		if score <= 0 {
			continue
		}
		scored = append(scored, scoredCandidate{model: model, score: score})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].model < scored[j].model
	})
	return scored
}

// applyThreshold filters by quality threshold, relaxing once rather than
// returning an empty set. The caller guarantees scored is non-empty.
func applyThreshold(scored []scoredCandidate, threshold float64) ([]scoredCandidate, bool) {
	if threshold <= 0 {
		return scored, false
	}
	if kept := atOrAbove(scored, threshold); len(kept) > 0 {
		return kept, false
	}
	if kept := atOrAbove(scored, threshold-ThresholdRelaxation); len(kept) > 0 {
		return kept, true
	}
	return scored, true
}

func atOrAbove(scored []scoredCandidate, threshold float64) []scoredCandidate {
	kept := make([]scoredCandidate, 0, len(scored))
	for _, c := range scored {
		if c.score >= threshold {
			kept = append(kept, c)
		}
	}
	return kept
}

func toSelectorCandidates(scored []scoredCandidate) []ports.Candidate {
	candidates := make([]ports.Candidate, len(scored))
	for i, c := range scored {
		candidates[i] = ports.Candidate{Model: c.model, Prior: c.score}
	}
	return candidates
}

// RecordOutcome folds one observed call result back into the allocator
// and appends it to durable telemetry. The bandit update always happens;
// a persistence failure is logged and flags the engine degraded instead
// of failing the caller's request path. Telemetry writes run under a
// detached context so caller cancellation cannot drop an issued write.
func (e *Engine) RecordOutcome(ctx context.Context, outcome domain.Outcome) error {
	if _, err := domain.ParseTaskType(string(outcome.TaskType)); err != nil {
		return err
	}

	model := outcome.Model
	if canonical, ok := scoring.NormalizeAnyModelName(model); ok {
		model = canonical
	}

	if e.snapshot.Load().Lookup(model) == nil {
		e.registerModel(ctx, model, outcome.TaskType)
	}

	reward := bandit.ComputeReward(outcome)
	e.selector.Update(outcome.TaskType, model, reward)

	event := &domain.TelemetryEvent{
		ID:           uuid.New().String(),
		Model:        model,
		TaskType:     outcome.TaskType,
		Success:      outcome.Success,
		LatencyMs:    outcome.LatencyMs,
		CostUSD:      outcome.CostUSD,
		QualityScore: outcome.QualityScore,
		TenantID:     outcome.TenantID,
		TokensUsed:   outcome.TokensUsed,
		Timestamp:    time.Now(),
	}

	if err := e.store.RecordTelemetry(context.WithoutCancel(ctx), event); err != nil {
		e.degraded.Store(true)
		e.logger.Error("telemetry write failed, continuing in-memory",
			"model", model, "error", err)
	}

	e.emitter.Emit(event)
	return nil
}

// registerModel adds a row for a model first seen through outcome
// feedback, so it becomes selectable without waiting for a leaderboard
// to list it. The row starts with no quality signal and a clean success
// rate, pinned to the family of the task that reported it; telemetry
// aggregation fills in the rest.
func (e *Engine) registerModel(ctx context.Context, model string, taskType domain.TaskType) {
	e.snapshotMu.Lock()
	snap := e.snapshot.Load()
	if snap.Lookup(model) != nil {
		e.snapshotMu.Unlock()
		return
	}

	row := &domain.ModelPerformance{
		Model:       model,
		Family:      taskType.Family(),
		SuccessRate: 1.0,
		LastUpdated: time.Now(),
	}
	models := make(map[string]*domain.ModelPerformance, snap.Size()+1)
	for name, existing := range snap.Models {
		models[name] = existing
	}
	models[model] = row
	e.snapshot.Store(domain.NewPerformanceSnapshot(models))
	e.snapshotMu.Unlock()

	e.logger.InfoWithModel("registered model from outcome feedback", model)

	if err := e.store.UpsertPerformance(context.WithoutCancel(ctx), []*domain.ModelPerformance{row}); err != nil {
		e.degraded.Store(true)
		e.logger.Error("model registration persist failed", "model", model, "error", err)
	}
}

// ForceRefresh runs one full refresh cycle immediately, outside the
// scheduler cadence.
func (e *Engine) ForceRefresh(ctx context.Context) (ports.RefreshResult, error) {
	return e.refresh(ctx)
}

// refresh fetches all three ranking sources, merges them into a complete
// replacement snapshot and installs it atomically, then persists both the
// raw payloads and the merged rows. Arena and MTEB degrade to static
// tables inside the client; only an internal-evaluation failure aborts
// the cycle, leaving the previous snapshot in place.
func (e *Engine) refresh(ctx context.Context) (ports.RefreshResult, error) {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	started := time.Now()

	var (
		arena        map[string]float64
		arenaPayload []byte
		mteb         map[string]float64
		mtebPayload  []byte
		wg           sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		arena, arenaPayload = e.client.ArenaRatings(ctx)
	}()
	go func() {
		defer wg.Done()
		mteb, mtebPayload = e.client.MTEBScores(ctx)
	}()
	wg.Wait()

	internal, internalPayload, err := e.client.InternalEvaluations(ctx)
	if err != nil {
		e.logger.Error("refresh aborted, keeping previous snapshot", "error", err)
		return ports.RefreshResult{}, err
	}

	e.snapshotMu.Lock()
	previous := e.snapshot.Load().Models
	merged := leaderboard.Merge(arena, mteb, internal, previous)
	snap := domain.NewPerformanceSnapshot(merged)
	e.snapshot.Store(snap)
	e.snapshotMu.Unlock()

	now := snap.BuiltAt
	e.lastRefresh.Store(&now)

	e.persistRefresh(ctx, snap, arenaPayload, mtebPayload, internalPayload)

	e.logger.InfoWithCount("performance cache refreshed", snap.Size(),
		"duration", time.Since(started).Round(time.Millisecond))

	return ports.RefreshResult{
		CacheSize:   snap.Size(),
		LastUpdated: now,
		Duration:    time.Since(started),
	}, nil
}

// persistRefresh writes raw payloads and merged rows. Failures here are
// non-fatal; the in-memory snapshot is already installed and serving.
func (e *Engine) persistRefresh(ctx context.Context, snap *domain.PerformanceSnapshot, arena, mteb, internal []byte) {
	ctx = context.WithoutCancel(ctx)
	expiry := snap.BuiltAt.Add(e.cfg.Refresh.Interval)

	entries := []*domain.ExternalDataCacheEntry{
		{Source: domain.SourceArenaLeaderboard, Payload: arena, FetchedAt: snap.BuiltAt, ExpiresAt: expiry},
		{Source: domain.SourceMTEBScores, Payload: mteb, FetchedAt: snap.BuiltAt, ExpiresAt: expiry},
		{Source: domain.SourceInternalEvals, Payload: internal, FetchedAt: snap.BuiltAt, ExpiresAt: expiry},
	}
	failed := false
	for _, entry := range entries {
		if err := e.store.SaveExternalCache(ctx, entry); err != nil {
			failed = true
			e.logger.WarnWithSource("raw payload persist failed", entry.Source, "error", err)
		}
	}

	rows := make([]*domain.ModelPerformance, 0, snap.Size())
	for _, row := range snap.Models {
		rows = append(rows, row)
	}
	if err := e.store.UpsertPerformance(ctx, rows); err != nil {
		failed = true
		e.logger.Error("performance rows persist failed", "error", err)
	}

	if failed {
		e.degraded.Store(true)
	}
}

const ewmaAlpha = 0.1

// aggregateTelemetry folds the recent telemetry window into the cached
// rows with an exponentially weighted moving average, so production
// outcomes shift latency, cost and success rate gradually instead of
// whipsawing on a noisy window.
func (e *Engine) aggregateTelemetry(ctx context.Context, window time.Duration) error {
	e.snapshotMu.Lock()
	defer e.snapshotMu.Unlock()

	snap := e.snapshot.Load()
	if snap.Size() == 0 {
		return nil
	}

	updated := make(map[string]*domain.ModelPerformance, snap.Size())
	changed := make([]*domain.ModelPerformance, 0)
	now := time.Now()

	for model, row := range snap.Models {
		stats, err := e.store.TelemetryStats(ctx, model, window)
		if err != nil {
			return err
		}
		if stats.TotalCalls == 0 {
			updated[model] = row
			continue
		}

		next := *row
		next.AvgLatencyMs = domain.Float64Ptr(ewma(row.AvgLatencyMs, stats.AvgLatencyMs))
		next.SuccessRate = ewma(&row.SuccessRate, stats.SuccessRate)
		if stats.AvgCostPer1kTokens > 0 {
			next.CostPer1kTokens = domain.Float64Ptr(ewma(row.CostPer1kTokens, stats.AvgCostPer1kTokens))
		}
		next.LastUpdated = now

		updated[model] = &next
		changed = append(changed, &next)
	}

	if len(changed) == 0 {
		return nil
	}

	e.snapshot.Store(domain.NewPerformanceSnapshot(updated))
	if err := e.store.UpsertPerformance(ctx, changed); err != nil {
		e.degraded.Store(true)
		return err
	}

	e.logger.InfoWithCount("folded telemetry into performance cache", len(changed))
	return nil
}

func ewma(previous *float64, observed float64) float64 {
	if previous == nil {
		return observed
	}
	return (1-ewmaAlpha)*(*previous) + ewmaAlpha*observed
}

// Stats reports durable row counts alongside in-memory cache health.
func (e *Engine) Stats(ctx context.Context) (ports.EngineStats, error) {
	stats := ports.EngineStats{
		CacheSize:           e.snapshot.Load().Size(),
		PersistenceDegraded: e.degraded.Load(),
	}
	if last := e.lastRefresh.Load(); last != nil {
		stats.LastRefresh = *last
	}

	db, err := e.store.DatabaseStats(ctx)
	if err != nil {
		stats.PersistenceDegraded = true
		return stats, err
	}
	stats.Database = db
	return stats, nil
}

// Close checkpoints the bandit posteriors and releases the store. The
// emitter is drained first so in-flight events still reach their sinks.
func (e *Engine) Close() error {
	e.emitter.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if checkpoints := e.selector.Checkpoints(); len(checkpoints) > 0 {
		if err := e.store.SaveBanditCheckpoints(ctx, checkpoints); err != nil {
			e.logger.Error("bandit checkpoint save failed", "error", err)
			errs = append(errs, err)
		} else {
			e.logger.InfoWithCount("saved bandit checkpoints", len(checkpoints))
		}
	}
	if err := e.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
