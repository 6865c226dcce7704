package ports

import (
	"context"
	"time"

	"github.com/tidemark-ai/coxswain/internal/core/domain"
)

// PerformanceStore is the durable persistence boundary. All writes are
// durable before the call returns; callers degrade to in-memory state on
// error rather than failing the request path.
type PerformanceStore interface {
	InitializeSchema(ctx context.Context) error

	UpsertPerformance(ctx context.Context, rows []*domain.ModelPerformance) error
	LoadAllPerformance(ctx context.Context) (map[string]*domain.ModelPerformance, error)

	SaveExternalCache(ctx context.Context, entry *domain.ExternalDataCacheEntry) error
	LoadExternalCache(ctx context.Context, source string) (*domain.ExternalDataCacheEntry, error)

	RecordTelemetry(ctx context.Context, event *domain.TelemetryEvent) error
	TelemetryStats(ctx context.Context, model string, window time.Duration) (TelemetryStats, error)
	CleanupTelemetry(ctx context.Context, olderThan time.Duration) (int64, error)

	SaveBanditCheckpoints(ctx context.Context, checkpoints []*domain.BanditCheckpoint) error
	LoadBanditCheckpoints(ctx context.Context) ([]*domain.BanditCheckpoint, error)

	DatabaseStats(ctx context.Context) (DatabaseStats, error)
	Close() error
}

// LeaderboardClient fetches external quality rankings. Arena and MTEB
// lookups substitute static fallback tables on any upstream failure and
// never return an error; the raw payload accompanies each result for
// cache persistence. Internal evaluations are local, so a failure there
// is surfaced and fails only the current refresh cycle.
type LeaderboardClient interface {
	ArenaRatings(ctx context.Context) (map[string]float64, []byte)
	MTEBScores(ctx context.Context) (map[string]float64, []byte)
	InternalEvaluations(ctx context.Context) (map[string]map[string]float64, []byte, error)
}

// Scorer maps (model, task context, snapshot) to a utility in [0, inf).
// Unknown models score zero and are excluded from candidate sets.
type Scorer interface {
	Score(model string, taskCtx domain.TaskContext, snapshot *domain.PerformanceSnapshot) float64
}

// Candidate is one eligible model offered to the selector, carrying its
// scorer-derived prior.
type Candidate struct {
	Model    string
	Provider string
	Prior    float64
}

// ModelSelector balances exploring under-tried models against exploiting
// known-good ones, independently per task type.
type ModelSelector interface {
	Name() string
	// SelectArm never returns a model outside candidates; an empty
	// candidate set yields domain.ErrNoCandidates.
	SelectArm(taskType domain.TaskType, candidates []Candidate) (string, error)
	// Update folds a reward in [0,1] into the arm's posterior,
	// auto-creating the arm with a neutral prior when absent.
	Update(taskType domain.TaskType, model string, reward float64)

	Checkpoints() []*domain.BanditCheckpoint
	Restore(checkpoints []*domain.BanditCheckpoint)
}

// TelemetryEmitter is the optional external sink capability. Emission is
// asynchronous and failures never affect bandit updates or persistence.
type TelemetryEmitter interface {
	Emit(event *domain.TelemetryEvent)
	Close()
}
