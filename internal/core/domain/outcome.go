package domain

import (
	"time"
)

// Recommendation is the cascade result handed back to the caller: one
// primary model plus up to two ordered fallbacks to retry against.
type Recommendation struct {
	Primary   string
	Fallbacks []string
	// Degraded is set when the quality threshold had to be relaxed to
	// produce a non-empty candidate set.
	Degraded bool
}

const MaxFallbacks = 2

// Outcome is the observed result of one routed inference call.
type Outcome struct {
	Model        string
	TaskType     TaskType
	Success      bool
	LatencyMs    float64
	CostUSD      float64
	TenantID     string
	TokensUsed   int
	QualityScore *float64
}

// TelemetryEvent is the durable, append-only record of an Outcome.
// Immutable once written; removed only by retention cleanup.
type TelemetryEvent struct {
	ID           string
	Model        string
	TaskType     TaskType
	Success      bool
	LatencyMs    float64
	CostUSD      float64
	QualityScore *float64
	TenantID     string
	TokensUsed   int
	Timestamp    time.Time
}

// ExternalDataCacheEntry stores one raw upstream payload keyed by source
// name, overwritten on each refresh.
type ExternalDataCacheEntry struct {
	Source    string
	Payload   []byte
	FetchedAt time.Time
	ExpiresAt time.Time
}

const (
	SourceArenaLeaderboard = "arena-leaderboard"
	SourceMTEBScores       = "mteb-scores"
	SourceInternalEvals    = "internal-evaluations"
)

// BanditCheckpoint is the persisted posterior for one (task type, model)
// arm, used for warm restarts.
type BanditCheckpoint struct {
	TaskType  TaskType
	Model     string
	Provider  string
	Pulls     int64
	RewardSum float64
	Prior     float64
	UpdatedAt time.Time
}
