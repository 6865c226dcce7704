package domain

import (
	"time"
)

// ModelPerformance is the merged view of one model's quality, cost and
// latency signals. Optional fields are nil when no source reported them;
// scoring treats absent values as neutral, never as zero.
type ModelPerformance struct {
	Model           string
	Family          ModelFamily
	ArenaElo        *float64
	MTEBScore       *float64
	InternalScore   *float64
	AvgLatencyMs    *float64
	CostPer1kTokens *float64
	SuccessRate     float64
	LastUpdated     time.Time
}

// Eligible reports whether at least one quality signal is present, the
// precondition for the model entering any candidate set.
func (p *ModelPerformance) Eligible() bool {
	return p.ArenaElo != nil || p.MTEBScore != nil || p.InternalScore != nil
}

// ResolvedFamily returns the model's family, inferring it from the
// benchmark signals when a row predates family tracking.
func (p *ModelPerformance) ResolvedFamily() ModelFamily {
	if p.Family != "" {
		return p.Family
	}
	if p.MTEBScore != nil {
		return FamilyEmbed
	}
	return FamilyChat
}

// ServesTask reports whether the model belongs to the pool a task draws
// from. Embedding requests never reach chat models and vice versa.
func (p *ModelPerformance) ServesTask(t TaskType) bool {
	return p.ResolvedFamily() == t.Family()
}

// PerformanceSnapshot is the process-wide, read-only view of all model
// performance rows. Refresh builds a complete replacement and installs it
// with an atomic pointer swap, so readers never see a partial merge.
type PerformanceSnapshot struct {
	Models  map[string]*ModelPerformance
	BuiltAt time.Time
}

func NewPerformanceSnapshot(models map[string]*ModelPerformance) *PerformanceSnapshot {
	if models == nil {
		models = make(map[string]*ModelPerformance)
	}
	return &PerformanceSnapshot{
		Models:  models,
		BuiltAt: time.Now(),
	}
}

// Lookup returns the row for a model, or nil when unknown.
func (s *PerformanceSnapshot) Lookup(model string) *ModelPerformance {
	if s == nil {
		return nil
	}
	return s.Models[model]
}

func (s *PerformanceSnapshot) Size() int {
	if s == nil {
		return 0
	}
	return len(s.Models)
}

// Float64Ptr is a convenience for building optional metric fields.
func Float64Ptr(v float64) *float64 {
	return &v
}
