package scoring

import (
	"github.com/tidemark-ai/coxswain/internal/core/domain"
)

const (
	// NeutralQuality is the quality term for models in the cache with no
	// quality signal yet, keeping newly-registered models selectable.
	NeutralQuality = 0.5

	eloFloor = 1000.0
	eloRange = 300.0
)

// Scorer computes a multi-objective utility per (model, task context)
// against a frozen performance snapshot. It is stateless; all inputs
// arrive per call.
type Scorer struct{}

func NewScorer() *Scorer {
	return &Scorer{}
}

// Score returns a utility in [0, inf). Unknown models score 0 and are
// thereby excluded from candidate sets; missing fields fall back to
// neutral values rather than erroring.
func (s *Scorer) Score(model string, taskCtx domain.TaskContext, snapshot *domain.PerformanceSnapshot) float64 {
	perf := snapshot.Lookup(model)
	if perf == nil {
		return 0
	}

	score := s.qualityTerm(perf, taskCtx.TaskType)
	score *= s.latencyFactor(perf, taskCtx)
	score *= s.costFactor(perf, taskCtx)
	score *= perf.SuccessRate

	if score < 0 {
		return 0
	}
	return score
}

func (s *Scorer) qualityTerm(perf *domain.ModelPerformance, taskType domain.TaskType) float64 {
	if perf.InternalScore != nil {
		return *perf.InternalScore
	}

	if taskType.IsEmbedding() {
		if perf.MTEBScore != nil {
			return clamp01(*perf.MTEBScore / 100.0)
		}
		if perf.ArenaElo != nil {
			return normalizeElo(*perf.ArenaElo)
		}
	} else {
		if perf.ArenaElo != nil {
			return normalizeElo(*perf.ArenaElo)
		}
		if perf.MTEBScore != nil {
			return clamp01(*perf.MTEBScore / 100.0)
		}
	}

	return NeutralQuality
}

// latencyFactor applies only under latency pressure. With an explicit
// budget, models within it keep full score and models above it degrade
// proportionally; without one, slower models decay smoothly.
func (s *Scorer) latencyFactor(perf *domain.ModelPerformance, taskCtx domain.TaskContext) float64 {
	if !taskCtx.LatencyCritical || perf.AvgLatencyMs == nil {
		return 1.0
	}

	latency := *perf.AvgLatencyMs
	if latency <= 0 {
		return 1.0
	}

	if taskCtx.MaxLatencyMs > 0 {
		if latency <= taskCtx.MaxLatencyMs {
			return 1.0
		}
		return taskCtx.MaxLatencyMs / latency
	}

	return 1.0 / (1.0 + latency/1000.0)
}

func (s *Scorer) costFactor(perf *domain.ModelPerformance, taskCtx domain.TaskContext) float64 {
	if !taskCtx.CostSensitive || perf.CostPer1kTokens == nil {
		return 1.0
	}
	return 1.0 / (1.0 + *perf.CostPer1kTokens)
}

func normalizeElo(elo float64) float64 {
	return clamp01((elo - eloFloor) / eloRange)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
