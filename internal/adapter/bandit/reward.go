package bandit

import (
	"github.com/tidemark-ai/coxswain/internal/core/domain"
)

// DefaultLatencyBudgetMs is the latency level treated as "fully spent"
// when the caller supplied no explicit budget with the outcome.
const DefaultLatencyBudgetMs = 2000.0

// Reward weights. Quality is renormalized away when the caller supplied
// no quality score, so the reward stays a convex combination either way.
const (
	rewardWeightSuccess = 0.5
	rewardWeightLatency = 0.3
	rewardWeightQuality = 0.2
)

// ComputeReward maps an observed outcome to the bandit's [0,1] reward:
//
//	reward = (0.5*success + 0.3*latencyVsBudget + 0.2*quality) / sumWeights
//
// where latencyVsBudget is 1 at zero latency falling linearly to 0 at the
// budget, and the quality term participates only when a score was
// supplied with the outcome.
func ComputeReward(outcome domain.Outcome) float64 {
	success := 0.0
	if outcome.Success {
		success = 1.0
	}

	latencyTerm := 0.5
	if outcome.LatencyMs > 0 {
		latencyTerm = clampReward(1.0 - outcome.LatencyMs/DefaultLatencyBudgetMs)
	}

	weighted := rewardWeightSuccess*success + rewardWeightLatency*latencyTerm
	totalWeight := rewardWeightSuccess + rewardWeightLatency

	if outcome.QualityScore != nil {
		weighted += rewardWeightQuality * clampReward(*outcome.QualityScore)
		totalWeight += rewardWeightQuality
	}

	return clampReward(weighted / totalWeight)
}
