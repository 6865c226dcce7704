package leaderboard

import (
	"time"

	"github.com/tidemark-ai/coxswain/internal/adapter/scoring"
	"github.com/tidemark-ai/coxswain/internal/core/domain"
)

// Merge combines the three ranking sources into fresh performance rows.
// A model appearing in any single source still gets a valid row with
// neutral values elsewhere. Alias normalization happens here, at merge
// time, so cache lookups stay a direct map access.
//
// Telemetry-learned fields (latency, cost, success rate) survive the
// merge: they come from production outcomes, not leaderboards, so the
// previous row's values carry over.
func Merge(
	arena map[string]float64,
	mteb map[string]float64,
	internal map[string]map[string]float64,
	previous map[string]*domain.ModelPerformance,
) map[string]*domain.ModelPerformance {
	now := time.Now()
	merged := make(map[string]*domain.ModelPerformance)

	row := func(model string) *domain.ModelPerformance {
		if r, ok := merged[model]; ok {
			return r
		}
		r := &domain.ModelPerformance{
			Model:       model,
			SuccessRate: 1.0,
			LastUpdated: now,
		}
		if prev, ok := previous[model]; ok {
			r.Family = prev.Family
			r.AvgLatencyMs = prev.AvgLatencyMs
			r.CostPer1kTokens = prev.CostPer1kTokens
			r.SuccessRate = prev.SuccessRate
		}
		merged[model] = r
		return r
	}

	for name, elo := range arena {
		canonical, ok := scoring.NormalizeModelName(name)
		if !ok {
			canonical = name
		}
		r := row(canonical)
		r.Family = domain.FamilyChat
		r.ArenaElo = domain.Float64Ptr(elo)
	}

	for name, score := range mteb {
		canonical, ok := scoring.NormalizeEmbeddingModelName(name)
		if !ok {
			canonical = name
		}
		r := row(canonical)
		r.Family = domain.FamilyEmbed
		r.MTEBScore = domain.Float64Ptr(score)
	}

	for name, metrics := range internal {
		if len(metrics) == 0 {
			continue
		}
		canonical, ok := scoring.NormalizeAnyModelName(name)
		if !ok {
			canonical = name
		}

		var sum float64
		for _, v := range metrics {
			sum += v
		}
		r := row(canonical)
		if r.Family == "" {
			r.Family = domain.FamilyChat
		}
		r.InternalScore = domain.Float64Ptr(sum / float64(len(metrics)))
	}

	// Models known only from outcome feedback keep their rows even when
	// no leaderboard lists them.
	for name, prev := range previous {
		if _, ok := merged[name]; !ok {
			merged[name] = prev
		}
	}

	return merged
}
