package bandit

import (
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/tidemark-ai/coxswain/internal/core/domain"
	"github.com/tidemark-ai/coxswain/internal/core/ports"
)

// GreedySelector always exploits the arm with the best observed mean,
// falling back to priors for unpulled arms. Useful for deployments that
// want pure score ordering with outcome feedback but no exploration.
type GreedySelector struct {
	bandits *xsync.Map[string, *taskBandit]
}

func NewGreedySelector() *GreedySelector {
	return &GreedySelector{
		bandits: xsync.NewMap[string, *taskBandit](),
	}
}

func (s *GreedySelector) Name() string {
	return StrategyGreedy
}

func (s *GreedySelector) banditFor(taskType domain.TaskType) *taskBandit {
	tb, _ := s.bandits.LoadOrCompute(taskType.String(), func() (*taskBandit, bool) {
		return &taskBandit{arms: make(map[string]*arm)}, false
	})
	return tb
}

func (s *GreedySelector) SelectArm(taskType domain.TaskType, candidates []ports.Candidate) (string, error) {
	if len(candidates) == 0 {
		return "", domain.ErrNoCandidates
	}

	tb := s.banditFor(taskType)
	tb.mu.Lock()
	defer tb.mu.Unlock()

	bestModel := candidates[0].Model
	bestMean := -1.0
	for _, c := range candidates {
		a := tb.ensureArm(c.Model, c.Provider, c.Prior)
		if m := a.mean(); m > bestMean {
			bestMean = m
			bestModel = c.Model
		}
	}

	return bestModel, nil
}

func (s *GreedySelector) Update(taskType domain.TaskType, model string, reward float64) {
	reward = clampReward(reward)

	tb := s.banditFor(taskType)
	tb.mu.Lock()
	defer tb.mu.Unlock()

	a := tb.ensureArm(model, "", NeutralPrior)
	a.pulls++
	a.rewardSum += reward
	a.updatedAt = time.Now()
}

func (s *GreedySelector) Checkpoints() []*domain.BanditCheckpoint {
	var out []*domain.BanditCheckpoint
	s.bandits.Range(func(taskType string, tb *taskBandit) bool {
		tb.mu.Lock()
		for model, a := range tb.arms {
			out = append(out, &domain.BanditCheckpoint{
				TaskType:  domain.TaskType(taskType),
				Model:     model,
				Provider:  a.provider,
				Pulls:     a.pulls,
				RewardSum: a.rewardSum,
				Prior:     a.prior,
				UpdatedAt: a.updatedAt,
			})
		}
		tb.mu.Unlock()
		return true
	})
	return out
}

func (s *GreedySelector) Restore(checkpoints []*domain.BanditCheckpoint) {
	for _, cp := range checkpoints {
		tb := s.banditFor(cp.TaskType)
		tb.mu.Lock()
		tb.arms[cp.Model] = &arm{
			provider:  cp.Provider,
			pulls:     cp.Pulls,
			rewardSum: cp.RewardSum,
			prior:     cp.Prior,
			updatedAt: cp.UpdatedAt,
		}
		tb.mu.Unlock()
	}
}
