package bandit

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/tidemark-ai/coxswain/internal/core/domain"
	"github.com/tidemark-ai/coxswain/internal/core/ports"
)

// NeutralPrior seeds arms that were auto-registered via outcome feedback
// before any scoring pass saw them.
const NeutralPrior = 0.5

// UCB1Selector keeps one independent bandit per task type, created
// lazily. Selection follows UCB1 over observed rewards, with the
// scorer-derived prior ordering untried arms.
type UCB1Selector struct {
	bandits     *xsync.Map[string, *taskBandit]
	rng         *rand.Rand
	rngMu       sync.Mutex
	exploration float64
}

// taskBandit is the hot-mutation structure for a single task type. One
// mutex per task type, not one global lock.
type taskBandit struct {
	mu   sync.Mutex
	arms map[string]*arm
}

type arm struct {
	provider  string
	pulls     int64
	rewardSum float64
	prior     float64
	updatedAt time.Time
}

func (a *arm) mean() float64 {
	if a.pulls == 0 {
		return a.prior
	}
	return a.rewardSum / float64(a.pulls)
}

// NewUCB1Selector builds a selector with the given exploration factor.
// A zero seed falls back to the clock; tests pass a fixed seed for
// reproducible selection.
func NewUCB1Selector(exploration float64, seed int64) *UCB1Selector {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &UCB1Selector{
		bandits:     xsync.NewMap[string, *taskBandit](),
		rng:         rand.New(rand.NewSource(seed)),
		exploration: exploration,
	}
}

func (s *UCB1Selector) Name() string {
	return StrategyUCB1
}

func (s *UCB1Selector) banditFor(taskType domain.TaskType) *taskBandit {
	tb, _ := s.bandits.LoadOrCompute(taskType.String(), func() (*taskBandit, bool) {
		return &taskBandit{arms: make(map[string]*arm)}, false
	})
	return tb
}

// SelectArm picks one model from candidates. Untried arms are explored
// first, highest prior winning; otherwise the arm with the best upper
// confidence bound is exploited. Never returns a model outside candidates.
func (s *UCB1Selector) SelectArm(taskType domain.TaskType, candidates []ports.Candidate) (string, error) {
	if len(candidates) == 0 {
		return "", domain.ErrNoCandidates
	}

	tb := s.banditFor(taskType)
	tb.mu.Lock()
	defer tb.mu.Unlock()

	var totalPulls int64
	for _, c := range candidates {
		a := tb.ensureArm(c.Model, c.Provider, c.Prior)
		totalPulls += a.pulls
	}

	// Exploration phase: pull every arm once before trusting the bounds.
	untried := make([]ports.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if tb.arms[c.Model].pulls == 0 {
			untried = append(untried, c)
		}
	}
	if len(untried) > 0 {
		best := untried[0]
		tied := 1
		for _, c := range untried[1:] {
			switch {
			case c.Prior > best.Prior:
				best = c
				tied = 1
			case c.Prior == best.Prior:
				tied++
				if s.coinFlip(tied) {
					best = c
				}
			}
		}
		return best.Model, nil
	}

	lnTotal := math.Log(float64(totalPulls))
	bestModel := candidates[0].Model
	bestBound := math.Inf(-1)
	for _, c := range candidates {
		a := tb.arms[c.Model]
		bound := a.mean() + s.exploration*math.Sqrt(lnTotal/float64(a.pulls))
		if bound > bestBound {
			bestBound = bound
			bestModel = c.Model
		}
	}

	return bestModel, nil
}

// coinFlip implements reservoir sampling over tied arms so determinism
// holds for a fixed seed.
func (s *UCB1Selector) coinFlip(tied int) bool {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(tied) == 0
}

// Update folds a clamped reward into the arm posterior, auto-creating
// missing arms with a neutral prior rather than rejecting the update.
func (s *UCB1Selector) Update(taskType domain.TaskType, model string, reward float64) {
	reward = clampReward(reward)

	tb := s.banditFor(taskType)
	tb.mu.Lock()
	defer tb.mu.Unlock()

	a := tb.ensureArm(model, "", NeutralPrior)
	a.pulls++
	a.rewardSum += reward
	a.updatedAt = time.Now()
}

// ensureArm must be called with tb.mu held.
func (tb *taskBandit) ensureArm(model, provider string, prior float64) *arm {
	if a, ok := tb.arms[model]; ok {
		if a.provider == "" && provider != "" {
			a.provider = provider
		}
		return a
	}
	a := &arm{provider: provider, prior: prior, updatedAt: time.Now()}
	tb.arms[model] = a
	return a
}

// Checkpoints exports the full posterior state for warm restarts.
func (s *UCB1Selector) Checkpoints() []*domain.BanditCheckpoint {
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

// Restore replays persisted checkpoints into fresh bandit state.
func (s *UCB1Selector) Restore(checkpoints []*domain.BanditCheckpoint) {
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

func clampReward(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}
