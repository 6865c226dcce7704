package bandit

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemark-ai/coxswain/internal/core/domain"
	"github.com/tidemark-ai/coxswain/internal/core/ports"
)

const testSeed = 42

func testCandidates() []ports.Candidate {
	return []ports.Candidate{
		{Model: "gpt-4o", Prior: 0.95},
		{Model: "claude-3-5-sonnet", Prior: 0.90},
		{Model: "llama-3.1-70b", Prior: 0.60},
	}
}

func TestUCB1EmptyCandidates(t *testing.T) {
	s := NewUCB1Selector(1.4, testSeed)
	_, err := s.SelectArm(domain.TaskChat, nil)
	assert.ErrorIs(t, err, domain.ErrNoCandidates)
}

func TestUCB1NeverSelectsOutsideCandidates(t *testing.T) {
	s := NewUCB1Selector(1.4, testSeed)
	candidates := testCandidates()

	allowed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		allowed[c.Model] = true
	}

	for i := 0; i < 200; i++ {
		model, err := s.SelectArm(domain.TaskChat, candidates)
		require.NoError(t, err)
		assert.True(t, allowed[model], "selected model %q not in candidate set", model)
		s.Update(domain.TaskChat, model, 0.5)
	}
}

func TestUCB1ConcurrentSelectAndUpdate(t *testing.T) {
	s := NewUCB1Selector(1.4, testSeed)
	candidates := testCandidates()
	taskTypes := domain.AllTaskTypes()

	allowed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		allowed[c.Model] = true
	}

	const workers = 8
	const pullsPerWorker = 250

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			taskType := taskTypes[w%len(taskTypes)]
			for i := 0; i < pullsPerWorker; i++ {
				model, err := s.SelectArm(taskType, candidates)
				if err != nil {
					errCh <- err
					return
				}
				if !allowed[model] {
					errCh <- fmt.Errorf("selected model %q not in candidate set", model)
					return
				}
				s.Update(taskType, model, 0.5)
			}
		}(w)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	// Every pull landed on exactly one arm of the worker's own task type.
	pulls := make(map[domain.TaskType]int64)
	for _, cp := range s.Checkpoints() {
		pulls[cp.TaskType] += cp.Pulls
	}
	require.Len(t, pulls, len(taskTypes))
	for _, taskType := range taskTypes {
		assert.Equal(t, int64(2*pullsPerWorker), pulls[taskType],
			"lost or duplicated updates for %s", taskType)
	}
}

func TestUCB1ExploresUntriedArmsFirst(t *testing.T) {
	s := NewUCB1Selector(1.4, testSeed)
	candidates := testCandidates()

	seen := make(map[string]bool)
	for i := 0; i < len(candidates); i++ {
		model, err := s.SelectArm(domain.TaskChat, candidates)
		require.NoError(t, err)
		assert.False(t, seen[model], "arm %q pulled twice before all arms tried", model)
		seen[model] = true
		s.Update(domain.TaskChat, model, 0.5)
	}
	assert.Len(t, seen, len(candidates))
}

func TestUCB1FirstPullFollowsPrior(t *testing.T) {
	s := NewUCB1Selector(1.4, testSeed)

	model, err := s.SelectArm(domain.TaskChat, testCandidates())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", model, "first pull should take the highest prior")
}

func TestUCB1ConvergesOnRewardedArm(t *testing.T) {
	s := NewUCB1Selector(1.4, testSeed)
	candidates := testCandidates()

	wins := make(map[string]int)
	for i := 0; i < 500; i++ {
		model, err := s.SelectArm(domain.TaskChat, candidates)
		require.NoError(t, err)
		wins[model]++

		reward := 0.2
		if model == "llama-3.1-70b" {
			reward = 0.95
		}
		s.Update(domain.TaskChat, model, reward)
	}

	assert.Greater(t, wins["llama-3.1-70b"], wins["gpt-4o"],
		"the consistently rewarded arm should dominate despite its low prior")
	assert.Greater(t, wins["llama-3.1-70b"], wins["claude-3-5-sonnet"])
}

func TestUCB1TaskTypeIsolation(t *testing.T) {
	s := NewUCB1Selector(1.4, testSeed)
	candidates := testCandidates()

	for i := 0; i < 50; i++ {
		model, err := s.SelectArm(domain.TaskChat, candidates)
		require.NoError(t, err)
		reward := 0.1
		if model == "llama-3.1-70b" {
			reward = 0.9
		}
		s.Update(domain.TaskChat, model, reward)
	}

	// The reasoning bandit has no pulls yet, so it starts from priors.
	model, err := s.SelectArm(domain.TaskReasoning, candidates)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", model)
}

func TestUCB1DeterministicWithFixedSeed(t *testing.T) {
	run := func() []string {
		s := NewUCB1Selector(1.4, testSeed)
		candidates := []ports.Candidate{
			{Model: "a", Prior: 0.5},
			{Model: "b", Prior: 0.5},
			{Model: "c", Prior: 0.5},
		}
		var picks []string
		for i := 0; i < 50; i++ {
			model, err := s.SelectArm(domain.TaskChat, candidates)
			require.NoError(t, err)
			picks = append(picks, model)
			s.Update(domain.TaskChat, model, 0.5)
		}
		return picks
	}

	assert.Equal(t, run(), run())
}

func TestUCB1UpdateAutoCreatesArm(t *testing.T) {
	s := NewUCB1Selector(1.4, testSeed)
	s.Update(domain.TaskChat, "surprise-model", 0.8)

	checkpoints := s.Checkpoints()
	require.Len(t, checkpoints, 1)
	cp := checkpoints[0]
	assert.Equal(t, "surprise-model", cp.Model)
	assert.Equal(t, int64(1), cp.Pulls)
	assert.InDelta(t, 0.8, cp.RewardSum, 1e-9)
	assert.InDelta(t, NeutralPrior, cp.Prior, 1e-9)
}

func TestUCB1UpdateClampsReward(t *testing.T) {
	s := NewUCB1Selector(1.4, testSeed)
	s.Update(domain.TaskChat, "m", 5.0)
	s.Update(domain.TaskChat, "m", -3.0)

	checkpoints := s.Checkpoints()
	require.Len(t, checkpoints, 1)
	assert.Equal(t, int64(2), checkpoints[0].Pulls)
	assert.InDelta(t, 1.0, checkpoints[0].RewardSum, 1e-9)
}

func TestUCB1CheckpointRoundTrip(t *testing.T) {
	s := NewUCB1Selector(1.4, testSeed)
	candidates := testCandidates()
	for i := 0; i < 30; i++ {
		model, err := s.SelectArm(domain.TaskChat, candidates)
		require.NoError(t, err)
		s.Update(domain.TaskChat, model, 0.7)
	}
	s.Update(domain.TaskEmbed, "text-embedding-3-large", 0.9)

	restored := NewUCB1Selector(1.4, testSeed)
	restored.Restore(s.Checkpoints())

	original := s.Checkpoints()
	replayed := restored.Checkpoints()
	assert.ElementsMatch(t, original, replayed)
}

func TestGreedySelectorExploitsBestMean(t *testing.T) {
	s := NewGreedySelector()
	candidates := testCandidates()

	model, err := s.SelectArm(domain.TaskChat, candidates)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", model, "unpulled arms fall back to priors")

	for i := 0; i < 10; i++ {
		s.Update(domain.TaskChat, "gpt-4o", 0.1)
		s.Update(domain.TaskChat, "llama-3.1-70b", 0.9)
	}

	model, err = s.SelectArm(domain.TaskChat, candidates)
	require.NoError(t, err)
	assert.Equal(t, "llama-3.1-70b", model)
}

func TestGreedyEmptyCandidates(t *testing.T) {
	s := NewGreedySelector()
	_, err := s.SelectArm(domain.TaskChat, nil)
	assert.ErrorIs(t, err, domain.ErrNoCandidates)
}

func TestFactory(t *testing.T) {
	factory := NewFactory()

	t.Run("creates registered strategies", func(t *testing.T) {
		for _, name := range []string{StrategyUCB1, StrategyGreedy} {
			selector, err := factory.Create(name, Options{Exploration: 1.4, Seed: testSeed})
			require.NoError(t, err)
			assert.Equal(t, name, selector.Name())
		}
	})

	t.Run("unknown strategy errors with available list", func(t *testing.T) {
		_, err := factory.Create("thompson", Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown bandit strategy")
	})

	t.Run("lists strategies", func(t *testing.T) {
		assert.ElementsMatch(t, []string{StrategyUCB1, StrategyGreedy}, factory.GetAvailableStrategies())
	})
}
