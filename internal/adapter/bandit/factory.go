package bandit

import (
	"fmt"
	"sync"

	"github.com/tidemark-ai/coxswain/internal/core/ports"
)

const StrategyUCB1 = "ucb1"
const StrategyGreedy = "greedy"

// Options carry the tunables shared by all selection strategies.
type Options struct {
	Exploration float64
	Seed        int64
}

type Factory struct {
	creators map[string]func(Options) ports.ModelSelector
	mu       sync.RWMutex
}

func NewFactory() *Factory {
	factory := &Factory{
		creators: make(map[string]func(Options) ports.ModelSelector),
	}

	factory.Register(StrategyUCB1, func(opts Options) ports.ModelSelector {
		return NewUCB1Selector(opts.Exploration, opts.Seed)
	})
	factory.Register(StrategyGreedy, func(opts Options) ports.ModelSelector {
		return NewGreedySelector()
	})

	return factory
}

func (f *Factory) Register(name string, creator func(Options) ports.ModelSelector) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[name] = creator
}

func (f *Factory) Create(name string, opts Options) (ports.ModelSelector, error) {
	f.mu.RLock()
	creator, exists := f.creators[name]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown bandit strategy: %s", name)
	}

	return creator(opts), nil
}

func (f *Factory) GetAvailableStrategies() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	strategies := make([]string, 0, len(f.creators))
	for name := range f.creators {
		strategies = append(strategies, name)
	}
	return strategies
}
