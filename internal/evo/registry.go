package evo

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrStrategyExists   = errors.New("strategy already registered")
	ErrUnknownCrossover = errors.New("unknown crossover type")
	ErrUnknownMutation  = errors.New("unknown mutation type")
)

var strategyRegistry = struct {
	mu        sync.RWMutex
	crossover map[string]CrossoverStrategy
	mutation  map[string]MutationStrategy
}{
	crossover: make(map[string]CrossoverStrategy),
	mutation:  make(map[string]MutationStrategy),
}

func init() {
	for _, s := range []CrossoverStrategy{
		WeightedRandomCrossover{},
		WeightedRandomCrossover{Preference: true},
		DominantCrossover{},
		DominantCrossover{Preference: true},
	} {
		if err := RegisterCrossover(s); err != nil {
			panic(err)
		}
	}
	for _, s := range []MutationStrategy{
		WeightedAncestorMutation{},
		WeightedAncestorMutation{Preference: true},
		RandomAncestorMutation{},
		RandomAncestorMutation{Preference: true},
	} {
		if err := RegisterMutation(s); err != nil {
			panic(err)
		}
	}
}

// RegisterCrossover makes a crossover strategy resolvable by its name.
func RegisterCrossover(s CrossoverStrategy) error {
	if s == nil {
		return errors.New("crossover strategy is required")
	}
	if s.Name() == "" {
		return errors.New("crossover strategy name is required")
	}
	strategyRegistry.mu.Lock()
	defer strategyRegistry.mu.Unlock()

	if _, exists := strategyRegistry.crossover[s.Name()]; exists {
		return fmt.Errorf("%w: crossover %s", ErrStrategyExists, s.Name())
	}
	strategyRegistry.crossover[s.Name()] = s
	return nil
}

// RegisterMutation makes a mutation strategy resolvable by its name.
func RegisterMutation(s MutationStrategy) error {
	if s == nil {
		return errors.New("mutation strategy is required")
	}
	if s.Name() == "" {
		return errors.New("mutation strategy name is required")
	}
	strategyRegistry.mu.Lock()
	defer strategyRegistry.mu.Unlock()

	if _, exists := strategyRegistry.mutation[s.Name()]; exists {
		return fmt.Errorf("%w: mutation %s", ErrStrategyExists, s.Name())
	}
	strategyRegistry.mutation[s.Name()] = s
	return nil
}

// ResolveCrossover is called once per run; the result is used for every generation.
func ResolveCrossover(name string) (CrossoverStrategy, error) {
	strategyRegistry.mu.RLock()
	defer strategyRegistry.mu.RUnlock()

	s, ok := strategyRegistry.crossover[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCrossover, name)
	}
	return s, nil
}

func ResolveMutation(name string) (MutationStrategy, error) {
	strategyRegistry.mu.RLock()
	defer strategyRegistry.mu.RUnlock()

	s, ok := strategyRegistry.mutation[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMutation, name)
	}
	return s, nil
}

func ListCrossovers() []string {
	strategyRegistry.mu.RLock()
	defer strategyRegistry.mu.RUnlock()

	names := make([]string, 0, len(strategyRegistry.crossover))
	for name := range strategyRegistry.crossover {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListMutations() []string {
	strategyRegistry.mu.RLock()
	defer strategyRegistry.mu.RUnlock()

	names := make([]string, 0, len(strategyRegistry.mutation))
	for name := range strategyRegistry.mutation {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
