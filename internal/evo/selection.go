package evo

import (
	"fmt"
	"sort"
)

// RouletteWheel performs fitness-proportional selection over a population.
// Members are ordered by ascending fitness and paired with their cumulative
// normalized fitness, so the last entry is always 1.
type RouletteWheel struct {
	order      []int
	cumulative []float64
}

func NewRouletteWheel(fitness []float64) (*RouletteWheel, error) {
	if len(fitness) == 0 {
		return nil, fmt.Errorf("roulette wheel requires at least one member")
	}
	order := make([]int, len(fitness))
	total := 0.0
	for i, f := range fitness {
		if f < 0 {
			return nil, fmt.Errorf("negative fitness at index %d: %f", i, f)
		}
		order[i] = i
		total += f
	}
	sort.SliceStable(order, func(i, j int) bool {
		return fitness[order[i]] < fitness[order[j]]
	})

	cumulative := make([]float64, len(order))
	acc := 0.0
	for i, idx := range order {
		if total > 0 {
			acc += fitness[idx] / total
		} else {
			acc += 1 / float64(len(order))
		}
		cumulative[i] = acc
	}
	cumulative[len(cumulative)-1] = 1
	return &RouletteWheel{order: order, cumulative: cumulative}, nil
}

// Pick returns the index of the first member whose cumulative normalized
// fitness is at least u.
func (w *RouletteWheel) Pick(u float64) int {
	i := sort.SearchFloat64s(w.cumulative, u)
	if i >= len(w.order) {
		i = len(w.order) - 1
	}
	return w.order[i]
}
