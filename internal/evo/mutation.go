package evo

import (
	"math/rand"

	"drivernet/internal/model"
)

// WeightedAncestorMutation samples an ancestor proportionally to its
// reachability weight. With Preference set, preferred ancestors weigh double.
type WeightedAncestorMutation struct {
	Preference bool
}

func (m WeightedAncestorMutation) Name() string {
	if m.Preference {
		return model.MutationWeightedRandomAncestorWithPreference
	}
	return model.MutationWeightedRandomAncestor
}

func (m WeightedAncestorMutation) Sample(space *SearchSpace, row int, rng *rand.Rand) int {
	ancestors := space.Ancestors(row)
	weights := space.Weights(row)

	total := 0.0
	for i, node := range ancestors {
		total += m.weight(space, node, weights[i])
	}
	if total <= 0 {
		return ancestors[rng.Intn(len(ancestors))]
	}
	pick := rng.Float64() * total
	acc := 0.0
	for i, node := range ancestors {
		acc += m.weight(space, node, weights[i])
		if pick < acc {
			return node
		}
	}
	return ancestors[len(ancestors)-1]
}

func (m WeightedAncestorMutation) weight(space *SearchSpace, node int, w float64) float64 {
	if m.Preference && space.IsPreferred(node) {
		return 2 * w
	}
	return w
}

// RandomAncestorMutation samples an ancestor uniformly. With Preference set the
// draw is restricted to preferred ancestors whenever the target has any.
type RandomAncestorMutation struct {
	Preference bool
}

func (m RandomAncestorMutation) Name() string {
	if m.Preference {
		return model.MutationRandomAncestorWithPreference
	}
	return model.MutationRandomAncestor
}

func (m RandomAncestorMutation) Sample(space *SearchSpace, row int, rng *rand.Rand) int {
	if m.Preference {
		if preferred := space.PreferredAncestors(row); len(preferred) > 0 {
			return preferred[rng.Intn(len(preferred))]
		}
	}
	ancestors := space.Ancestors(row)
	return ancestors[rng.Intn(len(ancestors))]
}
