package evo

import (
	"math/rand"

	"drivernet/internal/model"
)

// WeightedRandomCrossover takes each gene from one parent with probability
// proportional to parent fitness times the number of targets that parent's
// driver controls. With Preference set, preferred drivers weigh double.
type WeightedRandomCrossover struct {
	Preference bool
}

func (c WeightedRandomCrossover) Name() string {
	if c.Preference {
		return model.CrossoverWeightedRandomWithPreference
	}
	return model.CrossoverWeightedRandom
}

func (c WeightedRandomCrossover) Cross(space *SearchSpace, a, b *Chromosome, rng *rand.Rand) *Chromosome {
	fa, fb := a.Fitness(), b.Fitness()
	covA, covB := a.coverage(), b.coverage()
	child := NewChromosome(a.Len())
	for row := range child.genes {
		ga, gb := a.genes[row], b.genes[row]
		if ga == gb {
			child.genes[row] = ga
			continue
		}
		wa := fa * float64(covA[ga])
		wb := fb * float64(covB[gb])
		if c.Preference {
			if space.IsPreferred(ga) {
				wa *= 2
			}
			if space.IsPreferred(gb) {
				wb *= 2
			}
		}
		if rng.Float64()*(wa+wb) < wa {
			child.genes[row] = ga
		} else {
			child.genes[row] = gb
		}
	}
	return child
}

// DominantCrossover takes every gene from the fitter parent. Equal fitness
// falls back to the driver covering more targets in its own parent, then to a.
// With Preference set, a preferred driver wins whenever only one of the two
// candidates is preferred.
type DominantCrossover struct {
	Preference bool
}

func (c DominantCrossover) Name() string {
	if c.Preference {
		return model.CrossoverDominantWithPreference
	}
	return model.CrossoverDominant
}

func (c DominantCrossover) Cross(space *SearchSpace, a, b *Chromosome, _ *rand.Rand) *Chromosome {
	fa, fb := a.Fitness(), b.Fitness()
	covA, covB := a.coverage(), b.coverage()
	child := NewChromosome(a.Len())
	for row := range child.genes {
		ga, gb := a.genes[row], b.genes[row]
		if c.Preference {
			pa, pb := space.IsPreferred(ga), space.IsPreferred(gb)
			if pa && !pb {
				child.genes[row] = ga
				continue
			}
			if pb && !pa {
				child.genes[row] = gb
				continue
			}
		}
		switch {
		case fa > fb:
			child.genes[row] = ga
		case fb > fa:
			child.genes[row] = gb
		case covB[gb] > covA[ga]:
			child.genes[row] = gb
		default:
			child.genes[row] = ga
		}
	}
	return child
}
