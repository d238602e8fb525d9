package evo

import "math/rand"

// CrossoverStrategy combines two parents into a new chromosome.
type CrossoverStrategy interface {
	Name() string
	Cross(space *SearchSpace, a, b *Chromosome, rng *rand.Rand) *Chromosome
}

// MutationStrategy draws a driver for one target position. It is used both
// to resample genes during mutation and to initialize fresh genes.
type MutationStrategy interface {
	Name() string
	Sample(space *SearchSpace, row int, rng *rand.Rand) int
}
