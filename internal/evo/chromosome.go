package evo

import (
	"math/rand"
	"slices"
)

const unsetGene = -1

// Chromosome assigns one driver node to every target. Genes are indexed by
// target position; values are node indices. Operators never modify a
// chromosome once it has been handed to a Population.
type Chromosome struct {
	genes []int
}

// NewChromosome returns a chromosome with every gene unset.
func NewChromosome(genes int) *Chromosome {
	c := &Chromosome{genes: make([]int, genes)}
	for i := range c.genes {
		c.genes[i] = unsetGene
	}
	return c
}

// ChromosomeFromGenes copies genes into a new chromosome.
func ChromosomeFromGenes(genes []int) *Chromosome {
	return &Chromosome{genes: slices.Clone(genes)}
}

func (c *Chromosome) clone() *Chromosome {
	return &Chromosome{genes: slices.Clone(c.genes)}
}

// Genes returns a copy of the gene vector.
func (c *Chromosome) Genes() []int {
	return slices.Clone(c.genes)
}

func (c *Chromosome) Gene(row int) int {
	return c.genes[row]
}

func (c *Chromosome) Len() int {
	return len(c.genes)
}

// Initialize draws the genes of target positions in [low, high) from each
// target's ancestor set through sampler. Concurrent calls on disjoint ranges
// of the same chromosome are safe.
func (c *Chromosome) Initialize(space *SearchSpace, sampler MutationStrategy, low, high int, rng *rand.Rand) {
	low = max(low, 0)
	high = min(high, len(c.genes))
	for row := low; row < high; row++ {
		c.genes[row] = sampler.Sample(space, row, rng)
	}
}

// Complete reports whether every gene holds a driver.
func (c *Chromosome) Complete() bool {
	return !slices.Contains(c.genes, unsetGene)
}

// ControlNodes returns the distinct drivers in ascending order.
func (c *Chromosome) ControlNodes() []int {
	out := slices.Clone(c.genes)
	slices.Sort(out)
	return slices.Compact(out)
}

// Fitness is (T − D + 1) / T for T genes and D distinct drivers: 1 when a
// single driver controls every target, 1/T when every driver is different.
func (c *Chromosome) Fitness() float64 {
	t := len(c.genes)
	if t == 0 {
		return 0
	}
	d := len(c.ControlNodes())
	return float64(t-d+1) / float64(t)
}

// Equal reports whether both chromosomes carry the same gene vector.
func (c *Chromosome) Equal(other *Chromosome) bool {
	return slices.Equal(c.genes, other.genes)
}

// SameControlSet reports whether both chromosomes use the same distinct drivers,
// regardless of which target each driver is assigned to.
func (c *Chromosome) SameControlSet(other *Chromosome) bool {
	return slices.Equal(c.ControlNodes(), other.ControlNodes())
}

// Crossover builds a child gene by gene from c and other; neither parent changes.
func (c *Chromosome) Crossover(space *SearchSpace, other *Chromosome, strategy CrossoverStrategy, rng *rand.Rand) *Chromosome {
	return strategy.Cross(space, c, other, rng)
}

// Mutate returns a copy where every gene is independently resampled with the
// given probability.
func (c *Chromosome) Mutate(space *SearchSpace, strategy MutationStrategy, probability float64, rng *rand.Rand) *Chromosome {
	child := c.clone()
	for row := range child.genes {
		if rng.Float64() < probability {
			child.genes[row] = strategy.Sample(space, row, rng)
		}
	}
	return child
}

// coverage counts how many targets each driver controls.
func (c *Chromosome) coverage() map[int]int {
	out := make(map[int]int, len(c.genes))
	for _, driver := range c.genes {
		out[driver]++
	}
	return out
}
