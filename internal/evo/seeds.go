package evo

import "math/rand"

// SeedTable holds one pre-drawn seed per parallel task. Task i always gets
// seed i, so results do not depend on which worker runs it or when.
type SeedTable []int64

// DrawSeeds consumes n values from the run generator.
func DrawSeeds(rng *rand.Rand, n int) SeedTable {
	seeds := make(SeedTable, n)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}
	return seeds
}

// Rand returns a private generator for task i.
func (s SeedTable) Rand(i int) *rand.Rand {
	return rand.New(rand.NewSource(s[i]))
}
