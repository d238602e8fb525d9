package evo

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"drivernet/internal/model"
	"drivernet/internal/network"
)

// Population is one generation of chromosomes with their fitness.
type Population struct {
	members []*Chromosome
	fitness []float64
	wheel   *RouletteWheel
}

// NewPopulation scores members once; members must not be modified afterwards.
func NewPopulation(members []*Chromosome) (*Population, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("population requires at least one chromosome")
	}
	fitness := make([]float64, len(members))
	for i, c := range members {
		if c == nil || !c.Complete() {
			return nil, fmt.Errorf("chromosome %d is incomplete", i)
		}
		fitness[i] = c.Fitness()
	}
	wheel, err := NewRouletteWheel(fitness)
	if err != nil {
		return nil, err
	}
	return &Population{members: members, fitness: fitness, wheel: wheel}, nil
}

func (p *Population) Len() int {
	return len(p.members)
}

func (p *Population) Member(i int) *Chromosome {
	return p.members[i]
}

func (p *Population) MaxFitness() float64 {
	best := math.Inf(-1)
	for _, f := range p.fitness {
		best = max(best, f)
	}
	return best
}

// Select is fitness-proportional selection for u in [0, 1).
func (p *Population) Select(u float64) *Chromosome {
	return p.members[p.wheel.Pick(u)]
}

// fittest returns the best-fitness members, distinct by gene vector.
func (p *Population) fittest() []*Chromosome {
	best := p.MaxFitness()
	out := make([]*Chromosome, 0)
	for i, c := range p.members {
		if p.fitness[i] != best {
			continue
		}
		duplicate := false
		for _, kept := range out {
			if kept.Equal(c) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, c)
		}
	}
	return out
}

// Best returns the best-fitness members, distinct by control-node set, in
// population order.
func (p *Population) Best() []*Chromosome {
	best := p.MaxFitness()
	out := make([]*Chromosome, 0)
	for i, c := range p.members {
		if p.fitness[i] != best {
			continue
		}
		duplicate := false
		for _, kept := range out {
			if kept.SameControlSet(c) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, c)
		}
	}
	return out
}

// ControlPaths materializes every distinct best solution: for each gene the
// shortest driver→target path from the shared all-pairs result.
func (p *Population) ControlPaths(g *network.Graph, paths *network.ShortestPaths) []model.Solution {
	best := p.Best()
	out := make([]model.Solution, 0, len(best))
	for _, c := range best {
		solution := model.Solution{
			ControlNodes: make([]string, 0),
			Paths:        make(map[string]model.ControlPath, c.Len()),
		}
		for _, node := range c.ControlNodes() {
			solution.ControlNodes = append(solution.ControlNodes, g.Index.ID(node))
		}
		for row, driver := range c.genes {
			target := g.Targets[row]
			solution.Paths[g.Index.ID(target)] = g.ControlPath(paths, driver, target)
		}
		out = append(out, solution)
	}
	return out
}

type EvolverConfig struct {
	Space               *SearchSpace
	Crossover           CrossoverStrategy
	Mutation            MutationStrategy
	PopulationSize      int
	RandomGenes         int
	PercentageElite     float64
	PercentageRandom    float64
	ProbabilityMutation float64
	Workers             int
}

// Evolver builds the initial generation and derives each next one.
type Evolver struct {
	cfg EvolverConfig
}

func NewEvolver(cfg EvolverConfig) (*Evolver, error) {
	if cfg.Space == nil {
		return nil, fmt.Errorf("search space is required")
	}
	if cfg.Crossover == nil {
		return nil, fmt.Errorf("crossover strategy is required")
	}
	if cfg.Mutation == nil {
		return nil, fmt.Errorf("mutation strategy is required")
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.RandomGenes < 0 {
		return nil, fmt.Errorf("random genes per chromosome must be >= 0")
	}
	if cfg.PercentageElite < 0 || cfg.PercentageElite > 1 {
		return nil, fmt.Errorf("percentage elite must be in [0, 1]")
	}
	if cfg.PercentageRandom < 0 || cfg.PercentageRandom > 1 {
		return nil, fmt.Errorf("percentage random must be in [0, 1]")
	}
	if cfg.ProbabilityMutation < 0 || cfg.ProbabilityMutation > 1 {
		return nil, fmt.Errorf("mutation probability must be in [0, 1]")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = model.DefaultWorkers()
	}
	return &Evolver{cfg: cfg}, nil
}

// Initial builds the first generation. Each (chromosome, gene range) item
// runs on the worker pool with its own pre-drawn seed.
func (e *Evolver) Initial(ctx context.Context, rng *rand.Rand) (*Population, error) {
	genes := e.cfg.Space.Genes()
	members := make([]*Chromosome, e.cfg.PopulationSize)
	for i := range members {
		members[i] = NewChromosome(genes)
	}
	items := initialWorkItems(len(members), genes, e.cfg.RandomGenes)
	seeds := DrawSeeds(rng, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			members[item.chromosome].Initialize(e.cfg.Space, e.cfg.Mutation, item.genes.Low, item.genes.High, seeds.Rand(i))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewPopulation(members)
}

// Next derives the following generation from current: elites, then random
// immigrants, then offspring of roulette-selected parents.
func (e *Evolver) Next(ctx context.Context, current *Population, rng *rand.Rand) (*Population, error) {
	size := e.cfg.PopulationSize
	next := make([]*Chromosome, 0, size)

	elites := current.fittest()
	rng.Shuffle(len(elites), func(i, j int) { elites[i], elites[j] = elites[j], elites[i] })
	eliteCount := min(int(math.Floor(e.cfg.PercentageElite*float64(size))), len(elites))
	next = append(next, elites[:eliteCount]...)

	free := size - len(next)
	immigrants := min(int(math.Floor(e.cfg.PercentageRandom*float64(size))), free)
	offspring := free - immigrants
	seeds := DrawSeeds(rng, immigrants+offspring)

	produced := make([]*Chromosome, immigrants+offspring)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i := range produced {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			taskRNG := seeds.Rand(i)
			if i < immigrants {
				produced[i] = e.immigrant(taskRNG)
			} else {
				produced[i] = e.offspring(current, taskRNG)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	next = append(next, produced...)
	return NewPopulation(next)
}

// immigrant is a fresh chromosome. A random wrapping window of RandomGenes
// genes is drawn first and the rest of the ring after it.
func (e *Evolver) immigrant(rng *rand.Rand) *Chromosome {
	genes := e.cfg.Space.Genes()
	child := NewChromosome(genes)
	start := rng.Intn(genes)
	window := e.cfg.RandomGenes
	ranges := WrappedRange(start, window, genes)
	if window > 0 && window < genes {
		ranges = append(ranges, WrappedRange(start+window, genes-window, genes)...)
	}
	for _, r := range ranges {
		child.Initialize(e.cfg.Space, e.cfg.Mutation, r.Low, r.High, rng)
	}
	return child
}

func (e *Evolver) offspring(current *Population, rng *rand.Rand) *Chromosome {
	a := current.Select(rng.Float64())
	b := current.Select(rng.Float64())
	child := a.Crossover(e.cfg.Space, b, e.cfg.Crossover, rng)
	return child.Mutate(e.cfg.Space, e.cfg.Mutation, e.cfg.ProbabilityMutation, rng)
}
