package model

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidParameters = errors.New("invalid parameters")

// Strategy names accepted by CrossoverType and MutationType.
const (
	CrossoverWeightedRandom               = "weighted-random"
	CrossoverWeightedRandomWithPreference = "weighted-random-with-preference"
	CrossoverDominant                     = "dominant"
	CrossoverDominantWithPreference       = "dominant-with-preference"

	MutationWeightedRandomAncestor               = "weighted-random-ancestor"
	MutationWeightedRandomAncestorWithPreference = "weighted-random-ancestor-with-preference"
	MutationRandomAncestor                       = "random-ancestor"
	MutationRandomAncestorWithPreference         = "random-ancestor-with-preference"
)

// Parameters configures a single optimization run.
type Parameters struct {
	RandomSeed                          int64   `json:"random_seed" yaml:"random_seed"`
	MaximumPathLength                   int     `json:"maximum_path_length" yaml:"maximum_path_length" validate:"gte=0,lte=25"`
	PopulationSize                      int     `json:"population_size" yaml:"population_size" validate:"gte=2,lte=150"`
	RandomGenesPerChromosome            int     `json:"random_genes_per_chromosome" yaml:"random_genes_per_chromosome" validate:"gte=0,lte=30"`
	PercentageRandom                    float64 `json:"percentage_random" yaml:"percentage_random" validate:"gte=0,lte=1"`
	PercentageElite                     float64 `json:"percentage_elite" yaml:"percentage_elite" validate:"gte=0,lte=1"`
	ProbabilityMutation                 float64 `json:"probability_mutation" yaml:"probability_mutation" validate:"gte=0,lte=1"`
	CrossoverType                       string  `json:"crossover_type" yaml:"crossover_type" validate:"oneof=weighted-random weighted-random-with-preference dominant dominant-with-preference"`
	MutationType                        string  `json:"mutation_type" yaml:"mutation_type" validate:"oneof=weighted-random-ancestor weighted-random-ancestor-with-preference random-ancestor random-ancestor-with-preference"`
	MaximumIterations                   int     `json:"maximum_iterations" yaml:"maximum_iterations" validate:"gte=1"`
	MaximumIterationsWithoutImprovement int     `json:"maximum_iterations_without_improvement" yaml:"maximum_iterations_without_improvement" validate:"gte=1"`
	Workers                             int     `json:"workers,omitempty" yaml:"workers,omitempty" validate:"gte=0"`
}

// DefaultParameters returns the parameter set used when a job does not override anything.
func DefaultParameters() Parameters {
	return Parameters{
		RandomSeed:                          1,
		MaximumPathLength:                   3,
		PopulationSize:                      80,
		RandomGenesPerChromosome:            25,
		PercentageRandom:                    0.25,
		PercentageElite:                     0.25,
		ProbabilityMutation:                 0.01,
		CrossoverType:                       CrossoverWeightedRandom,
		MutationType:                        MutationWeightedRandomAncestor,
		MaximumIterations:                   100,
		MaximumIterationsWithoutImprovement: 25,
	}
}

// DefaultWorkers bounds generation parallelism to roughly half of the available processors.
func DefaultWorkers() int {
	return (runtime.NumCPU()-1)/2 + 1
}

// WorkerCount resolves the configured worker bound.
func (p Parameters) WorkerCount() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return DefaultWorkers()
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func parameterValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks every parameter range and the combined elite/random share.
func (p Parameters) Validate() error {
	if err := parameterValidator().Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.ActualTag(), fe.Value()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidParameters, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	if p.PercentageElite+p.PercentageRandom > 1 {
		return fmt.Errorf("%w: percentage elite + percentage random must be <= 1", ErrInvalidParameters)
	}
	return nil
}
