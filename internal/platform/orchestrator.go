package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"drivernet/internal/evo"
	"drivernet/internal/model"
	"drivernet/internal/network"
	"drivernet/internal/telemetry"
)

// JobStateProvider is polled between generations to learn whether a job was
// deleted or asked to stop.
type JobStateProvider interface {
	Status(ctx context.Context, id string) (model.JobStatus, error)
	IsLive(ctx context.Context, id string) (bool, error)
}

// JobReporter receives the state changes a run produces.
type JobReporter interface {
	Start(ctx context.Context, id string) error
	ReportProgress(ctx context.Context, id string, progress model.Progress) error
	Finish(ctx context.Context, id string, outcome model.Outcome) error
}

type OrchestratorConfig struct {
	State    JobStateProvider
	Reporter JobReporter
	Metrics  *telemetry.Metrics
	Logger   *slog.Logger
}

// Orchestrator drives one optimization run per Run call from validation to
// the final control paths.
type Orchestrator struct {
	state    JobStateProvider
	reporter JobReporter
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.State == nil {
		return nil, fmt.Errorf("job state provider is required")
	}
	if cfg.Reporter == nil {
		return nil, fmt.Errorf("job reporter is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		state:    cfg.State,
		reporter: cfg.Reporter,
		metrics:  cfg.Metrics,
		logger:   logger,
	}, nil
}

// RunResult is the outcome of Run. Aborted is set when the job disappeared or
// the context was cancelled; nothing was written for it.
type RunResult struct {
	Status         model.JobStatus
	Message        string
	Progress       model.Progress
	Solutions      []model.Solution
	FitnessHistory []float64
	Aborted        bool
}

// run is the prepared state of one job.
type run struct {
	graph   *network.Graph
	evolver *evo.Evolver
}

// Validate runs every check a job goes through before it starts evolving.
func Validate(net model.Network, params model.Parameters) error {
	_, err := prepare(net, params)
	return err
}

func prepare(net model.Network, params model.Parameters) (*run, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	crossover, err := evo.ResolveCrossover(params.CrossoverType)
	if err != nil {
		return nil, err
	}
	mutation, err := evo.ResolveMutation(params.MutationType)
	if err != nil {
		return nil, err
	}
	g, err := network.Build(net)
	if err != nil {
		return nil, err
	}
	space, err := evo.NewSearchSpace(g, network.NewReachability(g, params.MaximumPathLength))
	if err != nil {
		return nil, err
	}
	evolver, err := evo.NewEvolver(evo.EvolverConfig{
		Space:               space,
		Crossover:           crossover,
		Mutation:            mutation,
		PopulationSize:      params.PopulationSize,
		RandomGenes:         params.RandomGenesPerChromosome,
		PercentageElite:     params.PercentageElite,
		PercentageRandom:    params.PercentageRandom,
		ProbabilityMutation: params.ProbabilityMutation,
		Workers:             params.WorkerCount(),
	})
	if err != nil {
		return nil, err
	}
	return &run{graph: g, evolver: evolver}, nil
}

// Run optimizes the control nodes of net for job id. Validation failures
// finish the job in status error and are returned. A cancelled context or a
// job that is no longer live ends the run without writing results.
func (o *Orchestrator) Run(ctx context.Context, id string, net model.Network, params model.Parameters) (RunResult, error) {
	logger := o.logger.With("job_id", id)

	r, err := prepare(net, params)
	if err != nil {
		logger.Error("job rejected", "error", err)
		o.fail(ctx, logger, id, model.Progress{}, nil, err)
		return RunResult{Status: model.StatusError, Message: err.Error()}, err
	}

	live, err := o.state.IsLive(ctx, id)
	if err != nil {
		return RunResult{}, fmt.Errorf("poll job %s: %w", id, err)
	}
	if !live {
		logger.Info("job is no longer live before start")
		return RunResult{Aborted: true}, nil
	}
	if err := o.reporter.Start(ctx, id); err != nil {
		if o.vanished(ctx, id) {
			logger.Info("job removed before start")
			return RunResult{Aborted: true}, nil
		}
		return RunResult{}, fmt.Errorf("start job %s: %w", id, err)
	}

	o.metrics.RunStarted()
	finishedStatus := "aborted"
	defer func() { o.metrics.RunFinished(finishedStatus) }()

	logger.Info("optimization started",
		"nodes", r.graph.NodeCount(),
		"targets", r.graph.TargetCount(),
		"population_size", params.PopulationSize,
		"crossover", params.CrossoverType,
		"mutation", params.MutationType,
	)

	rng := rand.New(rand.NewSource(params.RandomSeed))
	population, err := r.evolver.Initial(ctx, rng)
	if err != nil {
		if ctx.Err() != nil {
			return RunResult{Aborted: true}, ctx.Err()
		}
		finishedStatus = string(model.StatusError)
		o.fail(ctx, logger, id, model.Progress{}, nil, err)
		return RunResult{Status: model.StatusError, Message: err.Error()}, err
	}

	best := population.MaxFitness()
	history := []float64{best}
	progress := model.Progress{BestFitness: best}
	stopRequested := false

	for progress.Iteration < params.MaximumIterations &&
		progress.IterationWithoutImprovement < params.MaximumIterationsWithoutImprovement {
		if err := ctx.Err(); err != nil {
			logger.Info("optimization cancelled", "iteration", progress.Iteration)
			return RunResult{Aborted: true}, err
		}

		progress.Iteration++
		progress.IterationWithoutImprovement++

		started := time.Now()
		next, err := r.evolver.Next(ctx, population, rng)
		if err != nil {
			if ctx.Err() != nil {
				return RunResult{Aborted: true}, ctx.Err()
			}
			finishedStatus = string(model.StatusError)
			o.fail(ctx, logger, id, progress, history, err)
			return RunResult{Status: model.StatusError, Message: err.Error(), Progress: progress}, err
		}
		population = next

		if f := population.MaxFitness(); f > best {
			best = f
			progress.IterationWithoutImprovement = 0
		}
		progress.BestFitness = best
		history = append(history, best)
		o.metrics.ObserveGeneration(time.Since(started), best)

		logger.Debug("generation evolved",
			"iteration", progress.Iteration,
			"without_improvement", progress.IterationWithoutImprovement,
			"best_fitness", best,
		)

		if err := o.reporter.ReportProgress(ctx, id, progress); err != nil {
			logger.Debug("progress not recorded", "error", err)
		}
		live, err := o.state.IsLive(ctx, id)
		if err != nil {
			return RunResult{Progress: progress}, fmt.Errorf("poll job %s: %w", id, err)
		}
		if !live {
			logger.Info("job is no longer live, stopping silently", "iteration", progress.Iteration)
			return RunResult{Aborted: true, Progress: progress}, nil
		}
		status, err := o.state.Status(ctx, id)
		if err != nil {
			return RunResult{Progress: progress}, fmt.Errorf("poll job %s: %w", id, err)
		}
		if status == model.StatusStopping {
			stopRequested = true
			break
		}
	}

	result := RunResult{
		Progress:       progress,
		FitnessHistory: history,
	}
	result.Status, result.Message = finalStatus(progress, params, stopRequested)

	paths := network.NewShortestPaths(r.graph)
	result.Solutions = population.ControlPaths(r.graph, paths)

	err = o.reporter.Finish(ctx, id, model.Outcome{
		Status:         result.Status,
		Message:        result.Message,
		Progress:       result.Progress,
		Solutions:      result.Solutions,
		FitnessHistory: result.FitnessHistory,
	})
	if err != nil {
		if o.vanished(ctx, id) {
			logger.Info("job removed before results were written", "iteration", progress.Iteration)
			return RunResult{Aborted: true, Progress: progress}, nil
		}
		return result, fmt.Errorf("finish job %s: %w", id, err)
	}
	finishedStatus = string(result.Status)

	logger.Info("optimization finished",
		"status", result.Status,
		"iterations", progress.Iteration,
		"best_fitness", best,
		"solutions", len(result.Solutions),
	)
	return result, nil
}

// finalStatus is completed only when both iteration bounds were reached
// together; a single bound or a stop request yields stopped.
func finalStatus(progress model.Progress, params model.Parameters, stopRequested bool) (model.JobStatus, string) {
	if stopRequested {
		return model.StatusStopped, "stop requested"
	}
	maxed := progress.Iteration >= params.MaximumIterations
	stale := progress.IterationWithoutImprovement >= params.MaximumIterationsWithoutImprovement
	switch {
	case maxed && stale:
		return model.StatusCompleted, ""
	case maxed:
		return model.StatusStopped, fmt.Sprintf("reached %d iterations", params.MaximumIterations)
	default:
		return model.StatusStopped, fmt.Sprintf("no improvement for %d iterations", params.MaximumIterationsWithoutImprovement)
	}
}

func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, id string, progress model.Progress, history []float64, cause error) {
	err := o.reporter.Finish(ctx, id, model.Outcome{
		Status:         model.StatusError,
		Message:        cause.Error(),
		Progress:       progress,
		FitnessHistory: history,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("failed to record job error", "error", err)
	}
}

// vanished re-polls a job whose state change was rejected. A job that is
// gone or already finished elsewhere ends the run silently.
func (o *Orchestrator) vanished(ctx context.Context, id string) bool {
	live, err := o.state.IsLive(ctx, id)
	return err == nil && !live
}
