// Package drivernet finds small sets of driver nodes that control the targets
// of a directed network, and persists the optimization jobs that do so.
package drivernet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"drivernet/internal/model"
	"drivernet/internal/platform"
	"drivernet/internal/storage"
	"drivernet/internal/telemetry"
)

const defaultDBPath = "drivernet.db"

type (
	Network     = model.Network
	Edge        = model.Edge
	Parameters  = model.Parameters
	JobStatus   = model.JobStatus
	Progress    = model.Progress
	Solution    = model.Solution
	ControlPath = model.ControlPath
)

const (
	StatusInitializing = model.StatusInitializing
	StatusOngoing      = model.StatusOngoing
	StatusStopping     = model.StatusStopping
	StatusStopped      = model.StatusStopped
	StatusCompleted    = model.StatusCompleted
	StatusError        = model.StatusError
)

var (
	ErrJobNotFound       = storage.ErrJobNotFound
	ErrInvalidParameters = model.ErrInvalidParameters
)

// DefaultParameters returns the parameters applied to zero-valued requests.
func DefaultParameters() Parameters {
	return model.DefaultParameters()
}

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *slog.Logger
	// Registerer receives the run metrics; nil uses the default Prometheus registry.
	Registerer prometheus.Registerer
}

type Client struct {
	store        storage.Store
	tracker      *storage.JobTracker
	orchestrator *platform.Orchestrator

	initOnce sync.Once
	initErr  error
}

type RunRequest struct {
	Network    Network
	Parameters Parameters
}

type JobSummary struct {
	JobID          string
	Status         JobStatus
	Message        string
	Progress       Progress
	Solutions      []Solution
	FitnessHistory []float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type JobsRequest struct {
	Limit  int
	Status JobStatus
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	metrics := telemetry.Default()
	if opts.Registerer != nil {
		metrics = telemetry.NewMetrics(opts.Registerer)
	}
	tracker := storage.NewJobTracker(store)
	orchestrator, err := platform.NewOrchestrator(platform.OrchestratorConfig{
		State:    tracker,
		Reporter: tracker,
		Metrics:  metrics,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		tracker:      tracker,
		orchestrator: orchestrator,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.store.Init(ctx)
	})
	return c.initErr
}

// Validate checks a request the same way a run does, without creating a job.
func (c *Client) Validate(req RunRequest) error {
	req = applyDefaults(req)
	return platform.Validate(req.Network, req.Parameters)
}

// Submit stores a new job in status initializing and returns its id.
func (c *Client) Submit(ctx context.Context, req RunRequest) (string, error) {
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	req = applyDefaults(req)
	job, err := c.tracker.Create(ctx, req.Network, req.Parameters)
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

// Execute runs a submitted job to its end and returns the final summary.
// Validation failures are recorded on the job and returned.
func (c *Client) Execute(ctx context.Context, jobID string) (JobSummary, error) {
	if err := c.Init(ctx); err != nil {
		return JobSummary{}, err
	}
	job, err := c.tracker.Job(ctx, jobID)
	if err != nil {
		return JobSummary{}, err
	}
	if job.Status != model.StatusInitializing {
		return JobSummary{}, fmt.Errorf("job %s already %s", jobID, job.Status)
	}

	result, runErr := c.orchestrator.Run(ctx, jobID, job.Network, job.Parameters)
	if result.Aborted {
		if runErr != nil {
			return JobSummary{JobID: jobID, Progress: result.Progress}, runErr
		}
		return JobSummary{JobID: jobID, Progress: result.Progress}, fmt.Errorf("%w: %s removed while running", ErrJobNotFound, jobID)
	}
	summary := JobSummary{
		JobID:          jobID,
		Status:         result.Status,
		Message:        result.Message,
		Progress:       result.Progress,
		Solutions:      result.Solutions,
		FitnessHistory: result.FitnessHistory,
		CreatedAt:      job.CreatedAt,
	}
	if stored, err := c.tracker.Job(ctx, jobID); err == nil {
		summary.UpdatedAt = stored.UpdatedAt
	}
	return summary, runErr
}

// Run submits req and executes it.
func (c *Client) Run(ctx context.Context, req RunRequest) (JobSummary, error) {
	jobID, err := c.Submit(ctx, req)
	if err != nil {
		return JobSummary{}, err
	}
	return c.Execute(ctx, jobID)
}

// Status returns the job's current state and progress; solutions are omitted.
func (c *Client) Status(ctx context.Context, jobID string) (JobSummary, error) {
	if err := c.Init(ctx); err != nil {
		return JobSummary{}, err
	}
	job, err := c.tracker.Job(ctx, jobID)
	if err != nil {
		return JobSummary{}, err
	}
	return summarize(job), nil
}

func (c *Client) Solutions(ctx context.Context, jobID string) ([]Solution, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	job, err := c.tracker.Job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.Finished() {
		return nil, fmt.Errorf("job %s is %s, solutions are not available yet", jobID, job.Status)
	}
	return job.Solutions, nil
}

func (c *Client) FitnessHistory(ctx context.Context, jobID string) ([]float64, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	return c.tracker.FitnessHistory(ctx, jobID)
}

// Jobs lists stored jobs, newest first.
func (c *Client) Jobs(ctx context.Context, req JobsRequest) ([]JobSummary, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	jobs, err := c.tracker.Jobs(ctx)
	if err != nil {
		return nil, err
	}
	slices.Reverse(jobs)

	out := make([]JobSummary, 0, len(jobs))
	for _, job := range jobs {
		if req.Status != "" && job.Status != req.Status {
			continue
		}
		out = append(out, summarize(job))
		if req.Limit > 0 && len(out) == req.Limit {
			break
		}
	}
	return out, nil
}

// Stop asks a running job to stop after its current generation.
func (c *Client) Stop(ctx context.Context, jobID string) error {
	if err := c.Init(ctx); err != nil {
		return err
	}
	return c.tracker.RequestStop(ctx, jobID)
}

// Delete removes a job; a run still evolving it ends without writing results.
func (c *Client) Delete(ctx context.Context, jobID string) error {
	if err := c.Init(ctx); err != nil {
		return err
	}
	return c.tracker.Delete(ctx, jobID)
}

func applyDefaults(req RunRequest) RunRequest {
	def := model.DefaultParameters()
	p := &req.Parameters
	if p.PopulationSize <= 0 {
		p.PopulationSize = def.PopulationSize
	}
	if p.CrossoverType == "" {
		p.CrossoverType = def.CrossoverType
	}
	if p.MutationType == "" {
		p.MutationType = def.MutationType
	}
	if p.MaximumIterations <= 0 {
		p.MaximumIterations = def.MaximumIterations
	}
	if p.MaximumIterationsWithoutImprovement <= 0 {
		p.MaximumIterationsWithoutImprovement = def.MaximumIterationsWithoutImprovement
	}
	return req
}

func summarize(job model.Job) JobSummary {
	return JobSummary{
		JobID:     job.ID,
		Status:    job.Status,
		Message:   job.Message,
		Progress:  job.Progress,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}
