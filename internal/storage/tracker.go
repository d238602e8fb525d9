package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"drivernet/internal/model"
)

// JobTracker applies job lifecycle transitions on top of a Store. Every
// transition is a read-modify-write under one mutex, so concurrent callers
// (a running optimizer and a user requesting a stop) never lose updates.
type JobTracker struct {
	store Store
	now   func() time.Time

	mu sync.Mutex
}

func NewJobTracker(store Store) *JobTracker {
	return &JobTracker{store: store, now: time.Now}
}

// Create persists a new job in status initializing under a fresh id.
func (t *JobTracker) Create(ctx context.Context, network model.Network, params model.Parameters) (model.Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().UTC()
	job := model.Job{
		VersionedRecord: currentVersion(),
		ID:              uuid.NewString(),
		Status:          model.StatusInitializing,
		Network:         network.Clone(),
		Parameters:      params,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := t.store.SaveJob(ctx, job); err != nil {
		return model.Job{}, fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return job, nil
}

func (t *JobTracker) Job(ctx context.Context, id string) (model.Job, error) {
	job, ok, err := t.store.GetJob(ctx, id)
	if err != nil {
		return model.Job{}, err
	}
	if !ok {
		return model.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, nil
}

func (t *JobTracker) Jobs(ctx context.Context) ([]model.Job, error) {
	return t.store.ListJobs(ctx)
}

func (t *JobTracker) Status(ctx context.Context, id string) (model.JobStatus, error) {
	job, err := t.Job(ctx, id)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

// IsLive reports whether the job still exists and has not finished.
func (t *JobTracker) IsLive(ctx context.Context, id string) (bool, error) {
	job, ok, err := t.store.GetJob(ctx, id)
	if err != nil {
		return false, err
	}
	return ok && !job.Status.Finished(), nil
}

// Start moves an initializing job to ongoing. A pending stop request is kept.
func (t *JobTracker) Start(ctx context.Context, id string) error {
	return t.update(ctx, id, func(job *model.Job) error {
		switch job.Status {
		case model.StatusInitializing:
			job.Status = model.StatusOngoing
		case model.StatusOngoing, model.StatusStopping:
		default:
			return fmt.Errorf("job %s cannot start from status %s", id, job.Status)
		}
		return nil
	})
}

// RequestStop asks a running job to stop at its next generation boundary.
// Finished jobs are left untouched.
func (t *JobTracker) RequestStop(ctx context.Context, id string) error {
	return t.update(ctx, id, func(job *model.Job) error {
		if !job.Status.Finished() {
			job.Status = model.StatusStopping
		}
		return nil
	})
}

func (t *JobTracker) ReportProgress(ctx context.Context, id string, progress model.Progress) error {
	return t.update(ctx, id, func(job *model.Job) error {
		job.Progress = progress
		return nil
	})
}

// Finish records the final status, solutions and fitness history of a job.
func (t *JobTracker) Finish(ctx context.Context, id string, outcome model.Outcome) error {
	if !outcome.Status.Finished() {
		return fmt.Errorf("job %s cannot finish with status %s", id, outcome.Status)
	}
	err := t.update(ctx, id, func(job *model.Job) error {
		job.Status = outcome.Status
		job.Message = outcome.Message
		job.Progress = outcome.Progress
		job.Solutions = outcome.Solutions
		return nil
	})
	if err != nil {
		return err
	}
	if outcome.FitnessHistory == nil {
		return nil
	}
	if err := t.store.SaveFitnessHistory(ctx, id, outcome.FitnessHistory); err != nil {
		return fmt.Errorf("save fitness history %s: %w", id, err)
	}
	return nil
}

func (t *JobTracker) FitnessHistory(ctx context.Context, id string) ([]float64, error) {
	history, ok, err := t.store.GetFitnessHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return history, nil
}

func (t *JobTracker) Delete(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok, err := t.store.GetJob(ctx, id); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return t.store.DeleteJob(ctx, id)
}

func (t *JobTracker) update(ctx context.Context, id string, apply func(*model.Job) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok, err := t.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err := apply(&job); err != nil {
		return err
	}
	job.UpdatedAt = t.now().UTC()
	return t.store.SaveJob(ctx, job)
}
