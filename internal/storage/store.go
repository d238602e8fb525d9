package storage

import (
	"context"
	"errors"

	"drivernet/internal/model"
)

var ErrJobNotFound = errors.New("job not found")

// Store defines persistence for optimization jobs and their fitness history.
type Store interface {
	Init(ctx context.Context) error
	SaveJob(ctx context.Context, job model.Job) error
	GetJob(ctx context.Context, id string) (model.Job, bool, error)
	ListJobs(ctx context.Context) ([]model.Job, error)
	DeleteJob(ctx context.Context, id string) error
	SaveFitnessHistory(ctx context.Context, jobID string, history []float64) error
	GetFitnessHistory(ctx context.Context, jobID string) ([]float64, bool, error)
}
