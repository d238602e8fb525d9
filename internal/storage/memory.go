package storage

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"drivernet/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	jobs        map[string]model.Job
	history     map[string][]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.jobs = make(map[string]model.Job)
	s.history = make(map[string][]float64)
	return nil
}

func (s *MemoryStore) SaveJob(_ context.Context, job model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, id string) (model.Job, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return model.Job{}, false, nil
	}
	return job.Clone(), true, nil
}

func (s *MemoryStore) ListJobs(_ context.Context) ([]model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Clone())
	}
	sortJobs(out)
	return out, nil
}

func (s *MemoryStore) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, id)
	delete(s.history, id)
	return nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, jobID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.history[jobID] = slices.Clone(history)
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, jobID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[jobID]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(history), true, nil
}

// sortJobs orders jobs by creation time, then id.
func sortJobs(jobs []model.Job) {
	slices.SortFunc(jobs, func(a, b model.Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
