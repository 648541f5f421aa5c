// Package store durably checkpoints job state so a crash mid-pipeline
// resumes from the last completed stage instead of restarting.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"docverify/constants"
	"docverify/internal/entity"
)

// ErrNotFound is returned when no job exists for an id.
var ErrNotFound = errors.New("job not found")

// JobStore persists job checkpoints. Save is called before the next
// stage begins, so the stored snapshot is always the resume point.
type JobStore interface {
	Save(ctx context.Context, job *entity.DocumentJob) error
	Get(ctx context.Context, id uuid.UUID) (*entity.DocumentJob, error)
	ListNonTerminal(ctx context.Context) ([]*entity.DocumentJob, error)
	ListByStatus(ctx context.Context, status constants.JobStatus) ([]*entity.DocumentJob, error)
}

// MemoryStore is the in-process JobStore used in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*entity.DocumentJob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[uuid.UUID]*entity.DocumentJob)}
}

func (s *MemoryStore) Save(_ context.Context, job *entity.DocumentJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*entity.DocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

func (s *MemoryStore) ListNonTerminal(_ context.Context) ([]*entity.DocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.DocumentJob
	for _, job := range s.jobs {
		if !job.Terminal() {
			out = append(out, job.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, status constants.JobStatus) ([]*entity.DocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.DocumentJob
	for _, job := range s.jobs {
		if job.Status == status {
			out = append(out, job.Clone())
		}
	}
	return out, nil
}
