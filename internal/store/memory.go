package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/jobfit-research/internal/model"
)

// MemoryStore keeps jobs in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
	now  func() time.Time
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*model.Job), now: func() time.Time { return time.Now().UTC() }}
}

func (s *MemoryStore) CreateJob(_ context.Context, in model.NewJobInput) (*model.Job, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	job := newJob(uuid.New().String(), in)
	job.CreatedAt = s.now()
	job.UpdatedAt = job.CreatedAt

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return clone(job)
}

func (s *MemoryStore) FindJob(_ context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "store: find %s", id)
	}
	return clone(job)
}

func (s *MemoryStore) UpdateJob(_ context.Context, id string, u model.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return eris.Wrapf(ErrNotFound, "store: update %s", id)
	}
	job.Apply(u)
	job.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// clone deep-copies a job so callers never share the stored value.
func clone(job *model.Job) (*model.Job, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, eris.Wrap(err, "store: clone job")
	}
	var out model.Job
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "store: clone job")
	}
	return &out, nil
}
