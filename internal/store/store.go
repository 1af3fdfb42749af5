// Package store persists job documents for the research pipeline.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jobfit-research/internal/config"
	"github.com/sells-group/jobfit-research/internal/db"
	"github.com/sells-group/jobfit-research/internal/model"
)

// ErrNotFound is returned when a job id does not exist.
var ErrNotFound = eris.New("store: job not found")

// Store is a key-value store of jobs with merge-style partial updates.
// Jobs are never deleted.
type Store interface {
	CreateJob(ctx context.Context, in model.NewJobInput) (*model.Job, error)
	FindJob(ctx context.Context, id string) (*model.Job, error)
	// UpdateJob merges the set fields of u into the job atomically.
	UpdateJob(ctx context.Context, id string, u model.JobUpdate) error

	Migrate(ctx context.Context) error
	Close() error
}

// Open opens the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "postgres":
		pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
		if err != nil {
			return nil, eris.Wrap(err, "store: open postgres")
		}
		return NewPostgres(pool, pool.Close), nil
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func validateInput(in model.NewJobInput) error {
	if strings.TrimSpace(in.CompanyName) == "" {
		return eris.New("store: company_name is required")
	}
	if strings.TrimSpace(in.Position) == "" {
		return eris.New("store: position is required")
	}
	return nil
}

// newJob builds the initial document for a job.
func newJob(id string, in model.NewJobInput) *model.Job {
	return &model.Job{
		ID:             id,
		CompanyName:    strings.TrimSpace(in.CompanyName),
		Position:       strings.TrimSpace(in.Position),
		JobDescription: in.JobDescription,
		InsightsStatus: model.InsightsStatusQueued,
		AgentStage:     model.AgentStageQueued,
	}
}
