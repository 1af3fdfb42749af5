package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/jobfit-research/internal/db"
	"github.com/sells-group/jobfit-research/internal/model"
)

// PostgresStore keeps each job as a JSONB document. Updates use the jsonb
// || operator so concurrent writers of different fields do not clobber each
// other.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres wraps a pool. closeFn, if set, runs on Close.
func NewPostgres(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: closeFn}
}

var postgresMigration = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_agent_stage ON jobs ((doc->>'agent_stage'))`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at DESC)`,
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, stmt := range postgresMigration {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return eris.Wrap(err, "postgres: migrate")
			}
		}
		return nil
	})
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, in model.NewJobInput) (*model.Job, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	job := newJob(uuid.New().String(), in)
	job.CreatedAt = time.Now().UTC()
	job.UpdatedAt = job.CreatedAt

	doc, err := json.Marshal(job)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal job")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, doc, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		job.ID, doc, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}
	return job, nil
}

func (s *PostgresStore) FindJob(ctx context.Context, id string) (*model.Job, error) {
	var (
		doc       []byte
		createdAt time.Time
		updatedAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT doc, created_at, updated_at FROM jobs WHERE id = $1`, id,
	).Scan(&doc, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: find %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find %s", id)
	}

	var job model.Job
	if err := json.Unmarshal(doc, &job); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal job %s", id)
	}
	job.ID = id
	job.CreatedAt = createdAt
	job.UpdatedAt = updatedAt
	return &job, nil
}

func (s *PostgresStore) UpdateJob(ctx context.Context, id string, u model.JobUpdate) error {
	patch, err := json.Marshal(u)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal update")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET doc = doc || $1::jsonb, updated_at = $2 WHERE id = $3`,
		patch, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update %s", id)
	}
	return nil
}
