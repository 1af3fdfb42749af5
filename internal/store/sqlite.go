package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/jobfit-research/internal/model"
)

// SQLiteStore keeps each job as a JSON text document and merges updates
// with json_patch.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, in model.NewJobInput) (*model.Job, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	job := newJob(uuid.New().String(), in)
	job.CreatedAt = time.Now().UTC()
	job.UpdatedAt = job.CreatedAt

	doc, err := json.Marshal(job)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal job")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, doc, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		job.ID, string(doc), job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}
	return job, nil
}

func (s *SQLiteStore) FindJob(ctx context.Context, id string) (*model.Job, error) {
	var (
		doc       string
		createdAt time.Time
		updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT doc, created_at, updated_at FROM jobs WHERE id = ?`, id,
	).Scan(&doc, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: find %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find %s", id)
	}

	var job model.Job
	if err := json.Unmarshal([]byte(doc), &job); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal job %s", id)
	}
	job.ID = id
	job.CreatedAt = createdAt
	job.UpdatedAt = updatedAt
	return &job, nil
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, id string, u model.JobUpdate) error {
	patch, err := json.Marshal(u)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal update")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET doc = json_patch(doc, ?), updated_at = ? WHERE id = ?`,
		string(patch), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: update %s", id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: update %s", id)
	}
	return nil
}
