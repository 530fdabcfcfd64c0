// Package storage keeps a PostgreSQL ledger of scrape runs.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS scrape_runs (
	id          UUID PRIMARY KEY,
	feed        TEXT NOT NULL,
	path        TEXT NOT NULL,
	status      TEXT NOT NULL,
	attempted   INTEGER NOT NULL,
	saved       INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);`

type Run struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Feed       string    `db:"feed" json:"feed"`
	Path       string    `db:"path" json:"path"`
	Status     string    `db:"status" json:"status"`
	Attempted  int       `db:"attempted" json:"attempted"`
	Saved      int       `db:"saved" json:"saved"`
	Error      string    `db:"error" json:"error,omitempty"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
}

type RunStorage struct {
	db *sqlx.DB
}

func NewRunStorage(db *sqlx.DB) *RunStorage {
	return &RunStorage{db: db}
}

// Connect opens the ledger database and makes sure its table exists.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}

func (s *RunStorage) Record(ctx context.Context, run Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO scrape_runs (id, feed, path, status, attempted, saved, error, started_at, finished_at)
		 VALUES (:id, :feed, :path, :status, :attempted, :saved, :error, :started_at, :finished_at)`,
		run,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Latest returns the most recent run of every feed, keyed by feed name.
func (s *RunStorage) Latest(ctx context.Context) (map[string]Run, error) {
	var runs []Run
	err := s.db.SelectContext(ctx, &runs,
		`SELECT DISTINCT ON (feed) id, feed, path, status, attempted, saved, error, started_at, finished_at
		 FROM scrape_runs
		 ORDER BY feed, finished_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select latest runs: %w", err)
	}

	out := make(map[string]Run, len(runs))
	for _, run := range runs {
		out[run.Feed] = run
	}
	return out, nil
}
