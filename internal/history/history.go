// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/matt-FFFFFF/upscaler/internal/ctxlog"
	"github.com/matt-FFFFFF/upscaler/internal/job"
	"github.com/matt-FFFFFF/upscaler/internal/jobqueue"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Status is the state of a recorded job.
type Status string

// Job states.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned by Get for an unknown job.
var ErrNotFound = errors.New("job not found in history")

const schema = `CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    total_units INTEGER NOT NULL,
    completed_units INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    queued_at TEXT NOT NULL,
    started_at TEXT,
    finished_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_jobs_queued_at ON jobs(queued_at);`

// Record is one job as stored.
type Record struct {
	ID             string     `json:"id" yaml:"id"`
	Description    string     `json:"description,omitempty" yaml:"description,omitempty"`
	Status         Status     `json:"status" yaml:"status"`
	TotalUnits     int        `json:"total_units" yaml:"total_units"`
	CompletedUnits int        `json:"completed_units" yaml:"completed_units"`
	Error          string     `json:"error,omitempty" yaml:"error,omitempty"`
	QueuedAt       time.Time  `json:"queued_at" yaml:"queued_at"`
	StartedAt      *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// Store persists job records.
type Store struct {
	db     *sql.DB
	clock  job.Clock
	logger *slog.Logger
}

var _ jobqueue.Observer = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for timestamps.
func WithClock(c job.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithLogger sets the logger used to report write failures from observer callbacks.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens, or creates, the database at path.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history %s: %w", path, err)
	}

	// One connection serialises writers, which SQLite requires anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close() //nolint:errcheck,gosec
		return nil, fmt.Errorf("creating history schema: %w", err)
	}

	s := &Store{db: db, clock: job.SystemClock{}}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = ctxlog.OrDiscard(s.logger)

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

// Queued records a newly queued job, replacing any earlier record with the same id.
func (s *Store) Queued(ctx context.Context, id, description string, totalUnits int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO jobs (id, description, status, total_units, queued_at) VALUES (?, ?, ?, ?, ?);`,
		id, description, StatusQueued, totalUnits, s.now())
	if err != nil {
		return fmt.Errorf("recording job %q queued: %w", id, err)
	}

	return nil
}

// Started marks a job as running.
func (s *Store) Started(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, started_at = ? WHERE id = ?;`,
		StatusRunning, s.now(), id)
	if err != nil {
		return fmt.Errorf("recording job %q started: %w", id, err)
	}

	return nil
}

// Finished records a job's outcome. A nil runErr means completed, job.ErrJobCancelled cancelled,
// anything else failed.
func (s *Store) Finished(ctx context.Context, id string, res job.Result, runErr error) error {
	status := StatusCompleted
	msg := ""

	switch {
	case runErr == nil:
	case errors.Is(runErr, job.ErrJobCancelled):
		status = StatusCancelled
	default:
		status = StatusFailed
		msg = runErr.Error()
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, completed_units = MAX(completed_units, ?), error = ?, finished_at = ? WHERE id = ?;`,
		status, res.CompletedUnits, msg, s.now(), id)
	if err != nil {
		return fmt.Errorf("recording job %q finished: %w", id, err)
	}

	return nil
}

// Get returns the record for id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, description, status, total_units, completed_units, error, queued_at, started_at, finished_at
		FROM jobs WHERE id = ?;`, id)

	rec, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	return rec, err
}

// List returns up to limit records, most recently queued first. A limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, description, status, total_units, completed_units, error, queued_at, started_at, finished_at
		FROM jobs ORDER BY queued_at DESC, rowid DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var recs []Record

	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}

		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// JobQueued implements jobqueue.Observer.
func (s *Store) JobQueued(ctx context.Context, j job.Job) {
	s.report(ctx, j.ID, s.Queued(ctx, j.ID, j.Description, j.TotalUnits))
}

// JobStarted implements jobqueue.Observer.
func (s *Store) JobStarted(ctx context.Context, j job.Job) {
	s.report(ctx, j.ID, s.Started(ctx, j.ID))
}

// JobFinished implements jobqueue.Observer.
func (s *Store) JobFinished(ctx context.Context, j job.Job, res job.Result, err error) {
	s.report(ctx, j.ID, s.Finished(context.WithoutCancel(ctx), j.ID, res, err))
}

func (s *Store) report(ctx context.Context, id string, err error) {
	if err == nil {
		return
	}

	ctxlog.Event(ctx, s.logger, slog.LevelWarn, "history_write_failed", "Failed to update job history",
		"job_id", id,
		"error", err.Error(),
	)
}

func (s *Store) now() string {
	return s.clock.Now().UTC().Format(timeLayout)
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (Record, error) {
	var (
		rec               Record
		queued            string
		started, finished sql.NullString
	)

	if err := row.Scan(&rec.ID, &rec.Description, &rec.Status, &rec.TotalUnits, &rec.CompletedUnits, &rec.Error,
		&queued, &started, &finished); err != nil {
		return Record{}, err
	}

	var err error

	if rec.QueuedAt, err = time.Parse(timeLayout, queued); err != nil {
		return Record{}, fmt.Errorf("parsing queued_at of %q: %w", rec.ID, err)
	}

	if rec.StartedAt, err = parseOptional(started); err != nil {
		return Record{}, fmt.Errorf("parsing started_at of %q: %w", rec.ID, err)
	}

	if rec.FinishedAt, err = parseOptional(finished); err != nil {
		return Record{}, fmt.Errorf("parsing finished_at of %q: %w", rec.ID, err)
	}

	return rec, nil
}

func parseOptional(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil //nolint:nilnil
	}

	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return nil, err
	}

	return &t, nil
}
