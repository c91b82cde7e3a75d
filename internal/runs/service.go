// Package runs keeps the ledger of calibration runs executed by the service.
package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a run ID is unknown.
var ErrNotFound = errors.New("run not found")

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one recorded calibration run.
type Run struct {
	ID           string    `json:"id"`
	Dataset      string    `json:"dataset"`
	RepoPath     string    `json:"repo_path"`
	Status       Status    `json:"status"`
	Cutoff       *float64  `json:"cutoff,omitempty"`
	NoiseRatio   *float64  `json:"noise_ratio,omitempty"`
	Coverage     *float64  `json:"coverage,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Summary is the headline result stored with a completed run.
type Summary struct {
	Cutoff     float64
	NoiseRatio float64
	Coverage   float64
}

// Service records runs in Postgres.
type Service struct {
	db *sql.DB
}

// NewService creates a new run Service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

const runColumns = `id, dataset, repo_path, status, cutoff, noise_ratio, coverage, error_message, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	r := &Run{}
	var status string
	if err := s.Scan(&r.ID, &r.Dataset, &r.RepoPath, &status, &r.Cutoff, &r.NoiseRatio,
		&r.Coverage, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = Status(status)
	return r, nil
}

// Create records a new running run. An empty id gets a fresh UUID.
func (s *Service) Create(ctx context.Context, id, dataset, repoPath string) (*Run, error) {
	if id == "" {
		id = uuid.New().String()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("create run: invalid id %q: %w", id, err)
	}

	r, err := scanRun(s.db.QueryRowContext(ctx,
		`INSERT INTO calibration_runs (id, dataset, repo_path, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+runColumns,
		id, dataset, repoPath, string(StatusRunning),
	))
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return r, nil
}

// Complete marks a run completed with its headline result.
func (s *Service) Complete(ctx context.Context, id string, sum Summary) error {
	return s.finish(ctx, id,
		`UPDATE calibration_runs
		 SET status = $2, cutoff = $3, noise_ratio = $4, coverage = $5, updated_at = now()
		 WHERE id = $1`,
		string(StatusCompleted), sum.Cutoff, sum.NoiseRatio, sum.Coverage,
	)
}

// Fail marks a run failed with the given cause.
func (s *Service) Fail(ctx context.Context, id string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return s.finish(ctx, id,
		`UPDATE calibration_runs
		 SET status = $2, error_message = $3, updated_at = now()
		 WHERE id = $1`,
		string(StatusFailed), msg,
	)
}

func (s *Service) finish(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update run %s: %w", id, ErrNotFound)
	}
	return nil
}

// Get retrieves one run.
func (s *Service) Get(ctx context.Context, id string) (*Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM calibration_runs WHERE id = $1`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// List returns the most recent runs, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM calibration_runs ORDER BY created_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
