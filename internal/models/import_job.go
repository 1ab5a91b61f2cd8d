// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/autobrr/importarr/internal/dbinterface"
)

// ImportJobStatus defines the lifecycle state of a background import job.
type ImportJobStatus string

const (
	ImportJobStatusQueued     ImportJobStatus = "queued"
	ImportJobStatusProcessing ImportJobStatus = "processing"
	ImportJobStatusCompleted  ImportJobStatus = "completed"
	ImportJobStatusFailed     ImportJobStatus = "failed"

	// ImportJobStatusNotFound is synthesized by the poll endpoint for an
	// unknown or expired job id. It is never stored.
	ImportJobStatusNotFound ImportJobStatus = "not_found"
)

// ErrJobNotCancellable is returned when cancelling a job that a worker has
// already claimed.
var ErrJobNotCancellable = errors.New("job is already processing")

// ImportJob is the durable record for a background import, polled by the
// client until it reaches a terminal state.
type ImportJob struct {
	ID           string          `json:"jobId"`
	Status       ImportJobStatus `json:"status"`
	Progress     int             `json:"progress"`
	Total        int             `json:"total"`
	Stats        map[string]int  `json:"stats"`
	SourceType   string          `json:"sourceType"`
	SourceID     *int64          `json:"sourceId,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// ImportJobStore handles database operations for import jobs.
type ImportJobStore struct {
	db dbinterface.Querier
}

// NewImportJobStore creates a new ImportJobStore.
func NewImportJobStore(db dbinterface.Querier) *ImportJobStore {
	return &ImportJobStore{db: db}
}

// Create persists a new job in the queued state and returns its opaque id.
func (s *ImportJobStore) Create(ctx context.Context, sourceType string, total int, sourceID *int64) (*ImportJob, error) {
	id, err := newJobID()
	if err != nil {
		return nil, err
	}

	job := &ImportJob{
		ID:         id,
		Status:     ImportJobStatusQueued,
		Total:      total,
		Stats:      map[string]int{},
		SourceType: sourceType,
		SourceID:   sourceID,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO import_jobs (id, status, progress, total, stats, source_type, source_id)
		VALUES (?, ?, 0, ?, '{}', ?, ?)
	`, job.ID, job.Status, job.Total, job.SourceType, job.SourceID)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	return job, nil
}

// Get returns a job by id, or nil when unknown.
func (s *ImportJobStore) Get(ctx context.Context, id string) (*ImportJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, progress, total, stats, source_type, source_id, error_message, created_at, updated_at
		FROM import_jobs
		WHERE id = ?
	`, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// MarkProcessing transitions a queued job to processing. Returns false when
// the job was not in the queued state (already claimed or cancelled).
func (s *ImportJobStore) MarkProcessing(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE import_jobs
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, ImportJobStatusProcessing, id, ImportJobStatusQueued)
	if err != nil {
		return false, fmt.Errorf("mark job processing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark job processing: %w", err)
	}
	return affected == 1, nil
}

// UpdateProgress sets absolute progress and merges stat counters. Progress
// never moves backwards.
func (s *ImportJobStore) UpdateProgress(ctx context.Context, id string, progress int, statsDelta map[string]int) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("update progress: job %s not found", id)
	}

	if progress < job.Progress {
		progress = job.Progress
	}
	for key, delta := range statsDelta {
		job.Stats[key] += delta
	}

	stats, err := json.Marshal(job.Stats)
	if err != nil {
		return fmt.Errorf("marshal job stats: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE import_jobs
		SET progress = ?, stats = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, progress, string(stats), id)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// MarkCompleted transitions a job to the completed terminal state.
func (s *ImportJobStore) MarkCompleted(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE import_jobs
		SET status = ?, progress = total, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, ImportJobStatusCompleted, id)
	if err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	return nil
}

// MarkFailed transitions a job to the failed terminal state.
func (s *ImportJobStore) MarkFailed(ctx context.Context, id, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE import_jobs
		SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, ImportJobStatusFailed, message, id)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}

// CancelQueued moves a still-queued job straight to the failed terminal
// state without it ever running. A job already claimed by a worker runs to
// completion and returns ErrJobNotCancellable.
func (s *ImportJobStore) CancelQueued(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE import_jobs
		SET status = ?, error_message = 'canceled before start', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, ImportJobStatusFailed, id, ImportJobStatusQueued)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if affected == 0 {
		job, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if job == nil {
			return sql.ErrNoRows
		}
		return ErrJobNotCancellable
	}
	return nil
}

// DeleteOlderThan removes terminal jobs older than the cutoff, returning the
// number removed.
func (s *ImportJobStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM import_jobs
		WHERE status IN (?, ?) AND updated_at < ?
	`, ImportJobStatusCompleted, ImportJobStatusFailed, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete old jobs: %w", err)
	}
	return res.RowsAffected()
}

func scanJob(row rowScanner) (*ImportJob, error) {
	var job ImportJob
	var stats string
	err := row.Scan(&job.ID, &job.Status, &job.Progress, &job.Total, &stats, &job.SourceType, &job.SourceID, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	job.Stats = map[string]int{}
	if stats != "" {
		if err := json.Unmarshal([]byte(stats), &job.Stats); err != nil {
			return nil, fmt.Errorf("unmarshal job stats: %w", err)
		}
	}
	return &job, nil
}

func newJobID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
