// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package jobs runs background imports on a bounded worker pool, with
// durable progress the client polls by job id.
package jobs

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/autobrr/importarr/internal/models"
)

// Fn is the body of one job. It processes its items in submission order and
// reports each item through the reporter; the runner owns the job's terminal
// state.
type Fn func(ctx context.Context, report *Reporter) error

// Runner owns the worker pool. Submission is synchronous and fast: the job
// row is created queued and the work happens on a pool slot, detached from
// the submitting request's lifetime.
type Runner struct {
	store   *models.ImportJobStore
	slots   *semaphore.Weighted
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a runner with the given number of concurrent worker
// slots.
func NewRunner(store *models.ImportJobStore, workers int) *Runner {
	if workers <= 0 {
		workers = 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		store:   store,
		slots:   semaphore.NewWeighted(int64(workers)),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Submit creates a queued job and schedules fn on the pool. The returned job
// is immediately pollable. cleanup, when non-nil, runs exactly once when the
// job leaves the pool: after fn returns, when a cancellation wins the claim,
// or when shutdown abandons the queue.
func (r *Runner) Submit(ctx context.Context, sourceType string, total int, sourceID *int64, fn Fn, cleanup func()) (*models.ImportJob, error) {
	job, err := r.store.Create(ctx, sourceType, total, sourceID)
	if err != nil {
		return nil, err
	}

	r.wg.Add(1)
	go r.run(job.ID, fn, cleanup)

	return job, nil
}

func (r *Runner) run(jobID string, fn Fn, cleanup func()) {
	defer r.wg.Done()
	if cleanup != nil {
		defer cleanup()
	}

	if err := r.slots.Acquire(r.baseCtx, 1); err != nil {
		// Shutdown before the job got a slot; it stays queued and a poll
		// keeps returning queued until restart or cleanup.
		return
	}
	defer r.slots.Release(1)

	// The claim loses when the job was cancelled while queued.
	claimed, err := r.store.MarkProcessing(r.baseCtx, jobID)
	if err != nil {
		log.Error().Err(err).Str("jobId", jobID).Msg("Failed to claim job")
		return
	}
	if !claimed {
		log.Debug().Str("jobId", jobID).Msg("Job was cancelled before a worker claimed it")
		return
	}

	reporter := &Reporter{store: r.store, jobID: jobID}
	if err := fn(r.baseCtx, reporter); err != nil {
		log.Error().Err(err).Str("jobId", jobID).Msg("Job failed")
		// Terminal updates go through even when baseCtx is gone.
		if markErr := r.store.MarkFailed(context.Background(), jobID, err.Error()); markErr != nil {
			log.Error().Err(markErr).Str("jobId", jobID).Msg("Failed to mark job failed")
		}
		return
	}

	if err := r.store.MarkCompleted(context.Background(), jobID); err != nil {
		log.Error().Err(err).Str("jobId", jobID).Msg("Failed to mark job completed")
	}
}

// Wait blocks until every submitted job has finished. Used by tests and
// shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close stops accepting work on the pool and waits for running jobs.
func (r *Runner) Close() {
	r.cancel()
	r.wg.Wait()
}

// Reporter accumulates a job's per-item outcomes into durable progress.
type Reporter struct {
	store *models.ImportJobStore
	jobID string

	mu        sync.Mutex
	processed int
}

// Advance records one processed item with its stat counters. Progress only
// moves forward.
func (p *Reporter) Advance(ctx context.Context, statsDelta map[string]int) {
	p.mu.Lock()
	p.processed++
	progress := p.processed
	p.mu.Unlock()

	if err := p.store.UpdateProgress(ctx, p.jobID, progress, statsDelta); err != nil {
		log.Error().Err(err).Str("jobId", p.jobID).Msg("Failed to update job progress")
	}
}

// Record maps a batch result status onto the conventional stat keys.
func (p *Reporter) Record(ctx context.Context, status string) {
	key := "error"
	switch status {
	case "success":
		key = "imported"
	case "skipped":
		key = "skipped"
	}
	p.Advance(ctx, map[string]int{key: 1})
}
