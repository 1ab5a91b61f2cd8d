// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/importarr/internal/models"
)

func TestImportJobLifecycle(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	store := models.NewImportJobStore(db)
	ctx := context.Background()

	job, err := store.Create(ctx, "m3u", 10, nil)
	require.NoError(t, err)
	assert.Len(t, job.ID, 32)
	assert.Equal(t, models.ImportJobStatusQueued, job.Status)

	claimed, err := store.MarkProcessing(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	// A second claim on the same job loses.
	claimed, err = store.MarkProcessing(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, store.UpdateProgress(ctx, job.ID, 4, map[string]int{"imported": 3, "skipped": 1}))
	require.NoError(t, store.UpdateProgress(ctx, job.ID, 10, map[string]int{"imported": 5, "error": 1}))

	require.NoError(t, store.MarkCompleted(ctx, job.ID))

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.ImportJobStatusCompleted, got.Status)
	assert.Equal(t, got.Total, got.Progress)
	assert.Equal(t, map[string]int{"imported": 8, "skipped": 1, "error": 1}, got.Stats)
}

func TestImportJobProgressMonotonic(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	store := models.NewImportJobStore(db)
	ctx := context.Background()

	job, err := store.Create(ctx, "torrent", 5, nil)
	require.NoError(t, err)

	require.NoError(t, store.UpdateProgress(ctx, job.ID, 3, nil))
	require.NoError(t, store.UpdateProgress(ctx, job.ID, 1, nil))

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Progress)
}

func TestImportJobGetUnknown(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	store := models.NewImportJobStore(db)

	job, err := store.Get(context.Background(), "ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestCancelQueuedJob(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	store := models.NewImportJobStore(db)
	ctx := context.Background()

	job, err := store.Create(ctx, "xtream", 100, nil)
	require.NoError(t, err)

	require.NoError(t, store.CancelQueued(ctx, job.ID))

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportJobStatusFailed, got.Status)
	assert.Equal(t, "canceled before start", got.ErrorMessage)
}

func TestCancelProcessingJobRefused(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	store := models.NewImportJobStore(db)
	ctx := context.Background()

	job, err := store.Create(ctx, "xtream", 100, nil)
	require.NoError(t, err)

	_, err = store.MarkProcessing(ctx, job.ID)
	require.NoError(t, err)

	err = store.CancelQueued(ctx, job.ID)
	assert.ErrorIs(t, err, models.ErrJobNotCancellable)
}

func TestCancelUnknownJob(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	store := models.NewImportJobStore(db)

	err := store.CancelQueued(context.Background(), "ffffffffffffffffffffffffffffffff")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestMarkFailed(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	store := models.NewImportJobStore(db)
	ctx := context.Background()

	job, err := store.Create(ctx, "nzb", 1, nil)
	require.NoError(t, err)
	require.NoError(t, store.MarkFailed(ctx, job.ID, "source unreachable"))

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportJobStatusFailed, got.Status)
	assert.Equal(t, "source unreachable", got.ErrorMessage)
}

func TestDeleteOlderThan(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	store := models.NewImportJobStore(db)
	ctx := context.Background()

	done, err := store.Create(ctx, "m3u", 1, nil)
	require.NoError(t, err)
	require.NoError(t, store.MarkCompleted(ctx, done.ID))

	active, err := store.Create(ctx, "m3u", 1, nil)
	require.NoError(t, err)

	// Everything before a future cutoff qualifies, but only terminal jobs go.
	removed, err := store.DeleteOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	remaining, err := store.Get(ctx, active.ID)
	require.NoError(t, err)
	assert.NotNil(t, remaining)
}
