// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/importarr/internal/models"
)

// JobsHandler serves the background job poll and cancel endpoints.
type JobsHandler struct {
	store *models.ImportJobStore
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store *models.ImportJobStore) *JobsHandler {
	return &JobsHandler{store: store}
}

// Routes registers job routes on the given router.
func (h *JobsHandler) Routes(r chi.Router) {
	r.Get("/{jobID}", h.GetJob)
	r.Delete("/{jobID}", h.CancelJob)
}

// GetJob polls one job. An unknown or expired id gets a synthesized
// not_found status instead of a bare 404 body, so pollers handle cleanup of
// old jobs the same way as a typo.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := ParseStringParam(w, r, "jobID", "job ID")
	if !ok {
		return
	}

	job, err := h.store.Get(r.Context(), jobID)
	if err != nil {
		log.Error().Err(err).Str("jobId", jobID).Msg("Failed to get job")
		RespondError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}
	if job == nil {
		RespondJSON(w, http.StatusNotFound, models.ImportJob{
			ID:     jobID,
			Status: models.ImportJobStatusNotFound,
		})
		return
	}

	RespondJSON(w, http.StatusOK, job)
}

// CancelJob cancels a still-queued job. A job already claimed by a worker
// runs to completion.
func (h *JobsHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := ParseStringParam(w, r, "jobID", "job ID")
	if !ok {
		return
	}

	err := h.store.CancelQueued(r.Context(), jobID)
	if RespondNotFoundIfNoRows(w, err, "Job not found") {
		return
	}
	if errors.Is(err, models.ErrJobNotCancellable) {
		RespondError(w, http.StatusConflict, "Job is already processing")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("jobId", jobID).Msg("Failed to cancel job")
		RespondError(w, http.StatusInternalServerError, "Failed to cancel job")
		return
	}

	job, err := h.store.Get(r.Context(), jobID)
	if err != nil || job == nil {
		RespondJSON(w, http.StatusOK, nil)
		return
	}
	RespondJSON(w, http.StatusOK, job)
}
