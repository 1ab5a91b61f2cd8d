// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/importarr/internal/analysis"
	"github.com/autobrr/importarr/internal/importer"
	"github.com/autobrr/importarr/internal/jobs"
)

// XtreamHandler serves panel analysis and category batch import.
type XtreamHandler struct {
	analyzer *analysis.Service
	importer *importer.Service
	runner   *jobs.Runner
}

// NewXtreamHandler creates a new Xtream handler.
func NewXtreamHandler(analyzer *analysis.Service, imp *importer.Service, runner *jobs.Runner) *XtreamHandler {
	return &XtreamHandler{
		analyzer: analyzer,
		importer: imp,
		runner:   runner,
	}
}

// Routes registers Xtream routes on the given router.
func (h *XtreamHandler) Routes(r chi.Router) {
	r.Post("/analyze", h.Analyze)
	r.Post("/", h.Import)
}

// Analyze authenticates against a panel and returns its category trees under
// an opaque handle. The credentials never leave the server again.
func (h *XtreamHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var creds analysis.XtreamCredentials
	if !DecodeJSON(w, r, &creds) {
		return
	}

	catalog, err := h.analyzer.Xtream(r.Context(), creds)
	if err != nil {
		if !respondAnalysisError(w, err) {
			log.Error().Err(err).Msg("Failed to analyze Xtream panel")
			RespondError(w, http.StatusInternalServerError, "Failed to analyze Xtream panel")
		}
		return
	}

	RespondJSON(w, http.StatusOK, catalog)
}

type xtreamImportRequest struct {
	Handle      string   `json:"handle"`
	CategoryIDs []string `json:"categoryIds"`
	ForceImport bool     `json:"forceImport,omitempty"`
}

// Import expands the selected categories of an analyzed panel and schedules
// them as a background job.
func (h *XtreamHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req xtreamImportRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Handle == "" {
		RespondError(w, http.StatusBadRequest, "Handle is required")
		return
	}
	if len(req.CategoryIDs) == 0 {
		RespondError(w, http.StatusBadRequest, "At least one category is required")
		return
	}

	catalog, err := h.analyzer.XtreamByHandle(req.Handle)
	if err != nil {
		if !respondAnalysisError(w, err) {
			RespondError(w, http.StatusInternalServerError, "Failed to load analyzed panel")
		}
		return
	}

	items, err := h.analyzer.XtreamItems(r.Context(), catalog, req.CategoryIDs)
	if err != nil {
		if !respondAnalysisError(w, err) {
			log.Error().Err(err).Msg("Failed to expand Xtream categories")
			RespondError(w, http.StatusInternalServerError, "Failed to expand Xtream categories")
		}
		return
	}

	work := make([]batchItem, 0, len(items))
	for _, item := range items {
		work = append(work, batchItem{
			item: item,
			opts: importer.Options{AutoCreate: true, ForceImport: req.ForceImport},
		})
	}

	job, err := submitBatch(r.Context(), h.runner, h.importer, "xtream", work)
	if err != nil {
		log.Error().Err(err).Msg("Failed to schedule Xtream import")
		RespondError(w, http.StatusInternalServerError, "Failed to schedule Xtream import")
		return
	}

	RespondJSON(w, http.StatusAccepted, processingResponse{
		Status: importer.StatusProcessing,
		JobID:  job.ID,
		Total:  job.Total,
	})
}
