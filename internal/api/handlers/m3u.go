// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/importarr/internal/analysis"
	"github.com/autobrr/importarr/internal/importer"
	"github.com/autobrr/importarr/internal/jobs"
	"github.com/autobrr/importarr/internal/models"
)

// M3UHandler serves playlist analysis and batch import.
type M3UHandler struct {
	analyzer *analysis.Service
	importer *importer.Service
	runner   *jobs.Runner
}

// NewM3UHandler creates a new M3U handler.
func NewM3UHandler(analyzer *analysis.Service, imp *importer.Service, runner *jobs.Runner) *M3UHandler {
	return &M3UHandler{
		analyzer: analyzer,
		importer: imp,
		runner:   runner,
	}
}

// Routes registers M3U routes on the given router.
func (h *M3UHandler) Routes(r chi.Router) {
	r.Post("/analyze", h.Analyze)
	r.Post("/", h.Import)
}

type m3uAnalyzeRequest struct {
	URL     string `json:"url,omitempty"`
	Content string `json:"content,omitempty"`
}

// Analyze parses a playlist from a URL or an inline body and parks the batch
// under an opaque handle for the import call.
func (h *M3UHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req m3uAnalyzeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	var batch *analysis.M3UBatch
	var err error
	switch {
	case strings.TrimSpace(req.URL) != "":
		batch, err = h.analyzer.M3UFromURL(r.Context(), req.URL)
	case req.Content != "":
		batch, err = h.analyzer.M3U(r.Context(), []byte(req.Content))
	default:
		RespondError(w, http.StatusBadRequest, "Either url or content is required")
		return
	}
	if err != nil {
		if !respondAnalysisError(w, err) {
			log.Error().Err(err).Msg("Failed to analyze playlist")
			RespondError(w, http.StatusInternalServerError, "Failed to analyze playlist")
		}
		return
	}

	RespondJSON(w, http.StatusOK, batch)
}

// ChannelSelection picks one analyzed channel for import, optionally
// overriding its detected type or pinning it to a media record.
type ChannelSelection struct {
	Index      int             `json:"index"`
	Type       models.MetaType `json:"type,omitempty"`
	MediaID    *int64          `json:"mediaId,omitempty"`
	ExternalID string          `json:"externalId,omitempty"`
}

type m3uImportRequest struct {
	Handle      string             `json:"handle"`
	Channels    []ChannelSelection `json:"channels,omitempty"`
	ForceImport bool               `json:"forceImport,omitempty"`
}

// Import schedules the selected channels of an analyzed playlist as a
// background job. An empty selection imports the whole batch.
func (h *M3UHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req m3uImportRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Handle == "" {
		RespondError(w, http.StatusBadRequest, "Handle is required")
		return
	}

	batch, err := h.analyzer.M3UByHandle(req.Handle)
	if err != nil {
		if !respondAnalysisError(w, err) {
			RespondError(w, http.StatusInternalServerError, "Failed to load analyzed playlist")
		}
		return
	}

	byIndex := make(map[int]analysis.Channel, len(batch.Channels))
	for _, ch := range batch.Channels {
		byIndex[ch.Index] = ch
	}

	selections := req.Channels
	if len(selections) == 0 {
		selections = make([]ChannelSelection, 0, len(batch.Channels))
		for _, ch := range batch.Channels {
			selections = append(selections, ChannelSelection{Index: ch.Index})
		}
	}

	work := make([]batchItem, 0, len(selections))
	for _, sel := range selections {
		ch, ok := byIndex[sel.Index]
		if !ok {
			RespondError(w, http.StatusBadRequest, "Unknown channel index in selection")
			return
		}

		opts := importer.Options{AutoCreate: true, ForceImport: req.ForceImport}
		if sel.MediaID != nil || sel.ExternalID != "" {
			opts.Selection = &importer.Selection{
				MediaID:    sel.MediaID,
				ExternalID: sel.ExternalID,
			}
		}
		work = append(work, batchItem{
			item: h.analyzer.ChannelItem(ch, sel.Type),
			opts: opts,
		})
	}

	job, err := submitBatch(r.Context(), h.runner, h.importer, "m3u", work)
	if err != nil {
		log.Error().Err(err).Msg("Failed to schedule playlist import")
		RespondError(w, http.StatusInternalServerError, "Failed to schedule playlist import")
		return
	}

	RespondJSON(w, http.StatusAccepted, processingResponse{
		Status: importer.StatusProcessing,
		JobID:  job.ID,
		Total:  job.Total,
	})
}
