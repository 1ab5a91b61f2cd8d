// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/importarr/internal/importer"
	"github.com/autobrr/importarr/internal/models"
	"github.com/autobrr/importarr/internal/sourcesync"
)

// SourcesHandler serves the saved IPTV source and RSS feed CRUD plus the
// manual sync triggers.
type SourcesHandler struct {
	store *models.SourceStore
	sync  *sourcesync.Service
}

// NewSourcesHandler creates a new sources handler.
func NewSourcesHandler(store *models.SourceStore, syncService *sourcesync.Service) *SourcesHandler {
	return &SourcesHandler{
		store: store,
		sync:  syncService,
	}
}

// Routes registers source routes on the given router.
func (h *SourcesHandler) Routes(r chi.Router) {
	r.Route("/iptv", func(r chi.Router) {
		r.Get("/", h.ListIPTV)
		r.Post("/", h.CreateIPTV)
		r.Get("/{sourceID}", h.GetIPTV)
		r.Put("/{sourceID}", h.UpdateIPTV)
		r.Delete("/{sourceID}", h.DeleteIPTV)
		r.Post("/{sourceID}/sync", h.SyncIPTV)
	})
	r.Route("/rss", func(r chi.Router) {
		r.Get("/", h.ListRSS)
		r.Post("/", h.CreateRSS)
		r.Get("/{feedID}", h.GetRSS)
		r.Put("/{feedID}", h.UpdateRSS)
		r.Delete("/{feedID}", h.DeleteRSS)
		r.Post("/{feedID}/sync", h.SyncRSS)
	})
}

// --- IPTV sources ---

// iptvSourceRequest accepts the panel password on writes. The stored model
// never serializes it back out.
type iptvSourceRequest struct {
	models.IPTVSource
	Password string `json:"password,omitempty"`
}

// ListIPTV returns every saved playlist source.
func (h *SourcesHandler) ListIPTV(w http.ResponseWriter, r *http.Request) {
	sources, err := h.store.ListIPTVSources(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list iptv sources")
		RespondError(w, http.StatusInternalServerError, "Failed to list sources")
		return
	}
	if sources == nil {
		sources = []*models.IPTVSource{}
	}
	RespondJSON(w, http.StatusOK, sources)
}

// CreateIPTV saves a new playlist source.
func (h *SourcesHandler) CreateIPTV(w http.ResponseWriter, r *http.Request) {
	var req iptvSourceRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	src := req.IPTVSource
	src.Password = req.Password
	if src.Name == "" || src.URL == "" {
		RespondError(w, http.StatusBadRequest, "Name and URL are required")
		return
	}
	if src.Kind != models.IPTVSourceKindM3U && src.Kind != models.IPTVSourceKindXtream {
		RespondError(w, http.StatusBadRequest, "Kind must be m3u or xtream")
		return
	}

	created, err := h.store.CreateIPTVSource(r.Context(), &src)
	if err != nil {
		log.Error().Err(err).Str("name", src.Name).Msg("Failed to create iptv source")
		RespondError(w, http.StatusInternalServerError, "Failed to create source")
		return
	}
	RespondJSON(w, http.StatusCreated, created)
}

// GetIPTV returns one saved playlist source.
func (h *SourcesHandler) GetIPTV(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseIntParam64(w, r, "sourceID", "source ID")
	if !ok {
		return
	}

	src, err := h.store.GetIPTVSource(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("sourceId", id).Msg("Failed to get iptv source")
		RespondError(w, http.StatusInternalServerError, "Failed to get source")
		return
	}
	if src == nil {
		RespondError(w, http.StatusNotFound, "Source not found")
		return
	}
	RespondJSON(w, http.StatusOK, src)
}

// UpdateIPTV updates a saved playlist source in place.
func (h *SourcesHandler) UpdateIPTV(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseIntParam64(w, r, "sourceID", "source ID")
	if !ok {
		return
	}

	existing, err := h.store.GetIPTVSource(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("sourceId", id).Msg("Failed to get iptv source")
		RespondError(w, http.StatusInternalServerError, "Failed to get source")
		return
	}
	if existing == nil {
		RespondError(w, http.StatusNotFound, "Source not found")
		return
	}

	var req iptvSourceRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	src := req.IPTVSource
	src.Password = req.Password
	src.ID = id
	// A blank password keeps the stored one, so updates don't have to echo
	// the secret back.
	if src.Password == "" {
		src.Password = existing.Password
	}

	if err := h.store.UpdateIPTVSource(r.Context(), &src); err != nil {
		log.Error().Err(err).Int64("sourceId", id).Msg("Failed to update iptv source")
		RespondError(w, http.StatusInternalServerError, "Failed to update source")
		return
	}

	updated, err := h.store.GetIPTVSource(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("sourceId", id).Msg("Failed to reload iptv source")
		RespondError(w, http.StatusInternalServerError, "Failed to update source")
		return
	}
	RespondJSON(w, http.StatusOK, updated)
}

// DeleteIPTV removes a saved playlist source.
func (h *SourcesHandler) DeleteIPTV(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseIntParam64(w, r, "sourceID", "source ID")
	if !ok {
		return
	}

	if err := h.store.DeleteIPTVSource(r.Context(), id); err != nil {
		log.Error().Err(err).Int64("sourceId", id).Msg("Failed to delete iptv source")
		RespondError(w, http.StatusInternalServerError, "Failed to delete source")
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

// SyncIPTV triggers a manual sync of one playlist source.
func (h *SourcesHandler) SyncIPTV(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseIntParam64(w, r, "sourceID", "source ID")
	if !ok {
		return
	}

	job, err := h.sync.SyncIPTVSource(r.Context(), id)
	if h.respondSyncError(w, err, id) {
		return
	}
	RespondJSON(w, http.StatusAccepted, processingResponse{
		Status: importer.StatusProcessing,
		JobID:  job.ID,
		Total:  job.Total,
	})
}

// --- RSS feeds ---

// ListRSS returns every saved feed.
func (h *SourcesHandler) ListRSS(w http.ResponseWriter, r *http.Request) {
	feeds, err := h.store.ListRSSFeeds(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list rss feeds")
		RespondError(w, http.StatusInternalServerError, "Failed to list feeds")
		return
	}
	if feeds == nil {
		feeds = []*models.RSSFeed{}
	}
	RespondJSON(w, http.StatusOK, feeds)
}

// CreateRSS saves a new feed.
func (h *SourcesHandler) CreateRSS(w http.ResponseWriter, r *http.Request) {
	var feed models.RSSFeed
	if !DecodeJSON(w, r, &feed) {
		return
	}
	if feed.Name == "" || feed.URL == "" {
		RespondError(w, http.StatusBadRequest, "Name and URL are required")
		return
	}

	created, err := h.store.CreateRSSFeed(r.Context(), &feed)
	if err != nil {
		log.Error().Err(err).Str("name", feed.Name).Msg("Failed to create rss feed")
		RespondError(w, http.StatusInternalServerError, "Failed to create feed")
		return
	}
	RespondJSON(w, http.StatusCreated, created)
}

// GetRSS returns one saved feed.
func (h *SourcesHandler) GetRSS(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseIntParam64(w, r, "feedID", "feed ID")
	if !ok {
		return
	}

	feed, err := h.store.GetRSSFeed(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("feedId", id).Msg("Failed to get rss feed")
		RespondError(w, http.StatusInternalServerError, "Failed to get feed")
		return
	}
	if feed == nil {
		RespondError(w, http.StatusNotFound, "Feed not found")
		return
	}
	RespondJSON(w, http.StatusOK, feed)
}

// UpdateRSS updates a saved feed in place.
func (h *SourcesHandler) UpdateRSS(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseIntParam64(w, r, "feedID", "feed ID")
	if !ok {
		return
	}

	existing, err := h.store.GetRSSFeed(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("feedId", id).Msg("Failed to get rss feed")
		RespondError(w, http.StatusInternalServerError, "Failed to get feed")
		return
	}
	if existing == nil {
		RespondError(w, http.StatusNotFound, "Feed not found")
		return
	}

	var feed models.RSSFeed
	if !DecodeJSON(w, r, &feed) {
		return
	}
	feed.ID = id

	if err := h.store.UpdateRSSFeed(r.Context(), &feed); err != nil {
		log.Error().Err(err).Int64("feedId", id).Msg("Failed to update rss feed")
		RespondError(w, http.StatusInternalServerError, "Failed to update feed")
		return
	}

	updated, err := h.store.GetRSSFeed(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("feedId", id).Msg("Failed to reload rss feed")
		RespondError(w, http.StatusInternalServerError, "Failed to update feed")
		return
	}
	RespondJSON(w, http.StatusOK, updated)
}

// DeleteRSS removes a saved feed.
func (h *SourcesHandler) DeleteRSS(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseIntParam64(w, r, "feedID", "feed ID")
	if !ok {
		return
	}

	if err := h.store.DeleteRSSFeed(r.Context(), id); err != nil {
		log.Error().Err(err).Int64("feedId", id).Msg("Failed to delete rss feed")
		RespondError(w, http.StatusInternalServerError, "Failed to delete feed")
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

// SyncRSS triggers a manual sync of one feed.
func (h *SourcesHandler) SyncRSS(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseIntParam64(w, r, "feedID", "feed ID")
	if !ok {
		return
	}

	job, err := h.sync.SyncRSSFeed(r.Context(), id)
	if h.respondSyncError(w, err, id) {
		return
	}
	RespondJSON(w, http.StatusAccepted, processingResponse{
		Status: importer.StatusProcessing,
		JobID:  job.ID,
		Total:  job.Total,
	})
}

func (h *SourcesHandler) respondSyncError(w http.ResponseWriter, err error, id int64) bool {
	if err == nil {
		return false
	}
	if RespondNotFoundIfNoRows(w, err, "Source not found") {
		return true
	}
	if errors.Is(err, sourcesync.ErrSyncInProgress) {
		RespondError(w, http.StatusConflict, "Sync already in progress")
		return true
	}
	log.Error().Err(err).Int64("id", id).Msg("Failed to start sync")
	RespondError(w, http.StatusBadGateway, "Failed to reach source")
	return true
}
