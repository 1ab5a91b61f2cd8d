// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/importarr/internal/analysis"
	"github.com/autobrr/importarr/internal/importer"
	"github.com/autobrr/importarr/internal/jobs"
)

// maxUploadSize caps one uploaded .torrent or .nzb document.
const maxUploadSize = 64 << 20

// ImportOptions is the options envelope shared by every import endpoint. In
// multipart requests it arrives JSON-encoded in the "options" form field.
type ImportOptions struct {
	ForceImport bool `json:"forceImport,omitempty"`
	// AcknowledgedErrors is the errors array from the validation_failed
	// response being overridden; forceImport waives exactly those.
	AcknowledgedErrors []importer.ValidationError `json:"acknowledgedErrors,omitempty"`
	AutoCreate         bool                       `json:"autoCreate,omitempty"`
	Selection          *importer.Selection        `json:"selection,omitempty"`
	FileData           []analysis.FileEntry       `json:"fileData,omitempty"`
	Annotation         *importer.Annotation       `json:"annotation,omitempty"`
}

func (o ImportOptions) toPipeline() importer.Options {
	return importer.Options{
		Selection:    o.Selection,
		ForceImport:  o.ForceImport,
		Acknowledged: o.AcknowledgedErrors,
		FileData:     o.FileData,
		Annotation:   o.Annotation,
		AutoCreate:   o.AutoCreate,
	}
}

// ImportsHandler serves the single-item import endpoints: torrent, magnet,
// NZB, and direct URLs.
type ImportsHandler struct {
	analyzer *analysis.Service
	importer *importer.Service
	runner   *jobs.Runner
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(analyzer *analysis.Service, imp *importer.Service, runner *jobs.Runner) *ImportsHandler {
	return &ImportsHandler{
		analyzer: analyzer,
		importer: imp,
		runner:   runner,
	}
}

// Routes registers import routes on the given router.
func (h *ImportsHandler) Routes(r chi.Router) {
	r.Post("/torrent", h.ImportTorrent)
	r.Post("/nzb", h.ImportNZB)
	r.Post("/url", h.ImportURL)
}

type torrentImportRequest struct {
	Magnet string `json:"magnet"`
	ImportOptions
}

// ImportTorrent imports one torrent, either an uploaded .torrent document
// (multipart) or a magnet URI (JSON). The outcome comes back synchronously.
func (h *ImportsHandler) ImportTorrent(w http.ResponseWriter, r *http.Request) {
	if isMultipart(r) {
		data, opts, ok := readUpload(w, r)
		if !ok {
			return
		}
		item, err := h.analyzer.Torrent(r.Context(), data)
		if err != nil {
			if !respondAnalysisError(w, err) {
				log.Error().Err(err).Msg("Failed to analyze torrent")
				RespondError(w, http.StatusInternalServerError, "Failed to analyze torrent")
			}
			return
		}
		h.respondOutcome(w, r, item, opts)
		return
	}

	var req torrentImportRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Magnet) == "" {
		RespondError(w, http.StatusBadRequest, "Magnet URI is required")
		return
	}

	item, err := h.analyzer.Magnet(r.Context(), req.Magnet)
	if err != nil {
		if !respondAnalysisError(w, err) {
			log.Error().Err(err).Msg("Failed to parse magnet")
			RespondError(w, http.StatusInternalServerError, "Failed to parse magnet")
		}
		return
	}
	h.respondOutcome(w, r, item, req.ImportOptions)
}

type nzbImportRequest struct {
	URL string `json:"url"`
	ImportOptions
}

// ImportNZB imports one NZB document, uploaded or fetched from a URL.
func (h *ImportsHandler) ImportNZB(w http.ResponseWriter, r *http.Request) {
	if isMultipart(r) {
		data, opts, ok := readUpload(w, r)
		if !ok {
			return
		}
		item, err := h.analyzer.NZB(r.Context(), data)
		if err != nil {
			if !respondAnalysisError(w, err) {
				log.Error().Err(err).Msg("Failed to analyze NZB")
				RespondError(w, http.StatusInternalServerError, "Failed to analyze NZB")
			}
			return
		}
		h.respondOutcome(w, r, item, opts)
		return
	}

	var req nzbImportRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		RespondError(w, http.StatusBadRequest, "URL is required")
		return
	}

	item, err := h.analyzer.NZBFromURL(r.Context(), req.URL)
	if err != nil {
		if !respondAnalysisError(w, err) {
			log.Error().Err(err).Str("url", req.URL).Msg("Failed to fetch NZB")
			RespondError(w, http.StatusInternalServerError, "Failed to fetch NZB")
		}
		return
	}
	h.respondOutcome(w, r, item, req.ImportOptions)
}

type urlImportRequest struct {
	URL string `json:"url"`
	ImportOptions
}

// ImportURL imports one direct stream URL: YouTube, AceStream, or a plain
// HTTP media file.
func (h *ImportsHandler) ImportURL(w http.ResponseWriter, r *http.Request) {
	var req urlImportRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		RespondError(w, http.StatusBadRequest, "URL is required")
		return
	}

	item, err := h.analyzer.URL(r.Context(), req.URL)
	if err != nil {
		if !respondAnalysisError(w, err) {
			log.Error().Err(err).Str("url", req.URL).Msg("Failed to analyze URL")
			RespondError(w, http.StatusInternalServerError, "Failed to analyze URL")
		}
		return
	}
	h.respondOutcome(w, r, item, req.ImportOptions)
}

// respondOutcome runs the back half of the pipeline and writes the outcome.
// Pipeline statuses are data, not HTTP errors; only storage faults get a 500.
func (h *ImportsHandler) respondOutcome(w http.ResponseWriter, r *http.Request, item *analysis.Item, opts ImportOptions) {
	outcome, err := h.importer.Process(r.Context(), item, opts.toPipeline())
	if err != nil {
		log.Error().Err(err).Str("contentId", item.ContentID).Msg("Import failed")
		RespondError(w, http.StatusInternalServerError, "Import failed")
		return
	}
	RespondJSON(w, http.StatusOK, outcome)
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// readUpload pulls the uploaded document from the "file" field and the
// JSON-encoded options from the optional "options" field.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, ImportOptions, bool) {
	var opts ImportOptions

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid multipart request")
		return nil, opts, false
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		RespondError(w, http.StatusBadRequest, "File upload is required")
		return nil, opts, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Failed to read upload")
		return nil, opts, false
	}

	if raw := r.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			RespondError(w, http.StatusBadRequest, "Invalid options field")
			return nil, opts, false
		}
	}

	return data, opts, true
}
