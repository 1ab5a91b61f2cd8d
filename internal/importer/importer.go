// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package importer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/importarr/internal/analysis"
	"github.com/autobrr/importarr/internal/dbinterface"
	"github.com/autobrr/importarr/internal/matcher"
	"github.com/autobrr/importarr/internal/models"
)

// Selection names the media record an item commits against: an existing
// catalog id, a provider identity to catalogue, or nothing, in which case a
// new media record is created from the item's own parsed fields.
type Selection struct {
	MediaID    *int64          `json:"mediaId,omitempty"`
	Provider   string          `json:"provider,omitempty"`
	ExternalID string          `json:"externalId,omitempty"`
	Title      string          `json:"title,omitempty"`
	Year       int             `json:"year,omitempty"`
	MetaType   models.MetaType `json:"metaType,omitempty"`
	Poster     string          `json:"poster,omitempty"`
	Popularity float64         `json:"popularity,omitempty"`
}

// SelectionFromMatch converts a ranked candidate into a commit selection.
func SelectionFromMatch(m *matcher.Match) *Selection {
	if m == nil {
		return nil
	}
	return &Selection{
		MediaID:    m.MediaID,
		Provider:   m.Provider,
		ExternalID: m.ExternalID,
		Title:      m.Title,
		Year:       m.Year,
		MetaType:   m.MetaType,
		Poster:     m.Poster,
		Popularity: m.Popularity,
	}
}

// Options steer one item's trip through the pipeline.
type Options struct {
	// Selection is the explicit media choice; nil lets the zero-ambiguity
	// auto-accept rule decide.
	Selection *Selection
	// ForceImport waives the soft validation errors listed in Acknowledged
	// and suppresses the auto-accept rule.
	ForceImport bool
	// Acknowledged is the error set from an earlier validation_failed
	// outcome, echoed back so the waiver covers only violations the client
	// has actually seen. Violations outside this set still fail.
	Acknowledged []ValidationError
	// FileData replaces the adapter-produced file list with the client's
	// annotated copy from a needs_annotation round trip.
	FileData []analysis.FileEntry
	// Annotation applies bulk/distribution/override assignment before
	// validation.
	Annotation *Annotation
	// AutoCreate commits items without any match as new media records
	// instead of reporting the ambiguity. Batch imports set this.
	AutoCreate bool
}

// Service is the validation + commit half of the pipeline. All writes go
// through it, one transaction per item.
type Service struct {
	catalog *models.CatalogStore
	matcher *matcher.Service
	db      dbinterface.TxBeginner
	policy  Policy
}

// NewService creates an importer committing through the given transaction
// beginner.
func NewService(catalog *models.CatalogStore, m *matcher.Service, db dbinterface.TxBeginner, policy Policy) *Service {
	return &Service{
		catalog: catalog,
		matcher: m,
		db:      db,
		policy:  policy,
	}
}

// Process pushes one analyzed item through match, validate, annotate, and
// commit. Every failure mode comes back as an outcome status; the error
// return is reserved for storage-level faults.
func (s *Service) Process(ctx context.Context, item *analysis.Item, opts Options) (*Outcome, error) {
	work := *item
	if opts.FileData != nil {
		work.Files = opts.FileData
	}
	if opts.Annotation != nil && work.Files != nil {
		annotated, err := Annotate(work.Files, *opts.Annotation)
		if err != nil {
			return &Outcome{
				Status:    StatusError,
				ContentID: work.ContentID,
				Message:   err.Error(),
			}, nil
		}
		work.Files = annotated
	}

	matches, err := s.matcher.Match(ctx, work.Title, work.Year, work.MetaType)
	if err != nil {
		return nil, err
	}

	selection := opts.Selection
	var match *matcher.Match
	if selection == nil {
		if auto := matcher.AutoSelect(matches, opts.ForceImport); auto != nil {
			match = auto
			selection = SelectionFromMatch(auto)
		}
	} else {
		match = matchForSelection(matches, selection)
	}

	if selection == nil {
		if len(matches) > 0 {
			return &Outcome{
				Status:    StatusWarning,
				ContentID: work.ContentID,
				Message:   "multiple candidates, selection required",
				Matches:   matches,
				Files:     work.Files,
			}, nil
		}
		if !opts.AutoCreate {
			return &Outcome{
				Status:    StatusWarning,
				ContentID: work.ContentID,
				Message:   "no candidates found, manual selection required",
				Files:     work.Files,
			}, nil
		}
		// Batch path: catalogue the item under its own parsed identity.
		selection = &Selection{
			Title:    work.Title,
			Year:     work.Year,
			MetaType: work.MetaType,
		}
	}

	if outcome, err := s.Validate(ctx, &work, match, opts.ForceImport, opts.Acknowledged); err != nil {
		return nil, err
	} else if outcome != nil {
		return outcome, nil
	}

	return s.Commit(ctx, &work, selection)
}

// Commit persists the stream and its included files against the selected
// media record, all-or-nothing. Re-submitting a content identity updates the
// existing stream rather than duplicating it.
func (s *Service) Commit(ctx context.Context, item *analysis.Item, selection *Selection) (*Outcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin import tx: %w", err)
	}
	defer tx.Rollback()

	media, err := s.resolveMedia(ctx, tx, item, selection)
	if err != nil {
		return nil, err
	}
	if media == nil {
		return &Outcome{
			Status:    StatusError,
			ContentID: item.ContentID,
			Message:   fmt.Sprintf("selected media %d does not exist", derefID(selection.MediaID)),
		}, nil
	}

	streamID, created, err := s.catalog.UpsertStream(ctx, tx, &models.Stream{
		MediaID:    media.ID,
		SourceKind: string(item.SourceKind),
		ContentID:  item.ContentID,
		Title:      item.Title,
		URL:        item.StreamURL,
		Resolution: item.Resolution,
		Codec:      item.Codec,
		Audio:      item.Audio,
		HDR:        item.HDR,
		Languages:  item.Languages,
	})
	if err != nil {
		return nil, err
	}

	// A nil file list (unresolved magnet) leaves any previously stored files
	// untouched; a known list replaces them with the included subset.
	if item.Files != nil {
		files := make([]models.StreamFile, 0, len(item.Files))
		for _, f := range item.IncludedFiles() {
			files = append(files, models.StreamFile{
				Index:      f.Index,
				Name:       f.Name,
				Size:       f.Size,
				Season:     f.Season,
				Episode:    f.Episode,
				EpisodeEnd: f.EpisodeEnd,
			})
		}
		if err := s.catalog.ReplaceStreamFiles(ctx, tx, streamID, files); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import tx: %w", err)
	}

	log.Info().
		Str("contentId", item.ContentID).
		Int64("mediaId", media.ID).
		Int64("streamId", streamID).
		Bool("created", created).
		Str("sourceKind", string(item.SourceKind)).
		Msg("Imported stream")

	return &Outcome{
		Status:    StatusSuccess,
		ContentID: item.ContentID,
		MediaID:   media.ID,
		StreamID:  streamID,
	}, nil
}

// resolveMedia finds or creates the media record a commit links against.
func (s *Service) resolveMedia(ctx context.Context, tx dbinterface.Querier, item *analysis.Item, selection *Selection) (*models.Media, error) {
	if selection.MediaID != nil {
		return s.mediaByID(ctx, tx, *selection.MediaID)
	}

	metaType := selection.MetaType
	if metaType == "" || metaType == models.MetaTypeUnknown {
		metaType = item.MetaType
	}
	title := selection.Title
	if title == "" {
		title = item.Title
	}

	return s.catalog.CreateMedia(ctx, tx, &models.Media{
		MetaType:   metaType,
		Title:      title,
		Year:       selection.Year,
		Poster:     selection.Poster,
		Provider:   selection.Provider,
		ExternalID: selection.ExternalID,
		Popularity: selection.Popularity,
	})
}

// mediaByID reads a media row through the transaction.
func (s *Service) mediaByID(ctx context.Context, q dbinterface.Querier, id int64) (*models.Media, error) {
	scoped := models.NewCatalogStore(q)
	return scoped.GetMedia(ctx, id)
}

// matchForSelection recovers the ranked candidate an explicit selection
// refers to, so the soft title check runs against the same metadata the
// client saw.
func matchForSelection(matches []matcher.Match, selection *Selection) *matcher.Match {
	for i := range matches {
		m := &matches[i]
		if selection.MediaID != nil && m.MediaID != nil && *m.MediaID == *selection.MediaID {
			return m
		}
		if selection.ExternalID != "" && m.ExternalID == selection.ExternalID {
			return m
		}
	}
	return nil
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
