// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package importer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/importarr/internal/analysis"
	"github.com/autobrr/importarr/internal/database"
	"github.com/autobrr/importarr/internal/matcher"
	"github.com/autobrr/importarr/internal/models"
)

type testEnv struct {
	db      *database.DB
	catalog *models.CatalogStore
	svc     *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	catalog := models.NewCatalogStore(db)
	m := matcher.NewService(catalog, nil)
	return &testEnv{
		db:      db,
		catalog: catalog,
		svc:     NewService(catalog, m, db, DefaultPolicy()),
	}
}

func (e *testEnv) seedMedia(t *testing.T, m *models.Media) *models.Media {
	t.Helper()
	created, err := e.catalog.CreateMedia(context.Background(), nil, m)
	require.NoError(t, err)
	return created
}

func movieItem(contentID string) *analysis.Item {
	return &analysis.Item{
		SourceKind: analysis.SourceTorrent,
		ContentID:  contentID,
		Title:      "The Matrix",
		Year:       1999,
		MetaType:   models.MetaTypeMovie,
		Resolution: "1080p",
		Files: []analysis.FileEntry{
			{Name: "The.Matrix.1999.1080p.BluRay.x264-GROUP.mkv", Size: 8 << 30, Index: 0, Included: true},
		},
	}
}

func TestProcessMovieExactMatch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	media := env.seedMedia(t, &models.Media{MetaType: models.MetaTypeMovie, Title: "The Matrix", Year: 1999})

	outcome, err := env.svc.Process(context.Background(), movieItem("abc123abc123abc123abc123abc123abc123abc1"), Options{})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, outcome.Status)
	assert.Equal(t, media.ID, outcome.MediaID)
	assert.NotZero(t, outcome.StreamID)

	stream, err := env.catalog.FindStreamByContentID(context.Background(), "abc123abc123abc123abc123abc123abc123abc1")
	require.NoError(t, err)
	require.NotNil(t, stream)
	assert.Equal(t, media.ID, stream.MediaID)
}

func TestProcessDoubleImportYieldsOneStream(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	media := env.seedMedia(t, &models.Media{MetaType: models.MetaTypeMovie, Title: "The Matrix", Year: 1999})
	ctx := context.Background()

	first, err := env.svc.Process(ctx, movieItem("feedfacefeedfacefeedfacefeedfacefeedface"), Options{})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, first.Status)

	second, err := env.svc.Process(ctx, movieItem("feedfacefeedfacefeedfacefeedfacefeedface"), Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusError, second.Status)
	require.Len(t, second.Errors, 1)
	assert.Equal(t, ErrTypeDuplicateContent, second.Errors[0].Type)

	count, err := env.catalog.CountStreams(ctx, media.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// In a batch, the duplicate counts as skipped, not failed.
	item := ResultItemFor(second.ContentID, second)
	assert.Equal(t, ResultSkipped, item.Status)
}

func TestProcessNeedsAnnotationRoundTrip(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	item := &analysis.Item{
		SourceKind: analysis.SourceNZB,
		ContentID:  "0123456789012345678901234567890123456789",
		Title:      "Example Show",
		MetaType:   models.MetaTypeSeries,
		Files: []analysis.FileEntry{
			{Name: "example-show-part1.mkv", Size: 2 << 30, Index: 0, Included: true},
			{Name: "example-show-part2.mkv", Size: 2 << 30, Index: 1, Included: true},
		},
	}

	outcome, err := env.svc.Process(ctx, item, Options{AutoCreate: true})
	require.NoError(t, err)
	require.Equal(t, StatusNeedsAnnotation, outcome.Status)
	// The response carries the exact file list the client must re-submit.
	require.Len(t, outcome.Files, len(item.Files))

	// Round trip: the client annotates the echoed files and re-submits them
	// as file data; the original upload is not needed again.
	season := 1
	ep1, ep2 := 1, 2
	fileData := outcome.Files
	fileData[0].Season, fileData[0].Episode = &season, &ep1
	fileData[1].Season, fileData[1].Episode = &season, &ep2

	retry, err := env.svc.Process(ctx, item, Options{AutoCreate: true, FileData: fileData})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, retry.Status)

	files, err := env.catalog.ListStreamFiles(ctx, retry.StreamID)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestProcessAnnotationExcludedFilesNotPersisted(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	item := &analysis.Item{
		SourceKind: analysis.SourceTorrent,
		ContentID:  "4444444444444444444444444444444444444444",
		Title:      "Example Show",
		MetaType:   models.MetaTypeSeries,
		Files: []analysis.FileEntry{
			{Name: "Episode 1.mkv", Size: 2 << 30, Index: 0, Included: true},
			{Name: "Episode 2.mkv", Size: 2 << 30, Index: 1, Included: true},
			{Name: "sample.mkv", Size: 2 << 30, Index: 2, Included: true},
		},
	}

	excluded := false
	outcome, err := env.svc.Process(ctx, item, Options{
		AutoCreate: true,
		Annotation: &Annotation{
			Seasons:   "1",
			Mode:      AnnotationModeAuto,
			Overrides: []FileOverride{{Index: 2, Included: &excluded}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, outcome.Status)

	files, err := env.catalog.ListStreamFiles(ctx, outcome.StreamID)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestProcessForceImportScopedToPayload(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	media := env.seedMedia(t, &models.Media{MetaType: models.MetaTypeMovie, Title: "The Matrix", Year: 1999})
	ctx := context.Background()

	item := movieItem("5555555555555555555555555555555555555555")
	item.Files[0].Size = 4096 // implausibly small for a feature film
	selection := &Selection{MediaID: &media.ID}

	first, err := env.svc.Process(ctx, item, Options{Selection: selection})
	require.NoError(t, err)
	require.Equal(t, StatusValidationFailed, first.Status)
	require.Len(t, first.Errors, 1)
	assert.Equal(t, ErrTypeSuspiciousSize, first.Errors[0].Type)

	// Identical payload without the override reproduces identical errors.
	repeat, err := env.svc.Process(ctx, item, Options{Selection: selection})
	require.NoError(t, err)
	assert.Equal(t, first.Errors, repeat.Errors)

	// forceImport with the reported errors echoed back accepts exactly
	// that set.
	forced, err := env.svc.Process(ctx, item, Options{Selection: selection, ForceImport: true, Acknowledged: first.Errors})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, forced.Status)
}

func TestProcessForceImportRejectsUnseenViolations(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	media := env.seedMedia(t, &models.Media{MetaType: models.MetaTypeMovie, Title: "The Matrix", Year: 1999})
	ctx := context.Background()

	item := movieItem("5656565656565656565656565656565656565656")
	item.Files[0].Size = 4096
	selection := &Selection{MediaID: &media.ID}

	first, err := env.svc.Process(ctx, item, Options{Selection: selection})
	require.NoError(t, err)
	require.Equal(t, StatusValidationFailed, first.Status)

	// forceImport without the echoed errors waives nothing.
	blind, err := env.svc.Process(ctx, item, Options{Selection: selection, ForceImport: true})
	require.NoError(t, err)
	require.Equal(t, StatusValidationFailed, blind.Status)
	assert.Equal(t, first.Errors, blind.Errors)

	// A changed payload violates the same rule with a different error; the
	// stale consent does not cover it.
	item.Files[0].Size = 2048
	changed, err := env.svc.Process(ctx, item, Options{Selection: selection, ForceImport: true, Acknowledged: first.Errors})
	require.NoError(t, err)
	require.Equal(t, StatusValidationFailed, changed.Status)
	require.Len(t, changed.Errors, 1)
	assert.Equal(t, ErrTypeSuspiciousSize, changed.Errors[0].Type)
	assert.NotEqual(t, first.Errors, changed.Errors)
}

func TestProcessTitleMismatch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	media := env.seedMedia(t, &models.Media{
		MetaType: models.MetaTypeMovie,
		Title:    "The Matrix Reloaded Anniversary Collector Edition",
		Year:     2003,
	})
	ctx := context.Background()

	item := movieItem("6666666666666666666666666666666666666666")
	item.Title = "Matrix"
	item.Year = 2003

	outcome, err := env.svc.Process(ctx, item, Options{Selection: &Selection{MediaID: &media.ID}})
	require.NoError(t, err)
	require.Equal(t, StatusValidationFailed, outcome.Status)

	types := make([]string, 0, len(outcome.Errors))
	for _, e := range outcome.Errors {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, ErrTypeTitleMismatch)
}

func TestProcessAmbiguousMatches(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedMedia(t, &models.Media{MetaType: models.MetaTypeMovie, Title: "The Matrix", Year: 1999, Provider: "imdb", ExternalID: "tt0133093"})
	env.seedMedia(t, &models.Media{MetaType: models.MetaTypeMovie, Title: "The Matrix", Year: 1999, Provider: "tmdb", ExternalID: "603"})

	outcome, err := env.svc.Process(context.Background(), movieItem("7777777777777777777777777777777777777777"), Options{})
	require.NoError(t, err)

	assert.Equal(t, StatusWarning, outcome.Status)
	assert.Len(t, outcome.Matches, 2)
}

func TestProcessNoCandidatesInteractive(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	outcome, err := env.svc.Process(context.Background(), movieItem("8888888888888888888888888888888888888888"), Options{})
	require.NoError(t, err)

	assert.Equal(t, StatusWarning, outcome.Status)
	assert.Empty(t, outcome.Matches)
}

func TestProcessAutoCreate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	outcome, err := env.svc.Process(ctx, movieItem("9999999999999999999999999999999999999999"), Options{AutoCreate: true})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, outcome.Status)

	media, err := env.catalog.GetMedia(ctx, outcome.MediaID)
	require.NoError(t, err)
	require.NotNil(t, media)
	assert.Equal(t, "The Matrix", media.Title)
	assert.Equal(t, 1999, media.Year)
}

func TestProcessMagnetWithoutFiles(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	// Unresolved magnet for a series: the file list is not known yet, so no
	// annotation is demanded and the import proceeds.
	item := &analysis.Item{
		SourceKind: analysis.SourceMagnet,
		ContentID:  "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Title:      "Example Show",
		MetaType:   models.MetaTypeSeries,
	}

	outcome, err := env.svc.Process(ctx, item, Options{AutoCreate: true})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, outcome.Status)

	files, err := env.catalog.ListStreamFiles(ctx, outcome.StreamID)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestProcessSelectionUnknownMedia(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	missing := int64(424242)

	outcome, err := env.svc.Process(context.Background(),
		movieItem("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		Options{Selection: &Selection{MediaID: &missing}})
	require.NoError(t, err)
	assert.Equal(t, StatusError, outcome.Status)
}
