// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/importarr/internal/database"
	"github.com/autobrr/importarr/internal/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateMediaAndLookup(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	store := models.NewCatalogStore(db)
	ctx := context.Background()

	created, err := store.CreateMedia(ctx, nil, &models.Media{
		MetaType:   models.MetaTypeMovie,
		Title:      "The Matrix",
		Year:       1999,
		Provider:   "imdb",
		ExternalID: "tt0133093",
		Popularity: 98.5,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	// Creating the same external id again returns the existing record.
	again, err := store.CreateMedia(ctx, nil, &models.Media{
		MetaType:   models.MetaTypeMovie,
		Title:      "The Matrix",
		Provider:   "imdb",
		ExternalID: "tt0133093",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	found, err := store.FindMediaByExternalID(ctx, "imdb", "tt0133093")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "The Matrix", found.Title)

	missing, err := store.FindMediaByExternalID(ctx, "imdb", "tt9999999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSearchMedia(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	store := models.NewCatalogStore(db)
	ctx := context.Background()

	for _, m := range []*models.Media{
		{MetaType: models.MetaTypeMovie, Title: "The Matrix", Year: 1999, Popularity: 90},
		{MetaType: models.MetaTypeMovie, Title: "The Matrix Reloaded", Year: 2003, Popularity: 80},
		{MetaType: models.MetaTypeSeries, Title: "Matrix Falls", Year: 2020, Popularity: 10},
	} {
		_, err := store.CreateMedia(ctx, nil, m)
		require.NoError(t, err)
	}

	results, err := store.SearchMedia(ctx, "matrix", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	// Ordered by popularity.
	assert.Equal(t, "The Matrix", results[0].Title)

	movies, err := store.SearchMedia(ctx, "matrix", models.MetaTypeMovie, 10)
	require.NoError(t, err)
	assert.Len(t, movies, 2)
}

func TestUpsertStreamIdempotent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	store := models.NewCatalogStore(db)
	ctx := context.Background()

	media, err := store.CreateMedia(ctx, nil, &models.Media{MetaType: models.MetaTypeMovie, Title: "The Matrix", Year: 1999})
	require.NoError(t, err)

	stream := &models.Stream{
		MediaID:    media.ID,
		SourceKind: "torrent",
		ContentID:  "c12fe1c06bba254a9dc9f519b335aa7c1367a88a",
		Title:      "The.Matrix.1999.1080p.BluRay.x264-GROUP",
		Resolution: "1080p",
		Audio:      []string{"DTS"},
	}

	id, created, err := store.UpsertStream(ctx, nil, stream)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, id)

	// Re-submitting the same content identity updates in place.
	stream.Resolution = "2160p"
	id2, created2, err := store.UpsertStream(ctx, nil, stream)
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, id, id2)

	found, err := store.FindStreamByContentID(ctx, stream.ContentID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "2160p", found.Resolution)
	assert.Equal(t, []string{"DTS"}, found.Audio)

	count, err := store.CountStreams(ctx, media.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReplaceStreamFiles(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	store := models.NewCatalogStore(db)
	ctx := context.Background()

	media, err := store.CreateMedia(ctx, nil, &models.Media{MetaType: models.MetaTypeSeries, Title: "Example Show"})
	require.NoError(t, err)

	id, _, err := store.UpsertStream(ctx, nil, &models.Stream{
		MediaID:    media.ID,
		SourceKind: "torrent",
		ContentID:  "feedfacefeedfacefeedfacefeedfacefeedface",
	})
	require.NoError(t, err)

	season := 1
	ep1, ep2 := 1, 2
	require.NoError(t, store.ReplaceStreamFiles(ctx, nil, id, []models.StreamFile{
		{Index: 0, Name: "Example.Show.S01E01.mkv", Size: 100, Season: &season, Episode: &ep1},
		{Index: 1, Name: "Example.Show.S01E02.mkv", Size: 200, Season: &season, Episode: &ep2},
	}))

	files, err := store.ListStreamFiles(ctx, id)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "Example.Show.S01E01.mkv", files[0].Name)
	require.NotNil(t, files[1].Episode)
	assert.Equal(t, 2, *files[1].Episode)

	// Replacement is total, not additive.
	require.NoError(t, store.ReplaceStreamFiles(ctx, nil, id, []models.StreamFile{
		{Index: 0, Name: "Example.Show.S01E01.PROPER.mkv", Size: 150},
	}))
	files, err = store.ListStreamFiles(ctx, id)
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestFindStreamByContentIDUnknown(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	store := models.NewCatalogStore(db)

	stream, err := store.FindStreamByContentID(context.Background(), "0000000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.Nil(t, stream)
}
