// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/importarr/internal/models"
)

func TestIPTVSourceCRUD(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/sources/iptv", map[string]any{
		"name": "Provider A",
		"kind": "m3u",
		"url":  "http://provider.example/playlist.m3u",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeBody[models.IPTVSource](t, rec)
	assert.NotZero(t, created.ID)
	assert.Equal(t, models.IPTVSourceKindM3U, created.Kind)
	assert.Equal(t, 1440, created.SyncIntervalMinutes)

	rec = env.request(t, http.MethodGet, "/api/sources/iptv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.IPTVSource](t, rec), 1)

	rec = env.request(t, http.MethodGet, fmt.Sprintf("/api/sources/iptv/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Provider A", decodeBody[models.IPTVSource](t, rec).Name)

	rec = env.request(t, http.MethodPut, fmt.Sprintf("/api/sources/iptv/%d", created.ID), map[string]any{
		"name":                "Provider A renamed",
		"kind":                "m3u",
		"url":                 "http://provider.example/playlist.m3u",
		"syncIntervalMinutes": 120,
		"enabled":             true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	updated := decodeBody[models.IPTVSource](t, rec)
	assert.Equal(t, "Provider A renamed", updated.Name)
	assert.Equal(t, 120, updated.SyncIntervalMinutes)
	assert.True(t, updated.Enabled)

	rec = env.request(t, http.MethodDelete, fmt.Sprintf("/api/sources/iptv/%d", created.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.request(t, http.MethodGet, fmt.Sprintf("/api/sources/iptv/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIPTVSourceValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/sources/iptv", map[string]any{
		"kind": "m3u",
		"url":  "http://provider.example/playlist.m3u",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/sources/iptv", map[string]any{
		"name": "Bad kind",
		"kind": "rtsp",
		"url":  "http://provider.example/playlist.m3u",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIPTVSourceBlankPasswordKeepsStored(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.request(t, http.MethodPost, "/api/sources/iptv", map[string]any{
		"name":     "Panel",
		"kind":     "xtream",
		"url":      "http://panel.example",
		"username": "user",
		"password": "secret",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[models.IPTVSource](t, rec)

	stored, err := env.sources.GetIPTVSource(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret", stored.Password)

	// The password never appears in responses, so updates omit it and the
	// stored secret survives.
	rec = env.request(t, http.MethodPut, fmt.Sprintf("/api/sources/iptv/%d", created.ID), map[string]any{
		"name":     "Panel renamed",
		"kind":     "xtream",
		"url":      "http://panel.example",
		"username": "user",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err = env.sources.GetIPTVSource(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Panel renamed", stored.Name)
	assert.Equal(t, "secret", stored.Password)
}

func TestIPTVSourceSyncEndpoint(t *testing.T) {
	env := newTestEnv(t)

	playlist := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, smallPlaylist)
	}))
	t.Cleanup(playlist.Close)

	rec := env.request(t, http.MethodPost, "/api/sources/iptv", map[string]any{
		"name":    "Provider A",
		"kind":    "m3u",
		"url":     playlist.URL + "/playlist.m3u",
		"enabled": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[models.IPTVSource](t, rec)

	rec = env.request(t, http.MethodPost, fmt.Sprintf("/api/sources/iptv/%d/sync", created.ID), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	accepted := decodeBody[processingResponse](t, rec)
	assert.Equal(t, "processing", string(accepted.Status))
	assert.Equal(t, 3, accepted.Total)

	job := env.waitJob(t, accepted.JobID)
	assert.Equal(t, models.ImportJobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.Stats["imported"])

	require.Eventually(t, func() bool {
		src, err := env.sources.GetIPTVSource(context.Background(), created.ID)
		return err == nil && src != nil && src.LastSyncAt != nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestIPTVSourceSyncUnknown(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/sources/iptv/9999/sync", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRSSFeedCRUD(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/sources/rss", map[string]any{
		"name": "Indexer",
		"url":  "http://indexer.example/rss",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeBody[models.RSSFeed](t, rec)
	assert.NotZero(t, created.ID)
	assert.Equal(t, models.MetaTypeMovie, created.MetaType)
	assert.Equal(t, 60, created.SyncIntervalMinutes)

	rec = env.request(t, http.MethodPut, fmt.Sprintf("/api/sources/rss/%d", created.ID), map[string]any{
		"name":          "Indexer",
		"url":           "http://indexer.example/rss",
		"metaType":      "series",
		"excludeFilter": "cam",
		"enabled":       true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	updated := decodeBody[models.RSSFeed](t, rec)
	assert.Equal(t, models.MetaTypeSeries, updated.MetaType)
	assert.Equal(t, "cam", updated.ExcludeFilter)

	rec = env.request(t, http.MethodDelete, fmt.Sprintf("/api/sources/rss/%d", created.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.request(t, http.MethodGet, fmt.Sprintf("/api/sources/rss/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRSSFeedSyncEndpoint(t *testing.T) {
	env := newTestEnv(t)

	const feedBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Indexer</title>
    <item>
      <title>The.Matrix.1999.1080p.BluRay.x264-GROUP</title>
      <enclosure url="magnet:?xt=urn:btih:c12fe1c06bba254a9dc9f519b335aa7c1367a88a&amp;dn=The.Matrix.1999.1080p.BluRay.x264-GROUP" type="application/x-bittorrent" />
    </item>
  </channel>
</rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, feedBody)
	}))
	t.Cleanup(server.Close)

	rec := env.request(t, http.MethodPost, "/api/sources/rss", map[string]any{
		"name":    "Indexer",
		"url":     server.URL + "/rss",
		"enabled": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[models.RSSFeed](t, rec)

	rec = env.request(t, http.MethodPost, fmt.Sprintf("/api/sources/rss/%d/sync", created.ID), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	accepted := decodeBody[processingResponse](t, rec)
	assert.Equal(t, 1, accepted.Total)

	job := env.waitJob(t, accepted.JobID)
	assert.Equal(t, models.ImportJobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.Stats["imported"])
}

func TestRSSFeedSyncUnknown(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/sources/rss/9999/sync", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
