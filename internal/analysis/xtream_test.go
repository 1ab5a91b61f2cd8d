// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package analysis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/importarr/internal/models"
)

func newXtreamPanel(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/player_api.php" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("username") != "user" || r.URL.Query().Get("password") != "pass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("action") {
		case "":
			_, _ = w.Write([]byte(`{"user_info":{"auth":1}}`))
		case "get_live_categories":
			_, _ = w.Write([]byte(`[{"category_id":"1","category_name":"News"}]`))
		case "get_vod_categories":
			// Panels serialize ids inconsistently; numbers must work too.
			_, _ = w.Write([]byte(`[{"category_id":7,"category_name":"Action Movies"}]`))
		case "get_series_categories":
			_, _ = w.Write([]byte(`[{"category_id":"9","category_name":"Drama Series"}]`))
		case "get_live_streams":
			_, _ = w.Write([]byte(`[{"stream_id":100,"name":"News Channel HD","category_id":"1"}]`))
		case "get_vod_streams":
			_, _ = w.Write([]byte(`[{"stream_id":200,"name":"The Matrix (1999)","container_extension":"mkv","category_id":7}]`))
		case "get_series":
			_, _ = w.Write([]byte(`[{"series_id":300,"name":"Example Show","category_id":"9"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestXtreamAnalyze(t *testing.T) {
	t.Parallel()

	panel := newXtreamPanel(t)
	defer panel.Close()

	svc := newTestService(t)
	catalog, err := svc.Xtream(context.Background(), XtreamCredentials{
		BaseURL:  panel.URL,
		Username: "user",
		Password: "pass",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, catalog.Handle)
	require.Len(t, catalog.Live, 1)
	require.Len(t, catalog.VOD, 1)
	require.Len(t, catalog.Series, 1)
	assert.Equal(t, "7", catalog.VOD[0].ID)
	assert.Equal(t, XtreamVOD, catalog.VOD[0].Kind)

	got, err := svc.XtreamByHandle(catalog.Handle)
	require.NoError(t, err)
	assert.Equal(t, catalog.Handle, got.Handle)
}

func TestXtreamBadCredentials(t *testing.T) {
	t.Parallel()

	panel := newXtreamPanel(t)
	defer panel.Close()

	svc := newTestService(t)
	_, err := svc.Xtream(context.Background(), XtreamCredentials{
		BaseURL:  panel.URL,
		Username: "user",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, ErrUnreachableSource)
}

func TestXtreamItems(t *testing.T) {
	t.Parallel()

	panel := newXtreamPanel(t)
	defer panel.Close()

	svc := newTestService(t)
	catalog, err := svc.Xtream(context.Background(), XtreamCredentials{
		BaseURL:  panel.URL,
		Username: "user",
		Password: "pass",
	})
	require.NoError(t, err)

	items, err := svc.XtreamItems(context.Background(), catalog, []string{"1", "7", "9"})
	require.NoError(t, err)
	require.Len(t, items, 3)

	byType := map[models.MetaType]*Item{}
	for _, item := range items {
		byType[item.MetaType] = item
	}

	live := byType[models.MetaTypeTV]
	require.NotNil(t, live)
	assert.Contains(t, live.StreamURL, "/live/user/pass/100.ts")

	movie := byType[models.MetaTypeMovie]
	require.NotNil(t, movie)
	assert.Equal(t, "The Matrix", movie.Title)
	assert.Equal(t, 1999, movie.Year)
	assert.Contains(t, movie.StreamURL, "/movie/user/pass/200.mkv")
	require.Len(t, movie.Files, 1)

	series := byType[models.MetaTypeSeries]
	require.NotNil(t, series)
	assert.NotEmpty(t, series.ContentID)
	assert.Nil(t, series.Files)
}

func TestXtreamItemsSkipsUnknownCategories(t *testing.T) {
	t.Parallel()

	panel := newXtreamPanel(t)
	defer panel.Close()

	svc := newTestService(t)
	catalog, err := svc.Xtream(context.Background(), XtreamCredentials{
		BaseURL:  panel.URL,
		Username: "user",
		Password: "pass",
	})
	require.NoError(t, err)

	items, err := svc.XtreamItems(context.Background(), catalog, []string{"does-not-exist"})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestXtreamHandleExpired(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	_, err := svc.XtreamByHandle("deadbeefdeadbeefdeadbeefdeadbeef")
	assert.ErrorIs(t, err, ErrHandleExpired)
}
