// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/importarr/internal/models"
)

// XtreamCredentials identify an Xtream Codes panel account.
type XtreamCredentials struct {
	BaseURL  string `json:"baseUrl"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// XtreamCategoryKind is one of the panel's three content trees.
type XtreamCategoryKind string

const (
	XtreamLive   XtreamCategoryKind = "live"
	XtreamVOD    XtreamCategoryKind = "vod"
	XtreamSeries XtreamCategoryKind = "series"
)

// XtreamCategory is one category in a panel tree.
type XtreamCategory struct {
	ID   string             `json:"id"`
	Name string             `json:"name"`
	Kind XtreamCategoryKind `json:"kind"`
}

// XtreamCatalog is an authenticated panel's category trees, parked under an
// opaque handle. The credentials stay server-side with the handle so the
// import call only has to name category ids.
type XtreamCatalog struct {
	Handle string           `json:"handle"`
	Live   []XtreamCategory `json:"live"`
	VOD    []XtreamCategory `json:"vod"`
	Series []XtreamCategory `json:"series"`

	creds XtreamCredentials
}

// flexString tolerates panels that serialize ids as numbers or strings.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type xtreamCategoryPayload struct {
	CategoryID   flexString `json:"category_id"`
	CategoryName string     `json:"category_name"`
}

type xtreamStreamPayload struct {
	StreamID     flexString `json:"stream_id"`
	SeriesID     flexString `json:"series_id"`
	Name         string     `json:"name"`
	ContainerExt string     `json:"container_extension"`
	CategoryID   flexString `json:"category_id"`
}

// Xtream authenticates against a panel and pulls its category trees. A panel
// may expose all three kinds or a subset; a kind whose listing fails is
// logged and skipped, but a panel with no reachable tree at all is an error.
func (s *Service) Xtream(ctx context.Context, creds XtreamCredentials) (*XtreamCatalog, error) {
	creds.BaseURL = strings.TrimRight(strings.TrimSpace(creds.BaseURL), "/")
	if creds.BaseURL == "" || creds.Username == "" {
		return nil, fmt.Errorf("%w: panel url and username are required", ErrMalformedInput)
	}

	// A bare player_api call validates the credentials before we bother with
	// the category trees.
	if _, err := s.get(ctx, xtreamAPIURL(creds, "", nil)); err != nil {
		return nil, err
	}

	catalog := &XtreamCatalog{
		Handle: newHandle(),
		creds:  creds,
	}

	reachable := 0
	for _, kind := range []XtreamCategoryKind{XtreamLive, XtreamVOD, XtreamSeries} {
		categories, err := s.xtreamCategories(ctx, creds, kind)
		if err != nil {
			log.Warn().Err(err).Str("kind", string(kind)).Msg("Xtream category tree unavailable")
			continue
		}
		reachable++
		switch kind {
		case XtreamLive:
			catalog.Live = categories
		case XtreamVOD:
			catalog.VOD = categories
		case XtreamSeries:
			catalog.Series = categories
		}
	}
	if reachable == 0 {
		return nil, fmt.Errorf("%w: no category tree reachable on panel", ErrUnreachableSource)
	}

	s.xtreamHandles.Set(catalog.Handle, catalog, ttlcache.DefaultTTL)

	log.Debug().
		Str("handle", catalog.Handle).
		Int("live", len(catalog.Live)).
		Int("vod", len(catalog.VOD)).
		Int("series", len(catalog.Series)).
		Msg("Analyzed Xtream panel")

	return catalog, nil
}

// XtreamByHandle returns a previously analyzed catalog, or ErrHandleExpired.
func (s *Service) XtreamByHandle(handle string) (*XtreamCatalog, error) {
	catalog, ok := s.xtreamHandles.Get(handle)
	if !ok {
		return nil, ErrHandleExpired
	}
	return catalog, nil
}

// XtreamItems expands the selected categories into importable items. Unknown
// category ids are skipped rather than failing the batch.
func (s *Service) XtreamItems(ctx context.Context, catalog *XtreamCatalog, categoryIDs []string) ([]*Item, error) {
	selected := make(map[string]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		selected[id] = true
	}

	var items []*Item
	for _, cat := range catalog.categories() {
		if !selected[cat.ID] {
			continue
		}
		expanded, err := s.xtreamCategoryItems(ctx, catalog.creds, cat)
		if err != nil {
			return nil, err
		}
		items = append(items, expanded...)
	}
	return items, nil
}

func (c *XtreamCatalog) categories() []XtreamCategory {
	all := make([]XtreamCategory, 0, len(c.Live)+len(c.VOD)+len(c.Series))
	all = append(all, c.Live...)
	all = append(all, c.VOD...)
	all = append(all, c.Series...)
	return all
}

func (s *Service) xtreamCategories(ctx context.Context, creds XtreamCredentials, kind XtreamCategoryKind) ([]XtreamCategory, error) {
	action := map[XtreamCategoryKind]string{
		XtreamLive:   "get_live_categories",
		XtreamVOD:    "get_vod_categories",
		XtreamSeries: "get_series_categories",
	}[kind]

	body, err := s.get(ctx, xtreamAPIURL(creds, action, nil))
	if err != nil {
		return nil, err
	}

	var payload []xtreamCategoryPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %s", ErrMalformedInput, action, err)
	}

	categories := make([]XtreamCategory, 0, len(payload))
	for _, p := range payload {
		categories = append(categories, XtreamCategory{
			ID:   string(p.CategoryID),
			Name: p.CategoryName,
			Kind: kind,
		})
	}
	return categories, nil
}

func (s *Service) xtreamCategoryItems(ctx context.Context, creds XtreamCredentials, cat XtreamCategory) ([]*Item, error) {
	action := map[XtreamCategoryKind]string{
		XtreamLive:   "get_live_streams",
		XtreamVOD:    "get_vod_streams",
		XtreamSeries: "get_series",
	}[cat.Kind]

	body, err := s.get(ctx, xtreamAPIURL(creds, action, map[string]string{"category_id": cat.ID}))
	if err != nil {
		return nil, err
	}

	var payload []xtreamStreamPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %s", ErrMalformedInput, action, err)
	}

	items := make([]*Item, 0, len(payload))
	for _, p := range payload {
		item := s.xtreamItem(creds, cat.Kind, p)
		if item != nil {
			items = append(items, item)
		}
	}
	return items, nil
}

// xtreamItem builds one importable item from a panel stream listing. Stream
// URLs follow the panel's fixed path layout per kind.
func (s *Service) xtreamItem(creds XtreamCredentials, kind XtreamCategoryKind, p xtreamStreamPayload) *Item {
	item := &Item{SourceKind: SourceXtream}
	applyParsed(item, s.parser.Parse(p.Name))
	if item.Title == "" {
		item.Title = p.Name
	}

	switch kind {
	case XtreamLive:
		if p.StreamID == "" {
			return nil
		}
		item.MetaType = models.MetaTypeTV
		item.StreamURL = fmt.Sprintf("%s/live/%s/%s/%s.ts",
			creds.BaseURL, url.PathEscape(creds.Username), url.PathEscape(creds.Password), p.StreamID)
	case XtreamVOD:
		if p.StreamID == "" {
			return nil
		}
		ext := p.ContainerExt
		if ext == "" {
			ext = "mp4"
		}
		item.MetaType = models.MetaTypeMovie
		item.StreamURL = fmt.Sprintf("%s/movie/%s/%s/%s.%s",
			creds.BaseURL, url.PathEscape(creds.Username), url.PathEscape(creds.Password), p.StreamID, ext)
	case XtreamSeries:
		if p.SeriesID == "" {
			return nil
		}
		// Series are imported at series granularity; episode enumeration
		// happens on playback, so there is no file list yet.
		item.MetaType = models.MetaTypeSeries
		item.ContentID = hashURL(fmt.Sprintf("%s/series/%s", creds.BaseURL, p.SeriesID))
		return item
	}

	item.ContentID = hashURL(item.StreamURL)
	entry := FileEntry{Name: p.Name, Index: 0, Included: true}
	s.inferFileEpisode(&entry)
	item.Files = []FileEntry{entry}
	return item
}

func xtreamAPIURL(creds XtreamCredentials, action string, extra map[string]string) string {
	params := url.Values{}
	params.Set("username", creds.Username)
	params.Set("password", creds.Password)
	if action != "" {
		params.Set("action", action)
	}
	for k, v := range extra {
		params.Set(k, v)
	}
	return creds.BaseURL + "/player_api.php?" + params.Encode()
}
