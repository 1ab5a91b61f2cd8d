// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metadata is the HTTP client for the external metadata provider.
// The provider is treated as an opaque lookup service returning
// title/year/poster/external-id tuples; its own API is not our concern.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/importarr/internal/buildinfo"
	"github.com/autobrr/importarr/internal/models"
)

// Result is a provider lookup hit.
type Result struct {
	Provider   string          `json:"provider"`
	ExternalID string          `json:"externalId"`
	Title      string          `json:"title"`
	Year       int             `json:"year,omitempty"`
	MetaType   models.MetaType `json:"metaType"`
	Poster     string          `json:"poster,omitempty"`
	Popularity float64         `json:"popularity,omitempty"`
	Rating     float64         `json:"rating,omitempty"`
	Genres     []string        `json:"genres,omitempty"`
	Cast       []string        `json:"cast,omitempty"`
}

// Client queries the metadata provider with a short-lived lookup cache.
// Batch imports repeat the same titles across analyze and import, so
// identical searches within a few minutes are served from memory.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client

	searchCache *ttlcache.Cache[string, []Result]
	fetchCache  *ttlcache.Cache[string, *Result]
}

// New creates a metadata provider client. An empty baseURL disables the
// provider; lookups then return no results instead of erroring, and the
// matcher works off the local catalog alone.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},

		searchCache: ttlcache.New(ttlcache.Options[string, []Result]{}.SetDefaultTTL(5 * time.Minute)),
		fetchCache:  ttlcache.New(ttlcache.Options[string, *Result]{}.SetDefaultTTL(15 * time.Minute)),
	}
}

// Enabled reports whether a provider is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Search looks up candidate media for a parsed title. Year 0 means unknown.
func (c *Client) Search(ctx context.Context, title string, year int, metaType models.MetaType) ([]Result, error) {
	if !c.Enabled() || title == "" {
		return nil, nil
	}

	cacheKey := fmt.Sprintf("s:%s:%d:%s", title, year, metaType)
	if cached, ok := c.searchCache.Get(cacheKey); ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("query", title)
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}
	if metaType != "" && metaType != models.MetaTypeUnknown {
		params.Set("type", string(metaType))
	}

	var results []Result
	if err := c.getJSON(ctx, "/search?"+params.Encode(), &results); err != nil {
		return nil, fmt.Errorf("metadata search %q: %w", title, err)
	}

	log.Debug().
		Str("title", title).
		Int("year", year).
		Int("results", len(results)).
		Msg("Metadata provider search")

	c.searchCache.Set(cacheKey, results, ttlcache.DefaultTTL)
	return results, nil
}

// Fetch retrieves full metadata for a single external id.
func (c *Client) Fetch(ctx context.Context, externalID string) (*Result, error) {
	if !c.Enabled() || externalID == "" {
		return nil, nil
	}

	if cached, ok := c.fetchCache.Get(externalID); ok {
		return cached, nil
	}

	var result Result
	if err := c.getJSON(ctx, "/media/"+url.PathEscape(externalID), &result); err != nil {
		return nil, fmt.Errorf("metadata fetch %q: %w", externalID, err)
	}

	c.fetchCache.Set(externalID, &result, ttlcache.DefaultTTL)
	return &result, nil
}

// getJSON performs a GET with bounded retries. Provider blips during a bulk
// import should not fail the whole job.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Accept", "application/json")
			req.Header.Set("User-Agent", buildinfo.UserAgent)
			if c.apiKey != "" {
				req.Header.Set("X-Api-Key", c.apiKey)
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
			if err != nil {
				return err
			}

			switch {
			case resp.StatusCode == http.StatusOK:
				return json.Unmarshal(body, out)
			case resp.StatusCode == http.StatusNotFound:
				return retry.Unrecoverable(fmt.Errorf("not found"))
			case resp.StatusCode >= 500:
				return fmt.Errorf("provider returned status %d", resp.StatusCode)
			default:
				return retry.Unrecoverable(fmt.Errorf("provider returned status %d", resp.StatusCode))
			}
		},
		retry.Attempts(3),
		retry.Delay(250*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}
