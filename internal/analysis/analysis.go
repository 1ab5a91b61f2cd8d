// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package analysis turns raw source input (.torrent uploads, magnet links,
// NZB documents, M3U playlists, Xtream panels, plain URLs) into analyzed
// items the matcher and importer operate on.
package analysis

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"

	"github.com/autobrr/importarr/internal/buildinfo"
	"github.com/autobrr/importarr/internal/models"
	"github.com/autobrr/importarr/pkg/releases"
)

// SourceKind identifies which adapter produced an item.
type SourceKind string

const (
	SourceTorrent   SourceKind = "torrent"
	SourceMagnet    SourceKind = "magnet"
	SourceNZB       SourceKind = "nzb"
	SourceM3U       SourceKind = "m3u"
	SourceXtream    SourceKind = "xtream"
	SourceYouTube   SourceKind = "youtube"
	SourceHTTP      SourceKind = "http"
	SourceAceStream SourceKind = "acestream"
)

// Adapter failures are local and typed. None of them abort the pipeline;
// handlers map them onto an error outcome with a message.
var (
	// ErrMalformedInput means the input could not be decoded at all.
	ErrMalformedInput = errors.New("malformed input")
	// ErrUnreachableSource means a network fetch or probe failed or timed out.
	ErrUnreachableSource = errors.New("unreachable source")
	// ErrUnsupportedFormat means the input decoded but is not something we import.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrHandleExpired means an analysis handle aged out of the cache and the
	// client has to re-analyze before importing.
	ErrHandleExpired = errors.New("analysis expired, re-analyze the source")
)

// FileEntry is one file inside an analyzed source.
type FileEntry struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	Index      int    `json:"index"`
	Season     *int   `json:"season,omitempty"`
	Episode    *int   `json:"episode,omitempty"`
	EpisodeEnd *int   `json:"episodeEnd,omitempty"`
	Included   bool   `json:"included"`
}

// Item is the adapter output: one importable piece of content. Items are
// immutable once produced and never persisted directly.
//
// Files semantics: nil means the file list is not known yet (an unresolved
// magnet); an empty non-nil slice means the source really contains nothing.
type Item struct {
	SourceKind SourceKind      `json:"sourceKind"`
	ContentID  string          `json:"contentId"`
	Title      string          `json:"title"`
	Year       int             `json:"year,omitempty"`
	MetaType   models.MetaType `json:"metaType"`
	Resolution string          `json:"resolution,omitempty"`
	Codec      string          `json:"codec,omitempty"`
	Audio      []string        `json:"audio,omitempty"`
	HDR        []string        `json:"hdr,omitempty"`
	Languages  []string        `json:"languages,omitempty"`
	StreamURL  string          `json:"streamUrl,omitempty"`
	TotalSize  int64           `json:"totalSize,omitempty"`
	Files      []FileEntry     `json:"files"`
}

// IncludedFiles returns the files still marked for import.
func (i *Item) IncludedFiles() []FileEntry {
	if i.Files == nil {
		return nil
	}
	included := make([]FileEntry, 0, len(i.Files))
	for _, f := range i.Files {
		if f.Included {
			included = append(included, f)
		}
	}
	return included
}

// Service holds the source adapters and their shared plumbing: the release
// name parser, a bounded HTTP client for source fetches, and the opaque
// handle caches batch analyses are parked in between analyze and import.
type Service struct {
	parser *releases.Parser
	client *http.Client

	// oembedBase is swapped out in tests.
	oembedBase string

	m3uHandles    *ttlcache.Cache[string, *M3UBatch]
	xtreamHandles *ttlcache.Cache[string, *XtreamCatalog]
}

// NewService creates the adapter service. sourceTimeout bounds every
// outbound fetch; handleTTL is how long an analyzed batch stays importable.
func NewService(sourceTimeout, handleTTL time.Duration) *Service {
	return &Service{
		parser:     releases.NewParser(),
		client:     &http.Client{Timeout: sourceTimeout},
		oembedBase: "https://www.youtube.com/oembed",

		m3uHandles:    ttlcache.New(ttlcache.Options[string, *M3UBatch]{}.SetDefaultTTL(handleTTL)),
		xtreamHandles: ttlcache.New(ttlcache.Options[string, *XtreamCatalog]{}.SetDefaultTTL(handleTTL)),
	}
}

// applyParsed copies parsed release attributes onto an item.
func applyParsed(item *Item, parsed releases.Parsed) {
	item.Title = parsed.Title
	item.Year = parsed.Year
	item.Resolution = parsed.Resolution
	item.Codec = parsed.Codec
	item.Audio = parsed.Audio
	item.HDR = parsed.HDR
	item.Languages = parsed.Languages
	item.MetaType = models.ParseMetaType(string(parsed.Type))
}

// inferFileEpisode fills season/episode markers for a file when its name
// carries them. Files without markers stay unannotated; the validator decides
// whether that demands manual annotation.
func (s *Service) inferFileEpisode(entry *FileEntry) {
	parsed := s.parser.Parse(entry.Name)
	if parsed.Season > 0 {
		season := parsed.Season
		entry.Season = &season
	}
	if parsed.Episode > 0 {
		episode := parsed.Episode
		entry.Episode = &episode
	}
}

// newHandle mints an opaque handle key.
func newHandle() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(b)
}

// hashURL derives a stable content identity for URL-keyed sources.
func hashURL(rawURL string) string {
	sum := sha1.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// get fetches a source URL with the service's bounded client. Network
// failures and non-2xx responses both surface as ErrUnreachableSource.
func (s *Service) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedInput, err)
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnreachableSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d from %s", ErrUnreachableSource, resp.StatusCode, req.URL.Redacted())
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnreachableSource, err)
	}
	return body, nil
}
