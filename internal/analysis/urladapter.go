// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/importarr/internal/buildinfo"
	"github.com/autobrr/importarr/internal/models"
)

var (
	youtubeIDRe   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	aceStreamIDRe = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)
)

// URL analyzes a single stream URL or identifier, dispatching on shape:
// acestream content ids, YouTube links, and plain HTTP(S) media URLs.
func (s *Service) URL(ctx context.Context, raw string) (*Item, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty url", ErrMalformedInput)
	}

	switch {
	case strings.HasPrefix(strings.ToLower(raw), "acestream://"), aceStreamIDRe.MatchString(raw):
		return s.aceStream(raw)
	case isYouTubeURL(raw):
		return s.youTube(ctx, raw)
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return s.httpStream(ctx, raw)
	default:
		return nil, fmt.Errorf("%w: unrecognized url scheme", ErrUnsupportedFormat)
	}
}

// aceStream validates the 40-hex content id. There is no liveness probe for
// acestream ids over plain HTTP, so shape validation is all we do.
func (s *Service) aceStream(raw string) (*Item, error) {
	id := strings.TrimPrefix(strings.ToLower(raw), "acestream://")
	if !aceStreamIDRe.MatchString(id) {
		return nil, fmt.Errorf("%w: acestream id must be 40 hex characters", ErrMalformedInput)
	}

	return &Item{
		SourceKind: SourceAceStream,
		ContentID:  id,
		MetaType:   models.MetaTypeTV,
		StreamURL:  "acestream://" + id,
		Files:      []FileEntry{{Name: id, Index: 0, Included: true}},
	}, nil
}

// youTube extracts the video id and probes the oEmbed endpoint for the
// title. The probe doubles as an existence check.
func (s *Service) youTube(ctx context.Context, raw string) (*Item, error) {
	id, err := youTubeVideoID(raw)
	if err != nil {
		return nil, err
	}

	item := &Item{
		SourceKind: SourceYouTube,
		ContentID:  id,
		StreamURL:  "https://www.youtube.com/watch?v=" + id,
	}

	body, err := s.get(ctx, s.oembedBase+"?format=json&url="+url.QueryEscape(item.StreamURL))
	if err != nil {
		return nil, err
	}

	var oembed struct {
		Title      string `json:"title"`
		AuthorName string `json:"author_name"`
	}
	if err := json.Unmarshal(body, &oembed); err != nil {
		return nil, fmt.Errorf("%w: decode oembed: %s", ErrMalformedInput, err)
	}

	applyParsed(item, s.parser.Parse(oembed.Title))
	if item.Title == "" {
		item.Title = oembed.Title
	}
	// A single video is one feature, whatever its title parses as.
	item.MetaType = models.MetaTypeMovie
	item.Files = []FileEntry{{Name: oembed.Title, Index: 0, Included: true}}

	log.Debug().Str("videoId", id).Str("title", item.Title).Msg("Analyzed YouTube URL")
	return item, nil
}

// httpStream probes a direct media URL with a HEAD request and derives the
// title from the last path segment.
func (s *Service) httpStream(ctx context.Context, raw string) (*Item, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedInput, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedInput, err)
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnreachableSource, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: status %d from %s", ErrUnreachableSource, resp.StatusCode, parsed.Redacted())
	}

	name := path.Base(parsed.Path)
	if name == "/" || name == "." {
		name = parsed.Host
	}

	item := &Item{
		SourceKind: SourceHTTP,
		ContentID:  hashURL(raw),
		StreamURL:  raw,
		TotalSize:  resp.ContentLength,
	}
	applyParsed(item, s.parser.Parse(name))
	if item.Title == "" {
		item.Title = name
	}

	entry := FileEntry{Name: name, Size: max(resp.ContentLength, 0), Index: 0, Included: true}
	s.inferFileEpisode(&entry)
	item.Files = []FileEntry{entry}

	log.Debug().Str("url", parsed.Redacted()).Str("title", item.Title).Msg("Analyzed HTTP URL")
	return item, nil
}

func isYouTubeURL(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.Contains(lower, "youtube.com/") || strings.Contains(lower, "youtu.be/")
}

func youTubeVideoID(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrMalformedInput, err)
	}

	var id string
	switch {
	case strings.HasSuffix(strings.ToLower(u.Host), "youtu.be"):
		id = strings.Trim(u.Path, "/")
	case strings.HasPrefix(u.Path, "/watch"):
		id = u.Query().Get("v")
	case strings.HasPrefix(u.Path, "/shorts/"), strings.HasPrefix(u.Path, "/embed/"), strings.HasPrefix(u.Path, "/live/"):
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 {
			id = parts[1]
		}
	}

	if !youtubeIDRe.MatchString(id) {
		return "", fmt.Errorf("%w: invalid youtube video id", ErrMalformedInput)
	}
	return id, nil
}
