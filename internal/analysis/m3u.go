// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package analysis

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/importarr/internal/models"
)

// Channel is one playlist entry with its detected content type.
type Channel struct {
	Index        int             `json:"index"`
	Name         string          `json:"name"`
	Group        string          `json:"group,omitempty"`
	Logo         string          `json:"logo,omitempty"`
	URL          string          `json:"url"`
	ContentID    string          `json:"contentId"`
	DetectedType models.MetaType `json:"detectedType"`
}

// M3UBatch is an analyzed playlist parked under an opaque handle so the
// import call can reference the batch without re-parsing or re-fetching.
type M3UBatch struct {
	Handle   string    `json:"handle"`
	Channels []Channel `json:"channels"`
}

// M3U analyzes a playlist body. Classification is pure title heuristics
// (season/episode markers, year in parentheses, group and URL hints); the
// stream URLs themselves are never probed during analysis.
func (s *Service) M3U(ctx context.Context, body []byte) (*M3UBatch, error) {
	channels := s.parseM3U(body)
	if len(channels) == 0 && !bytes.Contains(body, []byte("#EXTM3U")) {
		return nil, fmt.Errorf("%w: not an M3U playlist", ErrMalformedInput)
	}

	batch := &M3UBatch{
		Handle:   newHandle(),
		Channels: channels,
	}
	s.m3uHandles.Set(batch.Handle, batch, ttlcache.DefaultTTL)

	log.Debug().
		Str("handle", batch.Handle).
		Int("channels", len(channels)).
		Msg("Analyzed M3U playlist")

	return batch, nil
}

// M3UFromURL fetches a playlist and analyzes it.
func (s *Service) M3UFromURL(ctx context.Context, rawURL string) (*M3UBatch, error) {
	body, err := s.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return s.M3U(ctx, body)
}

// M3UByHandle returns a previously analyzed batch, or ErrHandleExpired when
// the handle aged out and the client has to re-analyze.
func (s *Service) M3UByHandle(handle string) (*M3UBatch, error) {
	batch, ok := s.m3uHandles.Get(handle)
	if !ok {
		return nil, ErrHandleExpired
	}
	return batch, nil
}

// ChannelItem converts a classified channel into a single-file item for the
// import pipeline. An explicit type override from the client wins over the
// detected type.
func (s *Service) ChannelItem(ch Channel, typeOverride models.MetaType) *Item {
	item := &Item{
		SourceKind: SourceM3U,
		ContentID:  ch.ContentID,
		StreamURL:  ch.URL,
	}
	applyParsed(item, s.parser.Parse(ch.Name))
	if item.Title == "" {
		item.Title = ch.Name
	}

	item.MetaType = ch.DetectedType
	if typeOverride != "" && typeOverride != models.MetaTypeUnknown {
		item.MetaType = typeOverride
	}

	entry := FileEntry{Name: ch.Name, Index: 0, Included: true}
	s.inferFileEpisode(&entry)
	item.Files = []FileEntry{entry}
	return item
}

// parseM3U walks the playlist line pairs: an #EXTINF line carrying the
// attributes and display name, then the stream URL on the next non-comment
// line.
func (s *Service) parseM3U(body []byte) []Channel {
	var channels []Channel
	var name, group, logo string
	pending := false

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "#EXTINF:"):
			name = extinfAttr(line, "tvg-name")
			if name == "" {
				if c := strings.LastIndex(line, ","); c != -1 {
					name = strings.TrimSpace(line[c+1:])
				}
			}
			group = extinfAttr(line, "group-title")
			logo = extinfAttr(line, "tvg-logo")
			pending = true
		case pending && line != "" && !strings.HasPrefix(line, "#"):
			channels = append(channels, Channel{
				Index:        len(channels),
				Name:         name,
				Group:        group,
				Logo:         logo,
				URL:          line,
				ContentID:    hashURL(line),
				DetectedType: s.classifyChannel(name, group, line),
			})
			pending = false
		}
	}

	return channels
}

// extinfAttr pulls one key="value" attribute out of an #EXTINF line.
func extinfAttr(line, key string) string {
	marker := key + `="`
	idx := strings.Index(line, marker)
	if idx == -1 {
		return ""
	}
	rest := line[idx+len(marker):]
	end := strings.Index(rest, `"`)
	if end == -1 {
		return ""
	}
	return rest[:end]
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".m4v": true, ".wmv": true, ".flv": true, ".webm": true,
}

// classifyChannel decides tv vs movie vs series from the entry name, the
// group title, and the URL shape.
func (s *Service) classifyChannel(name, group, rawURL string) models.MetaType {
	parsed := s.parser.Parse(name)
	if parsed.Season > 0 || parsed.Episode > 0 {
		return models.MetaTypeSeries
	}

	lowerGroup := strings.ToLower(group)
	lowerURL := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lowerURL, "/series/") || strings.Contains(lowerGroup, "series"):
		return models.MetaTypeSeries
	case strings.Contains(lowerURL, "/movie/") || strings.Contains(lowerGroup, "movie") ||
		strings.Contains(lowerGroup, "vod") || strings.Contains(lowerGroup, "film"):
		return models.MetaTypeMovie
	}

	if videoExtensions[strings.ToLower(path.Ext(lowerURL))] {
		if parsed.Year > 0 {
			return models.MetaTypeMovie
		}
		return models.MetaTypeUnknown
	}

	if parsed.Year > 0 {
		return models.MetaTypeMovie
	}

	// Extension-less URL with no VOD markers is a live channel.
	return models.MetaTypeTV
}
