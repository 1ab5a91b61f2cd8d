// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package releases parses release and channel names into the metadata the
// import pipeline matches on: title, year, season/episode markers, and
// technical attributes.
package releases

import (
	"strings"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/moistari/rls"
)

// ContentType is a coarse classification of a release name.
type ContentType string

const (
	ContentTypeMovie   ContentType = "movie"
	ContentTypeSeries  ContentType = "series"
	ContentTypeTV      ContentType = "tv"
	ContentTypeUnknown ContentType = "unknown"
)

// Parsed holds the fields recovered from a release name.
type Parsed struct {
	Title      string      `json:"title"`
	Year       int         `json:"year,omitempty"`
	Season     int         `json:"season,omitempty"`
	Episode    int         `json:"episode,omitempty"`
	Type       ContentType `json:"type"`
	Resolution string      `json:"resolution,omitempty"`
	Codec      string      `json:"codec,omitempty"`
	Audio      []string    `json:"audio,omitempty"`
	HDR        []string    `json:"hdr,omitempty"`
	Languages  []string    `json:"languages,omitempty"`
	Group      string      `json:"group,omitempty"`
}

// Parser parses release names with a short-lived result cache. Bulk imports
// hit the same display names repeatedly (batch analyze followed by import),
// so parsing once is worth it.
type Parser struct {
	cache *ttlcache.Cache[string, Parsed]
}

// NewParser creates a new release name parser.
func NewParser() *Parser {
	return &Parser{
		cache: ttlcache.New(ttlcache.Options[string, Parsed]{}.SetDefaultTTL(5 * time.Minute)),
	}
}

// Parse extracts title, year, and technical attributes from a release name.
func (p *Parser) Parse(name string) Parsed {
	name = strings.TrimSpace(name)
	if name == "" {
		return Parsed{Type: ContentTypeUnknown}
	}

	if cached, ok := p.cache.Get(name); ok {
		return cached
	}

	release := rls.ParseString(name)

	parsed := Parsed{
		Title:      release.Title,
		Year:       release.Year,
		Season:     release.Series,
		Episode:    release.Episode,
		Type:       classify(&release),
		Resolution: release.Resolution,
		Codec:      strings.Join(release.Codec, " "),
		Audio:      release.Audio,
		HDR:        release.HDR,
		Languages:  release.Language,
		Group:      release.Group,
	}

	p.cache.Set(name, parsed, ttlcache.DefaultTTL)
	return parsed
}

// classify maps the rls release type onto our content types, correcting the
// common misparse of video releases as music (dash-separated folder names).
func classify(release *rls.Release) ContentType {
	typ := release.Type
	if typ == rls.Music && looksLikeVideo(release) {
		if release.Series > 0 || release.Episode > 0 {
			typ = rls.Episode
		} else {
			typ = rls.Movie
		}
	}

	switch typ {
	case rls.Movie:
		return ContentTypeMovie
	case rls.Episode, rls.Series:
		return ContentTypeSeries
	default:
		// rls could not tell; season/episode markers or a year are the next
		// best signals.
		switch {
		case release.Series > 0 || release.Episode > 0:
			return ContentTypeSeries
		case release.Year > 0:
			return ContentTypeMovie
		default:
			return ContentTypeUnknown
		}
	}
}

var videoHints = []string{
	"2160p", "1080p", "720p", "480p", "4k", "remux", "hdr", "uhd",
	"bluray", "blu-ray", "bdrip", "web-dl", "webdl", "webrip", "hdtv",
	"x264", "x265", "h264", "h265", "hevc", "av1", "xvid",
}

func looksLikeVideo(release *rls.Release) bool {
	if release.Resolution != "" || len(release.HDR) > 0 {
		return true
	}
	for _, codec := range release.Codec {
		lower := strings.ToLower(codec)
		for _, hint := range videoHints {
			if strings.Contains(lower, hint) {
				return true
			}
		}
	}
	haystack := strings.ToLower(release.Title + " " + release.Source + " " + release.Group)
	for _, hint := range videoHints {
		if strings.Contains(haystack, hint) {
			return true
		}
	}
	return false
}
