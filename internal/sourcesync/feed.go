// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sourcesync

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/autobrr/importarr/internal/analysis"
	"github.com/autobrr/importarr/internal/buildinfo"
	"github.com/autobrr/importarr/internal/models"
)

// maxFeedSize caps one feed or torrent download.
const maxFeedSize = 32 << 20

// feedEntry is one item of an RSS document, reduced to what the import
// pipeline needs.
type feedEntry struct {
	Title         string
	Link          string
	Enclosure     string
	EnclosureType string
}

type rssDocument struct {
	Channel struct {
		Items []struct {
			Title     string `xml:"title"`
			Link      string `xml:"link"`
			Enclosure struct {
				URL  string `xml:"url,attr"`
				Type string `xml:"type,attr"`
			} `xml:"enclosure"`
		} `xml:"item"`
	} `xml:"channel"`
}

// parseFeed decodes an RSS 2.0 document into its entries.
func parseFeed(data []byte) ([]feedEntry, error) {
	var doc rssDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	entries := make([]feedEntry, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		entries = append(entries, feedEntry{
			Title:         strings.TrimSpace(item.Title),
			Link:          strings.TrimSpace(item.Link),
			Enclosure:     strings.TrimSpace(item.Enclosure.URL),
			EnclosureType: item.Enclosure.Type,
		})
	}
	return entries, nil
}

// filterEntries applies the feed's include/exclude substring filters,
// case-insensitively, against entry titles.
func filterEntries(feed *models.RSSFeed, entries []feedEntry) []feedEntry {
	include := strings.ToLower(strings.TrimSpace(feed.IncludeFilter))
	exclude := strings.ToLower(strings.TrimSpace(feed.ExcludeFilter))

	kept := entries[:0]
	for _, entry := range entries {
		title := strings.ToLower(entry.Title)
		if include != "" && !strings.Contains(title, include) {
			continue
		}
		if exclude != "" && strings.Contains(title, exclude) {
			continue
		}
		kept = append(kept, entry)
	}
	return kept
}

// entryItem turns one feed entry into an importable item. The enclosure URL
// wins over the plain link; the candidate kind is decided from the URL shape.
func (s *Service) entryItem(ctx context.Context, feed *models.RSSFeed, entry feedEntry) (*analysis.Item, error) {
	target := entry.Enclosure
	if target == "" {
		target = entry.Link
	}
	if target == "" {
		return nil, fmt.Errorf("feed entry %q has no link", entry.Title)
	}

	var item *analysis.Item
	var err error
	switch {
	case strings.HasPrefix(target, "magnet:"):
		item, err = s.analyzer.Magnet(ctx, target)
	case isNZBTarget(target, entry.EnclosureType):
		item, err = s.analyzer.NZBFromURL(ctx, target)
	case isTorrentTarget(target, entry.EnclosureType):
		var data []byte
		data, err = s.fetch(ctx, target)
		if err == nil {
			item, err = s.analyzer.Torrent(ctx, data)
		}
	default:
		return nil, fmt.Errorf("feed entry %q: unsupported link %q", entry.Title, target)
	}
	if err != nil {
		return nil, err
	}

	if item.Title == "" {
		item.Title = entry.Title
	}
	if item.MetaType == "" || item.MetaType == models.MetaTypeUnknown {
		item.MetaType = feed.MetaType
	}
	return item, nil
}

func isNZBTarget(target, enclosureType string) bool {
	return strings.Contains(enclosureType, "nzb") || hasPathExt(target, ".nzb")
}

func isTorrentTarget(target, enclosureType string) bool {
	return strings.Contains(enclosureType, "bittorrent") || hasPathExt(target, ".torrent")
}

func hasPathExt(target, ext string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return strings.EqualFold(path.Ext(u.Path), ext)
}

// fetch downloads one feed or torrent document.
func (s *Service) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return body, nil
}
