// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package analysis

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/importarr/pkg/magnet"
)

// Torrent analyzes an uploaded .torrent file: decodes the metainfo, computes
// the info hash, builds the file list, and parses the torrent name for
// title/year and technical attributes.
func (s *Service) Torrent(ctx context.Context, data []byte) (*Item, error) {
	mi, err := metainfo.Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parse torrent: %s", ErrMalformedInput, err)
	}

	info, err := mi.UnmarshalInfo()
	if err != nil {
		return nil, fmt.Errorf("%w: unmarshal torrent info: %s", ErrMalformedInput, err)
	}

	item := &Item{
		SourceKind: SourceTorrent,
		ContentID:  strings.ToLower(mi.HashInfoBytes().HexString()),
	}
	applyParsed(item, s.parser.Parse(info.BestName()))

	if len(info.Files) == 0 {
		// Single-file torrent.
		entry := FileEntry{
			Name:     info.BestName(),
			Size:     info.Length,
			Index:    0,
			Included: true,
		}
		s.inferFileEpisode(&entry)
		item.Files = []FileEntry{entry}
		item.TotalSize = info.Length
	} else {
		item.Files = make([]FileEntry, 0, len(info.Files))
		for i := range info.Files {
			f := &info.Files[i]
			entry := FileEntry{
				Name:     path.Join(f.BestPath()...),
				Size:     f.Length,
				Index:    i,
				Included: true,
			}
			s.inferFileEpisode(&entry)
			item.Files = append(item.Files, entry)
			item.TotalSize += f.Length
		}
	}

	log.Debug().
		Str("infoHash", item.ContentID).
		Str("title", item.Title).
		Int("files", len(item.Files)).
		Msg("Analyzed torrent")

	return item, nil
}

// Magnet analyzes a magnet link without resolving it against the swarm.
// The info hash and display name are available immediately; the file list is
// not, so Files stays nil ("not known yet") and no annotation is demanded.
func (s *Service) Magnet(ctx context.Context, uri string) (*Item, error) {
	m, err := magnet.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedInput, err)
	}

	item := &Item{
		SourceKind: SourceMagnet,
		ContentID:  m.InfoHash,
	}
	if m.DisplayName != "" {
		applyParsed(item, s.parser.Parse(m.DisplayName))
	}

	log.Debug().
		Str("infoHash", item.ContentID).
		Str("title", item.Title).
		Msg("Analyzed magnet link")

	return item, nil
}
