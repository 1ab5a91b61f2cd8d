// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package magnet parses magnet URIs into the fields the import pipeline
// needs: the info hash as content identity plus the display name.
package magnet

import (
	"fmt"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
)

// Magnet is a parsed magnet link.
type Magnet struct {
	InfoHash    string
	DisplayName string
	Trackers    []string
}

// Parse parses a magnet URI. The info hash comes back lowercase hex
// regardless of whether the link encoded it as hex or base32.
func Parse(uri string) (*Magnet, error) {
	uri = strings.TrimSpace(uri)
	if !strings.HasPrefix(strings.ToLower(uri), "magnet:") {
		return nil, fmt.Errorf("not a magnet link")
	}

	m, err := metainfo.ParseMagnetUri(uri)
	if err != nil {
		return nil, fmt.Errorf("parse magnet: %w", err)
	}

	return &Magnet{
		InfoHash:    strings.ToLower(m.InfoHash.HexString()),
		DisplayName: m.DisplayName,
		Trackers:    m.Trackers,
	}, nil
}
