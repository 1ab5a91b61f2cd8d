// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package analysis

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/importarr/pkg/nzb"
)

// NZB analyzes an NZB document: subject-line metadata, the file segment
// list, and the GUID-based content identity. Parity volumes are listed but
// excluded from import by default.
func (s *Service) NZB(ctx context.Context, data []byte) (*Item, error) {
	doc, err := nzb.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parse nzb: %s", ErrMalformedInput, err)
	}

	item := &Item{
		SourceKind: SourceNZB,
		ContentID:  doc.GUID(),
		TotalSize:  doc.TotalSize(),
		Files:      make([]FileEntry, 0, len(doc.Files)),
	}

	// The head title meta is the release name when the indexer sets it;
	// otherwise the largest file's subject is the best name we have.
	name := doc.MetaValue("title")
	if name == "" {
		name = largestFileName(doc)
	}
	applyParsed(item, s.parser.Parse(name))

	for i := range doc.Files {
		f := &doc.Files[i]
		entry := FileEntry{
			Name:     f.Filename(),
			Size:     f.Size(),
			Index:    i,
			Included: !f.IsPar2(),
		}
		s.inferFileEpisode(&entry)
		item.Files = append(item.Files, entry)
	}

	log.Debug().
		Str("guid", item.ContentID).
		Str("title", item.Title).
		Int("files", len(item.Files)).
		Msg("Analyzed NZB")

	return item, nil
}

// NZBFromURL fetches an NZB document and analyzes it.
func (s *Service) NZBFromURL(ctx context.Context, rawURL string) (*Item, error) {
	body, err := s.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return s.NZB(ctx, body)
}

func largestFileName(doc *nzb.NZB) string {
	var name string
	var largest int64
	for i := range doc.Files {
		f := &doc.Files[i]
		if size := f.Size(); size > largest {
			largest = size
			name = f.Filename()
		}
	}
	return name
}
