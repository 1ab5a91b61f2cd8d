// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package nzb parses NZB XML documents: subject-line metadata, the file
// segment lists, and a stable GUID-based content identity.
package nzb

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/net/html/charset"
)

// NZB is the decoded document.
type NZB struct {
	XMLName xml.Name `xml:"nzb"`
	Head    Head     `xml:"head"`
	Files   []File   `xml:"file"`
}

type Head struct {
	Meta []Meta `xml:"meta"`
}

type Meta struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// File is one posted file with its Usenet segments.
type File struct {
	Poster   string    `xml:"poster,attr"`
	Date     int64     `xml:"date,attr"`
	Subject  string    `xml:"subject,attr"`
	Groups   []string  `xml:"groups>group"`
	Segments []Segment `xml:"segments>segment"`
}

type Segment struct {
	Bytes  int64  `xml:"bytes,attr"`
	Number int    `xml:"number,attr"`
	ID     string `xml:",chardata"`
}

// ErrEmpty is returned for a syntactically valid document with no files.
var ErrEmpty = errors.New("nzb document contains no files")

// Parse decodes an NZB document. Usenet posts show up in assorted legacy
// encodings, so the decoder accepts whatever charset the document declares.
func Parse(r io.Reader) (*NZB, error) {
	var doc NZB
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel
	if err := decoder.Decode(&doc); err != nil {
		return nil, err
	}
	if len(doc.Files) == 0 {
		return nil, ErrEmpty
	}
	return &doc, nil
}

// GUID returns the content identity for the document: the SHA-1 of the
// first segment's Message-ID. Message-IDs are globally unique on Usenet, so
// the same post always hashes to the same identity regardless of which
// indexer produced the NZB.
func (n *NZB) GUID() string {
	if len(n.Files) == 0 || len(n.Files[0].Segments) == 0 {
		return ""
	}
	msgID := strings.Trim(n.Files[0].Segments[0].ID, "<>")
	sum := sha1.Sum([]byte(msgID))
	return hex.EncodeToString(sum[:])
}

// MetaValue returns the value of a head meta entry (e.g. "title"), or "".
func (n *NZB) MetaValue(metaType string) string {
	for _, m := range n.Head.Meta {
		if strings.EqualFold(m.Type, metaType) {
			return strings.TrimSpace(m.Value)
		}
	}
	return ""
}

// TotalSize returns the byte total over all segments.
func (n *NZB) TotalSize() int64 {
	var total int64
	for _, f := range n.Files {
		total += f.Size()
	}
	return total
}

// Size returns the file's byte total over its segments.
func (f *File) Size() int64 {
	var total int64
	for _, seg := range f.Segments {
		total += seg.Bytes
	}
	return total
}

// Filename extracts the posted filename from the file's subject line.
func (f *File) Filename() string {
	return ExtractFilename(f.Subject)
}

// IsPar2 reports whether the file is a parity volume.
func (f *File) IsPar2() bool {
	return strings.EqualFold(filepath.Ext(f.Filename()), ".par2")
}

// ExtractFilename pulls the filename out of an NZB subject line. Typical
// shapes:
//
//	"filename.mkv" yEnc (1/50)
//	filename.mkv (1/50)
//	[1/50] - "filename.mkv" yEnc
func ExtractFilename(subject string) string {
	if start := strings.Index(subject, `"`); start != -1 {
		if end := strings.Index(subject[start+1:], `"`); end != -1 {
			return subject[start+1 : start+1+end]
		}
	}

	subject = strings.TrimSpace(subject)
	if idx := strings.Index(subject, " yEnc"); idx != -1 {
		subject = subject[:idx]
	}
	if idx := strings.Index(subject, " ("); idx != -1 {
		subject = subject[:idx]
	}
	return strings.Trim(subject, `"' `)
}
