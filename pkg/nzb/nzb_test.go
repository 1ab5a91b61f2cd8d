// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package nzb

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleNZB = `<?xml version="1.0" encoding="utf-8"?>
<nzb xmlns="http://www.newzbin.com/DTD/2003/nzb">
  <head>
    <meta type="title">Example.Show.S01E01.1080p.WEB-DL.x264-GROUP</meta>
  </head>
  <file poster="poster@example.com" date="1700000000" subject="&quot;Example.Show.S01E01.1080p.WEB-DL.x264-GROUP.mkv&quot; yEnc (1/3)">
    <groups>
      <group>alt.binaries.example</group>
    </groups>
    <segments>
      <segment bytes="500000" number="1">msgid-1@example.com</segment>
      <segment bytes="500000" number="2">msgid-2@example.com</segment>
      <segment bytes="250000" number="3">msgid-3@example.com</segment>
    </segments>
  </file>
  <file poster="poster@example.com" date="1700000000" subject="&quot;Example.Show.S01E01.par2&quot; yEnc (1/1)">
    <groups>
      <group>alt.binaries.example</group>
    </groups>
    <segments>
      <segment bytes="10000" number="1">msgid-4@example.com</segment>
    </segments>
  </file>
</nzb>`

func TestParse(t *testing.T) {
	t.Parallel()

	doc, err := Parse(strings.NewReader(sampleNZB))
	require.NoError(t, err)
	require.Len(t, doc.Files, 2)

	assert.Equal(t, "Example.Show.S01E01.1080p.WEB-DL.x264-GROUP", doc.MetaValue("title"))
	assert.Equal(t, "Example.Show.S01E01.1080p.WEB-DL.x264-GROUP.mkv", doc.Files[0].Filename())
	assert.Equal(t, int64(1250000), doc.Files[0].Size())
	assert.Equal(t, int64(1260000), doc.TotalSize())
	assert.False(t, doc.Files[0].IsPar2())
	assert.True(t, doc.Files[1].IsPar2())
}

func TestGUIDStable(t *testing.T) {
	t.Parallel()

	first, err := Parse(strings.NewReader(sampleNZB))
	require.NoError(t, err)
	second, err := Parse(strings.NewReader(sampleNZB))
	require.NoError(t, err)

	assert.NotEmpty(t, first.GUID())
	assert.Equal(t, first.GUID(), second.GUID())
	assert.Len(t, first.GUID(), 40)
}

func TestParseEmptyDocument(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader(`<?xml version="1.0"?><nzb xmlns="http://www.newzbin.com/DTD/2003/nzb"></nzb>`))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader("not xml at all"))
	assert.Error(t, err)
}

func TestExtractFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		subject  string
		expected string
	}{
		{`"movie.mkv" yEnc (1/50)`, "movie.mkv"},
		{`movie.mkv (1/50)`, "movie.mkv"},
		{`[1/50] - "movie.mkv" yEnc`, "movie.mkv"},
		{`plain-subject`, "plain-subject"},
	}

	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ExtractFilename(tt.subject))
		})
	}
}
