// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package analysis

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/importarr/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(5*time.Second, 5*time.Minute)
}

func buildTorrentBytes(t *testing.T, info metainfo.Info) []byte {
	t.Helper()

	infoBytes, err := bencode.Marshal(info)
	require.NoError(t, err)

	mi := metainfo.MetaInfo{
		InfoBytes: infoBytes,
		Announce:  "https://example.invalid/announce",
	}

	var buf bytes.Buffer
	require.NoError(t, mi.Write(&buf))
	return buf.Bytes()
}

func TestTorrentMultiFile(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	data := buildTorrentBytes(t, metainfo.Info{
		Name:        "Example.Show.S01.1080p.WEB-DL.DDP5.1.x264-GROUP",
		PieceLength: 262144,
		Files: []metainfo.FileInfo{
			{Path: []string{"Example.Show.S01E01.mkv"}, Length: 100},
			{Path: []string{"Example.Show.S01E02.mkv"}, Length: 200},
		},
	})

	item, err := svc.Torrent(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, SourceTorrent, item.SourceKind)
	assert.Len(t, item.ContentID, 40)
	assert.Equal(t, "Example Show", item.Title)
	assert.Equal(t, models.MetaTypeSeries, item.MetaType)
	assert.Equal(t, int64(300), item.TotalSize)

	require.Len(t, item.Files, 2)
	require.NotNil(t, item.Files[0].Season)
	require.NotNil(t, item.Files[0].Episode)
	assert.Equal(t, 1, *item.Files[0].Season)
	assert.Equal(t, 1, *item.Files[0].Episode)
	assert.Equal(t, 2, *item.Files[1].Episode)
	assert.True(t, item.Files[0].Included)
}

func TestTorrentSingleFile(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	data := buildTorrentBytes(t, metainfo.Info{
		Name:        "The.Matrix.1999.1080p.BluRay.x264-GROUP.mkv",
		PieceLength: 262144,
		Length:      5000,
	})

	item, err := svc.Torrent(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, "The Matrix", item.Title)
	assert.Equal(t, 1999, item.Year)
	assert.Equal(t, models.MetaTypeMovie, item.MetaType)
	require.Len(t, item.Files, 1)
	assert.Equal(t, int64(5000), item.Files[0].Size)
}

func TestTorrentMalformed(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	_, err := svc.Torrent(context.Background(), []byte("not a torrent"))
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestMagnetFilesUnknown(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	item, err := svc.Magnet(context.Background(),
		"magnet:?xt=urn:btih:c12fe1c06bba254a9dc9f519b335aa7c1367a88a&dn=Example.Show.S01E01.1080p.WEB-DL.x264-GROUP")
	require.NoError(t, err)

	assert.Equal(t, SourceMagnet, item.SourceKind)
	assert.Equal(t, "c12fe1c06bba254a9dc9f519b335aa7c1367a88a", item.ContentID)
	assert.Equal(t, "Example Show", item.Title)

	// File list is not known yet. This is distinct from an empty source.
	assert.Nil(t, item.Files)
}

func TestNZBAdapter(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	item, err := svc.NZB(context.Background(), []byte(sampleNZBDoc))
	require.NoError(t, err)

	assert.Equal(t, SourceNZB, item.SourceKind)
	assert.Len(t, item.ContentID, 40)
	assert.Equal(t, "Example Show", item.Title)
	assert.Equal(t, models.MetaTypeSeries, item.MetaType)

	require.Len(t, item.Files, 2)
	assert.True(t, item.Files[0].Included)
	// Parity volumes are listed but excluded by default.
	assert.False(t, item.Files[1].Included)
}

const sampleNZBDoc = `<?xml version="1.0" encoding="utf-8"?>
<nzb xmlns="http://www.newzbin.com/DTD/2003/nzb">
  <file poster="p@example.com" date="1700000000" subject="&quot;Example.Show.S01E01.1080p.WEB-DL.x264-GROUP.mkv&quot; yEnc (1/2)">
    <groups><group>alt.binaries.example</group></groups>
    <segments>
      <segment bytes="1000" number="1">seg-1@example.com</segment>
      <segment bytes="1000" number="2">seg-2@example.com</segment>
    </segments>
  </file>
  <file poster="p@example.com" date="1700000000" subject="&quot;Example.Show.S01E01.par2&quot; yEnc (1/1)">
    <groups><group>alt.binaries.example</group></groups>
    <segments>
      <segment bytes="100" number="1">seg-3@example.com</segment>
    </segments>
  </file>
</nzb>`

func TestNZBMalformed(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	_, err := svc.NZB(context.Background(), []byte("<html>not an nzb</html>"))
	assert.ErrorIs(t, err, ErrMalformedInput)
}
