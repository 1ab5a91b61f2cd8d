// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/autobrr/importarr/internal/dbinterface"
)

// MetaType classifies a media record.
type MetaType string

const (
	MetaTypeMovie   MetaType = "movie"
	MetaTypeSeries  MetaType = "series"
	MetaTypeTV      MetaType = "tv"
	MetaTypeUnknown MetaType = "unknown"
)

// ParseMetaType maps arbitrary client input onto a known MetaType.
func ParseMetaType(s string) MetaType {
	switch MetaType(strings.ToLower(strings.TrimSpace(s))) {
	case MetaTypeMovie:
		return MetaTypeMovie
	case MetaTypeSeries:
		return MetaTypeSeries
	case MetaTypeTV:
		return MetaTypeTV
	default:
		return MetaTypeUnknown
	}
}

// Media is a catalogued movie, series, or live channel.
type Media struct {
	ID         int64     `json:"id"`
	MetaType   MetaType  `json:"metaType"`
	Title      string    `json:"title"`
	Year       int       `json:"year,omitempty"`
	Poster     string    `json:"poster,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	ExternalID string    `json:"externalId,omitempty"`
	Popularity float64   `json:"popularity,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Stream is one playable source attached to a media record. ContentID is the
// source's dedup key (info hash, NZB GUID, video id, or URL hash) and is
// unique across the catalog.
type Stream struct {
	ID         int64     `json:"id"`
	MediaID    int64     `json:"mediaId"`
	SourceKind string    `json:"sourceKind"`
	ContentID  string    `json:"contentId"`
	Title      string    `json:"title,omitempty"`
	URL        string    `json:"url,omitempty"`
	Resolution string    `json:"resolution,omitempty"`
	Codec      string    `json:"codec,omitempty"`
	Audio      []string  `json:"audio,omitempty"`
	HDR        []string  `json:"hdr,omitempty"`
	Languages  []string  `json:"languages,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// StreamFile is one file inside a multi-file stream.
type StreamFile struct {
	ID         int64  `json:"id"`
	StreamID   int64  `json:"streamId"`
	Index      int    `json:"index"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	Season     *int   `json:"season,omitempty"`
	Episode    *int   `json:"episode,omitempty"`
	EpisodeEnd *int   `json:"episodeEnd,omitempty"`
}

// CatalogStore handles database operations for media, streams, and files.
type CatalogStore struct {
	db dbinterface.Querier
}

// NewCatalogStore creates a new CatalogStore.
func NewCatalogStore(db dbinterface.Querier) *CatalogStore {
	return &CatalogStore{db: db}
}

// FindStreamByContentID returns the stream holding the given content
// identity, or nil when none exists.
func (s *CatalogStore) FindStreamByContentID(ctx context.Context, contentID string) (*Stream, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, media_id, source_kind, content_id, title, url, resolution, codec, audio, hdr, languages, created_at, updated_at
		FROM streams
		WHERE content_id = ?
	`, contentID)

	stream, err := scanStream(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find stream by content id: %w", err)
	}
	return stream, nil
}

// GetMedia returns a media record by id.
func (s *CatalogStore) GetMedia(ctx context.Context, id int64) (*Media, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, meta_type, title, year, poster, provider, external_id, popularity, created_at, updated_at
		FROM media
		WHERE id = ?
	`, id)

	m, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get media: %w", err)
	}
	return m, nil
}

// FindMediaByExternalID returns the media record with the given provider id,
// or nil when none exists.
func (s *CatalogStore) FindMediaByExternalID(ctx context.Context, provider, externalID string) (*Media, error) {
	return s.findMediaByExternalID(ctx, s.db, provider, externalID)
}

func (s *CatalogStore) findMediaByExternalID(ctx context.Context, q dbinterface.Querier, provider, externalID string) (*Media, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, meta_type, title, year, poster, provider, external_id, popularity, created_at, updated_at
		FROM media
		WHERE provider = ? AND external_id = ?
	`, provider, externalID)

	m, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find media by external id: %w", err)
	}
	return m, nil
}

// SearchMedia returns catalogued media whose title matches, most recently
// catalogued first. Matching is case-insensitive substring; callers rank.
func (s *CatalogStore) SearchMedia(ctx context.Context, title string, metaType MetaType, limit int) ([]*Media, error) {
	if limit <= 0 {
		limit = 25
	}

	query := `
		SELECT id, meta_type, title, year, poster, provider, external_id, popularity, created_at, updated_at
		FROM media
		WHERE title LIKE ? COLLATE NOCASE
	`
	args := []any{"%" + title + "%"}
	if metaType != "" && metaType != MetaTypeUnknown {
		query += ` AND meta_type = ?`
		args = append(args, metaType)
	}
	query += ` ORDER BY popularity DESC, created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search media: %w", err)
	}
	defer rows.Close()

	var result []*Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// CreateMedia inserts a media record, or returns the existing record when
// the (provider, external_id) pair is already catalogued.
func (s *CatalogStore) CreateMedia(ctx context.Context, q dbinterface.Querier, m *Media) (*Media, error) {
	if q == nil {
		q = s.db
	}
	if m.MetaType == "" {
		m.MetaType = MetaTypeUnknown
	}

	if m.ExternalID != "" {
		existing, err := s.findMediaByExternalID(ctx, q, m.Provider, m.ExternalID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO media (meta_type, title, year, poster, provider, external_id, popularity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.MetaType, m.Title, m.Year, m.Poster, m.Provider, m.ExternalID, m.Popularity)
	if err != nil {
		if isUniqueConstraintError(err) {
			return s.findMediaByExternalID(ctx, q, m.Provider, m.ExternalID)
		}
		return nil, fmt.Errorf("create media: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create media id: %w", err)
	}
	m.ID = id
	return m, nil
}

// UpsertStream inserts a stream or, when the content identity already
// exists, updates it in place. Returns the stream id and whether a new row
// was created.
func (s *CatalogStore) UpsertStream(ctx context.Context, q dbinterface.Querier, stream *Stream) (int64, bool, error) {
	if q == nil {
		q = s.db
	}

	audio, hdr, languages := marshalSlice(stream.Audio), marshalSlice(stream.HDR), marshalSlice(stream.Languages)

	var existingID int64
	err := q.QueryRowContext(ctx, `SELECT id FROM streams WHERE content_id = ?`, stream.ContentID).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := q.ExecContext(ctx, `
			INSERT INTO streams (media_id, source_kind, content_id, title, url, resolution, codec, audio, hdr, languages)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, stream.MediaID, stream.SourceKind, stream.ContentID, stream.Title, stream.URL,
			stream.Resolution, stream.Codec, audio, hdr, languages)
		if err != nil {
			// Lost an insert race on the unique content_id index; fall back
			// to the update path.
			if isUniqueConstraintError(err) {
				return s.UpsertStream(ctx, q, stream)
			}
			return 0, false, fmt.Errorf("insert stream: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("insert stream id: %w", err)
		}
		stream.ID = id
		return id, true, nil

	case err != nil:
		return 0, false, fmt.Errorf("lookup stream: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		UPDATE streams
		SET media_id = ?, title = ?, url = ?, resolution = ?, codec = ?, audio = ?, hdr = ?, languages = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, stream.MediaID, stream.Title, stream.URL, stream.Resolution, stream.Codec, audio, hdr, languages, existingID)
	if err != nil {
		return 0, false, fmt.Errorf("update stream: %w", err)
	}
	stream.ID = existingID
	return existingID, false, nil
}

// ReplaceStreamFiles replaces the full file list of a stream.
func (s *CatalogStore) ReplaceStreamFiles(ctx context.Context, q dbinterface.Querier, streamID int64, files []StreamFile) error {
	if q == nil {
		q = s.db
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM stream_files WHERE stream_id = ?`, streamID); err != nil {
		return fmt.Errorf("clear stream files: %w", err)
	}

	for i := range files {
		f := &files[i]
		if _, err := q.ExecContext(ctx, `
			INSERT INTO stream_files (stream_id, file_index, name, size, season, episode, episode_end)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, streamID, f.Index, f.Name, f.Size, f.Season, f.Episode, f.EpisodeEnd); err != nil {
			return fmt.Errorf("insert stream file %q: %w", f.Name, err)
		}
	}
	return nil
}

// ListStreamFiles returns a stream's files in index order.
func (s *CatalogStore) ListStreamFiles(ctx context.Context, streamID int64) ([]StreamFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stream_id, file_index, name, size, season, episode, episode_end
		FROM stream_files
		WHERE stream_id = ?
		ORDER BY file_index
	`, streamID)
	if err != nil {
		return nil, fmt.Errorf("list stream files: %w", err)
	}
	defer rows.Close()

	var files []StreamFile
	for rows.Next() {
		var f StreamFile
		if err := rows.Scan(&f.ID, &f.StreamID, &f.Index, &f.Name, &f.Size, &f.Season, &f.Episode, &f.EpisodeEnd); err != nil {
			return nil, fmt.Errorf("scan stream file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// CountStreams returns the number of streams attached to a media record.
func (s *CatalogStore) CountStreams(ctx context.Context, mediaID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM streams WHERE media_id = ?`, mediaID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count streams: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedia(row rowScanner) (*Media, error) {
	var m Media
	err := row.Scan(&m.ID, &m.MetaType, &m.Title, &m.Year, &m.Poster, &m.Provider, &m.ExternalID, &m.Popularity, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanStream(row rowScanner) (*Stream, error) {
	var st Stream
	var audio, hdr, languages string
	err := row.Scan(&st.ID, &st.MediaID, &st.SourceKind, &st.ContentID, &st.Title, &st.URL,
		&st.Resolution, &st.Codec, &audio, &hdr, &languages, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	st.Audio = unmarshalSlice(audio)
	st.HDR = unmarshalSlice(hdr)
	st.Languages = unmarshalSlice(languages)
	return &st, nil
}

func marshalSlice(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func unmarshalSlice(data string) []string {
	if data == "" || data == "[]" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil
	}
	return values
}
