// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/autobrr/importarr/internal/dbinterface"
)

// IPTVSourceKind distinguishes saved playlist sources.
type IPTVSourceKind string

const (
	IPTVSourceKindM3U    IPTVSourceKind = "m3u"
	IPTVSourceKindXtream IPTVSourceKind = "xtream"
)

// IPTVSource is a saved recurring playlist source. A scheduled sync runs the
// same analyze+import pipeline a manual submission does, using the filter
// configuration stored here.
type IPTVSource struct {
	ID                  int64          `json:"id"`
	Name                string         `json:"name"`
	Kind                IPTVSourceKind `json:"kind"`
	URL                 string         `json:"url,omitempty"`
	Username            string         `json:"username,omitempty"`
	Password            string         `json:"-"`
	IncludeTypes        []string       `json:"includeTypes"`
	SyncIntervalMinutes int            `json:"syncIntervalMinutes"`
	Enabled             bool           `json:"enabled"`
	LastSyncAt          *time.Time     `json:"lastSyncAt,omitempty"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

// RSSFeed is a saved feed whose entries are imported as magnet/NZB
// candidates on a schedule.
type RSSFeed struct {
	ID                  int64      `json:"id"`
	Name                string     `json:"name"`
	URL                 string     `json:"url"`
	MetaType            MetaType   `json:"metaType"`
	IncludeFilter       string     `json:"includeFilter,omitempty"`
	ExcludeFilter       string     `json:"excludeFilter,omitempty"`
	SyncIntervalMinutes int        `json:"syncIntervalMinutes"`
	Enabled             bool       `json:"enabled"`
	LastSyncAt          *time.Time `json:"lastSyncAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// SourceStore handles database operations for saved recurring sources.
type SourceStore struct {
	db dbinterface.Querier
}

// NewSourceStore creates a new SourceStore.
func NewSourceStore(db dbinterface.Querier) *SourceStore {
	return &SourceStore{db: db}
}

// --- IPTV sources ---

// CreateIPTVSource persists a new saved playlist source.
func (s *SourceStore) CreateIPTVSource(ctx context.Context, src *IPTVSource) (*IPTVSource, error) {
	if src.SyncIntervalMinutes <= 0 {
		src.SyncIntervalMinutes = 1440
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO iptv_sources (name, kind, url, username, password, include_types, sync_interval_minutes, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, src.Name, src.Kind, src.URL, src.Username, src.Password, marshalSlice(src.IncludeTypes), src.SyncIntervalMinutes, src.Enabled)
	if err != nil {
		return nil, fmt.Errorf("create iptv source: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create iptv source id: %w", err)
	}
	return s.GetIPTVSource(ctx, id)
}

// GetIPTVSource returns a saved source by id, or nil when unknown.
func (s *SourceStore) GetIPTVSource(ctx context.Context, id int64) (*IPTVSource, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, kind, url, username, password, include_types, sync_interval_minutes, enabled, last_sync_at, created_at, updated_at
		FROM iptv_sources
		WHERE id = ?
	`, id)

	src, err := scanIPTVSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get iptv source: %w", err)
	}
	return src, nil
}

// ListIPTVSources returns all saved playlist sources.
func (s *SourceStore) ListIPTVSources(ctx context.Context) ([]*IPTVSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, url, username, password, include_types, sync_interval_minutes, enabled, last_sync_at, created_at, updated_at
		FROM iptv_sources
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list iptv sources: %w", err)
	}
	defer rows.Close()

	var sources []*IPTVSource
	for rows.Next() {
		src, err := scanIPTVSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan iptv source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// UpdateIPTVSource updates a saved source in place.
func (s *SourceStore) UpdateIPTVSource(ctx context.Context, src *IPTVSource) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE iptv_sources
		SET name = ?, kind = ?, url = ?, username = ?, password = ?, include_types = ?, sync_interval_minutes = ?, enabled = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, src.Name, src.Kind, src.URL, src.Username, src.Password, marshalSlice(src.IncludeTypes), src.SyncIntervalMinutes, src.Enabled, src.ID)
	if err != nil {
		return fmt.Errorf("update iptv source: %w", err)
	}
	return nil
}

// DeleteIPTVSource removes a saved source.
func (s *SourceStore) DeleteIPTVSource(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM iptv_sources WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete iptv source: %w", err)
	}
	return nil
}

// TouchIPTVSourceSynced records a completed sync.
func (s *SourceStore) TouchIPTVSourceSynced(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE iptv_sources SET last_sync_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, id); err != nil {
		return fmt.Errorf("touch iptv source: %w", err)
	}
	return nil
}

// --- RSS feeds ---

// CreateRSSFeed persists a new feed.
func (s *SourceStore) CreateRSSFeed(ctx context.Context, feed *RSSFeed) (*RSSFeed, error) {
	if feed.SyncIntervalMinutes <= 0 {
		feed.SyncIntervalMinutes = 60
	}
	if feed.MetaType == "" {
		feed.MetaType = MetaTypeMovie
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO rss_feeds (name, url, meta_type, include_filter, exclude_filter, sync_interval_minutes, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, feed.Name, feed.URL, feed.MetaType, feed.IncludeFilter, feed.ExcludeFilter, feed.SyncIntervalMinutes, feed.Enabled)
	if err != nil {
		return nil, fmt.Errorf("create rss feed: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create rss feed id: %w", err)
	}
	return s.GetRSSFeed(ctx, id)
}

// GetRSSFeed returns a feed by id, or nil when unknown.
func (s *SourceStore) GetRSSFeed(ctx context.Context, id int64) (*RSSFeed, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, url, meta_type, include_filter, exclude_filter, sync_interval_minutes, enabled, last_sync_at, created_at, updated_at
		FROM rss_feeds
		WHERE id = ?
	`, id)

	feed, err := scanRSSFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rss feed: %w", err)
	}
	return feed, nil
}

// ListRSSFeeds returns all feeds.
func (s *SourceStore) ListRSSFeeds(ctx context.Context) ([]*RSSFeed, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, url, meta_type, include_filter, exclude_filter, sync_interval_minutes, enabled, last_sync_at, created_at, updated_at
		FROM rss_feeds
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list rss feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*RSSFeed
	for rows.Next() {
		feed, err := scanRSSFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rss feed: %w", err)
		}
		feeds = append(feeds, feed)
	}
	return feeds, rows.Err()
}

// UpdateRSSFeed updates a feed in place.
func (s *SourceStore) UpdateRSSFeed(ctx context.Context, feed *RSSFeed) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE rss_feeds
		SET name = ?, url = ?, meta_type = ?, include_filter = ?, exclude_filter = ?, sync_interval_minutes = ?, enabled = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, feed.Name, feed.URL, feed.MetaType, feed.IncludeFilter, feed.ExcludeFilter, feed.SyncIntervalMinutes, feed.Enabled, feed.ID)
	if err != nil {
		return fmt.Errorf("update rss feed: %w", err)
	}
	return nil
}

// DeleteRSSFeed removes a feed.
func (s *SourceStore) DeleteRSSFeed(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rss_feeds WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete rss feed: %w", err)
	}
	return nil
}

// TouchRSSFeedSynced records a completed sync.
func (s *SourceStore) TouchRSSFeedSynced(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE rss_feeds SET last_sync_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, id); err != nil {
		return fmt.Errorf("touch rss feed: %w", err)
	}
	return nil
}

// DueForSync reports whether a source with the given schedule should sync now.
func DueForSync(lastSyncAt *time.Time, intervalMinutes int, now time.Time) bool {
	if lastSyncAt == nil {
		return true
	}
	return now.After(lastSyncAt.Add(time.Duration(intervalMinutes) * time.Minute))
}

func scanIPTVSource(row rowScanner) (*IPTVSource, error) {
	var src IPTVSource
	var includeTypes string
	err := row.Scan(&src.ID, &src.Name, &src.Kind, &src.URL, &src.Username, &src.Password,
		&includeTypes, &src.SyncIntervalMinutes, &src.Enabled, &src.LastSyncAt, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		return nil, err
	}
	src.IncludeTypes = unmarshalSlice(includeTypes)
	return &src, nil
}

func scanRSSFeed(row rowScanner) (*RSSFeed, error) {
	var feed RSSFeed
	err := row.Scan(&feed.ID, &feed.Name, &feed.URL, &feed.MetaType, &feed.IncludeFilter, &feed.ExcludeFilter,
		&feed.SyncIntervalMinutes, &feed.Enabled, &feed.LastSyncAt, &feed.CreatedAt, &feed.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &feed, nil
}
