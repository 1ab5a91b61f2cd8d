// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package sourcesync re-runs saved IPTV sources and RSS feeds through the
// import pipeline on a schedule, as background jobs.
package sourcesync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/importarr/internal/analysis"
	"github.com/autobrr/importarr/internal/importer"
	"github.com/autobrr/importarr/internal/jobs"
	"github.com/autobrr/importarr/internal/models"
)

// ErrSyncInProgress is returned when a manual sync is requested for a source
// that already has one running.
var ErrSyncInProgress = errors.New("sync already in progress for this source")

// Config holds configuration for the sync scheduler.
type Config struct {
	// SchedulerInterval is how often to check for sources due for a sync.
	SchedulerInterval time.Duration

	// FetchTimeout bounds one outbound feed or playlist fetch.
	FetchTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		SchedulerInterval: 1 * time.Minute,
		FetchTimeout:      30 * time.Second,
	}
}

// Pipeline is the slice of the import pipeline a sync drives.
type Pipeline interface {
	Process(ctx context.Context, item *analysis.Item, opts importer.Options) (*importer.Outcome, error)
}

// Service drives scheduled and manual source syncs.
type Service struct {
	cfg      Config
	sources  *models.SourceStore
	analyzer *analysis.Service
	importer Pipeline
	runner   *jobs.Runner
	client   *http.Client

	// Per-source guard so a slow sync is never stacked on itself.
	activeMu sync.Mutex
	active   map[string]bool

	schedulerCtx    context.Context
	schedulerCancel context.CancelFunc
	schedulerWg     sync.WaitGroup
}

// NewService creates a sync service over the given pipeline.
func NewService(cfg Config, sources *models.SourceStore, analyzer *analysis.Service, imp Pipeline, runner *jobs.Runner) *Service {
	if cfg.SchedulerInterval <= 0 {
		cfg.SchedulerInterval = DefaultConfig().SchedulerInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultConfig().FetchTimeout
	}

	return &Service{
		cfg:      cfg,
		sources:  sources,
		analyzer: analyzer,
		importer: imp,
		runner:   runner,
		client:   &http.Client{Timeout: cfg.FetchTimeout},
		active:   make(map[string]bool),
	}
}

// Start starts the scheduler loop.
func (s *Service) Start(ctx context.Context) error {
	s.schedulerCtx, s.schedulerCancel = context.WithCancel(ctx)
	s.schedulerWg.Add(1)
	go s.runScheduler()
	log.Info().Msg("sourcesync: scheduler started")
	return nil
}

// Stop stops the scheduler and waits for completion.
func (s *Service) Stop() {
	if s.schedulerCancel != nil {
		s.schedulerCancel()
	}
	s.schedulerWg.Wait()
	log.Info().Msg("sourcesync: scheduler stopped")
}

func (s *Service) runScheduler() {
	defer s.schedulerWg.Done()

	ticker := time.NewTicker(s.cfg.SchedulerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.schedulerCtx.Done():
			return
		case <-ticker.C:
			s.checkDueSources()
		}
	}
}

// checkDueSources triggers a sync for every enabled source past its interval.
func (s *Service) checkDueSources() {
	ctx := s.schedulerCtx
	now := time.Now()

	iptv, err := s.sources.ListIPTVSources(ctx)
	if err != nil {
		log.Error().Err(err).Msg("sourcesync: failed to list iptv sources")
	}
	for _, src := range iptv {
		if src.Enabled && models.DueForSync(src.LastSyncAt, src.SyncIntervalMinutes, now) {
			src := src
			go func() {
				if _, err := s.syncIPTV(ctx, src); err != nil && !errors.Is(err, ErrSyncInProgress) {
					log.Error().Err(err).Int64("sourceId", src.ID).Msg("sourcesync: scheduled iptv sync failed")
				}
			}()
		}
	}

	feeds, err := s.sources.ListRSSFeeds(ctx)
	if err != nil {
		log.Error().Err(err).Msg("sourcesync: failed to list rss feeds")
	}
	for _, feed := range feeds {
		if feed.Enabled && models.DueForSync(feed.LastSyncAt, feed.SyncIntervalMinutes, now) {
			feed := feed
			go func() {
				if _, err := s.syncRSS(ctx, feed); err != nil && !errors.Is(err, ErrSyncInProgress) {
					log.Error().Err(err).Int64("feedId", feed.ID).Msg("sourcesync: scheduled rss sync failed")
				}
			}()
		}
	}
}

// SyncIPTVSource triggers a manual sync for one saved playlist source.
// Returns sql.ErrNoRows for an unknown id.
func (s *Service) SyncIPTVSource(ctx context.Context, id int64) (*models.ImportJob, error) {
	src, err := s.sources.GetIPTVSource(ctx, id)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, sql.ErrNoRows
	}
	return s.syncIPTV(ctx, src)
}

// SyncRSSFeed triggers a manual sync for one saved feed. Returns
// sql.ErrNoRows for an unknown id.
func (s *Service) SyncRSSFeed(ctx context.Context, id int64) (*models.ImportJob, error) {
	feed, err := s.sources.GetRSSFeed(ctx, id)
	if err != nil {
		return nil, err
	}
	if feed == nil {
		return nil, sql.ErrNoRows
	}
	return s.syncRSS(ctx, feed)
}

func (s *Service) syncIPTV(ctx context.Context, src *models.IPTVSource) (*models.ImportJob, error) {
	key := fmt.Sprintf("iptv:%d", src.ID)
	if !s.tryAcquire(key) {
		return nil, ErrSyncInProgress
	}

	items, err := s.iptvItems(ctx, src)
	if err != nil {
		s.release(key)
		return nil, err
	}

	sourceID := src.ID
	// The guard is released by the runner's cleanup hook, so a job cancelled
	// or abandoned before it runs still frees the source.
	job, err := s.runner.Submit(ctx, "iptv", len(items), &sourceID, func(ctx context.Context, report *jobs.Reporter) error {
		s.processItems(ctx, items, report)
		return s.sources.TouchIPTVSourceSynced(context.Background(), sourceID)
	}, func() { s.release(key) })
	if err != nil {
		s.release(key)
		return nil, err
	}

	log.Info().
		Int64("sourceId", src.ID).
		Str("kind", string(src.Kind)).
		Int("items", len(items)).
		Str("jobId", job.ID).
		Msg("sourcesync: iptv sync started")

	return job, nil
}

// iptvItems expands a saved playlist source into importable items, honoring
// the source's include filter.
func (s *Service) iptvItems(ctx context.Context, src *models.IPTVSource) ([]*analysis.Item, error) {
	switch src.Kind {
	case models.IPTVSourceKindM3U:
		batch, err := s.analyzer.M3UFromURL(ctx, src.URL)
		if err != nil {
			return nil, err
		}
		include := includeSet(src.IncludeTypes)
		var items []*analysis.Item
		for _, ch := range batch.Channels {
			if include != nil && !include[string(ch.DetectedType)] {
				continue
			}
			items = append(items, s.analyzer.ChannelItem(ch, ""))
		}
		return items, nil

	case models.IPTVSourceKindXtream:
		// For Xtream sources the include filter names the panel trees
		// (live, vod, series).
		catalog, err := s.analyzer.Xtream(ctx, analysis.XtreamCredentials{
			BaseURL:  src.URL,
			Username: src.Username,
			Password: src.Password,
		})
		if err != nil {
			return nil, err
		}
		include := includeSet(src.IncludeTypes)
		var categoryIDs []string
		for _, group := range []struct {
			kind       analysis.XtreamCategoryKind
			categories []analysis.XtreamCategory
		}{
			{analysis.XtreamLive, catalog.Live},
			{analysis.XtreamVOD, catalog.VOD},
			{analysis.XtreamSeries, catalog.Series},
		} {
			if include != nil && !include[string(group.kind)] {
				continue
			}
			for _, cat := range group.categories {
				categoryIDs = append(categoryIDs, cat.ID)
			}
		}
		return s.analyzer.XtreamItems(ctx, catalog, categoryIDs)

	default:
		return nil, fmt.Errorf("unknown iptv source kind %q", src.Kind)
	}
}

func (s *Service) syncRSS(ctx context.Context, feed *models.RSSFeed) (*models.ImportJob, error) {
	key := fmt.Sprintf("rss:%d", feed.ID)
	if !s.tryAcquire(key) {
		return nil, ErrSyncInProgress
	}

	body, err := s.fetch(ctx, feed.URL)
	if err != nil {
		s.release(key)
		return nil, err
	}
	entries, err := parseFeed(body)
	if err != nil {
		s.release(key)
		return nil, err
	}
	entries = filterEntries(feed, entries)

	feedID := feed.ID
	job, err := s.runner.Submit(ctx, "rss", len(entries), &feedID, func(ctx context.Context, report *jobs.Reporter) error {
		for _, entry := range entries {
			item, err := s.entryItem(ctx, feed, entry)
			if err != nil {
				log.Warn().Err(err).Str("entry", entry.Title).Int64("feedId", feedID).Msg("sourcesync: feed entry not importable")
				report.Record(ctx, string(importer.ResultFailed))
				continue
			}
			outcome, err := s.importer.Process(ctx, item, importer.Options{AutoCreate: true})
			if err != nil {
				log.Error().Err(err).Str("contentId", item.ContentID).Int64("feedId", feedID).Msg("sourcesync: import failed")
				report.Record(ctx, string(importer.ResultFailed))
				continue
			}
			result := importer.ResultItemFor(item.ContentID, outcome)
			report.Record(ctx, string(result.Status))
		}
		return s.sources.TouchRSSFeedSynced(context.Background(), feedID)
	}, func() { s.release(key) })
	if err != nil {
		s.release(key)
		return nil, err
	}

	log.Info().
		Int64("feedId", feed.ID).
		Int("entries", len(entries)).
		Str("jobId", job.ID).
		Msg("sourcesync: rss sync started")

	return job, nil
}

// processItems pushes pre-expanded items through the pipeline, one stat per
// item.
func (s *Service) processItems(ctx context.Context, items []*analysis.Item, report *jobs.Reporter) {
	for _, item := range items {
		outcome, err := s.importer.Process(ctx, item, importer.Options{AutoCreate: true})
		if err != nil {
			log.Error().Err(err).Str("contentId", item.ContentID).Msg("sourcesync: import failed")
			report.Record(ctx, string(importer.ResultFailed))
			continue
		}
		result := importer.ResultItemFor(item.ContentID, outcome)
		report.Record(ctx, string(result.Status))
	}
}

func (s *Service) tryAcquire(key string) bool {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if s.active[key] {
		return false
	}
	s.active[key] = true
	return true
}

func (s *Service) release(key string) {
	s.activeMu.Lock()
	delete(s.active, key)
	s.activeMu.Unlock()
}

func includeSet(types []string) map[string]bool {
	if len(types) == 0 {
		return nil
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}
