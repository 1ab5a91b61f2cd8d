// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/importarr/internal/analysis"
	"github.com/autobrr/importarr/internal/api"
	"github.com/autobrr/importarr/internal/buildinfo"
	"github.com/autobrr/importarr/internal/config"
	"github.com/autobrr/importarr/internal/database"
	"github.com/autobrr/importarr/internal/importer"
	"github.com/autobrr/importarr/internal/jobs"
	"github.com/autobrr/importarr/internal/logger"
	"github.com/autobrr/importarr/internal/matcher"
	"github.com/autobrr/importarr/internal/metadata"
	"github.com/autobrr/importarr/internal/models"
	"github.com/autobrr/importarr/internal/sourcesync"
)

func RunServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the import service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file or directory")
	return cmd
}

func runServe(configPath string) error {
	appCfg, err := config.New(configPath, buildinfo.Version)
	if err != nil {
		return err
	}
	cfg := appCfg.Config

	logger.Setup(cfg)
	log.Info().Str("version", buildinfo.Version).Msg("starting importarr")

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	catalog := models.NewCatalogStore(db)
	sources := models.NewSourceStore(db)
	jobStore := models.NewImportJobStore(db)

	analyzer := analysis.NewService(cfg.SourceTimeout(), cfg.AnalysisHandleTTL())
	provider := metadata.New(cfg.MetadataBaseURL, cfg.MetadataAPIKey, cfg.SourceTimeout())
	match := matcher.NewService(catalog, provider)

	policy := importer.DefaultPolicy()
	policy.TitleSimilarityThreshold = cfg.TitleMismatchThreshold
	imp := importer.NewService(catalog, match, db, policy)

	runner := jobs.NewRunner(jobStore, cfg.ImportWorkers)
	defer runner.Close()

	syncService := sourcesync.NewService(sourcesync.Config{
		SchedulerInterval: cfg.SyncInterval(),
		FetchTimeout:      cfg.SourceTimeout(),
	}, sources, analyzer, imp, runner)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := syncService.Start(ctx); err != nil {
		return err
	}
	defer syncService.Stop()

	server := api.NewServer(&api.Dependencies{
		Config:      cfg,
		DB:          db,
		Analyzer:    analyzer,
		Importer:    imp,
		Runner:      runner,
		JobStore:    jobStore,
		SourceStore: sources,
		Sync:        syncService,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	return nil
}
