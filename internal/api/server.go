// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api assembles the chi router and HTTP server.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/importarr/internal/analysis"
	"github.com/autobrr/importarr/internal/api/handlers"
	"github.com/autobrr/importarr/internal/api/middleware"
	"github.com/autobrr/importarr/internal/database"
	"github.com/autobrr/importarr/internal/domain"
	"github.com/autobrr/importarr/internal/importer"
	"github.com/autobrr/importarr/internal/jobs"
	"github.com/autobrr/importarr/internal/models"
	"github.com/autobrr/importarr/internal/sourcesync"
)

// Dependencies carries everything the router needs.
type Dependencies struct {
	Config      *domain.Config
	DB          *database.DB
	Analyzer    *analysis.Service
	Importer    *importer.Service
	Runner      *jobs.Runner
	JobStore    *models.ImportJobStore
	SourceStore *models.SourceStore
	Sync        *sourcesync.Service
}

// NewRouter builds the API router.
func NewRouter(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Compress(1024, 5))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}).Handler)

	imports := handlers.NewImportsHandler(deps.Analyzer, deps.Importer, deps.Runner)
	m3u := handlers.NewM3UHandler(deps.Analyzer, deps.Importer, deps.Runner)
	xtream := handlers.NewXtreamHandler(deps.Analyzer, deps.Importer, deps.Runner)
	jobsHandler := handlers.NewJobsHandler(deps.JobStore)
	sources := handlers.NewSourcesHandler(deps.SourceStore, deps.Sync)
	health := handlers.NewHealthHandler(deps.DB)

	r.Route("/api", func(r chi.Router) {
		r.Route("/import", func(r chi.Router) {
			imports.Routes(r)
			r.Route("/m3u", m3u.Routes)
			r.Route("/xtream", xtream.Routes)
		})
		r.Route("/jobs", jobsHandler.Routes)
		r.Route("/sources", sources.Routes)
		r.Route("/health", health.Routes)
	})

	return r
}

// Server wraps the http.Server lifecycle.
type Server struct {
	cfg  *domain.Config
	http *http.Server
}

// NewServer creates the API server over the given dependencies.
func NewServer(deps *Dependencies) *Server {
	addr := fmt.Sprintf("%s:%d", deps.Config.Host, deps.Config.Port)
	return &Server{
		cfg: deps.Config,
		http: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(deps),
			ReadHeaderTimeout: 15 * time.Second,
		},
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.http.Addr).Msg("API server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
