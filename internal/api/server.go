// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api assembles the HTTP surface: the torznab indexer endpoint,
// the JSON source management API, health probes, and the optional
// Prometheus exposition endpoint.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/pickpockett/internal/api/handlers"
	"github.com/autobrr/pickpockett/internal/config"
	"github.com/autobrr/pickpockett/internal/database"
	"github.com/autobrr/pickpockett/internal/metrics"
	"github.com/autobrr/pickpockett/internal/models"
	"github.com/autobrr/pickpockett/internal/torznab"
)

type Dependencies struct {
	Config         *config.AppConfig
	DB             *database.DB
	SourceStore    *models.SourceStore
	Builder        *torznab.Builder
	Refresher      handlers.SourceRefresher
	Options        handlers.OptionsProvider
	MetricsManager *metrics.Manager
}

type Server struct {
	deps *Dependencies
}

func NewServer(deps *Dependencies) *Server {
	return &Server{deps: deps}
}

// Handler builds the router under the configured base URL.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}).Handler)

	baseURL := s.deps.Config.Settings().BaseURL
	if baseURL != "" && baseURL != "/" {
		r.Route(normalizeBaseURL(baseURL), func(r chi.Router) {
			s.routes(r)
		})
	} else {
		s.routes(r)
	}

	return r
}

func (s *Server) routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		handlers.NewTorznabHandler(s.deps.Builder).Routes(r)

		r.Get("/version", handlers.HandleVersion)

		r.Route("/sources", func(r chi.Router) {
			r.Get("/options", handlers.NewOptionsHandler(s.deps.Options).HandleOptions)
			handlers.NewSourcesHandler(s.deps.SourceStore, s.deps.Refresher).Routes(r)
		})

		r.Route("/health", func(r chi.Router) {
			handlers.NewHealthHandler(s.deps.DB.Conn()).Routes(r)
		})
	})

	if s.deps.MetricsManager != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.deps.MetricsManager.GetRegistry(), promhttp.HandlerOpts{}))
	}
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then
// drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	settings := s.deps.Config.Settings()
	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func normalizeBaseURL(baseURL string) string {
	return "/" + strings.Trim(baseURL, "/")
}
