// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/autobrr/pickpockett/internal/api"
	"github.com/autobrr/pickpockett/internal/api/handlers"
	"github.com/autobrr/pickpockett/internal/buildinfo"
	"github.com/autobrr/pickpockett/internal/config"
	"github.com/autobrr/pickpockett/internal/database"
	"github.com/autobrr/pickpockett/internal/domain"
	"github.com/autobrr/pickpockett/internal/metrics"
	"github.com/autobrr/pickpockett/internal/models"
	"github.com/autobrr/pickpockett/internal/scraper"
	"github.com/autobrr/pickpockett/internal/services/poller"
	"github.com/autobrr/pickpockett/internal/services/reconcile"
	"github.com/autobrr/pickpockett/internal/torznab"
	"github.com/autobrr/pickpockett/pkg/flaresolverr"
	"github.com/autobrr/pickpockett/pkg/sonarr"
	"github.com/autobrr/pickpockett/pkg/webhook"
)

func RunServeCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the indexer and poll scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configDir)
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory holding config.toml (default: OS config dir)")
	return cmd
}

func serve(ctx context.Context, configDir string) error {
	cfg, err := config.New(configDir, buildinfo.Version)
	if err != nil {
		return errors.Wrap(err, "could not load configuration")
	}

	settings := cfg.Settings()
	setupLogger(settings)

	log.Info().Str("version", buildinfo.Version).Msg("starting pickpockett")

	db, err := database.New(cfg.DatabasePath())
	if err != nil {
		return errors.Wrap(err, "could not open database")
	}
	defer db.Close()

	store := models.NewSourceStore(db.Conn())

	var metricsManager *metrics.Manager
	if settings.MetricsEnabled {
		metricsManager = metrics.NewManager(store)
	}

	var newSolver func() scraper.Solver
	if settings.FlareSolverrConfigured() {
		newSolver = func() scraper.Solver {
			return flaresolverr.NewClient(flaresolverr.Config{
				Host:          settings.FlareSolverrURL,
				TimeoutMillis: settings.FlareSolverrTimeout,
				UserAgent:     buildinfo.UserAgent,
			})
		}
	}

	scr := scraper.New(scraper.Config{
		DefaultUserAgent: settings.UserAgent,
		NewSolver:        newSolver,
	})

	notifier := webhook.NewNotifier(webhook.Config{
		Endpoint:  settings.WebhookURL,
		UserAgent: buildinfo.UserAgent,
	})

	reconciler := reconcile.NewService(store, scr, notifier, metricsManager, log.Logger)

	var calendar torznab.Calendar
	var options handlers.OptionsProvider
	var scheduler *poller.Scheduler
	if settings.SonarrConfigured() {
		client := sonarr.NewClient(sonarr.Config{
			Host:      settings.SonarrURL,
			APIKey:    settings.SonarrAPIKey,
			UserAgent: buildinfo.UserAgent,
		})
		calendar = client
		options = client

		scheduler = poller.NewScheduler(store, client, reconciler, metricsManager, log.Logger)
		scheduler.Reschedule(settings.CheckInterval())
		defer scheduler.Stop()

		cfg.OnChange(func(updated *domain.Config) {
			scheduler.Reschedule(updated.CheckInterval())
		})
	} else {
		log.Warn().Msg("sonarr is not configured, polling disabled")
	}

	var refresher handlers.SourceRefresher = reconciler

	srv := api.NewServer(&api.Dependencies{
		Config:         cfg,
		DB:             db,
		SourceStore:    store,
		Builder:        torznab.NewBuilder(store, calendar, log.Logger),
		Refresher:      refresher,
		Options:        options,
		MetricsManager: metricsManager,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx)
}

// setupLogger configures the global zerolog logger: console output, an
// optional rotated log file, and the configured level.
func setupLogger(settings *domain.Config) {
	level, err := zerolog.ParseLevel(settings.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer
	writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if settings.LogPath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   settings.LogPath,
			MaxSize:    settings.LogMaxSize,
			MaxBackups: settings.LogMaxBackups,
			Compress:   true,
		})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
}
