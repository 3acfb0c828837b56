// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package poller revalidates all tracked sources on a fixed interval,
// consulting the Sonarr calendar to skip sources that cannot have
// changed since their last known release.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/autobrr/pickpockett/internal/metrics"
	"github.com/autobrr/pickpockett/internal/models"
	"github.com/autobrr/pickpockett/pkg/sonarr"
)

// maxWorkers bounds how many sources are resolved at once within a tick.
const maxWorkers = 8

// Calendar is the Sonarr capability the scheduler consults, satisfied by
// *sonarr.Client.
type Calendar interface {
	GetSeries(ctx context.Context, tvdbID int) (*sonarr.Series, error)
	Episodes(ctx context.Context, seriesID int) ([]sonarr.Episode, error)
}

// Refresher re-resolves one source, satisfied by *reconcile.Service.
type Refresher interface {
	Refresh(ctx context.Context, source *models.Source) (*models.Source, error)
}

type Scheduler struct {
	sources    *models.SourceStore
	calendar   Calendar
	reconciler Refresher
	metrics    *metrics.Manager
	log        zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler builds an idle scheduler; call Reschedule to start it.
// metricsManager may be nil when metrics are disabled.
func NewScheduler(sources *models.SourceStore, calendar Calendar, reconciler Refresher, metricsManager *metrics.Manager, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		sources:    sources,
		calendar:   calendar,
		reconciler: reconciler,
		metrics:    metricsManager,
		log:        logger.With().Str("service", "poller").Logger(),
	}
}

// Reschedule tears down any running interval loop and starts a new one,
// firing an immediate tick before settling into the interval. A
// non-positive interval stops the scheduler.
func (s *Scheduler) Reschedule(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	if interval <= 0 {
		s.log.Info().Msg("poll scheduler disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	s.log.Info().Dur("interval", interval).Msg("poll scheduler armed")

	go s.run(ctx, interval, done)
}

// Stop halts the interval loop and waits for an in-flight tick.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	s.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// tick checks every source once, fanning out across a bounded pool. One
// source's failure never aborts the others.
func (s *Scheduler) tick(ctx context.Context) {
	sources, err := s.sources.List(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("could not list sources")
		return
	}

	sem := semaphore.NewWeighted(maxWorkers)
	var wg sync.WaitGroup

	for _, source := range sources {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(source *models.Source) {
			defer wg.Done()
			defer sem.Release(1)

			if err := s.checkSource(ctx, source); err != nil {
				s.log.Error().Err(err).Int("source", source.ID).Str("url", source.URL).Msg("source check failed")
			}
		}(source)
	}

	wg.Wait()

	if s.metrics != nil {
		s.metrics.PollRuns.Inc()
	}
	s.log.Debug().Int("sources", len(sources)).Msg("poll tick finished")
}

func (s *Scheduler) checkSource(ctx context.Context, source *models.Source) error {
	series, err := s.calendar.GetSeries(ctx, source.TVDBID)
	if err != nil {
		if errors.Is(err, sonarr.ErrSeriesNotFound) {
			s.log.Info().Int("source", source.ID).Int("tvdbId", source.TVDBID).Msg("series no longer exists, removing source")
			return s.sources.Delete(ctx, source.ID)
		}
		return errors.Wrap(err, "could not look up series")
	}

	if source.Error == "" && source.Datetime != nil {
		fresh, err := s.upToDate(ctx, source, series)
		if err != nil {
			return err
		}
		if fresh {
			s.log.Debug().Int("source", source.ID).Msg("no new episodes aired, skipping")
			return nil
		}
	}

	_, err = s.reconciler.Refresh(ctx, source)
	return err
}

// upToDate reports whether the source's last change already covers the
// most recent relevant air date, shifted by the source's schedule
// correction.
func (s *Scheduler) upToDate(ctx context.Context, source *models.Source, series *sonarr.Series) (bool, error) {
	episodes, err := s.calendar.Episodes(ctx, series.ID)
	if err != nil {
		return false, errors.Wrap(err, "could not load episodes")
	}

	asOf := time.Now().UTC().Add(time.Duration(source.ScheduleCorrection) * 24 * time.Hour)
	relevant := sonarr.FilterEpisodes(episodes, sonarr.EpisodeFilter{
		Season:            source.Season,
		AsOf:              &asOf,
		IncludeDownloaded: true,
	})

	lastAired := sonarr.LastAired(relevant)
	if lastAired == nil {
		return true, nil
	}

	return !lastAired.After(*source.Datetime), nil
}
