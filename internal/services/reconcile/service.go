// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package reconcile applies freshly resolved magnet identities to stored
// sources: it merges session cookies, detects info-hash changes, bumps
// version counters, and notifies the change webhook.
package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/autobrr/pickpockett/internal/metrics"
	"github.com/autobrr/pickpockett/internal/models"
	"github.com/autobrr/pickpockett/pkg/cookies"
	"github.com/autobrr/pickpockett/pkg/magnet"
	"github.com/autobrr/pickpockett/pkg/webhook"
)

// errNoMagnet is the sticky error recorded on a source whose page no
// longer offers any magnet or torrent link.
const errNoMagnet = "No magnet link found"

// Resolver produces a magnet identity for a source page, satisfied by
// *scraper.Scraper.
type Resolver interface {
	Resolve(ctx context.Context, url string, jar cookies.Jar, userAgent, displayName string) (magnet.Magnet, error)
}

type Service struct {
	store    *models.SourceStore
	resolver Resolver
	notifier *webhook.Notifier
	metrics  *metrics.Manager
	log      zerolog.Logger
}

// NewService wires the reconciliation pipeline. metricsManager may be
// nil when metrics are disabled.
func NewService(store *models.SourceStore, resolver Resolver, notifier *webhook.Notifier, metricsManager *metrics.Manager, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		resolver: resolver,
		notifier: notifier,
		metrics:  metricsManager,
		log:      logger.With().Str("service", "reconcile").Logger(),
	}
}

func (s *Service) countResolutionError() {
	if s.metrics != nil {
		s.metrics.ResolutionErrors.Inc()
	}
}

// Refresh re-resolves a source's page and reconciles the outcome.
// Resolution failures are absorbed into the source's error field; the
// returned error reports persistence problems only.
func (s *Service) Refresh(ctx context.Context, source *models.Source) (*models.Source, error) {
	if s.metrics != nil {
		s.metrics.SourceRefreshes.Inc()
	}

	m, err := s.resolver.Resolve(ctx, source.URL, source.Jar(), source.UserAgent, "")
	if err != nil {
		s.log.Warn().Err(err).Int("source", source.ID).Str("url", source.URL).Msg("resolution failed")
		s.countResolutionError()
		source.Error = err.Error()
		return s.store.Update(ctx, source)
	}

	return s.Reconcile(ctx, source, m)
}

// Reconcile merges a resolved magnet identity into the source record and
// persists it. A missing magnet is a no-op for announce-mode sources and
// a recorded error for everything else.
func (s *Service) Reconcile(ctx context.Context, source *models.Source, m magnet.Magnet) (*models.Source, error) {
	if m.URL == "" {
		if source.Announce {
			s.log.Debug().Int("source", source.ID).Msg("announced source not yet released")
			return source, nil
		}

		s.countResolutionError()
		source.Error = errNoMagnet
		return s.store.Update(ctx, source)
	}

	hash, err := m.InfoHash()
	if err != nil {
		s.log.Warn().Err(err).Int("source", source.ID).Msg("discovered link has no usable info hash")
		s.countResolutionError()
		source.Error = err.Error()
		return s.store.Update(ctx, source)
	}

	source.Cookies = cookies.Merge(source.Jar(), m.Cookies).Encode()
	if m.UserAgent != "" {
		source.UserAgent = m.UserAgent
	}

	if hash != source.Hash {
		oldHash := source.Hash

		now := time.Now().UTC()
		source.Hash = hash
		source.Datetime = &now
		source.Version++
		source.Announce = false

		s.log.Info().Int("source", source.ID).Str("old", oldHash).Str("new", hash).Int("version", source.Version).Msg("source hash changed")

		if s.metrics != nil {
			s.metrics.HashChanges.Inc()
		}

		if err := s.notifier.Notify(ctx, oldHash, hash); err != nil {
			s.log.Error().Err(err).Int("source", source.ID).Msg("webhook notification failed")
		}
	}

	source.Error = ""
	return s.store.Update(ctx, source)
}
