// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/pickpockett/internal/models"
)

type Manager struct {
	registry        *prometheus.Registry
	sourceCollector *SourceCollector

	PollRuns         prometheus.Counter
	SourceRefreshes  prometheus.Counter
	ResolutionErrors prometheus.Counter
	HashChanges      prometheus.Counter
}

func NewManager(store *models.SourceStore) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sourceCollector := NewSourceCollector(store)
	registry.MustRegister(sourceCollector)

	m := &Manager{
		registry:        registry,
		sourceCollector: sourceCollector,

		PollRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pickpockett_poll_runs_total",
			Help: "Number of completed poll scheduler ticks",
		}),
		SourceRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pickpockett_source_refreshes_total",
			Help: "Number of source resolution attempts",
		}),
		ResolutionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pickpockett_resolution_errors_total",
			Help: "Number of source resolution attempts that ended in an error",
		}),
		HashChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pickpockett_hash_changes_total",
			Help: "Number of detected info-hash changes",
		}),
	}

	registry.MustRegister(m.PollRuns, m.SourceRefreshes, m.ResolutionErrors, m.HashChanges)

	log.Info().Msg("Metrics manager initialized with source collector")

	return m
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}
