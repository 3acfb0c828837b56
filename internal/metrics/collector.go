// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/pickpockett/internal/models"
)

// SourceCollector exposes gauges derived from the source table on each
// scrape, so dashboards reflect the live store rather than counters
// updated on write paths.
type SourceCollector struct {
	store *models.SourceStore

	sourcesTotalDesc     *prometheus.Desc
	sourcesErroredDesc   *prometheus.Desc
	sourcesAnnouncedDesc *prometheus.Desc
	sourcesResolvedDesc  *prometheus.Desc
}

func NewSourceCollector(store *models.SourceStore) *SourceCollector {
	return &SourceCollector{
		store: store,

		sourcesTotalDesc: prometheus.NewDesc(
			"pickpockett_sources_total",
			"Number of tracked sources",
			nil,
			nil,
		),
		sourcesErroredDesc: prometheus.NewDesc(
			"pickpockett_sources_errored",
			"Number of sources whose last resolution recorded an error",
			nil,
			nil,
		),
		sourcesAnnouncedDesc: prometheus.NewDesc(
			"pickpockett_sources_announced",
			"Number of sources still waiting for an announced release",
			nil,
			nil,
		),
		sourcesResolvedDesc: prometheus.NewDesc(
			"pickpockett_sources_resolved",
			"Number of sources with a known info hash",
			nil,
			nil,
		),
	}
}

func (c *SourceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sourcesTotalDesc
	ch <- c.sourcesErroredDesc
	ch <- c.sourcesAnnouncedDesc
	ch <- c.sourcesResolvedDesc
}

func (c *SourceCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sources, err := c.store.List(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Skipping source metrics collection")
		return
	}

	var errored, announced, resolved float64
	for _, source := range sources {
		if source.Error != "" {
			errored++
		}
		if source.Announce {
			announced++
		}
		if source.Hash != "" {
			resolved++
		}
	}

	ch <- prometheus.MustNewConstMetric(c.sourcesTotalDesc, prometheus.GaugeValue, float64(len(sources)))
	ch <- prometheus.MustNewConstMetric(c.sourcesErroredDesc, prometheus.GaugeValue, errored)
	ch <- prometheus.MustNewConstMetric(c.sourcesAnnouncedDesc, prometheus.GaugeValue, announced)
	ch <- prometheus.MustNewConstMetric(c.sourcesResolvedDesc, prometheus.GaugeValue, resolved)
}
