// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package scraper discovers magnet identities on source pages: it fetches
// pages with per-source session state, escalates to a challenge solver on
// anti-bot responses, and falls back to hashing a downloadable torrent
// when the page offers no literal magnet link.
package scraper

import (
	"context"
	"net/http"
	"time"

	"github.com/autobrr/pickpockett/pkg/cookies"
	"github.com/autobrr/pickpockett/pkg/flaresolverr"
)

// fetchTimeout bounds every page and torrent fetch so one stuck source
// cannot stall a whole poll tick.
const fetchTimeout = 5 * time.Second

// Solver is the challenge-solving capability, satisfied by
// *flaresolverr.Client. One Solver instance owns one remote browser
// session; the resolver destroys it when the resolution attempt ends.
type Solver interface {
	Solve(ctx context.Context, url string, jar cookies.Jar) (*flaresolverr.Solution, error)
	Destroy(ctx context.Context) error
}

// Config holds the options for constructing a Scraper.
type Config struct {
	// DefaultUserAgent is used when a source has no override.
	DefaultUserAgent string
	// NewSolver returns a fresh challenge solver, or nil when none is
	// configured. Called once per resolution attempt that needs one.
	NewSolver func() Solver
	// HTTPClient overrides the default 5s-timeout client, for tests.
	HTTPClient *http.Client
}

// Scraper fetches and resolves source pages. Stateless across calls;
// safe for concurrent use.
type Scraper struct {
	defaultUserAgent string
	newSolver        func() Solver
	httpClient       *http.Client
}

func New(cfg Config) *Scraper {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: fetchTimeout}
	}

	return &Scraper{
		defaultUserAgent: cfg.DefaultUserAgent,
		newSolver:        cfg.NewSolver,
		httpClient:       httpClient,
	}
}
