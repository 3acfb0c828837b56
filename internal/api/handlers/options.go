// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/pickpockett/pkg/sonarr"
)

// OptionsProvider supplies the selectable languages and qualities for
// source forms, satisfied by *sonarr.Client. May be nil when Sonarr is
// not configured.
type OptionsProvider interface {
	Languages(ctx context.Context) ([]sonarr.Language, error)
	Qualities(ctx context.Context) ([]sonarr.Quality, error)
}

type OptionsHandler struct {
	provider OptionsProvider
}

func NewOptionsHandler(provider OptionsProvider) *OptionsHandler {
	return &OptionsHandler{provider: provider}
}

type sourceOptions struct {
	Languages []string `json:"languages"`
	Qualities []string `json:"qualities"`
}

// HandleOptions handles GET /api/sources/options. Lookup failures
// degrade to empty lists so the form stays usable while Sonarr is down.
func (h *OptionsHandler) HandleOptions(w http.ResponseWriter, r *http.Request) {
	options := sourceOptions{
		Languages: []string{},
		Qualities: []string{},
	}

	if h.provider != nil {
		if languages, err := h.provider.Languages(r.Context()); err != nil {
			log.Warn().Err(err).Msg("Failed to load language options")
		} else {
			for _, language := range languages {
				options.Languages = append(options.Languages, language.Name)
			}
		}

		if qualities, err := h.provider.Qualities(r.Context()); err != nil {
			log.Warn().Err(err).Msg("Failed to load quality options")
		} else {
			for _, quality := range qualities {
				options.Qualities = append(options.Qualities, quality.Name)
			}
		}
	}

	RespondJSON(w, http.StatusOK, options)
}
