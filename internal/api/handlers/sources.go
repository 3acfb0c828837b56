// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/pickpockett/internal/models"
	"github.com/autobrr/pickpockett/pkg/cookies"
)

// SourceRefresher re-resolves a source immediately after it is created
// or its URL changes, so the first poll does not wait a full interval.
// May be nil when Sonarr is not configured yet.
type SourceRefresher interface {
	Refresh(ctx context.Context, source *models.Source) (*models.Source, error)
}

type SourcesHandler struct {
	store     *models.SourceStore
	refresher SourceRefresher
}

func NewSourcesHandler(store *models.SourceStore, refresher SourceRefresher) *SourcesHandler {
	return &SourcesHandler{
		store:     store,
		refresher: refresher,
	}
}

func (h *SourcesHandler) Routes(r chi.Router) {
	r.Get("/", h.ListSources)
	r.Post("/", h.CreateSource)

	r.Route("/{sourceID}", func(r chi.Router) {
		r.Get("/", h.GetSource)
		r.Put("/", h.UpdateSource)
		r.Delete("/", h.DeleteSource)
	})
}

type sourceRequest struct {
	TVDBID             int    `json:"tvdbId"`
	Season             *int   `json:"season"`
	URL                string `json:"url"`
	Cookies            string `json:"cookies"`
	UserAgent          string `json:"userAgent"`
	ScheduleCorrection int    `json:"scheduleCorrection"`
	Quality            string `json:"quality"`
	Language           string `json:"language"`
	Announce           bool   `json:"announce"`
	ReportExisting     bool   `json:"reportExisting"`
}

func (req *sourceRequest) validate() error {
	if req.TVDBID <= 0 {
		return errors.New("tvdbId is required")
	}

	target := strings.TrimSpace(req.URL)
	if target == "" {
		return errors.New("url is required")
	}
	if u, err := url.Parse(target); err != nil || !u.IsAbs() {
		return errors.New("url must be absolute")
	}

	if req.Cookies != "" {
		if _, err := cookies.Parse(req.Cookies); err != nil {
			return errors.New("cookies must be a JSON object, a JSON name/value array, or a cookie header string")
		}
	}

	return nil
}

// apply copies the request onto a source, normalizing the cookie value
// to its JSON form.
func (req *sourceRequest) apply(source *models.Source) {
	source.TVDBID = req.TVDBID
	if req.Season != nil {
		source.Season = *req.Season
	} else {
		source.Season = models.AllSeasons
	}
	source.URL = strings.TrimSpace(req.URL)
	source.UserAgent = req.UserAgent
	source.ScheduleCorrection = req.ScheduleCorrection
	source.Quality = req.Quality
	source.Language = req.Language
	source.Announce = req.Announce
	source.ReportExisting = req.ReportExisting

	jar, _ := cookies.Parse(req.Cookies)
	source.Cookies = jar.Encode()
}

// ListSources handles GET /api/sources
func (h *SourcesHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.store.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list sources")
		RespondError(w, http.StatusInternalServerError, "Failed to list sources")
		return
	}

	RespondJSON(w, http.StatusOK, sources)
}

// GetSource handles GET /api/sources/{sourceID}
func (h *SourcesHandler) GetSource(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := ParseIntParam(w, r, "sourceID")
	if !ok {
		return
	}

	source, err := h.store.Get(r.Context(), sourceID)
	if err != nil {
		if errors.Is(err, models.ErrSourceNotFound) {
			RespondError(w, http.StatusNotFound, "Source not found")
			return
		}
		log.Error().Err(err).Int("sourceID", sourceID).Msg("Failed to get source")
		RespondError(w, http.StatusInternalServerError, "Failed to get source")
		return
	}

	RespondJSON(w, http.StatusOK, source)
}

// CreateSource handles POST /api/sources
func (h *SourcesHandler) CreateSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := req.validate(); err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	source := &models.Source{}
	req.apply(source)

	created, err := h.store.Create(r.Context(), source)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create source")
		RespondError(w, http.StatusInternalServerError, "Failed to create source")
		return
	}

	created = h.refresh(r.Context(), created)

	RespondJSON(w, http.StatusCreated, created)
}

// UpdateSource handles PUT /api/sources/{sourceID}
func (h *SourcesHandler) UpdateSource(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := ParseIntParam(w, r, "sourceID")
	if !ok {
		return
	}

	var req sourceRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := req.validate(); err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	source, err := h.store.Get(r.Context(), sourceID)
	if err != nil {
		if errors.Is(err, models.ErrSourceNotFound) {
			RespondError(w, http.StatusNotFound, "Source not found")
			return
		}
		log.Error().Err(err).Int("sourceID", sourceID).Msg("Failed to get source")
		RespondError(w, http.StatusInternalServerError, "Failed to get source")
		return
	}

	urlChanged := source.URL != strings.TrimSpace(req.URL)
	req.apply(source)

	updated, err := h.store.Update(r.Context(), source)
	if err != nil {
		log.Error().Err(err).Int("sourceID", sourceID).Msg("Failed to update source")
		RespondError(w, http.StatusInternalServerError, "Failed to update source")
		return
	}

	if urlChanged {
		updated = h.refresh(r.Context(), updated)
	}

	RespondJSON(w, http.StatusOK, updated)
}

// DeleteSource handles DELETE /api/sources/{sourceID}
func (h *SourcesHandler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := ParseIntParam(w, r, "sourceID")
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), sourceID); err != nil {
		if errors.Is(err, models.ErrSourceNotFound) {
			RespondError(w, http.StatusNotFound, "Source not found")
			return
		}
		log.Error().Err(err).Int("sourceID", sourceID).Msg("Failed to delete source")
		RespondError(w, http.StatusInternalServerError, "Failed to delete source")
		return
	}

	RespondJSON(w, http.StatusNoContent, nil)
}

func (h *SourcesHandler) refresh(ctx context.Context, source *models.Source) *models.Source {
	if h.refresher == nil {
		return source
	}

	refreshed, err := h.refresher.Refresh(ctx, source)
	if err != nil {
		log.Error().Err(err).Int("sourceID", source.ID).Msg("Failed to refresh source")
		return source
	}
	return refreshed
}
