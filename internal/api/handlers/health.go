// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type HealthHandler struct {
	db *sql.DB
}

func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Routes(r chi.Router) {
	r.Get("/liveness", h.HandleLiveness)
	r.Get("/readiness", h.HandleReadiness)
}

// HandleLiveness handles GET /api/health/liveness
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleReadiness handles GET /api/health/readiness
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		log.Error().Err(err).Msg("Readiness check failed")
		RespondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
