// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/autobrr/pickpockett/internal/buildinfo"
)

// HandleVersion handles GET /api/version
func HandleVersion(w http.ResponseWriter, _ *http.Request) {
	data, err := buildinfo.JSON()
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "failed to render version info")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
