// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/pickpockett/internal/torznab"
)

// knownFunctions are torznab api functions this indexer recognizes but
// does not serve.
var knownFunctions = map[string]struct{}{
	"register":   {},
	"movie":      {},
	"music":      {},
	"book":       {},
	"details":    {},
	"getnfo":     {},
	"get":        {},
	"cartadd":    {},
	"cartdel":    {},
	"comments":   {},
	"commentadd": {},
	"user":       {},
	"nzbadd":     {},
}

type TorznabHandler struct {
	builder *torznab.Builder
}

func NewTorznabHandler(builder *torznab.Builder) *TorznabHandler {
	return &TorznabHandler{builder: builder}
}

func (h *TorznabHandler) Routes(r chi.Router) {
	r.Get("/", h.HandleQuery)
}

// HandleQuery dispatches on the t parameter. The response is always XML
// with status 200: faults travel inside the document, the way torznab
// clients expect them.
func (h *TorznabHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")

	t := r.URL.Query().Get("t")
	switch {
	case t == torznab.FuncCaps:
		h.write(w, torznab.Caps())
	case t == torznab.FuncSearch || t == torznab.FuncTVSearch:
		h.write(w, h.builder.SearchResponse(r.Context(), parseQuery(r)))
	default:
		if _, known := knownFunctions[t]; known {
			h.write(w, torznab.Error(torznab.CodeFunctionNotAvailable, "Function not available"))
			return
		}
		h.write(w, torznab.Error(torznab.CodeNoSuchFunction, "No such function"))
	}
}

func (h *TorznabHandler) write(w http.ResponseWriter, body []byte) {
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("Failed to write torznab response")
	}
}

func parseQuery(r *http.Request) torznab.Query {
	values := r.URL.Query()

	query := torznab.Query{Q: values.Get("q")}
	if tvdbID, err := strconv.Atoi(values.Get("tvdbid")); err == nil {
		query.TVDBID = tvdbID
	}
	if season, err := strconv.Atoi(values.Get("season")); err == nil {
		query.Season = &season
	}
	if episode, err := strconv.Atoi(values.Get("ep")); err == nil {
		query.Episode = &episode
	}
	return query
}
