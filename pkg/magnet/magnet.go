// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package magnet models the magnet URI identity of a torrent: the link
// itself plus the 40-hex info-hash carried in its xt parameter.
package magnet

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/autobrr/pickpockett/pkg/cookies"
)

var infoHashRe = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)

// ResolveError reports a discovered link whose xt parameter does not
// carry a well-formed btih info-hash.
type ResolveError struct {
	Reason string
}

func (e *ResolveError) Error() string { return e.Reason }

// Magnet is the transient identity produced by a resolution attempt.
// URL is empty when the source page offered nothing discoverable.
// Cookies and UserAgent carry the session state observed while fetching.
type Magnet struct {
	URL       string
	Cookies   cookies.Jar
	UserAgent string
}

// FromHash synthesizes a magnet link for a known info-hash, optionally
// carrying a display name.
func FromHash(hash, displayName string) Magnet {
	m := Magnet{URL: "magnet:?xt=urn:btih:" + hash}
	if displayName != "" {
		m.URL = withDisplayName(m.URL, displayName)
	}
	return m
}

// InfoHash extracts and validates the btih hash from the magnet URL.
func (m Magnet) InfoHash() (string, error) {
	if m.URL == "" {
		return "", &ResolveError{Reason: "no magnet link"}
	}

	u, err := url.Parse(m.URL)
	if err != nil {
		return "", &ResolveError{Reason: fmt.Sprintf("malformed magnet link: %v", err)}
	}

	xt := u.Query().Get("xt")
	if xt == "" {
		return "", &ResolveError{Reason: "magnet link missing xt parameter"}
	}

	hash := xt[strings.LastIndex(xt, ":")+1:]
	if !infoHashRe.MatchString(hash) {
		return "", &ResolveError{Reason: fmt.Sprintf("malformed info hash %q", hash)}
	}

	return strings.ToLower(hash), nil
}

// WithDisplayName returns a copy of the magnet with the dn parameter set.
// Links without a display name are returned unchanged.
func (m Magnet) WithDisplayName(displayName string) Magnet {
	if m.URL == "" || displayName == "" {
		return m
	}
	return Magnet{
		URL:       withDisplayName(m.URL, displayName),
		Cookies:   m.Cookies,
		UserAgent: m.UserAgent,
	}
}

// displayNameUnescaper keeps ":" and "/" literal in dn values; torrent
// clients show the display name verbatim and neither character is
// ambiguous inside a query string.
var displayNameUnescaper = strings.NewReplacer("%3A", ":", "%2F", "/")

func escapeDisplayName(displayName string) string {
	return displayNameUnescaper.Replace(url.QueryEscape(displayName))
}

// withDisplayName rewrites the query in place, keeping the original
// parameter order and escaping untouched; torrent clients expect
// urn:btih: with its colons intact. An existing dn is replaced,
// otherwise dn is appended last.
func withDisplayName(rawURL, displayName string) string {
	base, rawQuery, _ := strings.Cut(rawURL, "?")

	dn := "dn=" + escapeDisplayName(displayName)
	replaced := false

	var pairs []string
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		if name, _, _ := strings.Cut(pair, "="); name == "dn" {
			pairs = append(pairs, dn)
			replaced = true
			continue
		}
		pairs = append(pairs, pair)
	}
	if !replaced {
		pairs = append(pairs, dn)
	}

	return base + "?" + strings.Join(pairs, "&")
}
