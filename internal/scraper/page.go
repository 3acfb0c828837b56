// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scraper

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/pickpockett/internal/buildinfo"
	"github.com/autobrr/pickpockett/pkg/cookies"
)

// FetchError reports a page fetch that did not produce usable HTML.
// Its message is stored on the source so the failure is visible in the
// indexer output.
type FetchError struct {
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// page is the outcome of a successful fetch: the parsed document plus
// the session state (cookies, user agent) a caller should persist.
type page struct {
	doc *goquery.Document
	// cookies is the request jar with the response cookies merged over
	// it. observedCookies reports whether the response set any.
	cookies         cookies.Jar
	observedCookies bool
	userAgent       string
}

// fetch retrieves a source page. Anti-bot rejections (any 4xx) are
// retried through the challenge solver when one is configured; on
// success the solver's cookies and user agent replace the request's.
func (s *Scraper) fetch(ctx context.Context, url string, jar cookies.Jar, userAgent string) (*page, error) {
	resp, err := s.get(ctx, url, jar, s.userAgent(userAgent))
	if err != nil {
		return nil, &FetchError{Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		rejection := &FetchError{Reason: fmt.Sprintf("unexpected status %s", resp.Status)}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 && s.newSolver != nil {
			log.Debug().Str("url", url).Int("status", resp.StatusCode).Msg("page rejected request, trying challenge solver")
			pg, solverErr := s.fetchWithSolver(ctx, url, jar)
			if solverErr != nil {
				// solver unavailable; the page's own rejection is the
				// useful error to surface
				log.Warn().Err(solverErr).Str("url", url).Msg("challenge solver unavailable")
				return nil, rejection
			}
			return pg, nil
		}

		return nil, rejection
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, &FetchError{Reason: "could not read response body", Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, &FetchError{Reason: "could not parse page", Err: err}
	}

	merged := jar.Clone()
	observed := false
	for _, c := range resp.Cookies() {
		merged[c.Name] = c.Value
		observed = true
	}

	return &page{
		doc:             doc,
		cookies:         merged,
		observedCookies: observed,
		userAgent:       userAgent,
	}, nil
}

func (s *Scraper) fetchWithSolver(ctx context.Context, url string, jar cookies.Jar) (*page, error) {
	solver := s.newSolver()
	if solver == nil {
		return nil, &FetchError{Reason: "challenge solver not configured"}
	}
	defer func() {
		if err := solver.Destroy(ctx); err != nil {
			log.Warn().Err(err).Msg("could not destroy solver session")
		}
	}()

	solution, err := solver.Solve(ctx, url, jar)
	if err != nil {
		return nil, &FetchError{Reason: "challenge solver failed", Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(solution.Response))
	if err != nil {
		return nil, &FetchError{Reason: "could not parse solver response", Err: err}
	}

	merged := jar.Clone()
	observed := false
	for name, value := range solution.Cookies {
		merged[name] = value
		observed = true
	}

	return &page{
		doc:             doc,
		cookies:         merged,
		observedCookies: observed,
		userAgent:       solution.UserAgent,
	}, nil
}

// download fetches a linked torrent file, gated on the server actually
// serving torrent data rather than another HTML page.
func (s *Scraper) download(ctx context.Context, url string, jar cookies.Jar, userAgent string) ([]byte, error) {
	resp, err := s.get(ctx, url, jar, s.userAgent(userAgent))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %s", resp.Status)
	}

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/x-bittorrent") {
		return nil, errors.Errorf("unexpected content type %q", ct)
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, errors.Wrap(err, "could not read torrent body")
	}

	return io.ReadAll(body)
}

func (s *Scraper) get(ctx context.Context, url string, jar cookies.Jar, userAgent string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not build request")
	}

	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Referer", url)
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("User-Agent", userAgent)

	if header := jar.Header(); header != "" {
		req.Header.Set("Cookie", header)
	}

	return s.httpClient.Do(req)
}

func (s *Scraper) userAgent(override string) string {
	if override != "" {
		return override
	}
	if s.defaultUserAgent != "" {
		return s.defaultUserAgent
	}
	return buildinfo.UserAgent
}

// decodeBody transparently inflates gzip responses; setting
// Accept-Encoding by hand disables the transport's automatic handling.
func decodeBody(resp *http.Response) (io.Reader, error) {
	if resp.Header.Get("Content-Encoding") == "gzip" {
		return gzip.NewReader(resp.Body)
	}
	return resp.Body, nil
}
