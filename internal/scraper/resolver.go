// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scraper

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/pickpockett/pkg/cookies"
	"github.com/autobrr/pickpockett/pkg/magnet"
	"github.com/autobrr/pickpockett/pkg/torrents"
)

// downloadLinkRe matches anchors that point at a torrent file download.
// Page-fragment hrefs are excluded separately so links starting with
// "download" or "dl.php" themselves still match.
var downloadLinkRe = regexp.MustCompile(`download|dl\.php`)

// Resolve fetches url and extracts a magnet identity from it. A page
// without any magnet or torrent link resolves to an empty Magnet with a
// nil error; transport and parse failures return a *FetchError. The
// returned magnet carries the session cookies and user agent a caller
// should persist alongside the hash.
func (s *Scraper) Resolve(ctx context.Context, pageURL string, jar cookies.Jar, userAgent, displayName string) (magnet.Magnet, error) {
	pg, err := s.fetch(ctx, pageURL, jar, userAgent)
	if err != nil {
		return magnet.Magnet{}, err
	}

	// Only sources that already carry session state track rotating
	// cookies; for anonymous sources the response cookies are noise.
	sessionCookies := jar
	if (len(jar) > 0 || userAgent != "") && pg.observedCookies {
		sessionCookies = pg.cookies
	}

	m := magnet.Magnet{
		Cookies:   sessionCookies,
		UserAgent: pg.userAgent,
	}

	if href, ok := findMagnetLink(pg.doc); ok {
		m.URL = href
		return m.WithDisplayName(displayName), nil
	}

	href, ok := findDownloadLink(pg.doc)
	if !ok {
		log.Debug().Str("url", pageURL).Msg("page has no magnet or download link")
		return m, nil
	}

	torrentURL, err := absoluteURL(pageURL, href)
	if err != nil {
		log.Debug().Err(err).Str("url", pageURL).Str("href", href).Msg("skipping unparsable download link")
		return m, nil
	}

	data, err := s.download(ctx, torrentURL, sessionCookies, pg.userAgent)
	if err != nil {
		log.Debug().Err(err).Str("url", torrentURL).Msg("download link did not yield a torrent")
		return m, nil
	}

	hash, err := torrents.InfoHash(data)
	if err != nil {
		log.Debug().Err(err).Str("url", torrentURL).Msg("could not decode torrent")
		return m, nil
	}

	m.URL = magnet.FromHash(hash, displayName).URL
	return m, nil
}

func findMagnetLink(doc *goquery.Document) (string, bool) {
	var href string
	doc.Find(`a[href^="magnet:"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ = sel.Attr("href")
		return false
	})
	return href, href != ""
}

func findDownloadLink(doc *goquery.Document) (string, bool) {
	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		h, _ := sel.Attr("href")
		if !strings.HasPrefix(h, "#") && downloadLinkRe.MatchString(h) {
			href = h
			return false
		}
		return true
	})
	return href, href != ""
}

func absoluteURL(base, href string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}
