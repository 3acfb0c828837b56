// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/pickpockett/pkg/cookies"
	"github.com/autobrr/pickpockett/pkg/flaresolverr"
)

const magnetPageHTML = `
<!DOCTYPE HTML PUBLIC "-//W3C//DTD HTML 4.01 Transitional//EN">
<html lang="uk" dir="ltr">
<body bgcolor="#E5E5E5" text="#000000" link="#006699" vlink="#5493B4">
<table width="95%" border="0" cellpadding="2" cellspacing="1" class="btTbl" align="center">
    <tr class="row4_to">
        <td width="165" class="gensmall" rowspan="6" align="center" style="padding: 5px"><img src="images/icon_download.gif" alt="" border="0" />&nbsp;&nbsp;<a title="Завантажити через magnet (без ведення статистики на сайті)" href="magnet:?xt=urn:btih:647aa53c56d7277eeb00c0c6d26e663181158cac"><img style="vertical-align: 50%" src="images/magnet2.gif" alt="" border="0" /></a><br /><h3><strong><a title="Завантажити торрент" rel="nofollow" class="piwik_download"href="download.php?id=673294">Завантажити</a></strong></h3> <br/><br/></td>
    </tr>
</table>
</body>
</html>
`

const (
	testTorrent  = "d8:announce10:http://a/a4:infod6:lengthi1e4:name8:test.bin12:piece lengthi16384e6:pieces20:aaaaaaaaaaaaaaaaaaaaee"
	testInfoHash = "86756d38a96b53e5d796f8ada7d928ce73ad6eb8"
)

func TestResolveMagnetAnchor(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(magnetPageHTML))
	}))
	defer srv.Close()

	tests := []struct {
		name        string
		displayName string
		expected    string
	}{
		{
			name:     "without display name",
			expected: "magnet:?xt=urn:btih:647aa53c56d7277eeb00c0c6d26e663181158cac",
		},
		{
			name:        "with display name",
			displayName: "Solar Opposites",
			expected:    "magnet:?xt=urn:btih:647aa53c56d7277eeb00c0c6d26e663181158cac&dn=Solar+Opposites",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Config{})

			m, err := s.Resolve(context.Background(), srv.URL, nil, "", tt.displayName)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, m.URL)
		})
	}
}

func TestResolveDownloadFallback(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a href="download.php?id=1">get</a></body></html>`))
	})
	mux.HandleFunc("/download.php", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-bittorrent")
		_, _ = w.Write([]byte(testTorrent))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := New(Config{})

	m, err := s.Resolve(context.Background(), srv.URL, nil, "", "Solar Opposites")
	require.NoError(t, err)
	assert.Equal(t, "magnet:?xt=urn:btih:"+testInfoHash+"&dn=Solar+Opposites", m.URL)
}

func TestResolveDownloadWrongContentType(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a href="download.php?id=1">get</a></body></html>`))
	})
	mux.HandleFunc("/download.php", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>not a torrent</html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := New(Config{})

	m, err := s.Resolve(context.Background(), srv.URL, nil, "", "")
	require.NoError(t, err)
	assert.Empty(t, m.URL)
}

func TestResolveNoLinks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a href="#download">anchor</a><a href="/about">about</a></body></html>`))
	}))
	defer srv.Close()

	s := New(Config{})

	m, err := s.Resolve(context.Background(), srv.URL, nil, "", "")
	require.NoError(t, err)
	assert.Empty(t, m.URL)
}

func TestFindDownloadLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		href string
		want bool
	}{
		{"relative download script", "download.php?id=673294", true},
		{"relative dl script", "dl.php?id=7", true},
		{"download path", "/files/download?id=9", true},
		{"absolute dl script", "https://tracker.example/dl.php?id=3", true},
		{"fragment anchor", "#download", false},
		{"uppercase is not matched", "DOWNLOAD.PHP?id=1", false},
		{"unrelated link", "/about", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := fmt.Sprintf(`<html><body><a href=%q>link</a></body></html>`, tt.href)
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
			require.NoError(t, err)

			href, ok := findDownloadLink(doc)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, tt.href, href)
			}
		})
	}
}

func TestResolveRequestHeaders(t *testing.T) {
	t.Parallel()

	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		_, _ = w.Write([]byte(magnetPageHTML))
	}))
	defer srv.Close()

	s := New(Config{DefaultUserAgent: "test-agent/1.0"})

	_, err := s.Resolve(context.Background(), srv.URL, cookies.Jar{"uid": "1", "pass": "2"}, "", "")
	require.NoError(t, err)

	assert.Equal(t, "test-agent/1.0", gotHeaders.Get("User-Agent"))
	assert.Equal(t, srv.URL, gotHeaders.Get("Referer"))
	assert.Equal(t, "pass=2; uid=1", gotHeaders.Get("Cookie"))
	assert.Equal(t, "1", gotHeaders.Get("Upgrade-Insecure-Requests"))
	assert.NotEmpty(t, gotHeaders.Get("Accept"))
	assert.NotEmpty(t, gotHeaders.Get("Accept-Language"))
}

func TestResolveCookieTracking(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sess", Value: "abc"})
		_, _ = w.Write([]byte(magnetPageHTML))
	}))
	defer srv.Close()

	s := New(Config{})

	t.Run("session sources adopt rotated cookies", func(t *testing.T) {
		m, err := s.Resolve(context.Background(), srv.URL, cookies.Jar{"uid": "1"}, "", "")
		require.NoError(t, err)
		assert.Equal(t, cookies.Jar{"uid": "1", "sess": "abc"}, m.Cookies)
	})

	t.Run("anonymous sources ignore response cookies", func(t *testing.T) {
		m, err := s.Resolve(context.Background(), srv.URL, nil, "", "")
		require.NoError(t, err)
		assert.Empty(t, m.Cookies)
	})
}

func TestResolveFetchError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(Config{})

	_, err := s.Resolve(context.Background(), srv.URL, nil, "", "")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Error(), "unexpected status 500 Internal Server Error")
}

type fakeSolver struct {
	solution  *flaresolverr.Solution
	err       error
	solved    int
	destroyed int
}

func (f *fakeSolver) Solve(_ context.Context, _ string, _ cookies.Jar) (*flaresolverr.Solution, error) {
	f.solved++
	return f.solution, f.err
}

func (f *fakeSolver) Destroy(_ context.Context) error {
	f.destroyed++
	return nil
}

func TestResolveSolverEscalation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	solver := &fakeSolver{
		solution: &flaresolverr.Solution{
			Response:  magnetPageHTML,
			Cookies:   cookies.Jar{"cf_clearance": "token"},
			UserAgent: "solver-agent/2.0",
		},
	}

	s := New(Config{NewSolver: func() Solver { return solver }})

	m, err := s.Resolve(context.Background(), srv.URL, cookies.Jar{"uid": "1"}, "custom-agent", "")
	require.NoError(t, err)

	assert.Equal(t, "magnet:?xt=urn:btih:647aa53c56d7277eeb00c0c6d26e663181158cac", m.URL)
	assert.Equal(t, cookies.Jar{"uid": "1", "cf_clearance": "token"}, m.Cookies)
	assert.Equal(t, "solver-agent/2.0", m.UserAgent)
	assert.Equal(t, 1, solver.solved)
	assert.Equal(t, 1, solver.destroyed, "solver session should be destroyed after resolution")
}

func TestResolveSolverFailureKeepsOriginalRejection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	solver := &fakeSolver{err: assert.AnError}

	s := New(Config{NewSolver: func() Solver { return solver }})

	_, err := s.Resolve(context.Background(), srv.URL, nil, "", "")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Error(), "unexpected status 403 Forbidden")
	assert.NotContains(t, fetchErr.Error(), assert.AnError.Error())
	assert.Equal(t, 1, solver.solved)
	assert.Equal(t, 1, solver.destroyed)
}

func TestResolveSolverNotConfigured(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := New(Config{})

	_, err := s.Resolve(context.Background(), srv.URL, nil, "", "")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Error(), "unexpected status 403 Forbidden")
}
