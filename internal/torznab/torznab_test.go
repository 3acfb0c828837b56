// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torznab

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/pickpockett/internal/database"
	"github.com/autobrr/pickpockett/internal/models"
	"github.com/autobrr/pickpockett/pkg/sonarr"
)

const testHash = "647aa53c56d7277eeb00c0c6d26e663181158cac"

type fakeCalendar struct {
	series   map[int]*sonarr.Series
	episodes map[int][]sonarr.Episode
}

func (f *fakeCalendar) GetSeries(_ context.Context, tvdbID int) (*sonarr.Series, error) {
	series, ok := f.series[tvdbID]
	if !ok {
		return nil, sonarr.ErrSeriesNotFound
	}
	return series, nil
}

func (f *fakeCalendar) Episodes(_ context.Context, seriesID int) ([]sonarr.Episode, error) {
	return f.episodes[seriesID], nil
}

func newTestStore(t *testing.T) *models.SourceStore {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return models.NewSourceStore(db.Conn())
}

func timePtr(t time.Time) *time.Time { return &t }

func intPtr(n int) *int { return &n }

func airedEpisodes(season, count int) []sonarr.Episode {
	aired := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	episodes := make([]sonarr.Episode, 0, count)
	for i := 1; i <= count; i++ {
		episodes = append(episodes, sonarr.Episode{
			SeasonNumber:  season,
			EpisodeNumber: i,
			AirDateUTC:    timePtr(aired.Add(time.Duration(i) * 24 * time.Hour)),
		})
	}
	return episodes
}

func TestCaps(t *testing.T) {
	t.Parallel()

	out := string(Caps())

	assert.True(t, strings.HasPrefix(out, xmlHeaderPrefix()))
	assert.Contains(t, out, `<tv-search available="yes" supportedParams="tvdbid,season,ep"`)
	assert.Contains(t, out, `<movie-search available="no"`)
	assert.Contains(t, out, `<category id="5000" name="TV">`)
	assert.Contains(t, out, `<subcat id="5030" name="SD"`)
	assert.Contains(t, out, `<subcat id="5040" name="HD"`)
}

func TestError(t *testing.T) {
	t.Parallel()

	out := string(Error(CodeNoSuchFunction, "No such function"))
	assert.Contains(t, out, `<error code="202" description="No such function"`)
}

func TestSearchResponseUnconfigured(t *testing.T) {
	t.Parallel()

	b := NewBuilder(newTestStore(t), nil, zerolog.Nop())

	out := string(b.SearchResponse(context.Background(), Query{TVDBID: 42}))

	assert.Contains(t, out, `xmlns:torznab="http://torznab.com/schemas/2015/feed"`)
	assert.Equal(t, 1, strings.Count(out, "<item>"), "unconfigured indexer serves exactly one stub item")
}

func TestSearchResponseStubWithoutCriteria(t *testing.T) {
	t.Parallel()

	b := NewBuilder(newTestStore(t), &fakeCalendar{}, zerolog.Nop())

	out := string(b.SearchResponse(context.Background(), Query{}))
	assert.Equal(t, 1, strings.Count(out, "<item>"))
}

func TestSearchResponseNoStubWithCriteria(t *testing.T) {
	t.Parallel()

	b := NewBuilder(newTestStore(t), &fakeCalendar{}, zerolog.Nop())

	out := string(b.SearchResponse(context.Background(), Query{TVDBID: 42}))
	assert.Zero(t, strings.Count(out, "<item>"), "criteria without matches must yield an empty feed")
}

func TestSearchResponseItems(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	changed := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.Create(context.Background(), &models.Source{
		TVDBID:   42,
		Season:   models.AllSeasons,
		URL:      "https://example.com/torrent/1",
		Hash:     testHash,
		Datetime: &changed,
		Language: "Ukrainian",
	})
	require.NoError(t, err)

	calendar := &fakeCalendar{
		series:   map[int]*sonarr.Series{42: {ID: 7, TVDBID: 42, Title: "Solar Opposites"}},
		episodes: map[int][]sonarr.Episode{7: airedEpisodes(1, 5)},
	}

	b := NewBuilder(store, calendar, zerolog.Nop())

	out := string(b.SearchResponse(context.Background(), Query{TVDBID: 42, Season: intPtr(1), Episode: intPtr(3)}))

	assert.Contains(t, out, "<title>Solar Opposites S01 [Ukrainian, WEBRip-1080p]</title>")
	assert.Contains(t, out, "<title>Solar Opposites S01E01-E05 [Ukrainian, WEBRip-1080p]</title>")
	assert.Contains(t, out, "magnet:?xt=urn:btih:"+testHash+"&amp;dn=Solar+Opposites+S01+%5BUkrainian%2C+WEBRip-1080p%5D")
	assert.Contains(t, out, `name="infohash" value="`+testHash+`"`)
	assert.Contains(t, out, `name="seeders" value="99"`)
	assert.Contains(t, out, `name="tvdbid" value="42"`)
	assert.Contains(t, out, "<pubDate>Sun, 01 Feb 2026 00:00:00 +0000</pubDate>")
}

func TestSearchResponseVersionSuffix(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	changed := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.Create(context.Background(), &models.Source{
		TVDBID:   42,
		Season:   models.AllSeasons,
		URL:      "https://example.com/torrent/1",
		Hash:     testHash,
		Datetime: &changed,
		Version:  3,
		Quality:  "HDTV-720p",
	})
	require.NoError(t, err)

	calendar := &fakeCalendar{
		series:   map[int]*sonarr.Series{42: {ID: 7, TVDBID: 42, Title: "Solar Opposites"}},
		episodes: map[int][]sonarr.Episode{7: airedEpisodes(2, 1)},
	}

	b := NewBuilder(store, calendar, zerolog.Nop())

	out := string(b.SearchResponse(context.Background(), Query{TVDBID: 42}))

	assert.Contains(t, out, "<title>Solar Opposites S02 [v3] [HDTV-720p]</title>")
	assert.Contains(t, out, "<title>Solar Opposites S02E01 [v3] [HDTV-720p]</title>")
}

func TestSearchResponseEpisodeOutsideRange(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	changed := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.Create(context.Background(), &models.Source{
		TVDBID:   42,
		Season:   models.AllSeasons,
		URL:      "https://example.com/torrent/1",
		Hash:     testHash,
		Datetime: &changed,
	})
	require.NoError(t, err)

	calendar := &fakeCalendar{
		series:   map[int]*sonarr.Series{42: {ID: 7, TVDBID: 42, Title: "Solar Opposites"}},
		episodes: map[int][]sonarr.Episode{7: airedEpisodes(1, 3)},
	}

	b := NewBuilder(store, calendar, zerolog.Nop())

	out := string(b.SearchResponse(context.Background(), Query{TVDBID: 42, Episode: intPtr(9)}))

	assert.Equal(t, 1, strings.Count(out, "<item>"), "only the season summary is served when the episode is out of range")
	assert.Contains(t, out, "<title>Solar Opposites S01 [WEBRip-1080p]</title>")
}

func TestSearchResponseUnaired(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	changed := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.Create(context.Background(), &models.Source{
		TVDBID:   42,
		URL:      "https://example.com/torrent/1",
		Hash:     testHash,
		Datetime: &changed,
	})
	require.NoError(t, err)

	// every episode airs after the source's last change
	calendar := &fakeCalendar{
		series:   map[int]*sonarr.Series{42: {ID: 7, TVDBID: 42, Title: "Solar Opposites"}},
		episodes: map[int][]sonarr.Episode{7: airedEpisodes(1, 3)},
	}

	b := NewBuilder(store, calendar, zerolog.Nop())

	out := string(b.SearchResponse(context.Background(), Query{TVDBID: 42}))
	assert.Zero(t, strings.Count(out, "<item>"))
}

func xmlHeaderPrefix() string {
	return "<?xml"
}
