// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/autobrr/pickpockett/pkg/cookies"
)

var ErrSourceNotFound = errors.New("source not found")

// AllSeasons is the season sentinel meaning "every regular season".
const AllSeasons = -1

const DefaultQuality = "WEBRip-1080p"

// Source is one registered page a user wants tracked for a series.
type Source struct {
	ID     int    `json:"id"`
	TVDBID int    `json:"tvdbId"`
	Season int    `json:"season"`
	URL    string `json:"url"`
	// Cookies holds the normalized JSON form; use Jar for the parsed map.
	Cookies   string `json:"cookies"`
	UserAgent string `json:"userAgent"`
	// Hash is the last known info-hash, empty until first resolution.
	Hash string `json:"hash"`
	// Datetime records when Hash last changed.
	Datetime *time.Time `json:"datetime"`
	// Version counts distinct Hash transitions, for release naming.
	Version int `json:"version"`
	// ScheduleCorrection shifts calendar comparisons by whole days for
	// sources that publish ahead of or behind the official air date.
	ScheduleCorrection int    `json:"scheduleCorrection"`
	Quality            string `json:"quality"`
	Language           string `json:"language"`
	// Error is sticky until the next successful resolution.
	Error string `json:"error"`
	// Announce marks a source registered before the release exists; a
	// missing magnet is then expected rather than an error.
	Announce bool `json:"announce"`
	// ReportExisting advertises episodes Sonarr already downloaded.
	ReportExisting bool      `json:"reportExisting"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Jar parses the stored cookie value. Invalid stored state degrades to
// an empty jar rather than poisoning every poll.
func (s *Source) Jar() cookies.Jar {
	jar, err := cookies.Parse(s.Cookies)
	if err != nil {
		return cookies.Jar{}
	}
	return jar
}

// Extra renders the bracket suffix for release names: language and
// quality, skipping empties.
func (s *Source) Extra() string {
	parts := make([]string, 0, 2)
	for _, part := range []string{s.Language, s.Quality} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

const sourceColumns = `id, tvdb_id, season, url, cookies, user_agent, hash, datetime, version,
	schedule_correction, quality, language, error, announce, report_existing, created_at, updated_at`

// SourceStore persists sources.
type SourceStore struct {
	db *sql.DB
}

func NewSourceStore(db *sql.DB) *SourceStore {
	return &SourceStore{db: db}
}

// List returns every source, oldest first.
func (s *SourceStore) List(ctx context.Context) ([]*Source, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM sources ORDER BY id", sourceColumns))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSources(rows)
}

// ListForSearch returns the sources matching an indexer query: all
// sources for the TVDB id, narrowed to the requested season plus any
// all-seasons sources when a season is given.
func (s *SourceStore) ListForSearch(ctx context.Context, tvdbID int, season *int) ([]*Source, error) {
	query := fmt.Sprintf("SELECT %s FROM sources WHERE tvdb_id = ?", sourceColumns)
	args := []any{tvdbID}

	if season != nil {
		query += " AND season IN (?, ?)"
		args = append(args, AllSeasons, *season)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSources(rows)
}

func (s *SourceStore) Get(ctx context.Context, id int) (*Source, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM sources WHERE id = ?", sourceColumns), id)

	source, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSourceNotFound
	}
	return source, err
}

func (s *SourceStore) Create(ctx context.Context, source *Source) (*Source, error) {
	if source.Quality == "" {
		source.Quality = DefaultQuality
	}
	if source.Version <= 0 {
		source.Version = 1
	}

	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO sources (tvdb_id, season, url, cookies, user_agent, hash, datetime, version,
			schedule_correction, quality, language, error, announce, report_existing)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING %s
	`, sourceColumns),
		source.TVDBID, source.Season, source.URL, source.Cookies, source.UserAgent,
		source.Hash, source.Datetime, source.Version, source.ScheduleCorrection,
		source.Quality, source.Language, source.Error, source.Announce, source.ReportExisting,
	)

	return scanSource(row)
}

// Update writes every mutable column in one statement, so concurrent
// reconciliations of the same record serialize on the database instead
// of interleaving field writes.
func (s *SourceStore) Update(ctx context.Context, source *Source) (*Source, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		UPDATE sources
		SET tvdb_id = ?, season = ?, url = ?, cookies = ?, user_agent = ?, hash = ?, datetime = ?,
			version = ?, schedule_correction = ?, quality = ?, language = ?, error = ?,
			announce = ?, report_existing = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING %s
	`, sourceColumns),
		source.TVDBID, source.Season, source.URL, source.Cookies, source.UserAgent,
		source.Hash, source.Datetime, source.Version, source.ScheduleCorrection,
		source.Quality, source.Language, source.Error, source.Announce, source.ReportExisting,
		source.ID,
	)

	updated, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSourceNotFound
	}
	return updated, err
}

func (s *SourceStore) Delete(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSourceNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*Source, error) {
	source := &Source{}
	err := row.Scan(
		&source.ID,
		&source.TVDBID,
		&source.Season,
		&source.URL,
		&source.Cookies,
		&source.UserAgent,
		&source.Hash,
		&source.Datetime,
		&source.Version,
		&source.ScheduleCorrection,
		&source.Quality,
		&source.Language,
		&source.Error,
		&source.Announce,
		&source.ReportExisting,
		&source.CreatedAt,
		&source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return source, nil
}

func scanSources(rows *sql.Rows) ([]*Source, error) {
	var sources []*Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}
