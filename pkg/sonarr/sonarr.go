// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package sonarr provides the slice of the Sonarr API this project needs:
// series lookup by TVDB id, the episode calendar, and the language and
// quality profile schemas used to populate source metadata.
package sonarr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrSeriesNotFound is returned when no series matches the TVDB id.
var ErrSeriesNotFound = errors.New("series not found")

// Config holds the options for constructing a Client.
type Config struct {
	Host       string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	UserAgent  string
	// SchemaTTL bounds how long the language/quality profile schemas are
	// cached. Zero means the default of one hour.
	SchemaTTL time.Duration
}

// Client is a minimal Sonarr API wrapper.
type Client struct {
	host       string
	apiKey     string
	httpClient *http.Client
	userAgent  string

	languages *schemaCache[[]Language]
	qualities *schemaCache[[]Quality]
}

// Series is a Sonarr series as far as this project cares.
type Series struct {
	ID        int      `json:"id"`
	Title     string   `json:"title"`
	SortTitle string   `json:"sortTitle"`
	TVDBID    int      `json:"tvdbId"`
	Status    string   `json:"status"`
	Seasons   []Season `json:"seasons"`
	Images    []Image  `json:"images"`
}

type Season struct {
	SeasonNumber int `json:"seasonNumber"`
}

type Image struct {
	CoverType string `json:"coverType"`
	URL       string `json:"url"`
}

// Episode is one calendar entry of a series.
type Episode struct {
	SeasonNumber  int        `json:"seasonNumber"`
	EpisodeNumber int        `json:"episodeNumber"`
	AirDateUTC    *time.Time `json:"airDateUtc"`
	HasFile       bool       `json:"hasFile"`
	Monitored     bool       `json:"monitored"`
}

type Language struct {
	Name string `json:"name"`
}

type Quality struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

const defaultSchemaTTL = time.Hour

// NewClient constructs a new Client using the provided configuration.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = "pickpockett"
	}

	ttl := cfg.SchemaTTL
	if ttl <= 0 {
		ttl = defaultSchemaTTL
	}

	return &Client{
		host:       strings.TrimRight(cfg.Host, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		userAgent:  ua,
		languages:  newSchemaCache[[]Language](ttl),
		qualities:  newSchemaCache[[]Quality](ttl),
	}
}

// Series lists every series known to Sonarr.
func (c *Client) Series(ctx context.Context) ([]Series, error) {
	var series []Series
	if err := c.get(ctx, "series", nil, &series); err != nil {
		return nil, err
	}
	return series, nil
}

// GetSeries looks a series up by TVDB id.
func (c *Client) GetSeries(ctx context.Context, tvdbID int) (*Series, error) {
	all, err := c.Series(ctx)
	if err != nil {
		return nil, err
	}

	for i := range all {
		if all[i].TVDBID == tvdbID {
			return &all[i], nil
		}
	}
	return nil, ErrSeriesNotFound
}

// Episodes returns the full episode list of a series.
func (c *Client) Episodes(ctx context.Context, seriesID int) ([]Episode, error) {
	params := url.Values{}
	params.Set("seriesId", strconv.Itoa(seriesID))

	var episodes []Episode
	if err := c.get(ctx, "episode", params, &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

type languageItem struct {
	Language Language `json:"language"`
}

type languageProfile struct {
	Languages []languageItem `json:"languages"`
}

// Languages returns the selectable languages from the language profile
// schema, sorted by name, with the "Unknown" placeholder dropped. The
// result is cached with the configured TTL.
func (c *Client) Languages(ctx context.Context) ([]Language, error) {
	return c.languages.get(func() ([]Language, error) {
		var profile languageProfile
		if err := c.get(ctx, "v3/languageprofile/schema", nil, &profile); err != nil {
			return nil, err
		}

		languages := make([]Language, 0, len(profile.Languages))
		for _, item := range profile.Languages {
			if item.Language.Name == "Unknown" {
				continue
			}
			languages = append(languages, item.Language)
		}
		sort.Slice(languages, func(i, j int) bool { return languages[i].Name < languages[j].Name })
		return languages, nil
	})
}

type qualityItem struct {
	Quality Quality `json:"quality"`
}

type qualityGroup struct {
	Items   []qualityItem `json:"items"`
	Quality *Quality      `json:"quality"`
}

type qualityProfile struct {
	Items []qualityGroup `json:"items"`
}

// Qualities flattens the quality profile schema into the selectable
// qualities, skipping the "Unknown" placeholder. Cached like Languages.
func (c *Client) Qualities(ctx context.Context) ([]Quality, error) {
	return c.qualities.get(func() ([]Quality, error) {
		var profile qualityProfile
		if err := c.get(ctx, "v3/qualityprofile/schema", nil, &profile); err != nil {
			return nil, err
		}

		var qualities []Quality
		for _, group := range profile.Items {
			if len(group.Items) == 0 {
				if group.Quality != nil && group.Quality.Name != "Unknown" {
					qualities = append(qualities, *group.Quality)
				}
				continue
			}
			for _, item := range group.Items {
				if item.Quality.Name != "Unknown" {
					qualities = append(qualities, item.Quality)
				}
			}
		}
		return qualities, nil
	})
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, dest any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)

	reqURL := fmt.Sprintf("%s/api/%s?%s", c.host, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sonarr request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sonarr request %s: unexpected status %s", endpoint, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("sonarr request %s: decode response: %w", endpoint, err)
	}
	return nil
}
