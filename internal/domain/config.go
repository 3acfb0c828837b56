// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Version string
	Host    string `toml:"host" mapstructure:"host"`
	Port    int    `toml:"port" mapstructure:"port"`
	BaseURL string `toml:"baseUrl" mapstructure:"baseUrl"`

	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`

	DataDir        string `toml:"dataDir" mapstructure:"dataDir"`
	MetricsEnabled bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`

	// CheckIntervalMinutes is the poll cadence for registered sources.
	CheckIntervalMinutes int `toml:"checkIntervalMinutes" mapstructure:"checkIntervalMinutes"`
	// UserAgent is the process-wide default for page fetches; per-source
	// overrides win.
	UserAgent string `toml:"userAgent" mapstructure:"userAgent"`

	SonarrURL    string `toml:"sonarrUrl" mapstructure:"sonarrUrl"`
	SonarrAPIKey string `toml:"sonarrApiKey" mapstructure:"sonarrApiKey"`

	FlareSolverrURL string `toml:"flaresolverrUrl" mapstructure:"flaresolverrUrl"`
	// FlareSolverrTimeout is the solver's maxTimeout budget in milliseconds.
	FlareSolverrTimeout int `toml:"flaresolverrTimeout" mapstructure:"flaresolverrTimeout"`

	WebhookURL string `toml:"webhookUrl" mapstructure:"webhookUrl"`
}

const (
	DefaultCheckIntervalMinutes = 15
	DefaultFlareSolverrTimeout  = 60000
)

// CheckInterval returns the poll cadence, falling back to the default
// when unset or nonsensical.
func (c *Config) CheckInterval() time.Duration {
	minutes := c.CheckIntervalMinutes
	if minutes <= 0 {
		minutes = DefaultCheckIntervalMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// SonarrConfigured reports whether a Sonarr connection is usable.
func (c *Config) SonarrConfigured() bool {
	return strings.TrimSpace(c.SonarrURL) != "" && strings.TrimSpace(c.SonarrAPIKey) != ""
}

// FlareSolverrConfigured reports whether the challenge solver is available.
func (c *Config) FlareSolverrConfigured() bool {
	return strings.TrimSpace(c.FlareSolverrURL) != ""
}

// Validate rejects configurations the process cannot start with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	for name, value := range map[string]string{
		"sonarrUrl":       c.SonarrURL,
		"flaresolverrUrl": c.FlareSolverrURL,
		"webhookUrl":      c.WebhookURL,
	} {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if u, err := url.Parse(value); err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New(name + " must be an absolute http(s) URL")
		}
	}
	return nil
}
