// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/pickpockett/internal/domain"
)

func TestNewWritesDefaultConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := New(dir, "test")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)

	settings := cfg.Settings()
	assert.Equal(t, 9119, settings.Port)
	assert.Equal(t, "INFO", settings.LogLevel)
	assert.Equal(t, 15, settings.CheckIntervalMinutes)
	assert.Equal(t, "test", settings.Version)
	assert.False(t, settings.SonarrConfigured())
}

func TestNewReadsExistingConfig(t *testing.T) {
	dir := t.TempDir()
	content := `
host = "127.0.0.1"
port = 7878
checkIntervalMinutes = 5
sonarrUrl = "http://sonarr:8989"
sonarrApiKey = "abc"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644))

	cfg, err := New(dir, "test")
	require.NoError(t, err)

	settings := cfg.Settings()
	assert.Equal(t, "127.0.0.1", settings.Host)
	assert.Equal(t, 7878, settings.Port)
	assert.Equal(t, 5, settings.CheckIntervalMinutes)
	assert.True(t, settings.SonarrConfigured())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PICKPOCKETT__PORT", "8888")
	t.Setenv("PICKPOCKETT__SONARR_URL", "http://sonarr:8989")
	t.Setenv("PICKPOCKETT__SONARR_API_KEY", "k")

	cfg, err := New(t.TempDir(), "test")
	require.NoError(t, err)

	settings := cfg.Settings()
	assert.Equal(t, 8888, settings.Port)
	assert.True(t, settings.SonarrConfigured())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`port = -1`), 0o644))

	_, err := New(dir, "test")
	require.Error(t, err)
}

func TestReloadNotifiesListeners(t *testing.T) {
	cfg, err := New(t.TempDir(), "test")
	require.NoError(t, err)

	var got *domain.Config
	cfg.OnChange(func(updated *domain.Config) { got = updated })

	cfg.viper.Set("checkIntervalMinutes", 30)
	cfg.reload("config.toml")

	require.NotNil(t, got)
	assert.Equal(t, 30, got.CheckIntervalMinutes)
	assert.Equal(t, 30, cfg.Settings().CheckIntervalMinutes)
	assert.Equal(t, "test", cfg.Settings().Version)
}

func TestReloadKeepsPreviousOnInvalid(t *testing.T) {
	cfg, err := New(t.TempDir(), "test")
	require.NoError(t, err)

	notified := false
	cfg.OnChange(func(*domain.Config) { notified = true })

	cfg.viper.Set("port", -1)
	cfg.reload("config.toml")

	assert.False(t, notified)
	assert.Equal(t, 9119, cfg.Settings().Port)
}

func TestDatabasePathNextToConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := New(dir, "test")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "pickpockett.db"), cfg.DatabasePath())
}
