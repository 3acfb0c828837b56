// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads and watches the TOML application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/autobrr/pickpockett/internal/domain"
	"github.com/autobrr/pickpockett/pkg/debounce"
)

const envPrefix = "PICKPOCKETT__"

// AppConfig owns the live configuration. The embedded domain.Config
// pointer is swapped atomically on file changes; readers grab it through
// Settings().
type AppConfig struct {
	viper *viper.Viper

	mu        sync.RWMutex
	config    *domain.Config
	listeners []func(*domain.Config)
}

// New loads (or on first run writes) config.toml in configDir, applies
// environment overrides, and starts watching the file for live reloads.
func New(configDir, version string) (*AppConfig, error) {
	c := &AppConfig{viper: viper.New()}
	if err := c.load(configDir); err != nil {
		return nil, err
	}

	c.config.Version = version
	if err := c.config.Validate(); err != nil {
		return nil, err
	}

	c.watch()
	return c, nil
}

// Settings returns the current configuration snapshot.
func (c *AppConfig) Settings() *domain.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// OnChange registers a callback invoked with the fresh settings after a
// successful reload.
func (c *AppConfig) OnChange(fn func(*domain.Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// DatabasePath returns where the sqlite database lives, next to the
// config file unless dataDir points elsewhere.
func (c *AppConfig) DatabasePath() string {
	settings := c.Settings()
	dir := settings.DataDir
	if dir == "" {
		dir = filepath.Dir(c.viper.ConfigFileUsed())
	}
	return filepath.Join(dir, "pickpockett.db")
}

func (c *AppConfig) load(configDir string) error {
	c.setDefaults()

	c.viper.SetConfigName("config")
	c.viper.SetConfigType("toml")
	c.viper.AddConfigPath(configDir)

	if err := c.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
		if err := c.writeDefaultConfig(configDir); err != nil {
			return err
		}
		if err := c.viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read generated config: %w", err)
		}
	}

	c.bindEnv()

	cfg := &domain.Config{}
	if err := c.viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	c.config = cfg
	return nil
}

func (c *AppConfig) setDefaults() {
	c.viper.SetDefault("host", "0.0.0.0")
	c.viper.SetDefault("port", 9119)
	c.viper.SetDefault("baseUrl", "/")
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("metricsEnabled", false)
	c.viper.SetDefault("checkIntervalMinutes", domain.DefaultCheckIntervalMinutes)
	c.viper.SetDefault("flaresolverrTimeout", domain.DefaultFlareSolverrTimeout)
}

// bindEnv maps PICKPOCKETT__SNAKE_CASE variables onto config keys.
func (c *AppConfig) bindEnv() {
	for key, env := range map[string]string{
		"host":                 "HOST",
		"port":                 "PORT",
		"baseUrl":              "BASE_URL",
		"logLevel":             "LOG_LEVEL",
		"logPath":              "LOG_PATH",
		"dataDir":              "DATA_DIR",
		"metricsEnabled":       "METRICS_ENABLED",
		"checkIntervalMinutes": "CHECK_INTERVAL_MINUTES",
		"userAgent":            "USER_AGENT",
		"sonarrUrl":            "SONARR_URL",
		"sonarrApiKey":         "SONARR_API_KEY",
		"flaresolverrUrl":      "FLARESOLVERR_URL",
		"flaresolverrTimeout":  "FLARESOLVERR_TIMEOUT",
		"webhookUrl":           "WEBHOOK_URL",
	} {
		if value, ok := os.LookupEnv(envPrefix + env); ok {
			c.viper.Set(key, value)
		}
	}
}

func (c *AppConfig) watch() {
	// editors emit several write events per save; only reload once the
	// burst settles
	debouncer := debounce.New(500 * time.Millisecond)

	c.viper.OnConfigChange(func(event fsnotify.Event) {
		debouncer.Do(func() {
			c.reload(event.Name)
		})
	})
	c.viper.WatchConfig()
}

func (c *AppConfig) reload(file string) {
	cfg := &domain.Config{}
	if err := c.viper.Unmarshal(cfg); err != nil {
		log.Error().Err(err).Str("file", file).Msg("config: reload failed, keeping previous settings")
		return
	}
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Str("file", file).Msg("config: reloaded settings invalid, keeping previous")
		return
	}

	c.mu.Lock()
	cfg.Version = c.config.Version
	c.config = cfg
	listeners := append([]func(*domain.Config){}, c.listeners...)
	c.mu.Unlock()

	log.Info().Str("file", file).Msg("config: reloaded")
	for _, fn := range listeners {
		fn(cfg)
	}
}

func (c *AppConfig) writeDefaultConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(defaultConfigTOML), 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	log.Info().Str("path", path).Msg("config: wrote default configuration")
	return nil
}

const defaultConfigTOML = `# config.toml - Auto-generated on first run

# Hostname / IP for the indexer API
# Default: "0.0.0.0"
host = "0.0.0.0"

# Port for the indexer API
# Default: 9119
port = 9119

# Base url when running behind a reverse proxy under a subfolder
# Default: "/"
#baseUrl = "/pickpockett"

# Log level
# Default: "INFO"
# Options: "ERROR", "WARN", "INFO", "DEBUG", "TRACE"
logLevel = "INFO"

# Log file path
# If not defined, logs to stdout
# Optional
#logPath = "log/pickpockett.log"

# How often registered sources are re-checked, in minutes
# Default: 15
checkIntervalMinutes = 15

# Default User-Agent for page fetches; per-source overrides win
# Optional
#userAgent = ""

# Sonarr connection
#sonarrUrl = "http://localhost:8989"
#sonarrApiKey = ""

# FlareSolverr instance for sources behind anti-bot challenges
# Optional
#flaresolverrUrl = "http://localhost:8191"
#flaresolverrTimeout = 60000

# Notified with ?old=<hash>&new=<hash> when a source changes
# Optional
#webhookUrl = ""

# Expose Prometheus metrics on /metrics
# Default: false
metricsEnabled = false
`
