// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/autobrr/pickpockett/internal/buildinfo"
	"github.com/autobrr/pickpockett/internal/config"
)

// RunHealthcheckCommand probes the liveness endpoint of a running
// instance, for container healthchecks.
func RunHealthcheckCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check that a running instance answers its liveness probe",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New(configDir, buildinfo.Version)
			if err != nil {
				return errors.Wrap(err, "could not load configuration")
			}

			settings := cfg.Settings()

			host := settings.Host
			if host == "" || host == "0.0.0.0" || host == "::" {
				host = "localhost"
			}

			base := strings.Trim(settings.BaseURL, "/")
			if base != "" {
				base = "/" + base
			}
			url := fmt.Sprintf("http://%s:%d%s/api/health/liveness", host, settings.Port, base)

			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(url)
			if err != nil {
				return errors.Wrap(err, "liveness probe failed")
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return errors.Errorf("liveness probe returned status %d", resp.StatusCode)
			}

			cmd.Println("OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory holding config.toml (default: OS config dir)")
	return cmd
}
