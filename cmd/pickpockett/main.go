// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/autobrr/pickpockett/internal/buildinfo"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pickpockett",
		Short: "Torznab indexer that picks magnet links from web pages",
		Long: `PickPockett bridges web pages carrying torrent or magnet links with
Sonarr: it polls registered pages for info-hash changes and serves the
results through a Torznab indexer API.`,
		SilenceUsage: true,
	}

	serveCmd := RunServeCommand()

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(RunVersionCommand())
	rootCmd.AddCommand(RunHealthcheckCommand())

	// bare invocation runs the server
	rootCmd.RunE = serveCmd.RunE
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(buildinfo.String())
		},
	}
}
