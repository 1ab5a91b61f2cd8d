// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/spf13/cobra"

	"github.com/autobrr/importarr/internal/buildinfo"
	"github.com/autobrr/importarr/internal/config"
)

func RunGenConfigCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "genconfig",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Loading creates the file with defaults when it does not exist.
			appCfg, err := config.New(configPath, buildinfo.Version)
			if err != nil {
				return err
			}
			cmd.Printf("config ready (data dir: %s)\n", appCfg.Config.DataDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file or directory")
	return cmd
}
