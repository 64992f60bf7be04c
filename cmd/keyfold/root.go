// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the keyfold CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyfold",
		Short: "Keyfold - credential and session authentication service",
		Long: `Keyfold is a minimal authentication service: it registers users with
salted password hashes, validates login credentials, and issues and
revokes opaque session tokens over a small HTTP API.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
