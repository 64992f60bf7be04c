// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/keyfold/keyfold/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
		Long: `Apply, roll back, and inspect schema migrations against the
PostgreSQL database. The connection string comes from --database-url or
the DATABASE_URL environment variable.`,
	}

	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string (defaults to $DATABASE_URL)")

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateVersionCmd())
	cmd.AddCommand(newMigrateForceCmd())

	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *store.Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations applied")
				return nil
			})
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (drops all tables and data)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *store.Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Migrations rolled back")
				return nil
			})
		},
	}
}

func newMigrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the current migration version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *store.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				cmd.Printf("version: %d dirty: %v\n", version, dirty)
				return nil
			})
		},
	}
}

func newMigrateForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Set the migration version without running migrations",
		Long: `Set the schema version record without running any migrations. Use
only to recover from a dirty state after fixing the database by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, func(m *store.Migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Forced version to %d\n", version)
				return nil
			})
		},
	}
}

// parseForceVersion parses a migration version argument. Sscanf stops at
// the first non-digit, so "3abc" parses as 3; empty or non-numeric input
// is rejected.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").
			With("input", s).
			Errorf("version must be an integer")
	}
	return version, nil
}

// databaseURL resolves the connection string from the flag or environment.
func databaseURL(cmd *cobra.Command) (string, error) {
	url, err := cmd.Flags().GetString("database-url")
	if err != nil {
		return "", oops.Wrap(err)
	}
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return "", oops.Code("CONFIG_INVALID").
			Errorf("--database-url or the DATABASE_URL environment variable is required")
	}
	return url, nil
}

func withMigrator(cmd *cobra.Command, fn func(*store.Migrator) error) error {
	url, err := databaseURL(cmd)
	if err != nil {
		return err
	}

	m, err := store.NewMigrator(url)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			cmd.PrintErrln("warning: failed to close migrator:", cerr)
		}
	}()

	return fn(m)
}
