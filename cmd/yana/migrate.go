// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/yanaFramework/yanaFramework-sub012/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the activation override schema",
		Long:  `Apply or roll back the PostgreSQL schema that stores activation overrides.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Up(); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "up").Wrap(err)
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Down(); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "down").Wrap(err)
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the schema version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				return printVersion(cmd, m)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations",
		Long: `Set the schema version without running migrations and clear the dirty
flag. Use it to recover from a failed migration after fixing the schema by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Force(version); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "force").Wrap(err)
				}
				cmd.Printf("Forced version %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(cmd *cobra.Command, deps *Deps, fn func(m Migrator) error) error {
	cfg, err := loadConfig(cmd, deps)
	if err != nil {
		return err
	}
	if cfg.Activation.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("activation.database-url or DATABASE_URL is required")
	}

	m, err := deps.MigratorFactory(cfg.Activation.DatabaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() { _ = m.Close() }()

	return fn(m)
}

func printVersion(cmd *cobra.Command, m Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	applied, err := m.AppliedMigrations()
	if err != nil {
		return err
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}

	state := "clean"
	if dirty {
		state = "dirty"
	}
	cmd.Printf("version: %d (%s)\n", version, state)
	for _, v := range applied {
		cmd.Printf("  applied  %s\n", migrationLabel(v))
	}
	for _, v := range pending {
		cmd.Printf("  pending  %s\n", migrationLabel(v))
	}
	return nil
}

func migrationLabel(version uint) string {
	name, err := store.MigrationName(version)
	if err != nil {
		return fmt.Sprintf("%06d", version)
	}
	return name
}

// parseForceVersion parses the version argument of migrate force.
func parseForceVersion(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, oops.Code("INVALID_VERSION").Errorf("version is required")
	}
	var version int
	if _, err := fmt.Sscanf(s, "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return version, nil
}
