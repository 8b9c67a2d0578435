// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/internal/xdg"
)

// migrateConfig holds configuration for the migrate subcommand.
type migrateConfig struct {
	down bool
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cfg := &migrateConfig{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Run all pending database migrations against the PostgreSQL database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.down, "down", false, "roll back all migrations instead of applying them")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL (default: DATABASE_URL env)")

	return cmd
}

func runMigrate(cmd *cobra.Command, cfg *migrateConfig) error {
	databaseURL, err := resolveDatabaseURL(cmd)
	if err != nil {
		return err
	}

	// Migrator errors carry their own codes, so they pass through unchanged.
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		_ = migrator.Close()
	}()

	if cfg.down {
		cmd.Println("Rolling back migrations...")
		if err := migrator.Down(); err != nil {
			return err
		}
		cmd.Println("Rollback completed successfully")
		return nil
	}

	cmd.Println("Running migrations...")
	if err := migrator.Up(); err != nil {
		return err
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	if dirty {
		cmd.Println("Warning: migration state is dirty")
	}
	cmd.Println(fmt.Sprintf("Migrations completed successfully (version %d)", version))
	return nil
}

// resolveDatabaseURL loads the configuration and returns the database URL,
// honoring the --config and --database-url flags plus the DATABASE_URL
// environment fallback.
func resolveDatabaseURL(cmd *cobra.Command) (string, error) {
	configPath := configFile
	if configPath == "" {
		configPath = xdg.DefaultConfigFile()
	}

	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return "", oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if cfg.DatabaseURL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("database URL is required (set DATABASE_URL or --database-url)")
	}
	return cfg.DatabaseURL, nil
}
