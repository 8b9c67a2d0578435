// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/auth"
	authpg "github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/seed"
	"github.com/gatehouse/gatehouse/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed subcommand.
type seedConfig struct {
	file    string
	timeout time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed accounts from a manifest file",
		Long: `Creates the accounts listed in a YAML seed manifest.
This command is idempotent - accounts that already exist are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.file, "file", "", "path to the seed manifest (required)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL (default: DATABASE_URL env)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSeed(cmd *cobra.Command, cfg *seedConfig) error {
	databaseURL, err := resolveDatabaseURL(cmd)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(cfg.file)
	if err != nil {
		return oops.Code("SEED_FAILED").With("file", cfg.file).Wrap(err)
	}

	// Validate against the schema before touching the database.
	if err := seed.Validate(data); err != nil {
		return oops.Code("SEED_INVALID").With("file", cfg.file).Wrap(err)
	}

	manifest, err := seed.Parse(data)
	if err != nil {
		return oops.Code("SEED_INVALID").With("file", cfg.file).Wrap(err)
	}

	// Add timeout to prevent indefinite hangs
	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.Connect(ctx, databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	cmd.Println("Running migrations...")
	if err := runMigrations(databaseURL); err != nil {
		return err
	}

	users := authpg.NewUserRepository(pool)
	hasher := auth.NewArgon2idHasher()

	created := 0
	skipped := 0
	for _, entry := range manifest.Users {
		reg, err := auth.ValidateRegistration(entry.Name, entry.Email, entry.Password)
		if err != nil {
			return oops.Code("SEED_INVALID").With("email", entry.Email).Wrap(err)
		}

		hash, err := hasher.Hash(reg.Password)
		if err != nil {
			return oops.Code("SEED_FAILED").With("operation", "hash password").Wrap(err)
		}

		user, err := auth.NewUser(reg.Name, reg.Email, hash)
		if err != nil {
			return oops.Code("SEED_FAILED").With("email", reg.Email).Wrap(err)
		}

		if err := users.Create(ctx, user); err != nil {
			if errors.Is(err, auth.ErrDuplicateEmail) {
				slog.Info("account already exists, skipping", "email", reg.Email)
				skipped++
				continue
			}
			return oops.Code("SEED_FAILED").With("operation", "create account").With("email", reg.Email).Wrap(err)
		}

		slog.Info("created account", "user_id", user.ID.String(), "email", reg.Email)
		created++
	}

	cmd.Printf("Seeding complete: %d created, %d skipped\n", created, skipped)
	return nil
}
