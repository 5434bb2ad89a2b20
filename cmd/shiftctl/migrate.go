package main

import (
	"context"
	"fmt"
	"time"

	"github.com/geocoder89/shifthub/internal/config"
	"github.com/geocoder89/shifthub/internal/db"
	"github.com/spf13/cobra"
)

func newMigrateCmd(load func() config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the embedded schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), load(), func(mg *db.Migrator) error {
				if err := mg.Up(); err != nil {
					return err
				}
				return printVersion(cmd, mg)
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			return withMigrator(cmd.Context(), load(), func(mg *db.Migrator) error {
				if err := mg.Down(steps); err != nil {
					return err
				}
				return printVersion(cmd, mg)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), load(), func(mg *db.Migrator) error {
				return printVersion(cmd, mg)
			})
		},
	})

	return cmd
}

func withMigrator(ctx context.Context, cfg config.Config, fn func(mg *db.Migrator) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DBURL, 2)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	mg, err := db.NewMigrator(pool)
	if err != nil {
		return err
	}
	defer func() { _ = mg.Close() }()

	return fn(mg)
}

func printVersion(cmd *cobra.Command, mg *db.Migrator) error {
	version, dirty, err := mg.Version()
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
	return nil
}
