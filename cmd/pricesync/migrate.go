package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/pricesync/internal/storage"
)

func migrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Create or update the mapping tables to the latest schema version.

The shop products table is never modified by migrations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			status, _ := cmd.Flags().GetBool("status")

			store, err := storage.Open(ctx, storageOptions(a.cfg))
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = store.Close() }()

			if status {
				current, err := store.SchemaVersion(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %d (latest %d)\n", current, storage.ExpectedSchemaVersion)
				return nil
			}

			slog.Info("Running database migrations", "driver", store.Driver())
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "✅ Database migrations completed")
			return nil
		},
	}

	cmd.Flags().Bool("status", false, "show the current schema version without applying changes")

	return cmd
}
