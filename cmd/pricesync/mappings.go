package main

import (
	"github.com/spf13/cobra"

	"github.com/Veraticus/pricesync/internal/cli"
)

func mappingsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mappings",
		Short: "List the stored code mapping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := openStorage(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.ListMappings(ctx)
			if err != nil {
				return err
			}

			return cli.RenderMappings(cmd.OutOrStdout(), entries)
		},
	}
}

func runsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show the history of mapping runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			limit, _ := cmd.Flags().GetInt("limit")

			store, err := openStorage(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}

			return cli.RenderRuns(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().Int("limit", 20, "number of runs to show (0 for all)")

	return cmd
}
