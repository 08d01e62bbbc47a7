package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/pricesync/internal/cli"
)

var errChecksFailed = errors.New("connection checks failed")

func checkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Test connections to GrandLine, the database and the website",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			results := []cli.CheckResult{
				{Name: "grandline", Err: checkGrandline(ctx, a)},
				{Name: "database", Err: checkDatabase(ctx, a)},
			}
			if a.cfg.Website.Enabled() {
				results = append(results, cli.CheckResult{Name: "website", Err: checkWebsite(ctx, a)})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatTitle("Connection Test Results"))
			ok, err := cli.RenderChecks(out, results)
			if err != nil {
				return err
			}
			if !ok {
				return errChecksFailed
			}
			return nil
		},
	}
}

func checkGrandline(ctx context.Context, a *app) error {
	client, err := newGrandlineClient(a.cfg)
	if err != nil {
		return err
	}
	return client.Ping(ctx)
}

func checkDatabase(ctx context.Context, a *app) error {
	store, err := openStorage(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	count, err := store.CountProducts(ctx)
	if err != nil {
		return err
	}
	mapped, err := store.CountMappings(ctx)
	if err != nil {
		return err
	}
	slog.Info("Database reachable", "products", count, "mappings", mapped)
	return nil
}

func checkWebsite(ctx context.Context, a *app) error {
	updater, err := newWebsiteUpdater(a.cfg)
	if err != nil {
		return err
	}
	return updater.Ping(ctx)
}
