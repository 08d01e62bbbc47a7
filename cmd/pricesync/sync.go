package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/pricesync/internal/cli"
	"github.com/Veraticus/pricesync/internal/common"
	"github.com/Veraticus/pricesync/internal/pricesync"
)

// Sync targets.
const (
	targetDatabase = "db"
	targetWebsite  = "website"
	targetAll      = "all"
)

func syncCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push GrandLine prices to the shop",
		Long: `Fetch the current GrandLine price list, translate supplier codes through
the stored mapping and write the prices to the shop database, the website
API or both. Codes without a mapping are written unchanged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, a)
		},
	}

	cmd.Flags().String("target", targetDatabase, "where to write prices: db, website or all")

	return cmd
}

func runSync(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	target, _ := cmd.Flags().GetString("target")

	switch target {
	case targetDatabase, targetWebsite, targetAll:
	default:
		return common.NewUserError("--target must be db, website or all", fmt.Errorf("%w: %q", common.ErrInvalidConfig, target))
	}
	if target != targetDatabase && !a.cfg.Website.Enabled() {
		return common.NewUserError("Website sync needs website.api_url to be configured", common.ErrMissingConfig)
	}

	source, err := newGrandlineClient(a.cfg)
	if err != nil {
		return err
	}

	store, err := openStorage(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var sinks []pricesync.Sink
	if target == targetDatabase || target == targetAll {
		sinks = append(sinks, pricesync.Sink{Name: "database", Writer: store})
	}
	if target == targetWebsite || target == targetAll {
		updater, err := newWebsiteUpdater(a.cfg)
		if err != nil {
			return err
		}
		sinks = append(sinks, pricesync.Sink{Name: "website", Writer: updater})
	}

	syncer, err := pricesync.NewSyncer(source, store, sinks...)
	if err != nil {
		return err
	}

	result, err := syncer.Run(ctx)
	if result != nil && len(result.Sinks) > 0 {
		if renderErr := cli.RenderSyncStats(cmd.OutOrStdout(), result.Sinks); renderErr != nil {
			return renderErr
		}
	}
	switch {
	case errors.Is(err, pricesync.ErrNoQuotes):
		return common.NewUserError("GrandLine returned no prices to sync", err)
	case errors.Is(err, pricesync.ErrNoValidUpdates):
		return common.NewUserError("No GrandLine price passed validation", err)
	case err != nil:
		return fmt.Errorf("price sync failed: %w", err)
	}

	if !result.Succeeded() {
		return common.NewUserError("No price was written", pricesync.ErrNoValidUpdates)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
		"Synced %d prices (%d through the mapping)", result.Valid, result.Translated)))
	return nil
}
