package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/pricesync/internal/cli"
	"github.com/Veraticus/pricesync/internal/common"
	"github.com/Veraticus/pricesync/internal/grandline"
	"github.com/Veraticus/pricesync/internal/matcher"
	"github.com/Veraticus/pricesync/internal/model"
	"github.com/Veraticus/pricesync/internal/reconcile"
)

func mapCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Rebuild the supplier to shop code mapping",
		Long: `Load the GrandLine price list and the shop catalog, match every supplier
product to its most similar shop product and replace the stored mapping
with the matches that reach the acceptance threshold.

Matching by code tries exact, 4-character suffix, 3-character prefix and
sequence similarity in that order. Matching by name compares normalized
product names.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMap(cmd, a)
		},
	}

	cmd.Flags().String("by", string(model.StrategyCode), "match by 'code' or 'name'")
	cmd.Flags().Int("limit", 0, "number of supplier products to reconcile (default from config)")
	cmd.Flags().Float64("min-similarity", 0, "minimum score for a candidate (default from config)")
	cmd.Flags().Float64("threshold", 0, "minimum score for a mapping to be stored (default from config)")
	cmd.Flags().Bool("no-progress", false, "hide the progress bar")

	return cmd
}

func runMap(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	cfg := *a.cfg

	by, _ := cmd.Flags().GetString("by")
	strategy := model.Strategy(by)
	if strategy != model.StrategyCode && strategy != model.StrategyName {
		return common.NewUserError("--by must be 'code' or 'name'", fmt.Errorf("%w: %q", common.ErrInvalidConfig, by))
	}
	if strategy == model.StrategyName && cfg.Database.NameField == "" {
		return common.NewUserError("Matching by name needs database.name_field to be configured", common.ErrMissingConfig)
	}

	if cmd.Flags().Changed("limit") {
		cfg.Matching.SourceLimit, _ = cmd.Flags().GetInt("limit")
	}
	if cmd.Flags().Changed("threshold") {
		threshold, err := unitFlag(cmd, "threshold")
		if err != nil {
			return err
		}
		cfg.Matching.AcceptanceThreshold = threshold
	}
	if cmd.Flags().Changed("min-similarity") {
		minSimilarity, err := unitFlag(cmd, "min-similarity")
		if err != nil {
			return err
		}
		if strategy == model.StrategyName {
			cfg.Matching.MinNameSimilarity = minSimilarity
		} else {
			cfg.Matching.MinCodeSimilarity = minSimilarity
		}
	}

	source, err := newGrandlineClient(&cfg)
	if err != nil {
		return err
	}

	store, err := openStorage(ctx, &cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	matcherCfg := matcher.Config{
		MinCodeSimilarity: cfg.Matching.MinCodeSimilarity,
		MinNameSimilarity: cfg.Matching.MinNameSimilarity,
	}
	if noProgress, _ := cmd.Flags().GetBool("no-progress"); !noProgress {
		matcherCfg.Progress = cli.NewMatchProgress(cmd.ErrOrStderr(), "Matching products...")
	}
	m, err := matcher.New(matcherCfg)
	if err != nil {
		return err
	}

	reconciler, err := reconcile.New(source, store, store, m, reconcile.Config{
		Strategy:            strategy,
		SourceLimit:         cfg.Matching.SourceLimit,
		AcceptanceThreshold: cfg.Matching.AcceptanceThreshold,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("Reconciling supplier catalog by %s", strategy)))

	result, err := reconciler.Run(ctx)
	if err != nil {
		return mapFailure(err)
	}

	slog.Debug("Mapping run finished", "run_id", result.Run.ID)
	return cli.RenderSummary(out, strategy, result.Summary)
}

// unitFlag reads a score flag. Zero is rejected so it cannot be mistaken
// for "use the default" further down.
func unitFlag(cmd *cobra.Command, name string) (float64, error) {
	value, _ := cmd.Flags().GetFloat64(name)
	if value <= 0 || value > 1 {
		return 0, common.NewUserError(fmt.Sprintf("--%s must be greater than 0 and at most 1", name),
			fmt.Errorf("%w: %s %v", common.ErrInvalidConfig, name, value))
	}
	return value, nil
}

func mapFailure(err error) error {
	switch {
	case errors.Is(err, reconcile.ErrSourceUnavailable) && grandline.IsUnavailable(err):
		return common.NewUserError("GrandLine API is unreachable or rate limited; the stored mapping was left unchanged", err)
	case errors.Is(err, reconcile.ErrSourceUnavailable):
		return common.NewUserError("Could not load the GrandLine catalog; the stored mapping was left unchanged", err)
	case errors.Is(err, reconcile.ErrTargetUnavailable):
		return common.NewUserError("Could not load the shop catalog; the stored mapping was left unchanged", err)
	case errors.Is(err, reconcile.ErrPersistence):
		return common.NewUserError("Could not store the new mapping; the previous mapping was kept", err)
	default:
		return fmt.Errorf("mapping failed: %w", err)
	}
}
