// Package reconcile runs the code reconciliation pipeline: it loads both
// catalogs, matches them, persists the accepted mapping and reports coverage.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/pricesync/internal/common"
	"github.com/Veraticus/pricesync/internal/matcher"
	"github.com/Veraticus/pricesync/internal/model"
	"github.com/Veraticus/pricesync/internal/report"
	"github.com/Veraticus/pricesync/internal/storage"
)

// DefaultAcceptanceThreshold is the minimum score a candidate needs to be persisted.
const DefaultAcceptanceThreshold = 0.8

// Pipeline failure kinds.
var (
	ErrSourceUnavailable = errors.New("source catalog unavailable")
	ErrTargetUnavailable = errors.New("target catalog unavailable")
	ErrPersistence       = errors.New("failed to persist mapping")
)

// SourceCatalog lists the supplier products.
type SourceCatalog interface {
	ListSourceDescriptors(ctx context.Context, limit int) ([]model.ProductDescriptor, error)
}

// TargetCatalog lists the shop products.
type TargetCatalog interface {
	ListTargetDescriptors(ctx context.Context) ([]model.ProductDescriptor, error)
}

// MappingStore persists the mapping and the run history.
type MappingStore interface {
	ReplaceMappings(ctx context.Context, entries []model.MappingEntry, threshold float64) (int, error)
	SaveRun(ctx context.Context, run *model.MappingRun) error
}

// Config configures a Reconciler.
type Config struct {
	Now                 func() time.Time
	Strategy            model.Strategy
	SourceLimit         int
	AcceptanceThreshold float64
}

// Reconciler wires the catalogs, the matcher and the store together.
type Reconciler struct {
	source  SourceCatalog
	target  TargetCatalog
	store   MappingStore
	matcher *matcher.Matcher
	cfg     Config
}

// Result is the outcome of a successful run.
type Result struct {
	Summary    report.Summary
	Run        model.MappingRun
	Candidates []model.MatchCandidate
}

// New creates a Reconciler. A zero acceptance threshold selects
// DefaultAcceptanceThreshold and an empty strategy selects code matching.
func New(source SourceCatalog, target TargetCatalog, store MappingStore, m *matcher.Matcher, cfg Config) (*Reconciler, error) {
	if source == nil || target == nil || store == nil || m == nil {
		return nil, fmt.Errorf("%w: reconciler requires source, target, store and matcher", common.ErrMissingConfig)
	}

	if cfg.Strategy == "" {
		cfg.Strategy = model.StrategyCode
	}
	if cfg.Strategy != model.StrategyCode && cfg.Strategy != model.StrategyName {
		return nil, fmt.Errorf("%w: unknown strategy %q", common.ErrInvalidConfig, cfg.Strategy)
	}
	if cfg.AcceptanceThreshold == 0 {
		cfg.AcceptanceThreshold = DefaultAcceptanceThreshold
	}
	if cfg.AcceptanceThreshold < 0 || cfg.AcceptanceThreshold > 1 {
		return nil, fmt.Errorf("%w: acceptance threshold %v outside [0, 1]", common.ErrInvalidConfig, cfg.AcceptanceThreshold)
	}
	if cfg.SourceLimit < 0 {
		return nil, fmt.Errorf("%w: negative source limit", common.ErrInvalidConfig)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Reconciler{source: source, target: target, store: store, matcher: m, cfg: cfg}, nil
}

// Run executes one reconciliation pass. When a catalog cannot be loaded the
// store is left untouched. A failed write leaves the previous mapping in place.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	started := r.cfg.Now().UTC()
	run := model.MappingRun{
		ID:        uuid.NewString(),
		Strategy:  r.cfg.Strategy,
		StartedAt: started,
	}
	log := slog.With("run_id", run.ID, "strategy", run.Strategy)

	log.Info("Loading source catalog", "limit", r.cfg.SourceLimit)
	sources, err := r.source.ListSourceDescriptors(ctx, r.cfg.SourceLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no products received", ErrSourceUnavailable)
	}
	run.SourceTotal = len(sources)

	log.Info("Loading target catalog")
	targets, err := r.target.ListTargetDescriptors(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTargetUnavailable, err)
	}
	run.TargetTotal = len(targets)
	if len(targets) == 0 {
		log.Warn("Target catalog is empty")
	}

	log.Info("Matching catalogs", "sources", len(sources), "targets", len(targets))
	candidates, err := r.matcher.Match(ctx, r.cfg.Strategy, sources, targets)
	if err != nil {
		return nil, fmt.Errorf("matching failed: %w", err)
	}
	run.Candidates = len(candidates)

	entries := make([]model.MappingEntry, 0, len(candidates))
	for _, c := range candidates {
		entries = append(entries, model.NewMappingEntry(c, started))
	}

	persisted, err := r.store.ReplaceMappings(ctx, entries, r.cfg.AcceptanceThreshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	run.Persisted = persisted

	summary := report.Summarize(storage.AcceptedEntries(entries, r.cfg.AcceptanceThreshold), len(sources))
	run.Coverage = summary.Coverage
	run.FinishedAt = r.cfg.Now().UTC()

	if err := r.store.SaveRun(ctx, &run); err != nil {
		common.LogError(err, "Failed to record mapping run", common.Fields{"run_id": run.ID})
	}

	log.Info("Reconciliation completed",
		"candidates", run.Candidates,
		"persisted", run.Persisted,
		"coverage", fmt.Sprintf("%.1f%%", run.Coverage))

	return &Result{Run: run, Candidates: candidates, Summary: summary}, nil
}
