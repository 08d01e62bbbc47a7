// Package matcher pairs every source catalog entry with its single best
// target catalog entry.
//
// Matching is a greedy, independent best-match per source entry: the same
// target may be chosen for many sources, and no one-to-one assignment is
// attempted. The scan is a full O(N*M) cross product with no indexing, which
// is fine for catalogs in the low thousands.
package matcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/pricesync/internal/common"
	"github.com/Veraticus/pricesync/internal/model"
	"github.com/Veraticus/pricesync/internal/similarity"
)

// Default acceptance thresholds. Names are noisier than codes.
const (
	DefaultMinCodeSimilarity = 0.6
	DefaultMinNameSimilarity = 0.7
)

// ProgressFunc is called after each source entry has been scanned.
type ProgressFunc func(done, total int)

// Config holds the thresholds a candidate must reach to be accepted.
type Config struct {
	Progress          ProgressFunc
	MinCodeSimilarity float64
	MinNameSimilarity float64
}

// Matcher selects the best target for each source entry.
type Matcher struct {
	scorer            *similarity.Scorer
	progress          ProgressFunc
	minCodeSimilarity float64
	minNameSimilarity float64
}

// New creates a matcher. Zero thresholds select the defaults.
func New(cfg Config) (*Matcher, error) {
	if cfg.MinCodeSimilarity == 0 {
		cfg.MinCodeSimilarity = DefaultMinCodeSimilarity
	}
	if cfg.MinNameSimilarity == 0 {
		cfg.MinNameSimilarity = DefaultMinNameSimilarity
	}
	if err := validateThreshold("min code similarity", cfg.MinCodeSimilarity); err != nil {
		return nil, err
	}
	if err := validateThreshold("min name similarity", cfg.MinNameSimilarity); err != nil {
		return nil, err
	}

	return &Matcher{
		scorer:            similarity.NewScorer(cfg.MinCodeSimilarity),
		progress:          cfg.Progress,
		minCodeSimilarity: cfg.MinCodeSimilarity,
		minNameSimilarity: cfg.MinNameSimilarity,
	}, nil
}

func validateThreshold(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: %s must be within [0, 1], got %v", common.ErrInvalidConfig, name, v)
	}
	return nil
}

// MinCodeSimilarity returns the acceptance threshold for code matching.
func (m *Matcher) MinCodeSimilarity() float64 { return m.minCodeSimilarity }

// MinNameSimilarity returns the acceptance threshold for name matching.
func (m *Matcher) MinNameSimilarity() float64 { return m.minNameSimilarity }

// MatchCodes finds the best target code for every source code.
// Candidates come back in source order; sources without an acceptable target
// are omitted. On equal scores the first target in scan order wins.
func (m *Matcher) MatchCodes(ctx context.Context, sources, targets []model.ProductDescriptor) ([]model.MatchCandidate, error) {
	candidates := make([]model.MatchCandidate, 0, len(sources))
	if len(targets) == 0 {
		slog.Debug("Target catalog is empty, nothing to match", "sources", len(sources))
		return candidates, nil
	}

	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			best      *model.ProductDescriptor
			bestScore float64
			method    model.Method
		)
		for j := range targets {
			score, tier := m.scorer.ScoreCode(src.Identifier, targets[j].Identifier)
			if tier == model.MethodExact {
				best, bestScore, method = &targets[j], score, tier
				break
			}
			if score > bestScore {
				best, bestScore, method = &targets[j], score, tier
			}
		}

		if best != nil && bestScore >= m.minCodeSimilarity {
			candidates = append(candidates, model.MatchCandidate{
				SourceIdentifier: src.Identifier,
				TargetIdentifier: best.Identifier,
				SourceName:       src.DisplayName,
				TargetName:       best.DisplayName,
				Score:            bestScore,
				Method:           method,
			})
		}

		m.report(i+1, len(sources))
	}

	return candidates, nil
}

// MatchNames finds the best target for every source by display name.
// Entries without a display name on either side never match.
func (m *Matcher) MatchNames(ctx context.Context, sources, targets []model.ProductDescriptor) ([]model.MatchCandidate, error) {
	candidates := make([]model.MatchCandidate, 0, len(sources))
	if len(targets) == 0 {
		slog.Debug("Target catalog is empty, nothing to match", "sources", len(sources))
		return candidates, nil
	}

	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !src.HasName() {
			m.report(i+1, len(sources))
			continue
		}

		var (
			best      *model.ProductDescriptor
			bestScore float64
		)
		for j := range targets {
			if !targets[j].HasName() {
				continue
			}
			score := similarity.ScoreName(src.DisplayName, targets[j].DisplayName)
			if score > bestScore && score >= m.minNameSimilarity {
				best, bestScore = &targets[j], score
			}
		}

		if best != nil {
			candidates = append(candidates, model.MatchCandidate{
				SourceIdentifier: src.Identifier,
				TargetIdentifier: best.Identifier,
				SourceName:       src.DisplayName,
				TargetName:       best.DisplayName,
				Score:            bestScore,
				Method:           model.MethodNameSimilarity,
			})
		}

		m.report(i+1, len(sources))
	}

	return candidates, nil
}

// Match dispatches to MatchCodes or MatchNames.
func (m *Matcher) Match(ctx context.Context, strategy model.Strategy, sources, targets []model.ProductDescriptor) ([]model.MatchCandidate, error) {
	switch strategy {
	case model.StrategyCode, "":
		return m.MatchCodes(ctx, sources, targets)
	case model.StrategyName:
		return m.MatchNames(ctx, sources, targets)
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", common.ErrInvalidConfig, strategy)
	}
}

func (m *Matcher) report(done, total int) {
	if m.progress != nil {
		m.progress(done, total)
	}
}
