package storage

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/pricesync/internal/model"
)

// SaveRun records the outcome of a reconciliation pass.
func (s *Storage) SaveRun(ctx context.Context, run *model.MappingRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}

	finished := run.FinishedAt
	if finished.IsZero() {
		finished = run.StartedAt
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO mapping_runs
			(id, strategy, started_at, finished_at, source_total, target_total, candidates, persisted, coverage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		run.ID,
		string(run.Strategy),
		run.StartedAt.UTC(),
		finished.UTC(),
		run.SourceTotal,
		run.TargetTotal,
		run.Candidates,
		run.Persisted,
		decimal.NewFromFloat(run.Coverage).Round(2),
	)
	if err != nil {
		return fmt.Errorf("failed to save mapping run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. A non-positive limit returns all runs.
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]model.MappingRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, strategy, started_at, finished_at, source_total, target_total, candidates, persisted, coverage
		FROM mapping_runs
		ORDER BY started_at DESC
	`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mapping runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.MappingRun
	for rows.Next() {
		var (
			run      model.MappingRun
			strategy string
			coverage decimal.Decimal
		)
		if err := rows.Scan(
			&run.ID,
			&strategy,
			&run.StartedAt,
			&run.FinishedAt,
			&run.SourceTotal,
			&run.TargetTotal,
			&run.Candidates,
			&run.Persisted,
			&coverage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan mapping run: %w", err)
		}
		run.Strategy = model.Strategy(strategy)
		run.Coverage = coverage.InexactFloat64()
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mapping runs: %w", err)
	}

	return runs, nil
}
