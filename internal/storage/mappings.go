package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/pricesync/internal/model"
)

// scorePlaces is the precision of the persisted score column.
const scorePlaces = 2

// AcceptedEntries keeps the entries whose score reaches threshold. When a
// source code repeats, the last entry wins and keeps the first position.
func AcceptedEntries(entries []model.MappingEntry, threshold float64) []model.MappingEntry {
	accepted := make([]model.MappingEntry, 0, len(entries))
	position := make(map[string]int, len(entries))

	for _, e := range entries {
		if e.Score < threshold {
			continue
		}
		if i, seen := position[e.SourceCode]; seen {
			accepted[i] = e
			continue
		}
		position[e.SourceCode] = len(accepted)
		accepted = append(accepted, e)
	}

	return accepted
}

// ReplaceMappings rebuilds the mapping table from entries scoring at least
// threshold and returns the number of rows written. The clear and the insert
// run in one transaction, so readers never observe an empty table and a
// failure leaves the previous mapping in place.
func (s *Storage) ReplaceMappings(ctx context.Context, entries []model.MappingEntry, threshold float64) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateThreshold(threshold); err != nil {
		return 0, err
	}

	accepted := AcceptedEntries(entries, threshold)
	for i, e := range accepted {
		if err := validateMappingEntry(e); err != nil {
			return 0, fmt.Errorf("mapping at index %d: %w", i, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_mappings`); err != nil {
		return 0, fmt.Errorf("failed to clear mappings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO product_mappings
			(source_code, target_code, score, method, source_name, target_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare mapping insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for _, e := range accepted {
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			e.SourceCode,
			e.TargetCode,
			decimal.NewFromFloat(e.Score).Round(scorePlaces),
			string(e.Method),
			nullString(e.SourceName),
			nullString(e.TargetName),
			createdAt.UTC(),
		); err != nil {
			return 0, fmt.Errorf("failed to insert mapping for %s: %w", e.SourceCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit mappings: %w", err)
	}

	slog.Debug("Replaced product mappings",
		"offered", len(entries),
		"persisted", len(accepted),
		"threshold", threshold)

	return len(accepted), nil
}

// ListMappings returns every persisted mapping ordered by source code.
func (s *Storage) ListMappings(ctx context.Context) ([]model.MappingEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_code, target_code, score, method, source_name, target_name, created_at
		FROM product_mappings
		ORDER BY source_code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.MappingEntry
	for rows.Next() {
		var (
			e          model.MappingEntry
			score      decimal.Decimal
			method     string
			sourceName sql.NullString
			targetName sql.NullString
		)
		if err := rows.Scan(&e.SourceCode, &e.TargetCode, &score, &method, &sourceName, &targetName, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		e.Score = score.InexactFloat64()
		e.Method = model.Method(method)
		e.SourceName = sourceName.String
		e.TargetName = targetName.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mappings: %w", err)
	}

	return entries, nil
}

// CountMappings returns the number of persisted mappings.
func (s *Storage) CountMappings(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM product_mappings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count mappings: %w", err)
	}
	return count, nil
}

// LookupTargetCodes translates source codes through the mapping table.
// Codes without a mapping are absent from the result.
func (s *Storage) LookupTargetCodes(ctx context.Context, sourceCodes []string) (map[string]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(sourceCodes))
	for _, c := range sourceCodes {
		wanted[c] = true
	}

	rows, err := s.db.QueryContext(ctx, `SELECT source_code, target_code FROM product_mappings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]string)
	for rows.Next() {
		var source, target string
		if err := rows.Scan(&source, &target); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		if wanted[source] {
			result[source] = target
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mappings: %w", err)
	}

	return result, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
