package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/pricesync/internal/common"
	"github.com/Veraticus/pricesync/internal/model"
)

// UpdatePrices writes the price of each update into the products table,
// matching rows by the catalog code column. Updates that touch no row count
// as failed. All writes share one transaction.
func (s *Storage) UpdatePrices(ctx context.Context, updates []model.PriceUpdate) (model.SyncStats, error) {
	var stats model.SyncStats
	if err := validateContext(ctx); err != nil {
		return stats, err
	}
	if s.catalog.PriceField == "" {
		return stats, fmt.Errorf("%w: database price_field", common.ErrMissingConfig)
	}
	if len(updates) == 0 {
		return stats, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := s.rebind(fmt.Sprintf(`UPDATE %s SET %s = ? WHERE %s = ?`,
		s.catalog.ProductsTable, s.catalog.PriceField, s.catalog.CodeField))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return stats, fmt.Errorf("failed to prepare price update: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, u := range updates {
		res, err := stmt.ExecContext(ctx, u.Price, u.Code)
		if err != nil {
			return model.SyncStats{Failed: len(updates)}, fmt.Errorf("failed to update price for %s: %w", u.Code, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return model.SyncStats{Failed: len(updates)}, fmt.Errorf("failed to read affected rows: %w", err)
		}
		if affected == 0 {
			slog.Warn("Product not found in catalog", "code", u.Code)
			stats.Failed++
			continue
		}
		stats.Success++
	}

	if err := tx.Commit(); err != nil {
		return model.SyncStats{Failed: len(updates)}, fmt.Errorf("failed to commit price updates: %w", err)
	}

	slog.Info("Price update completed",
		"success", stats.Success,
		"failed", stats.Failed)

	return stats, nil
}
