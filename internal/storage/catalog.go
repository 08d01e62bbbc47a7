package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/pricesync/internal/model"
)

// ListTargetDescriptors reads every product of the target catalog that has a
// non-blank code. Rows failing descriptor validation are skipped.
func (s *Storage) ListTargetDescriptors(ctx context.Context) ([]model.ProductDescriptor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	nameExpr := "NULL"
	if s.catalog.NameField != "" {
		nameExpr = s.catalog.NameField
	}
	priceExpr := "NULL"
	if s.catalog.PriceField != "" {
		priceExpr = s.catalog.PriceField
	}

	// Identifiers were validated in Open
	query := fmt.Sprintf(`
		SELECT %[1]s, %[2]s, %[3]s
		FROM %[4]s
		WHERE %[1]s IS NOT NULL AND %[1]s <> ''
		ORDER BY %[1]s
	`, s.catalog.CodeField, nameExpr, priceExpr, s.catalog.ProductsTable)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query target catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var descriptors []model.ProductDescriptor
	skipped := 0
	for rows.Next() {
		var (
			code  string
			name  sql.NullString
			price decimal.NullDecimal
		)
		if err := rows.Scan(&code, &name, &price); err != nil {
			return nil, fmt.Errorf("failed to scan target product: %w", err)
		}

		d := model.ProductDescriptor{
			Identifier:  strings.TrimSpace(code),
			DisplayName: strings.TrimSpace(name.String),
		}
		if price.Valid {
			p := price.Decimal
			d.Price = &p
		}
		if err := d.Validate(); err != nil {
			skipped++
			slog.Debug("Skipping target product", "code", code, "error", err)
			continue
		}
		descriptors = append(descriptors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate target catalog: %w", err)
	}

	if skipped > 0 {
		slog.Warn("Skipped invalid target products", "count", skipped)
	}

	return descriptors, nil
}

// CountProducts returns the number of rows in the products table.
func (s *Storage) CountProducts(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.catalog.ProductsTable)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}
