package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(ctx context.Context, tx *sql.Tx, s *Storage) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Product code mapping table",
		Up: func(ctx context.Context, tx *sql.Tx, s *Storage) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS product_mappings (
					` + s.autoIncrementPK() + `,
					source_code VARCHAR(50) NOT NULL,
					target_code VARCHAR(64) NOT NULL,
					score NUMERIC(3,2) NOT NULL,
					method VARCHAR(20) NOT NULL,
					source_name TEXT,
					target_name TEXT,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					CONSTRAINT unique_source_code UNIQUE (source_code)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_product_mappings_target_code ON product_mappings(target_code)`,
			}

			for _, query := range queries {
				if _, err := tx.ExecContext(ctx, query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Mapping run history",
		Up: func(ctx context.Context, tx *sql.Tx, _ *Storage) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS mapping_runs (
					id VARCHAR(36) PRIMARY KEY,
					strategy VARCHAR(10) NOT NULL,
					started_at TIMESTAMP NOT NULL,
					finished_at TIMESTAMP NOT NULL,
					source_total INTEGER NOT NULL DEFAULT 0,
					target_total INTEGER NOT NULL DEFAULT 0,
					candidates INTEGER NOT NULL DEFAULT 0,
					persisted INTEGER NOT NULL DEFAULT 0,
					coverage NUMERIC(5,2) NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX IF NOT EXISTS idx_mapping_runs_started_at ON mapping_runs(started_at)`,
			}

			for _, query := range queries {
				if _, err := tx.ExecContext(ctx, query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// SchemaVersion returns the highest applied migration version.
func (s *Storage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := s.ensureMigrationsTable(ctx); err != nil {
		return 0, err
	}

	var version int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

func (s *Storage) ensureMigrationsTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}
	return nil
}

// Migrate applies all pending database migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(ctx, tx, s); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.ExecContext(ctx,
			s.rebind(`INSERT INTO schema_migrations (version, description) VALUES (?, ?)`),
			migration.Version, migration.Description,
		); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
