package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/Veraticus/pricesync/internal/config"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// CatalogOptions describes where the target catalog keeps its products.
// NameField and PriceField are optional.
type CatalogOptions struct {
	ProductsTable string
	CodeField     string
	NameField     string
	PriceField    string
}

// Options configures a Storage.
type Options struct {
	Driver  string
	DSN     string
	Catalog CatalogOptions
}

// Storage is the relational store holding both the target product catalog
// and the persisted code mapping.
type Storage struct {
	db      *sql.DB
	driver  string
	catalog CatalogOptions
}

// Open connects to the database described by opts.
func Open(ctx context.Context, opts Options) (*Storage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(opts.DSN, "dsn"); err != nil {
		return nil, err
	}
	if err := validateCatalog(opts.Catalog); err != nil {
		return nil, err
	}

	var (
		db  *sql.DB
		err error
	)
	switch opts.Driver {
	case DriverSQLite, "":
		opts.Driver = DriverSQLite
		db, err = openSQLite(opts.DSN)
	case DriverPostgres:
		db, err = sql.Open(DriverPostgres, opts.DSN)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Debug("Connected to database", "driver", opts.Driver)

	return &Storage{
		db:      db,
		driver:  opts.Driver,
		catalog: opts.Catalog,
	}, nil
}

func openSQLite(dsn string) (*sql.DB, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		dsn = config.ExpandPath(dsn)
		if err := os.MkdirAll(filepath.Dir(dsn), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000"
		}
	}

	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, err
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping verifies the connection is alive.
func (s *Storage) Ping(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Driver returns the database driver name.
func (s *Storage) Driver() string {
	return s.driver
}

// rebind rewrites ? placeholders into the driver's native form.
func (s *Storage) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// autoIncrementPK returns the column definition of a surrogate integer key.
func (s *Storage) autoIncrementPK() string {
	if s.driver == DriverPostgres {
		return "id SERIAL PRIMARY KEY"
	}
	return "id INTEGER PRIMARY KEY AUTOINCREMENT"
}

type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
