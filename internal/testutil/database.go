// Package testutil provides fixtures for tests that need a shop catalog
// database.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Product is one row of the fixture products table.
type Product struct {
	Code  string
	Name  string
	Price float64
}

// CatalogDB is a temporary sqlite database holding an OpenCart-style
// oc_product table with model, name and price columns.
type CatalogDB struct {
	t    *testing.T
	Path string
}

// SetupCatalogDB creates the catalog database in a temp dir and seeds it.
func SetupCatalogDB(t *testing.T, products ...Product) *CatalogDB {
	t.Helper()

	c := &CatalogDB{t: t, Path: filepath.Join(t.TempDir(), "shop.db")}
	c.exec(`CREATE TABLE oc_product (
		product_id INTEGER PRIMARY KEY AUTOINCREMENT,
		model TEXT,
		name TEXT,
		price NUMERIC(15,4) DEFAULT 0
	)`)
	for _, p := range products {
		c.exec(`INSERT INTO oc_product (model, name, price) VALUES (?, ?, ?)`, p.Code, p.Name, p.Price)
	}

	return c
}

// Price returns the stored price of the product with code.
func (c *CatalogDB) Price(code string) float64 {
	c.t.Helper()

	db := c.open()
	defer func() { _ = db.Close() }()

	var price float64
	if err := db.QueryRow(`SELECT price FROM oc_product WHERE model = ?`, code).Scan(&price); err != nil {
		c.t.Fatalf("failed to read price of %q: %v", code, err)
	}
	return price
}

func (c *CatalogDB) exec(query string, args ...any) {
	c.t.Helper()

	db := c.open()
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(query, args...); err != nil {
		c.t.Fatalf("failed to prepare catalog: %v", err)
	}
}

func (c *CatalogDB) open() *sql.DB {
	c.t.Helper()

	db, err := sql.Open("sqlite3", c.Path)
	if err != nil {
		c.t.Fatalf("failed to open catalog database: %v", err)
	}
	return db
}
