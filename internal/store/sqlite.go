package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/vitrine-io/vitrine/pkg/protocol"
)

// SQLiteStore implements Store using SQLite. The two-level catalog maps to
// one row per (scope, product); the position column keeps menu order.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	// Enable WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: wal: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			scope    TEXT    NOT NULL,
			name     TEXT    NOT NULL,
			price    TEXT    NOT NULL,
			stock    INTEGER NOT NULL DEFAULT 0,
			coupon   TEXT    NOT NULL DEFAULT '',
			position INTEGER NOT NULL,
			PRIMARY KEY (scope, name)
		);

		CREATE INDEX IF NOT EXISTS idx_products_scope ON products(scope);
	`)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Load reads the full catalog, products ordered by their menu position.
func (s *SQLiteStore) Load() (protocol.Catalog, error) {
	rows, err := s.db.Query(`SELECT scope, name, price, stock, coupon FROM products ORDER BY scope, position`)
	if err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}
	defer rows.Close()

	cat := protocol.Catalog{}
	for rows.Next() {
		var scope string
		var p protocol.Product
		if err := rows.Scan(&scope, &p.Name, &p.Price, &p.Stock, &p.Coupon); err != nil {
			return nil, fmt.Errorf("store: load scan: %w", err)
		}
		cat.Ensure(scope).Put(p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}
	return cat, nil
}

// Save replaces the stored catalog in a single transaction.
func (s *SQLiteStore) Save(cat protocol.Catalog) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: save begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM products`); err != nil {
		return fmt.Errorf("store: save clear: %w", err)
	}
	for scope, sc := range cat {
		for i, p := range sc.Products() {
			_, err := tx.Exec(`INSERT INTO products (scope, name, price, stock, coupon, position) VALUES (?, ?, ?, ?, ?, ?)`,
				scope, p.Name, p.Price, p.Stock, p.Coupon, i)
			if err != nil {
				return fmt.Errorf("store: save insert: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: save commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection (for testing or direct access).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}
