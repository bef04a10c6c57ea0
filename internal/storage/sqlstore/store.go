// Package sqlstore implements storage.Storage on database/sql for SQLite
// (mattn/go-sqlite3) and PostgreSQL (pgx stdlib). Queries are written with
// '?' placeholders and rebound for PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	apperrors "storefront/internal/common/errors"
	"storefront/internal/storage"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

var _ storage.Storage = (*Store)(nil)

type Store struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLite opens (and migrates) the database at path. ":memory:" is
// limited to one connection so every query sees the same database.
func OpenSQLite(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, apperrors.ConnectionError("failed to open SQLite database", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return open(db, SQLite)
}

// OpenPostgres connects through pgx's database/sql driver.
func OpenPostgres(dsn string) (*Store, error) {
	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, apperrors.ConfigError(fmt.Sprintf("invalid PostgreSQL connection string: %v", err))
	}
	return open(stdlib.OpenDB(*connConfig), Postgres)
}

func open(db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.ConnectionError(fmt.Sprintf("failed to ping %s database", dialect), err)
	}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, apperrors.InternalError("failed to migrate database", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) migrate(ctx context.Context) error {
	floatType, boolean, timestamp := "REAL", "BOOLEAN", "DATETIME"
	if s.dialect == Postgres {
		floatType, timestamp = "DOUBLE PRECISION", "TIMESTAMPTZ"
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at ` + timestamp + ` NOT NULL,
			updated_at ` + timestamp + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			brand TEXT NOT NULL,
			category_id TEXT NOT NULL,
			price ` + floatType + ` NOT NULL DEFAULT 0,
			original_price ` + floatType + `,
			count_in_stock INTEGER NOT NULL DEFAULT 0,
			image_url TEXT NOT NULL,
			rating ` + floatType + ` NOT NULL DEFAULT 0,
			num_reviews INTEGER NOT NULL DEFAULT 0,
			is_new ` + boolean + ` NOT NULL DEFAULT FALSE,
			is_best_seller ` + boolean + ` NOT NULL DEFAULT FALSE,
			type TEXT NOT NULL DEFAULT '',
			size TEXT NOT NULL DEFAULT '',
			created_at ` + timestamp + ` NOT NULL,
			updated_at ` + timestamp + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_category_brand ON products(category_id, brand)`,
		`CREATE INDEX IF NOT EXISTS idx_products_rating ON products(rating, num_reviews)`,
		`CREATE TABLE IF NOT EXISTS reviews (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL,
			name TEXT NOT NULL,
			rating INTEGER NOT NULL,
			comment TEXT NOT NULL,
			created_at ` + timestamp + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_product ON reviews(product_id)`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites '?' placeholders as $1..$n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
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

func (s *Store) exec(ctx context.Context, q execer, query string, args ...interface{}) (sql.Result, error) {
	return q.ExecContext(ctx, s.rebind(query), args...)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}
