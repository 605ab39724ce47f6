package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"oficri-sdt/config"
	"oficri-sdt/core/utils"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB wraps *sql.DB so stores can be written once with `?` placeholders;
// queries are rebound to $n positional form when the postgres driver is
// active.
type DB struct {
	sql    *sql.DB
	driver string
}

func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*DB, error) {
	driver := cfg.DBDriver
	if driver == "" {
		driver = DriverPostgres
	}
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverPostgres:
		db, err = sql.Open("pgx", cfg.DBURL)
	case DriverSQLite:
		db, err = sql.Open("sqlite", cfg.DBURL)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if logger != nil {
		logger.Printf("database connected driver=%s", driver)
	}
	return &DB{sql: db, driver: driver}, nil
}

// NewSQLiteDB opens an on-disk sqlite database, used by the test suites.
func NewSQLiteDB(path string, logger *utils.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single writer: modernc sqlite serializes writes anyway and this
	// avoids SQLITE_BUSY under parallel tests.
	db.SetMaxOpenConns(1)
	if logger != nil {
		logger.Printf("sqlite database opened path=%s", path)
	}
	return &DB{sql: db, driver: DriverSQLite}, nil
}

func (d *DB) Driver() string { return d.driver }

func (d *DB) Raw() *sql.DB { return d.sql }

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) rebind(query string) string {
	if d.driver != DriverPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.sql.ExecContext(ctx, d.rebind(query), args...)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.sql.QueryContext(ctx, d.rebind(query), args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.sql.QueryRowContext(ctx, d.rebind(query), args...)
}

func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := d.sql.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, db: d}, nil
}

// Tx mirrors the DB wrapper for transactional statements.
type Tx struct {
	tx *sql.Tx
	db *DB
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.db.rebind(query), args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.db.rebind(query), args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.db.rebind(query), args...)
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }
