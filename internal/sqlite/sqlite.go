// Package sqlite implements the store contracts on SQLite through
// go-sqlite3 and sqlx. The schema is always "main".
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/JonMunkholm/pgmerge/internal/schema"
	"github.com/JonMunkholm/pgmerge/internal/store"
)

// SchemaName is the only schema a SQLite connection exposes to pgmerge.
const SchemaName = "main"

// maxVariables is SQLite's default bound parameter limit per statement.
const maxVariables = 32766

// DB is a SQLite database file. It holds a single connection so temp
// staging tables stay visible for the life of a unit of work.
type DB struct {
	db        *sqlx.DB
	batchSize int
}

var _ store.Database = (*DB)(nil)

// Open opens (or creates) the database file at path with foreign key
// enforcement on. batchSize bounds rows per INSERT during CopyIn.
func Open(ctx context.Context, path string, batchSize int) (*DB, error) {
	db, err := sqlx.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	if batchSize <= 0 {
		batchSize = 500
	}
	return &DB{db: db, batchSize: batchSize}, nil
}

// dsn builds a go-sqlite3 connection string from a path or file: URI.
func dsn(path string) string {
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// SQLX exposes the underlying handle, mainly for test fixtures.
func (d *DB) SQLX() *sqlx.DB { return d.db }

// Introspector ignores schemaName; SQLite tables live in "main".
func (d *DB) Introspector(schemaName string) schema.Introspector {
	return &introspector{db: d.db}
}

func (d *DB) Begin(ctx context.Context, opts store.TxOptions) (store.Tx, error) {
	tx, err := d.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx, batchSize: d.batchSize}, nil
}

func (d *DB) Dialect() string { return "sqlite" }

func (d *DB) Close() error { return d.db.Close() }

// Tx wraps a sqlx transaction.
type Tx struct {
	tx        *sqlx.Tx
	batchSize int
}

var _ store.Tx = (*Tx)(nil)

func (t *Tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *Tx) Commit(ctx context.Context) error { return t.tx.Commit() }

// Rollback is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
