// Package postgres implements the store contracts on PostgreSQL with pgx.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/pgmerge/internal/schema"
	"github.com/JonMunkholm/pgmerge/internal/store"
)

// Options configures the connection pool.
type Options struct {
	MaxConns       int
	ConnectTimeout time.Duration
}

// DB is a PostgreSQL database reached through a pgx pool.
type DB struct {
	pool *pgxpool.Pool
}

var _ store.Database = (*DB)(nil)

// Open parses the connection URL, creates the pool and verifies connectivity.
func Open(ctx context.Context, databaseURL string, opts Options) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = opts.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Log which database we connected to
	if u, err := url.Parse(databaseURL); err == nil {
		slog.Debug("connected to database", "driver", "postgres", "name", strings.TrimPrefix(u.Path, "/"))
	}

	return &DB{pool: pool}, nil
}

// Introspector returns catalog introspection for the named schema.
func (d *DB) Introspector(schemaName string) schema.Introspector {
	return &introspector{pool: d.pool, schema: schemaName}
}

// Begin starts a transaction. Read-only units of work run at REPEATABLE READ
// so every table in an export sees the same snapshot.
func (d *DB) Begin(ctx context.Context, opts store.TxOptions) (store.Tx, error) {
	txOpts := pgx.TxOptions{}
	if opts.ReadOnly {
		txOpts.IsoLevel = pgx.RepeatableRead
		txOpts.AccessMode = pgx.ReadOnly
	}

	tx, err := d.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Dialect implements store.Database.
func (d *DB) Dialect() string { return "postgres" }

// Close releases every pooled connection.
func (d *DB) Close() error {
	d.pool.Close()
	return nil
}

// Tx wraps a pgx transaction.
type Tx struct {
	tx pgx.Tx
}

var _ store.Tx = (*Tx)(nil)

func (t *Tx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *Tx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
