// Package store defines the unit-of-work and bulk transfer contracts the
// merge engine runs against. Drivers live in internal/postgres and
// internal/sqlite.
package store

import (
	"context"
	"io"

	"github.com/JonMunkholm/pgmerge/internal/schema"
)

// CopyOptions describes the CSV stream exchanged by CopyIn and CopyOut.
type CopyOptions struct {
	Header bool   // first record lists column names
	Null   string // unquoted field value representing NULL
}

// TxOptions configures a unit of work.
type TxOptions struct {
	// ReadOnly requests a consistent read-only snapshot.
	ReadOnly bool
}

// Database is an open connection to one target database.
type Database interface {
	// Introspector returns schema introspection bound to the named schema.
	Introspector(schemaName string) schema.Introspector

	// Begin starts a unit of work. Callers must Commit or Rollback it.
	Begin(ctx context.Context, opts TxOptions) (Tx, error)

	// Dialect names the driver, e.g. "postgres" or "sqlite".
	Dialect() string

	Close() error
}

// Tx is a single unit of work. Identifiers passed to it must already be
// validated against the schema model; values are always bound parameters.
type Tx interface {
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)

	// CopyIn streams CSV from r into table and returns the rows loaded.
	// table is an already-quoted name.
	CopyIn(ctx context.Context, table string, columns []string, r io.Reader, opts CopyOptions) (int64, error)

	// CopyOut streams table's columns as CSV to w and returns the rows written.
	// table is an already-quoted, possibly schema-qualified name.
	CopyOut(ctx context.Context, table string, columns []string, w io.Writer, opts CopyOptions) (int64, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
