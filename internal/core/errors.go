package core

import (
	"errors"
	"fmt"
)

// Per-table error kinds. A failed table's error matches exactly one of them
// with errors.Is.
var (
	// ErrMissingIdentityKey: the table has no primary key, unique constraint
	// or configured alternate key. The table is skipped.
	ErrMissingIdentityKey = errors.New("no primary key or unique constraint")

	// ErrMissingSnapshot: the input directory has no <table>.csv. The table is skipped.
	ErrMissingSnapshot = errors.New("snapshot file not found")

	// ErrShapeMismatch: the snapshot header does not match the expected
	// columns. The table is skipped.
	ErrShapeMismatch = errors.New("column mismatch")

	// ErrTransfer: copying or applying the snapshot failed; the table's unit
	// of work was rolled back.
	ErrTransfer = errors.New("transfer failed")
)

// TableError reports a failure scoped to one table.
type TableError struct {
	Table string
	Kind  error // one of the Err* kinds above
	Err   error // underlying cause, may be nil
}

func (e *TableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Table, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Table, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *TableError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func tableError(table string, kind error, err error) *TableError {
	return &TableError{Table: table, Kind: kind, Err: err}
}

// skippable reports whether err marks a table as skipped rather than failed.
func skippable(err error) bool {
	return errors.Is(err, ErrMissingIdentityKey) ||
		errors.Is(err, ErrMissingSnapshot) ||
		errors.Is(err, ErrShapeMismatch)
}
