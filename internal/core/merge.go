package core

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/JonMunkholm/pgmerge/internal/logging"
	"github.com/JonMunkholm/pgmerge/internal/schema"
	"github.com/JonMunkholm/pgmerge/internal/store"
)

// Engine reconciles CSV snapshots into live tables.
type Engine struct {
	// Null is the CSV representation of NULL.
	Null string
}

// NewEngine creates an Engine using null as the CSV NULL marker.
func NewEngine(null string) *Engine {
	return &Engine{Null: null}
}

// Merge stages req.Source in a temporary table inside tx and applies the
// skip/update/insert classification against req.Table. The caller owns tx:
// on error it must be rolled back, which also discards the staging table.
func (e *Engine) Merge(ctx context.Context, tx store.Tx, req MergeRequest) (MergeOutcome, error) {
	var outcome MergeOutcome
	table := req.Table

	if len(req.Key) == 0 {
		return outcome, tableError(table.Name, ErrMissingIdentityKey, nil)
	}

	columns := req.Columns
	if len(columns) == 0 {
		columns = table.ColumnNames()
	}
	if err := table.ResolveColumns(columns); err != nil {
		return outcome, tableError(table.Name, ErrShapeMismatch, err)
	}
	if err := table.ResolveColumns(req.Key); err != nil {
		return outcome, tableError(table.Name, ErrShapeMismatch, err)
	}
	for _, k := range req.Key {
		if !contains(columns, k) {
			return outcome, tableError(table.Name, ErrShapeMismatch,
				fmt.Errorf("identity key column %q is not in the column list", k))
		}
	}

	src := bufio.NewReader(req.Source)
	headerLine, header, err := readHeader(src)
	if err != nil {
		return outcome, tableError(table.Name, ErrShapeMismatch, err)
	}
	copyColumns, err := matchHeader(header, columns)
	if err != nil {
		return outcome, tableError(table.Name, ErrShapeMismatch, err)
	}

	stage := stageName()
	st := newStatements(req.Schema, table.Name, stage, columns, req.Key)
	logger := logging.WithFields(ctx, "table", table.Name, "stage", stage)

	if err := e.exec(ctx, tx, logger.Debug, st.createStage(), nil); err != nil {
		return outcome, tableError(table.Name, ErrTransfer, fmt.Errorf("create staging table: %w", err))
	}

	body := io.MultiReader(bytes.NewReader(headerLine), src)
	outcome.Staged, err = tx.CopyIn(ctx, st.stage, copyColumns, body, store.CopyOptions{Header: true, Null: e.Null})
	if err != nil {
		return outcome, tableError(table.Name, ErrTransfer, err)
	}

	if err := e.exec(ctx, tx, logger.Debug, st.deleteIdentical(), &outcome.Skipped); err != nil {
		return outcome, tableError(table.Name, ErrTransfer, fmt.Errorf("classify unchanged rows: %w", err))
	}
	if sql := st.updateChanged(); sql != "" {
		if err := e.exec(ctx, tx, logger.Debug, sql, &outcome.Updated); err != nil {
			return outcome, tableError(table.Name, ErrTransfer, fmt.Errorf("update changed rows: %w", err))
		}
	}
	if err := e.exec(ctx, tx, logger.Debug, st.insertNew(), &outcome.Inserted); err != nil {
		return outcome, tableError(table.Name, ErrTransfer, fmt.Errorf("insert new rows: %w", err))
	}
	if err := e.exec(ctx, tx, logger.Debug, st.dropStage(), nil); err != nil {
		return outcome, tableError(table.Name, ErrTransfer, fmt.Errorf("drop staging table: %w", err))
	}

	return outcome, nil
}

func (e *Engine) exec(ctx context.Context, tx store.Tx, debug func(string, ...any), sql string, affected *int64) error {
	debug("executing statement", "sql", sql)
	n, err := tx.Exec(ctx, sql)
	if err != nil {
		return err
	}
	if affected != nil {
		*affected = n
	}
	return nil
}

// stageName returns a unique temporary table name.
func stageName() string {
	return "_stage_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// readHeader reads the first line of a snapshot and parses it as a CSV
// record. The raw line is returned so it can be replayed to CopyIn.
func readHeader(r *bufio.Reader) ([]byte, []string, error) {
	line, err := r.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	if len(bytes.TrimSpace(line)) == 0 {
		return nil, nil, errors.New("empty file: no header row")
	}

	record, err := csv.NewReader(bytes.NewReader(line)).Read()
	if err != nil {
		return nil, nil, fmt.Errorf("parse header: %w", err)
	}
	return line, record, nil
}

// matchHeader checks that the header names exactly the expected columns, in
// any order, and returns them in header order using the schema's spelling.
// Names are compared after NFC normalization.
func matchHeader(header, expected []string) ([]string, error) {
	byName := make(map[string]string, len(expected))
	for _, c := range expected {
		byName[norm.NFC.String(c)] = c
	}

	seen := make(map[string]bool, len(header))
	matched := make([]string, 0, len(header))
	var unknown []string
	for _, h := range header {
		col, ok := byName[norm.NFC.String(h)]
		if !ok {
			unknown = append(unknown, h)
			continue
		}
		if seen[col] {
			return nil, fmt.Errorf("column %q appears twice in header", h)
		}
		seen[col] = true
		matched = append(matched, col)
	}

	var missing []string
	for _, c := range expected {
		if !seen[c] {
			missing = append(missing, c)
		}
	}

	if len(unknown) > 0 || len(missing) > 0 {
		var parts []string
		if len(missing) > 0 {
			parts = append(parts, "missing "+strings.Join(missing, ", "))
		}
		if len(unknown) > 0 {
			parts = append(parts, "unexpected "+strings.Join(unknown, ", "))
		}
		return nil, fmt.Errorf("header does not match columns (%s)", strings.Join(parts, "; "))
	}
	return matched, nil
}

// IdentityKey returns the configured alternate key when set, else the
// table's primary key or first unique constraint.
func IdentityKey(table *schema.Table, alternate []string) []string {
	if len(alternate) > 0 {
		return alternate
	}
	return table.IdentityKey()
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}
