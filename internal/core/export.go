package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/pgmerge/internal/graph"
	"github.com/JonMunkholm/pgmerge/internal/logging"
	"github.com/JonMunkholm/pgmerge/internal/schema"
	"github.com/JonMunkholm/pgmerge/internal/store"
)

// Export writes every table of the plan to <dir>/<table>.csv from one
// read-only snapshot. Files are written to a temporary name and renamed
// into place, so a failed export never leaves a truncated snapshot behind.
// The first failing table aborts the export.
func (s *Service) Export(ctx context.Context, dir string, plan *graph.Plan) (ExportResult, error) {
	var result ExportResult
	logger := logging.FromContext(ctx)
	logger.Info("export started", "tables", len(plan.Tables), "dir", dir)

	tx, err := s.db.Begin(ctx, store.TxOptions{ReadOnly: true})
	if err != nil {
		return result, err
	}
	defer tx.Rollback(ctx)

	for _, name := range plan.Tables {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		table, _ := plan.Schema.Table(name)
		path := SnapshotPath(dir, name)

		rows, err := s.exportTable(ctx, tx, table, path)
		if err != nil {
			return result, tableError(name, ErrTransfer, err)
		}
		logging.WithFields(ctx, "table", name).Info("table exported", "rows", rows, "file", path)

		result.Tables++
		result.Rows += rows
		result.Files = append(result.Files, path)
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}

func (s *Service) exportTable(ctx context.Context, tx store.Tx, table *schema.Table, path string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+table.Name+"-*.csv")
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	rows, err := tx.CopyOut(ctx, schema.QualifiedName(s.schemaName, table.Name), s.columnsFor(table), tmp,
		store.CopyOptions{Header: true, Null: s.null})
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("rename file: %w", err)
	}
	return rows, nil
}
