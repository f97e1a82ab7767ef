package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/pgmerge/internal/config"
	"github.com/JonMunkholm/pgmerge/internal/graph"
	"github.com/JonMunkholm/pgmerge/internal/logging"
	"github.com/JonMunkholm/pgmerge/internal/schema"
	"github.com/JonMunkholm/pgmerge/internal/store"
)

// DefaultTableTimeout is the maximum duration of one table's unit of work.
var DefaultTableTimeout = 10 * time.Minute

// Options configures a Service.
type Options struct {
	Schema       string        // schema qualifying every table
	Null         string        // CSV NULL marker
	TableTimeout time.Duration // per-table timeout, DefaultTableTimeout if zero
	Tables       config.Tables // per-table column subsets and alternate keys
}

// Service runs exports and merges against one database.
type Service struct {
	db           store.Database
	engine       *Engine
	schemaName   string
	null         string
	tableTimeout time.Duration
	tables       config.Tables
}

// NewService creates a new Service instance.
func NewService(db store.Database, opts Options) *Service {
	timeout := opts.TableTimeout
	if timeout <= 0 {
		timeout = DefaultTableTimeout
	}
	tables := opts.Tables
	if tables == nil {
		tables = config.Tables{}
	}
	return &Service{
		db:           db,
		engine:       NewEngine(opts.Null),
		schemaName:   opts.Schema,
		null:         opts.Null,
		tableTimeout: timeout,
		tables:       tables,
	}
}

// columnsFor returns the configured column subset or every column.
func (s *Service) columnsFor(t *schema.Table) []string {
	if cols := s.tables.Columns(t.Name); len(cols) > 0 {
		return cols
	}
	return t.ColumnNames()
}

// SnapshotPath returns the file a table is exported to and merged from.
func SnapshotPath(dir, table string) string {
	return filepath.Join(dir, table+".csv")
}

// Upsert merges <dir>/<table>.csv into every table of the plan, in insertion
// order. Per-table problems are recorded in the report and never stop the
// run; the returned error is non-nil only when the run itself was cut short
// (cancellation) or the shared transaction could not be committed.
func (s *Service) Upsert(ctx context.Context, dir string, plan *graph.Plan, opts UpsertOptions) (*Report, error) {
	logger := logging.FromContext(ctx)
	logger.Info("merge started",
		"tables", len(plan.InsertionOrder),
		"single_transaction", opts.SingleTransaction,
	)

	var (
		report *Report
		err    error
	)
	if opts.SingleTransaction {
		report, err = s.upsertSingle(ctx, dir, plan)
	} else {
		report, err = s.upsertEach(ctx, dir, plan)
	}
	if err != nil {
		return report, err
	}

	logger.Info("merge finished",
		"merged", report.Count(StatusMerged),
		"skipped", report.Count(StatusSkipped),
		"failed", report.Count(StatusFailed),
		"inserted", report.Total.Inserted,
		"updated", report.Total.Updated,
	)
	return report, nil
}

// upsertEach gives every table its own transaction.
func (s *Service) upsertEach(ctx context.Context, dir string, plan *graph.Plan) (*Report, error) {
	report := &Report{}
	for _, name := range plan.InsertionOrder {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		table, _ := plan.Schema.Table(name)
		report.add(s.upsertTable(ctx, dir, table, func(ctx context.Context, merge mergeFunc) (MergeOutcome, error) {
			tx, err := s.db.Begin(ctx, store.TxOptions{})
			if err != nil {
				return MergeOutcome{}, err
			}
			defer tx.Rollback(ctx)

			outcome, err := merge(ctx, tx)
			if err != nil {
				return outcome, err
			}
			if err := tx.Commit(ctx); err != nil {
				return outcome, tableError(name, ErrTransfer, fmt.Errorf("commit: %w", err))
			}
			return outcome, nil
		}))
	}
	return report, nil
}

// upsertSingle runs every table in one transaction, isolating tables with
// savepoints.
func (s *Service) upsertSingle(ctx context.Context, dir string, plan *graph.Plan) (*Report, error) {
	report := &Report{}

	tx, err := s.db.Begin(ctx, store.TxOptions{})
	if err != nil {
		return report, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, name := range plan.InsertionOrder {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		table, _ := plan.Schema.Table(name)
		savepoint := fmt.Sprintf("sp_%d", i)

		report.add(s.upsertTable(ctx, dir, table, func(ctx context.Context, merge mergeFunc) (MergeOutcome, error) {
			if _, err := tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
				return MergeOutcome{}, fmt.Errorf("create savepoint: %w", err)
			}

			outcome, err := merge(ctx, tx)
			if err != nil {
				// Rollback savepoint
				_, _ = tx.Exec(context.WithoutCancel(ctx), "ROLLBACK TO SAVEPOINT "+savepoint)
				return outcome, err
			}

			if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
				_, _ = tx.Exec(context.WithoutCancel(ctx), "ROLLBACK TO SAVEPOINT "+savepoint)
				return outcome, tableError(name, ErrTransfer, fmt.Errorf("release savepoint: %w", err))
			}
			return outcome, nil
		}))
	}

	if err := tx.Commit(ctx); err != nil {
		for i := range report.Tables {
			if report.Tables[i].Status == StatusMerged {
				report.Tables[i].Status = StatusFailed
				report.Tables[i].Err = tableError(report.Tables[i].Table, ErrTransfer, fmt.Errorf("commit: %w", err))
			}
		}
		report.Total = MergeOutcome{}
		return report, fmt.Errorf("commit: %w", err)
	}
	return report, nil
}

// mergeFunc merges one table inside tx.
type mergeFunc func(ctx context.Context, tx store.Tx) (MergeOutcome, error)

// unitFunc opens a unit of work, runs merge in it and closes it.
type unitFunc func(ctx context.Context, merge mergeFunc) (MergeOutcome, error)

// upsertTable checks that a table can be merged at all, then runs the merge
// inside the unit of work provided by run under the per-table timeout.
func (s *Service) upsertTable(ctx context.Context, dir string, table *schema.Table, run unitFunc) TableResult {
	start := time.Now()
	result := TableResult{Table: table.Name}
	logger := logging.WithFields(ctx, "table", table.Name)

	finish := func(outcome MergeOutcome, err error) TableResult {
		result.Duration = time.Since(start)
		result.Outcome = outcome
		result.Err = err
		switch {
		case err == nil:
			result.Status = StatusMerged
			logger.Info("table merged",
				"skipped", outcome.Skipped,
				"inserted", outcome.Inserted,
				"updated", outcome.Updated,
				"duration", result.Duration,
			)
		case skippable(err):
			result.Status = StatusSkipped
			result.Outcome = MergeOutcome{}
			logger.Warn("table skipped", "reason", err)
		default:
			result.Status = StatusFailed
			result.Outcome = MergeOutcome{}
			logger.Error("table failed", "error", err)
		}
		return result
	}

	key := IdentityKey(table, s.tables.AlternateKey(table.Name))
	if len(key) == 0 {
		return finish(MergeOutcome{}, tableError(table.Name, ErrMissingIdentityKey, nil))
	}

	path := SnapshotPath(dir, table.Name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return finish(MergeOutcome{}, tableError(table.Name, ErrMissingSnapshot, err))
		}
		return finish(MergeOutcome{}, tableError(table.Name, ErrTransfer, err))
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	src := NewSnapshotReader(f, size)

	tctx, cancel := context.WithTimeout(ctx, s.tableTimeout)
	defer cancel()

	outcome, err := run(tctx, func(ctx context.Context, tx store.Tx) (MergeOutcome, error) {
		return s.engine.Merge(ctx, tx, MergeRequest{
			Schema:  s.schemaName,
			Table:   table,
			Columns: s.columnsFor(table),
			Key:     key,
			Source:  src,
		})
	})
	if err != nil {
		var te *TableError
		if !errors.As(err, &te) {
			err = tableError(table.Name, ErrTransfer, err)
		}
	}
	logger.Debug("snapshot read", "bytes", src.BytesRead, "progress", src.Progress())
	return finish(outcome, err)
}
