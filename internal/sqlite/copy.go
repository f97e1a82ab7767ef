package sqlite

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huandu/go-sqlbuilder"

	"github.com/JonMunkholm/pgmerge/internal/schema"
	"github.com/JonMunkholm/pgmerge/internal/store"
)

// CopyIn parses CSV from r and inserts it into table with multi-row INSERTs.
// A field equal to opts.Null is stored as NULL; encoding/csv does not report
// quoting, so with an empty marker "" and a missing value are the same.
func (t *Tx) CopyIn(ctx context.Context, table string, columns []string, r io.Reader, opts store.CopyOptions) (int64, error) {
	if len(columns) == 0 {
		return 0, errors.New("copy in: no columns")
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(columns)

	if opts.Header {
		if _, err := cr.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return 0, nil
			}
			return 0, fmt.Errorf("read header: %w", err)
		}
	}

	batchSize := t.batchSize
	if limit := maxVariables / len(columns); batchSize > limit {
		batchSize = limit
	}

	quoted := schema.QuoteIdents(columns)
	var (
		total int64
		batch [][]any
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		ib := sqlbuilder.SQLite.NewInsertBuilder()
		ib.InsertInto(table).Cols(quoted...)
		for _, row := range batch {
			ib.Values(row...)
		}
		query, args := ib.Build()
		if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
		total += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, fmt.Errorf("copy into %s: %w", table, err)
		}

		row := make([]any, len(record))
		for i, field := range record {
			if field == opts.Null {
				row[i] = nil
				continue
			}
			row[i] = field
		}
		batch = append(batch, row)

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, fmt.Errorf("copy into %s: %w", table, err)
			}
		}
	}

	if err := flush(); err != nil {
		return total, fmt.Errorf("copy into %s: %w", table, err)
	}
	return total, nil
}

// CopyOut selects columns from table and writes them as CSV.
func (t *Tx) CopyOut(ctx context.Context, table string, columns []string, w io.Writer, opts store.CopyOptions) (int64, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(schema.QuoteIdents(columns)...).From(table)
	query, args := sb.Build()

	rows, err := t.tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("copy from %s: %w", table, err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if opts.Header {
		if err := cw.Write(columns); err != nil {
			return 0, err
		}
	}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	record := make([]string, len(columns))

	var n int64
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return n, fmt.Errorf("copy from %s: %w", table, err)
		}
		for i, v := range values {
			record[i] = formatValue(v, opts.Null)
		}
		if err := cw.Write(record); err != nil {
			return n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("copy from %s: %w", table, err)
	}

	cw.Flush()
	return n, cw.Error()
}

func formatValue(v any, null string) string {
	switch val := v.(type) {
	case nil:
		return null
	case []byte:
		return string(val)
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(val)
	}
}
