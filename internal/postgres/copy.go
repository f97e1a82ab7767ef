package postgres

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/pgmerge/internal/schema"
	"github.com/JonMunkholm/pgmerge/internal/store"
)

// CopyIn streams CSV into table over the COPY protocol.
func (t *Tx) CopyIn(ctx context.Context, table string, columns []string, r io.Reader, opts store.CopyOptions) (int64, error) {
	sql := copyStatement(table, columns, "FROM STDIN", opts)
	tag, err := t.tx.Conn().PgConn().CopyFrom(ctx, r, sql)
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// CopyOut streams table as CSV over the COPY protocol.
func (t *Tx) CopyOut(ctx context.Context, table string, columns []string, w io.Writer, opts store.CopyOptions) (int64, error) {
	sql := copyStatement(table, columns, "TO STDOUT", opts)
	tag, err := t.tx.Conn().PgConn().CopyTo(ctx, w, sql)
	if err != nil {
		return 0, fmt.Errorf("copy from %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// copyStatement builds
//
//	COPY table ("a", "b") FROM STDIN WITH (FORMAT csv, HEADER true, NULL '', ENCODING 'UTF8')
func copyStatement(table string, columns []string, direction string, opts store.CopyOptions) string {
	return fmt.Sprintf("COPY %s (%s) %s WITH (FORMAT csv, HEADER %t, NULL %s, ENCODING 'UTF8')",
		table,
		strings.Join(schema.QuoteIdents(columns), ", "),
		direction,
		opts.Header,
		schema.QuoteLiteral(opts.Null),
	)
}
