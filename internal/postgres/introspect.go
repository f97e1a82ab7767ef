package postgres

import (
	"context"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/pgmerge/internal/schema"
)

// Key column lists are aggregated in constraint order via unnest WITH ORDINALITY.
const uniqueKeysSQL = `
SELECT c.conname,
       c.contype = 'p' AS is_primary,
       array_agg(a.attname::text ORDER BY k.ord) AS columns
FROM pg_catalog.pg_constraint c
JOIN pg_catalog.pg_class t ON t.oid = c.conrelid
JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
CROSS JOIN LATERAL unnest(c.conkey) WITH ORDINALITY AS k(attnum, ord)
JOIN pg_catalog.pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = k.attnum
WHERE n.nspname = $1 AND t.relname = $2 AND c.contype IN ('p', 'u')
GROUP BY c.conname, c.contype
ORDER BY c.contype, c.conname`

// References into another schema come back qualified so they fall outside
// any table selection.
const foreignKeysSQL = `
SELECT c.conname,
       CASE WHEN fn.nspname = n.nspname THEN ft.relname::text
            ELSE fn.nspname || '.' || ft.relname END AS to_table,
       array_agg(a.attname::text ORDER BY k.ord) AS from_columns,
       array_agg(fa.attname::text ORDER BY k.ord) AS to_columns
FROM pg_catalog.pg_constraint c
JOIN pg_catalog.pg_class t ON t.oid = c.conrelid
JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
JOIN pg_catalog.pg_class ft ON ft.oid = c.confrelid
JOIN pg_catalog.pg_namespace fn ON fn.oid = ft.relnamespace
CROSS JOIN LATERAL unnest(c.conkey, c.confkey) WITH ORDINALITY AS k(attnum, fattnum, ord)
JOIN pg_catalog.pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = k.attnum
JOIN pg_catalog.pg_attribute fa ON fa.attrelid = c.confrelid AND fa.attnum = k.fattnum
WHERE n.nspname = $1 AND t.relname = $2 AND c.contype = 'f'
GROUP BY c.conname, fn.nspname, n.nspname, ft.relname
ORDER BY c.conname`

type introspector struct {
	pool   *pgxpool.Pool
	schema string
}

func (in *introspector) ListTables(ctx context.Context) ([]string, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("table_name").
		From("information_schema.tables").
		Where(
			sb.Equal("table_schema", in.schema),
			sb.Equal("table_type", "BASE TABLE"),
		).
		OrderBy("table_name")

	sql, args := sb.Build()
	rows, err := in.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (in *introspector) ListColumns(ctx context.Context, table string) ([]schema.Column, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("column_name").
		From("information_schema.columns").
		Where(
			sb.Equal("table_schema", in.schema),
			sb.Equal("table_name", table),
		).
		OrderBy("ordinal_position")

	sql, args := sb.Build()
	rows, err := in.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}

	columns := make([]schema.Column, len(names))
	for i, name := range names {
		columns[i] = schema.Column{Table: table, Name: name}
	}
	return columns, nil
}

func (in *introspector) ListUniqueKeys(ctx context.Context, table string) ([]schema.UniqueKey, error) {
	rows, err := in.pool.Query(ctx, uniqueKeysSQL, in.schema, table)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (schema.UniqueKey, error) {
		var k schema.UniqueKey
		err := row.Scan(&k.Name, &k.Primary, &k.Columns)
		return k, err
	})
}

func (in *introspector) ListForeignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error) {
	rows, err := in.pool.Query(ctx, foreignKeysSQL, in.schema, table)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (schema.ForeignKey, error) {
		fk := schema.ForeignKey{FromTable: table}
		err := row.Scan(&fk.Name, &fk.ToTable, &fk.FromColumns, &fk.ToColumns)
		return fk, err
	})
}
