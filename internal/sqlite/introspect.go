package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/JonMunkholm/pgmerge/internal/schema"
)

type columnInfo struct {
	CID  int    `db:"cid"`
	Name string `db:"name"`
	PK   int    `db:"pk"`
}

type indexInfo struct {
	Name   string `db:"name"`
	Origin string `db:"origin"`
}

type foreignKeyInfo struct {
	ID    int            `db:"id"`
	Seq   int            `db:"seq"`
	Table string         `db:"table"`
	From  string         `db:"from"`
	To    sql.NullString `db:"to"`
}

type introspector struct {
	db *sqlx.DB
}

func (in *introspector) ListTables(ctx context.Context) ([]string, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("name").
		From("sqlite_master").
		Where(
			sb.Equal("type", "table"),
			sb.NotLike("name", "sqlite_%"),
		).
		OrderBy("name")

	query, args := sb.Build()
	var names []string
	if err := in.db.SelectContext(ctx, &names, query, args...); err != nil {
		return nil, err
	}
	return names, nil
}

func (in *introspector) tableInfo(ctx context.Context, table string) ([]columnInfo, error) {
	var cols []columnInfo
	err := in.db.SelectContext(ctx, &cols,
		`SELECT cid, name, pk FROM pragma_table_info(?) ORDER BY cid`, table)
	return cols, err
}

func (in *introspector) ListColumns(ctx context.Context, table string) ([]schema.Column, error) {
	info, err := in.tableInfo(ctx, table)
	if err != nil {
		return nil, err
	}
	columns := make([]schema.Column, len(info))
	for i, c := range info {
		columns[i] = schema.Column{Table: table, Name: c.Name, IsPrimaryKey: c.PK > 0}
	}
	return columns, nil
}

// primaryKey returns the primary key columns in key order.
func (in *introspector) primaryKey(ctx context.Context, table string) ([]string, error) {
	info, err := in.tableInfo(ctx, table)
	if err != nil {
		return nil, err
	}
	var pk []columnInfo
	for _, c := range info {
		if c.PK > 0 {
			pk = append(pk, c)
		}
	}
	sort.Slice(pk, func(i, j int) bool { return pk[i].PK < pk[j].PK })

	names := make([]string, len(pk))
	for i, c := range pk {
		names[i] = c.Name
	}
	return names, nil
}

func (in *introspector) ListUniqueKeys(ctx context.Context, table string) ([]schema.UniqueKey, error) {
	var keys []schema.UniqueKey

	pk, err := in.primaryKey(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(pk) > 0 {
		keys = append(keys, schema.UniqueKey{Name: table + "_pkey", Columns: pk, Primary: true})
	}

	// Partial indexes and expression indexes cannot identify a row.
	var indexes []indexInfo
	err = in.db.SelectContext(ctx, &indexes,
		`SELECT name, origin FROM pragma_index_list(?)
		 WHERE "unique" = 1 AND origin IN ('u', 'c') AND partial = 0
		 ORDER BY name`, table)
	if err != nil {
		return nil, err
	}

	for _, idx := range indexes {
		var cols []sql.NullString
		err := in.db.SelectContext(ctx, &cols,
			`SELECT name FROM pragma_index_info(?) ORDER BY seqno`, idx.Name)
		if err != nil {
			return nil, err
		}

		key := schema.UniqueKey{Name: idx.Name}
		for _, c := range cols {
			if !c.Valid {
				key.Columns = nil
				break
			}
			key.Columns = append(key.Columns, c.String)
		}
		if len(key.Columns) > 0 {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// ListForeignKeys groups pragma_foreign_key_list rows by constraint id.
// SQLite does not name foreign keys, so names are synthesized as
// fk_<table>_<id>. A reference without target columns points at the
// target's primary key.
func (in *introspector) ListForeignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error) {
	var rows []foreignKeyInfo
	err := in.db.SelectContext(ctx, &rows,
		`SELECT id, seq, "table", "from", "to" FROM pragma_foreign_key_list(?) ORDER BY id, seq`, table)
	if err != nil {
		return nil, err
	}

	var fks []schema.ForeignKey
	byID := make(map[int]int)
	implicit := make(map[int]bool)
	for _, r := range rows {
		i, ok := byID[r.ID]
		if !ok {
			fks = append(fks, schema.ForeignKey{
				Name:      fmt.Sprintf("fk_%s_%d", table, r.ID),
				FromTable: table,
				ToTable:   r.Table,
			})
			i = len(fks) - 1
			byID[r.ID] = i
		}
		fks[i].FromColumns = append(fks[i].FromColumns, r.From)
		if r.To.Valid {
			fks[i].ToColumns = append(fks[i].ToColumns, r.To.String)
		} else {
			implicit[r.ID] = true
		}
	}

	for id, i := range byID {
		if !implicit[id] {
			continue
		}
		pk, err := in.primaryKey(ctx, fks[i].ToTable)
		if err != nil {
			return nil, err
		}
		fks[i].ToColumns = pk
	}
	return fks, nil
}
