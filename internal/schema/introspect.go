package schema

import (
	"context"
	"fmt"
)

// Introspector lists the structure of one database schema.
// Implementations live with their database drivers.
type Introspector interface {
	ListTables(ctx context.Context) ([]string, error)
	ListColumns(ctx context.Context, table string) ([]Column, error)
	ListUniqueKeys(ctx context.Context, table string) ([]UniqueKey, error)
	ListForeignKeys(ctx context.Context, table string) ([]ForeignKey, error)
}

// Load builds a Schema by querying every table through the introspector.
// A primary key reported by ListUniqueKeys becomes Table.PrimaryKey; column
// primary key flags are derived from it when the introspector left them unset.
func Load(ctx context.Context, in Introspector, name string) (*Schema, error) {
	names, err := in.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	tables := make([]*Table, 0, len(names))
	for _, tableName := range names {
		t, err := loadTable(ctx, in, tableName)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}

	return New(name, tables...)
}

func loadTable(ctx context.Context, in Introspector, name string) (*Table, error) {
	columns, err := in.ListColumns(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", name, err)
	}
	keys, err := in.ListUniqueKeys(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list unique keys of %s: %w", name, err)
	}
	fks, err := in.ListForeignKeys(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list foreign keys of %s: %w", name, err)
	}

	t := &Table{Name: name, Columns: columns, ForeignKeys: fks}
	for _, k := range keys {
		if k.Primary && len(t.PrimaryKey) == 0 {
			t.PrimaryKey = k.Columns
			continue
		}
		t.UniqueKeys = append(t.UniqueKeys, k)
	}

	// Fall back to column flags when no primary constraint was listed
	if len(t.PrimaryKey) == 0 {
		for _, c := range columns {
			if c.IsPrimaryKey {
				t.PrimaryKey = append(t.PrimaryKey, c.Name)
			}
		}
	}

	pk := make(map[string]bool, len(t.PrimaryKey))
	for _, c := range t.PrimaryKey {
		pk[c] = true
	}
	for i := range t.Columns {
		t.Columns[i].Table = name
		t.Columns[i].IsPrimaryKey = pk[t.Columns[i].Name]
	}
	for i := range t.ForeignKeys {
		t.ForeignKeys[i].FromTable = name
	}

	return t, nil
}
