// Package schema describes the tables, columns, keys and foreign keys of one
// database schema. The model is produced by an [Introspector] and is read-only
// once loaded; every identifier that ends up in generated SQL is taken from it.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Column is a single table column.
type Column struct {
	Table        string
	Name         string
	IsPrimaryKey bool
}

// UniqueKey is an ordered set of columns that uniquely identifies a row.
type UniqueKey struct {
	Name    string
	Columns []string
	Primary bool
}

// ForeignKey is a reference from FromTable's columns to ToTable's columns.
type ForeignKey struct {
	Name        string
	FromTable   string
	FromColumns []string
	ToTable     string
	ToColumns   []string
}

func (fk ForeignKey) String() string {
	return fmt.Sprintf("%s: %s(%s) -> %s(%s)", fk.Name,
		fk.FromTable, strings.Join(fk.FromColumns, ", "),
		fk.ToTable, strings.Join(fk.ToColumns, ", "))
}

// Table holds everything known about one table.
type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string
	UniqueKeys  []UniqueKey // non-primary unique constraints, in introspection order
	ForeignKeys []ForeignKey
}

// ColumnNames returns column names in introspection order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether the table has a column with exactly this name.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// IdentityKey returns the columns used to match snapshot rows to live rows:
// the primary key, else the first unique constraint, else nil.
func (t *Table) IdentityKey() []string {
	if len(t.PrimaryKey) > 0 {
		return t.PrimaryKey
	}
	for _, uk := range t.UniqueKeys {
		if len(uk.Columns) > 0 {
			return uk.Columns
		}
	}
	return nil
}

// ResolveColumns checks that every name is a column of the table and that
// no name repeats. An empty list is valid.
func (t *Table) ResolveColumns(names []string) error {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if !t.HasColumn(name) {
			return fmt.Errorf("unknown column %q in table %q", name, t.Name)
		}
		if seen[name] {
			return fmt.Errorf("column %q listed twice for table %q", name, t.Name)
		}
		seen[name] = true
	}
	return nil
}

// Schema is a named collection of tables.
type Schema struct {
	Name   string
	tables map[string]*Table
}

// New creates a schema from already-built tables.
// Returns an error if two tables share a name or a table repeats a column.
func New(name string, tables ...*Table) (*Schema, error) {
	s := &Schema{Name: name, tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if _, exists := s.tables[t.Name]; exists {
			return nil, fmt.Errorf("duplicate table %q", t.Name)
		}
		seen := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			if seen[c.Name] {
				return nil, fmt.Errorf("duplicate column %q in table %q", c.Name, t.Name)
			}
			seen[c.Name] = true
		}
		s.tables[t.Name] = t
	}
	return s, nil
}

// Table returns a table by exact name.
func (s *Schema) Table(name string) (*Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// TableNames returns all table names sorted alphabetically.
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of tables.
func (s *Schema) Len() int {
	return len(s.tables)
}

// Select validates a user-supplied table list. An empty list selects every table.
// The result is sorted and free of duplicates.
func (s *Schema) Select(names []string) ([]string, error) {
	if len(names) == 0 {
		return s.TableNames(), nil
	}

	seen := make(map[string]bool, len(names))
	var unknown []string
	for _, name := range names {
		if _, ok := s.tables[name]; !ok {
			unknown = append(unknown, name)
			continue
		}
		seen[name] = true
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("table not found in schema %q: %s", s.Name, strings.Join(unknown, ", "))
	}

	selected := make([]string, 0, len(seen))
	for name := range seen {
		selected = append(selected, name)
	}
	sort.Strings(selected)
	return selected, nil
}
