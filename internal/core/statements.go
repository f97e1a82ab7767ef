package core

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/pgmerge/internal/schema"
)

// Statement aliases: t is the live table, s the staged snapshot.
const (
	liveAlias  = "t"
	stageAlias = "s"
)

// statements generates the merge SQL for one table. Every identifier comes
// from the schema model; no value is ever interpolated. The SQL is accepted
// by PostgreSQL and SQLite 3.33+.
type statements struct {
	target  string // quoted, qualified live table
	stage   string // quoted staging table
	columns []string
	key     []string
	nonKey  []string
}

func newStatements(schemaName, table, stage string, columns, key []string) statements {
	isKey := make(map[string]bool, len(key))
	for _, k := range key {
		isKey[k] = true
	}
	var nonKey []string
	for _, c := range columns {
		if !isKey[c] {
			nonKey = append(nonKey, c)
		}
	}

	return statements{
		target:  schema.QualifiedName(schemaName, table),
		stage:   schema.QuoteIdent(stage),
		columns: columns,
		key:     key,
		nonKey:  nonKey,
	}
}

// createStage copies the column structure of the target into an empty
// temporary table.
func (st statements) createStage() string {
	return fmt.Sprintf("CREATE TEMP TABLE %s AS SELECT %s FROM %s LIMIT 0",
		st.stage, strings.Join(schema.QuoteIdents(st.columns), ", "), st.target)
}

func (st statements) dropStage() string {
	return "DROP TABLE " + st.stage
}

// deleteIdentical removes staged rows that already exist unchanged. The
// affected row count is the number of skipped rows.
func (st statements) deleteIdentical() string {
	return fmt.Sprintf("DELETE FROM %s AS %s WHERE EXISTS (SELECT 1 FROM %s AS %s WHERE %s)",
		st.stage, stageAlias, st.target, liveAlias, nullSafeMatch(st.columns))
}

// updateChanged overwrites non-key columns of live rows sharing a staged
// identity key. Returns "" when every column is part of the key.
func (st statements) updateChanged() string {
	if len(st.nonKey) == 0 {
		return ""
	}
	set := make([]string, len(st.nonKey))
	for i, c := range st.nonKey {
		set[i] = fmt.Sprintf("%s = %s.%s", schema.QuoteIdent(c), stageAlias, schema.QuoteIdent(c))
	}
	return fmt.Sprintf("UPDATE %s AS %s SET %s FROM %s AS %s WHERE %s",
		st.target, liveAlias, strings.Join(set, ", "), st.stage, stageAlias, keyMatch(st.key))
}

// insertNew appends staged rows whose identity key has no live match.
func (st statements) insertNew() string {
	cols := schema.QuoteIdents(st.columns)
	sel := make([]string, len(cols))
	for i, c := range cols {
		sel[i] = stageAlias + "." + c
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s AS %s WHERE NOT EXISTS (SELECT 1 FROM %s AS %s WHERE %s)",
		st.target, strings.Join(cols, ", "), strings.Join(sel, ", "),
		st.stage, stageAlias, st.target, liveAlias, keyMatch(st.key))
}

// keyMatch joins live and staged rows on the identity key.
func keyMatch(key []string) string {
	conds := make([]string, len(key))
	for i, k := range key {
		q := schema.QuoteIdent(k)
		conds[i] = fmt.Sprintf("%s.%s = %s.%s", liveAlias, q, stageAlias, q)
	}
	return strings.Join(conds, " AND ")
}

// nullSafeMatch compares every column with NULL equal to NULL.
func nullSafeMatch(columns []string) string {
	conds := make([]string, len(columns))
	for i, c := range columns {
		q := schema.QuoteIdent(c)
		l, s := liveAlias+"."+q, stageAlias+"."+q
		conds[i] = fmt.Sprintf("(%s = %s OR (%s IS NULL AND %s IS NULL))", l, s, l, s)
	}
	return strings.Join(conds, " AND ")
}
