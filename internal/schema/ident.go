package schema

import "strings"

// QuoteIdent quotes a SQL identifier.
// Callers pass only names taken from the schema model.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteIdents quotes each identifier in the slice.
func QuoteIdents(names []string) []string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = QuoteIdent(name)
	}
	return quoted
}

// QualifiedName returns "schema"."table", or just "table" when schema is empty.
func QualifiedName(schemaName, table string) string {
	if schemaName == "" {
		return QuoteIdent(table)
	}
	return QuoteIdent(schemaName) + "." + QuoteIdent(table)
}

// QuoteLiteral quotes a string literal for statement options that cannot be
// bound as parameters (COPY's NULL marker).
func QuoteLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}
