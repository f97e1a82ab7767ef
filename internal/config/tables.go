package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/JonMunkholm/pgmerge/internal/schema"
	"gopkg.in/yaml.v3"
)

// TableConfig overrides how a single table is exported and merged.
type TableConfig struct {
	// Columns restricts export and merge to a subset, in file order.
	Columns []string `yaml:"columns"`

	// AlternateKey replaces the primary key as the identity key during merge.
	AlternateKey []string `yaml:"alternate_key"`
}

// Tables maps table names to their overrides.
type Tables map[string]TableConfig

// LoadTables reads per-table configuration from a YAML file.
// An empty path yields an empty configuration.
func LoadTables(path string) (Tables, error) {
	if path == "" {
		return Tables{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table config: %w", err)
	}

	tables := Tables{}
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("parse table config %s: %w", path, err)
	}
	return tables, nil
}

// Columns returns the configured column subset for a table, or nil.
func (t Tables) Columns(table string) []string {
	if tc, ok := t[table]; ok && len(tc.Columns) > 0 {
		return tc.Columns
	}
	return nil
}

// AlternateKey returns the configured identity key for a table, or nil.
func (t Tables) AlternateKey(table string) []string {
	if tc, ok := t[table]; ok && len(tc.AlternateKey) > 0 {
		return tc.AlternateKey
	}
	return nil
}

// Validate checks every configured table and column against the schema.
// Returns an error describing all failures.
func (t Tables) Validate(s *schema.Schema) error {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []string
	for _, name := range names {
		table, ok := s.Table(name)
		if !ok {
			errs = append(errs, fmt.Sprintf("table %q not found in schema %q", name, s.Name))
			continue
		}
		tc := t[name]
		if err := table.ResolveColumns(tc.Columns); err != nil {
			errs = append(errs, fmt.Sprintf("%s.columns: %v", name, err))
		}
		if err := table.ResolveColumns(tc.AlternateKey); err != nil {
			errs = append(errs, fmt.Sprintf("%s.alternate_key: %v", name, err))
		}
		if len(tc.Columns) > 0 && len(tc.AlternateKey) > 0 {
			for _, key := range tc.AlternateKey {
				if !containsString(tc.Columns, key) {
					errs = append(errs, fmt.Sprintf("%s.alternate_key: column %q is not in columns", name, key))
				}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid table config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func containsString(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}
