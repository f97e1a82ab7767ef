package graph

import (
	"github.com/JonMunkholm/pgmerge/internal/schema"
)

// PlanOptions controls how a table selection is expanded.
type PlanOptions struct {
	// IncludeDependencies adds every table the selection transitively
	// references, following the full schema's foreign keys.
	IncludeDependencies bool
}

// Plan is the processing order for one command execution. It is read-only
// once built.
type Plan struct {
	Schema *schema.Schema

	// Original is the dependency graph over every table in the schema,
	// cycles included. Closures are computed on it.
	Original *Graph

	// Selected is the graph over the chosen tables before cycle breaking.
	Selected *Graph

	// DAG is Selected with one edge removed per simple cycle.
	DAG *Graph

	Tables         []string // chosen tables, sorted
	InsertionOrder []string
	DeletionOrder  []string // InsertionOrder reversed
	Broken         []BrokenEdge
	Dropped        []DroppedReference
}

// NewPlan selects tables from the schema (all of them when selected is empty),
// optionally expands the selection with its dependencies, and orders it.
// Returns an error wrapping ErrSchemaInconsistency when the selection cannot
// be linearized.
func NewPlan(s *schema.Schema, selected []string, opts PlanOptions) (*Plan, error) {
	tables, err := s.Select(selected)
	if err != nil {
		return nil, err
	}

	original, _, err := Build(s, s.TableNames())
	if err != nil {
		return nil, err
	}

	if opts.IncludeDependencies {
		tables = original.Dependencies(tables)
	}

	sel, dropped, err := Build(s, tables)
	if err != nil {
		return nil, err
	}

	dag := sel.Clone()
	broken, err := dag.BreakCycles()
	if err != nil {
		return nil, err
	}

	order, err := dag.InsertionOrder()
	if err != nil {
		return nil, err
	}
	deletion, err := dag.DeletionOrder()
	if err != nil {
		return nil, err
	}

	return &Plan{
		Schema:         s,
		Original:       original,
		Selected:       sel,
		DAG:            dag,
		Tables:         tables,
		InsertionOrder: order,
		DeletionOrder:  deletion,
		Broken:         broken,
		Dropped:        dropped,
	}, nil
}
