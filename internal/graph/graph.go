// Package graph orders tables by their foreign key dependencies.
//
// An edge A -> B means table A references table B, so rows of B must exist
// before rows of A are written. The package builds that graph from a
// [schema.Schema], breaks simple cycles to obtain a DAG, and derives the
// insertion order (referenced tables first), the deletion order (its
// reverse) and dependency closures for partial table sets.
package graph

import (
	"sort"

	"github.com/JonMunkholm/pgmerge/internal/schema"
)

// Edge is a dependency from one table to another. Several foreign keys
// between the same ordered pair of tables collapse into one edge.
type Edge struct {
	From        string
	To          string
	ForeignKeys []schema.ForeignKey
}

// Graph is a directed graph over table names.
type Graph struct {
	nodes map[string]struct{}
	out   map[string]map[string]*Edge // from -> to
	in    map[string]map[string]*Edge // to -> from
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]struct{}),
		out:   make(map[string]map[string]*Edge),
		in:    make(map[string]map[string]*Edge),
	}
}

// AddNode adds a table. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if _, ok := g.nodes[name]; ok {
		return
	}
	g.nodes[name] = struct{}{}
	g.out[name] = make(map[string]*Edge)
	g.in[name] = make(map[string]*Edge)
}

// AddEdge records that from depends on to through fk. Both nodes are added
// if missing.
func (g *Graph) AddEdge(from, to string, fk schema.ForeignKey) {
	g.AddNode(from)
	g.AddNode(to)
	if e, ok := g.out[from][to]; ok {
		e.ForeignKeys = append(e.ForeignKeys, fk)
		return
	}
	e := &Edge{From: from, To: to, ForeignKeys: []schema.ForeignKey{fk}}
	g.out[from][to] = e
	g.in[to][from] = e
}

// RemoveEdge deletes the edge from -> to. Returns false if it did not exist.
func (g *Graph) RemoveEdge(from, to string) bool {
	if _, ok := g.out[from][to]; !ok {
		return false
	}
	delete(g.out[from], to)
	delete(g.in[to], from)
	return true
}

// HasNode reports whether the table is in the graph.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// HasEdge reports whether from depends directly on to.
func (g *Graph) HasEdge(from, to string) bool {
	_, ok := g.out[from][to]
	return ok
}

// Edge returns the edge from -> to.
func (g *Graph) Edge(from, to string) (*Edge, bool) {
	e, ok := g.out[from][to]
	return e, ok
}

// Nodes returns all table names sorted alphabetically.
func (g *Graph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Successors returns the tables that name depends on, sorted.
func (g *Graph) Successors(name string) []string {
	return sortedKeys(g.out[name])
}

// Edges returns every edge ordered by (From, To).
func (g *Graph) Edges() []*Edge {
	var edges []*Edge
	for _, from := range g.Nodes() {
		for _, to := range g.Successors(from) {
			edges = append(edges, g.out[from][to])
		}
	}
	return edges
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Clone returns a deep copy of the graph structure. Edge values are copied;
// the foreign key slices they carry are shared and must not be mutated.
func (g *Graph) Clone() *Graph {
	c := New()
	for n := range g.nodes {
		c.AddNode(n)
	}
	for from, targets := range g.out {
		for to, e := range targets {
			cp := &Edge{From: e.From, To: e.To, ForeignKeys: e.ForeignKeys}
			c.out[from][to] = cp
			c.in[to][from] = cp
		}
	}
	return c
}

func sortedKeys(m map[string]*Edge) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
