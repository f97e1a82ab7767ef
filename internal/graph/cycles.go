package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/JonMunkholm/pgmerge/internal/schema"
)

// ErrSchemaInconsistency is returned when the dependency graph cannot be
// linearized by removing one edge per simple cycle. It invalidates the
// processing order for every table and aborts the run.
var ErrSchemaInconsistency = errors.New("schema inconsistency")

// MaxSimpleCycles bounds cycle enumeration. A schema with more simple cycles
// than this has compound cycles that need manual foreign key resolution.
var MaxSimpleCycles = 10000

// BrokenEdge is an edge removed to break a cycle. The constraint still exists
// in the database; it is only ignored for ordering.
type BrokenEdge struct {
	From        string
	To          string
	ForeignKeys []schema.ForeignKey
}

func (b BrokenEdge) String() string {
	name := ""
	if len(b.ForeignKeys) > 0 {
		name = " (" + b.ForeignKeys[0].Name + ")"
	}
	return fmt.Sprintf("%s -> %s%s", b.From, b.To, name)
}

// SimpleCycles enumerates the elementary cycles of the graph with Johnson's
// algorithm. Each cycle lists its nodes in traversal order starting at its
// alphabetically least node; a self-loop is a one-node cycle. Output order is
// deterministic. Returns ErrSchemaInconsistency if more than limit cycles exist.
func (g *Graph) SimpleCycles(limit int) ([][]string, error) {
	nodes := g.Nodes()
	var cycles [][]string

	for i, start := range nodes {
		allowed := make(map[string]bool, len(nodes)-i)
		for _, n := range nodes[i:] {
			allowed[n] = true
		}

		component := g.componentOf(start, allowed)
		if len(component) == 1 && !g.HasEdge(start, start) {
			continue
		}

		j := &johnson{
			g:         g,
			start:     start,
			component: component,
			blocked:   make(map[string]bool),
			blockedBy: make(map[string]map[string]bool),
			limit:     limit - len(cycles),
		}
		j.circuit(start)
		cycles = append(cycles, j.cycles...)

		if j.exceeded {
			return cycles, fmt.Errorf("%w: more than %d simple cycles; requires manual foreign key resolution",
				ErrSchemaInconsistency, limit)
		}
	}

	return cycles, nil
}

// componentOf returns the strongly connected component of start within the
// allowed nodes: everything reachable from start that can also reach it.
func (g *Graph) componentOf(start string, allowed map[string]bool) map[string]bool {
	forward := g.reach(start, allowed, g.out)
	backward := g.reach(start, allowed, g.in)

	component := make(map[string]bool)
	for n := range forward {
		if backward[n] {
			component[n] = true
		}
	}
	return component
}

func (g *Graph) reach(start string, allowed map[string]bool, adj map[string]map[string]*Edge) map[string]bool {
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for next := range adj[n] {
			if allowed[next] && !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

type johnson struct {
	g         *Graph
	start     string
	component map[string]bool
	blocked   map[string]bool
	blockedBy map[string]map[string]bool
	stack     []string
	cycles    [][]string
	limit     int
	exceeded  bool
}

func (j *johnson) circuit(v string) bool {
	found := false
	j.stack = append(j.stack, v)
	j.blocked[v] = true

	for _, w := range j.g.Successors(v) {
		if j.exceeded {
			break
		}
		if !j.component[w] {
			continue
		}
		if w == j.start {
			if len(j.cycles) >= j.limit {
				j.exceeded = true
				break
			}
			cycle := make([]string, len(j.stack))
			copy(cycle, j.stack)
			j.cycles = append(j.cycles, cycle)
			found = true
		} else if !j.blocked[w] && j.circuit(w) {
			found = true
		}
	}

	if found {
		j.unblock(v)
	} else {
		for _, w := range j.g.Successors(v) {
			if !j.component[w] {
				continue
			}
			if j.blockedBy[w] == nil {
				j.blockedBy[w] = make(map[string]bool)
			}
			j.blockedBy[w][v] = true
		}
	}

	j.stack = j.stack[:len(j.stack)-1]
	return found
}

func (j *johnson) unblock(u string) {
	j.blocked[u] = false
	for w := range j.blockedBy[u] {
		delete(j.blockedBy[u], w)
		if j.blocked[w] {
			j.unblock(w)
		}
	}
}

// BreakCycles removes one edge from every simple cycle, turning the graph
// into a DAG in place. A self-loop or mutual reference loses its first ->
// last edge; a longer cycle loses its closing edge last -> first, which is
// always on the cycle. Cycles already broken by an earlier removal are left
// alone.
func (g *Graph) BreakCycles() ([]BrokenEdge, error) {
	cycles, err := g.SimpleCycles(MaxSimpleCycles)
	if err != nil {
		return nil, err
	}

	var broken []BrokenEdge
	for _, cycle := range cycles {
		if !g.intact(cycle) {
			continue
		}
		first, last := cycle[0], cycle[len(cycle)-1]
		from, to := last, first
		if len(cycle) <= 2 {
			from, to = first, last
		}
		e, _ := g.Edge(from, to)
		g.RemoveEdge(from, to)
		broken = append(broken, BrokenEdge{From: from, To: to, ForeignKeys: e.ForeignKeys})
	}

	if !g.IsAcyclic() {
		return broken, fmt.Errorf("%w: cycles remain after breaking %d simple cycles; requires manual foreign key resolution",
			ErrSchemaInconsistency, len(cycles))
	}
	return broken, nil
}

// intact reports whether every edge of the cycle is still present.
func (g *Graph) intact(cycle []string) bool {
	for i, from := range cycle {
		to := cycle[(i+1)%len(cycle)]
		if !g.HasEdge(from, to) {
			return false
		}
	}
	return true
}

// IsAcyclic reports whether the graph is a DAG.
func (g *Graph) IsAcyclic() bool {
	_, err := g.InsertionOrder()
	return err == nil
}

// CycleForeignKeys returns, per table, the names of foreign keys that take
// part in mutual (two-table) references.
func (g *Graph) CycleForeignKeys() map[string][]string {
	result := make(map[string][]string)
	for _, e := range g.Edges() {
		if e.From == e.To {
			continue
		}
		if back, ok := g.Edge(e.To, e.From); ok && back != nil {
			for _, fk := range e.ForeignKeys {
				result[e.From] = append(result[e.From], fk.Name)
			}
		}
	}
	for table := range result {
		sort.Strings(result[table])
	}
	return result
}
