package graph

import (
	"container/heap"
	"fmt"
	"sort"
)

// InsertionOrder returns a topological order in which every table comes after
// the tables it depends on. Ties are broken by table name. Returns an error
// wrapping ErrSchemaInconsistency if the graph has a cycle.
func (g *Graph) InsertionOrder() ([]string, error) {
	// pending counts the unsatisfied dependencies of each node.
	pending := make(map[string]int, len(g.nodes))
	ready := &nameHeap{}
	for n := range g.nodes {
		pending[n] = len(g.out[n])
		if pending[n] == 0 {
			heap.Push(ready, n)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(string)
		order = append(order, n)
		for dependent := range g.in[n] {
			pending[dependent]--
			if pending[dependent] == 0 {
				heap.Push(ready, dependent)
			}
		}
	}

	if len(order) != len(g.nodes) {
		var stuck []string
		for n, c := range pending {
			if c > 0 {
				stuck = append(stuck, n)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w: cycle among tables %v", ErrSchemaInconsistency, stuck)
	}
	return order, nil
}

// DeletionOrder is the reverse of InsertionOrder: dependent tables first.
func (g *Graph) DeletionOrder() ([]string, error) {
	order, err := g.InsertionOrder()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// Dependencies returns the given tables plus every table they transitively
// depend on, sorted. Tables not in the graph are ignored.
func (g *Graph) Dependencies(tables []string) []string {
	seen := make(map[string]bool)
	var stack []string
	for _, t := range tables {
		if g.HasNode(t) && !seen[t] {
			seen[t] = true
			stack = append(stack, t)
		}
	}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for to := range g.out[n] {
			if !seen[to] {
				seen[to] = true
				stack = append(stack, to)
			}
		}
	}

	result := make([]string, 0, len(seen))
	for n := range seen {
		result = append(result, n)
	}
	sort.Strings(result)
	return result
}

// nameHeap is a min-heap of table names.
type nameHeap []string

func (h nameHeap) Len() int           { return len(h) }
func (h nameHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h nameHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *nameHeap) Push(x any) { *h = append(*h, x.(string)) }

func (h *nameHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
