package graph

import (
	"fmt"

	"github.com/JonMunkholm/pgmerge/internal/schema"
)

// DroppedReference is a foreign key whose target lies outside the selected
// table set. Such references cannot be satisfied by ordering and are only
// reported.
type DroppedReference struct {
	ForeignKey schema.ForeignKey
}

func (d DroppedReference) String() string {
	return fmt.Sprintf("%s references %s outside the selected tables (%s)",
		d.ForeignKey.FromTable, d.ForeignKey.ToTable, d.ForeignKey.Name)
}

// Build creates one node per selected table and one edge per foreign key
// whose target is also selected. Self-references become self-loops and
// multi-column keys a single edge carrying all their columns.
// Tables missing from the schema are an error.
func Build(s *schema.Schema, tables []string) (*Graph, []DroppedReference, error) {
	g := New()
	for _, name := range tables {
		if _, ok := s.Table(name); !ok {
			return nil, nil, fmt.Errorf("table not found: %s", name)
		}
		g.AddNode(name)
	}

	var dropped []DroppedReference
	for _, name := range g.Nodes() {
		t, _ := s.Table(name)
		for _, fk := range t.ForeignKeys {
			if fk.FromTable == "" {
				fk.FromTable = name
			}
			if !g.HasNode(fk.ToTable) {
				dropped = append(dropped, DroppedReference{ForeignKey: fk})
				continue
			}
			g.AddEdge(name, fk.ToTable, fk)
		}
	}

	return g, dropped, nil
}
