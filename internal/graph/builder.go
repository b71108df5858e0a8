package graph

import (
	"fmt"
	"sort"

	"github.com/dbsmedya/goseed/internal/schema"
)

// FromCatalog builds the table graph of every model in cat. Each
// belongs-to adds an edge from the referenced table to the owner's table;
// a polymorphic belongs-to adds one edge per target. Associations pointing
// back at their own table mark the node as self referencing instead.
func FromCatalog(cat schema.Catalog) (*Graph, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog is nil")
	}
	g := NewGraph()

	models := cat.Models()
	for _, m := range models {
		n := g.AddNode(m.Table, &Node{PrimaryKey: m.PrimaryKey})
		n.Models = append(n.Models, m.Name)
	}

	for _, m := range models {
		for _, rel := range m.BelongsTo {
			targets := []string{rel.Target}
			if rel.Polymorphic {
				targets = targets[:0]
				for _, t := range rel.Targets {
					targets = append(targets, t)
				}
				sort.Strings(targets)
			}

			for _, name := range targets {
				target, err := cat.Model(name)
				if err != nil {
					return nil, fmt.Errorf("%s.%s: %w", m.Name, rel.Name, err)
				}
				if target.Table == m.Table {
					g.Nodes[m.Table].SelfReference = true
					continue
				}
				g.AddEdgeWithMeta(target.Table, m.Table, rel.ForeignKey, target.PrimaryKey, m.Name+"."+rel.Name, rel.Optional)
			}
		}
	}
	return g, nil
}
