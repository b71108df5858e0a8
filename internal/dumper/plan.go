package dumper

import (
	"sort"

	"github.com/dbsmedya/goseed/internal/schema"
)

// Plan statuses beyond the walker decisions.
const (
	StatusRoot      = "root"
	StatusRepeat    = "repeat"
	StatusTruncated = "truncated"
)

// PlanNode is one association of the static traversal tree of a root.
type PlanNode struct {
	Path      string
	Model     string
	Table     string
	Kind      schema.Kind
	Status    string
	Nullifies string // foreign key cleared when the association is skipped
	Limitable bool
	Children  []*PlanNode
}

// Plan returns the association tree of every root as the walker would see
// it before any data is read. Branches stop at a model already on the path
// from the root, at the root's deep_limit, or at maxDepth hops when the root
// has none.
func (d *Dumper) Plan(maxDepth int) []*PlanNode {
	out := make([]*PlanNode, 0, len(d.roots))
	for _, spec := range d.roots {
		root := &PlanNode{
			Path:   spec.model.Singular,
			Model:  spec.model.Name,
			Table:  spec.model.Table,
			Status: StatusRoot,
		}
		d.planChildren(spec, root, spec.model, RootPath(spec.model.Singular), "", false, map[string]bool{spec.model.Name: true}, maxDepth)
		out = append(out, root)
	}
	return out
}

func (d *Dumper) planChildren(spec *rootSpec, node *PlanNode, m *schema.Model, path AssociationPath, inverse string, limitable bool, seen map[string]bool, maxDepth int) {
	if spec.cfg.DeepLimit == nil && maxDepth > 0 && path.Depth() >= maxDepth {
		if len(m.BelongsTo)+len(m.HasRelations) > 0 {
			node.Status = StatusTruncated
		}
		return
	}

	for _, rel := range m.BelongsTo {
		dec := spec.belongsToDecision(path, rel, inverse)
		child := &PlanNode{
			Path:      path.Child(rel.Name).String(),
			Kind:      schema.BelongsTo,
			Status:    dec.String(),
			Limitable: limitable,
		}
		if spec.nullifies(dec) {
			child.Nullifies = rel.ForeignKey
		}

		targets := []string{rel.Target}
		if rel.Polymorphic {
			targets = targets[:0]
			for _, t := range rel.Targets {
				targets = append(targets, t)
			}
			sort.Strings(targets)
		}
		for _, name := range targets {
			n := *child
			tm, err := d.catalog.Model(name)
			if err != nil {
				continue
			}
			n.Model, n.Table = tm.Name, tm.Table
			if dec == traverse {
				d.planDescend(spec, &n, tm, path.Child(rel.Name), "", false, seen, maxDepth)
			}
			node.Children = append(node.Children, &n)
		}
	}

	for _, rel := range m.HasRelations {
		dec := spec.hasDecision(path, m, rel)
		child := &PlanNode{
			Path:      path.Child(rel.Name).String(),
			Kind:      rel.Kind,
			Status:    dec.String(),
			Limitable: true,
		}
		tm, err := d.catalog.Model(rel.Target)
		if err != nil {
			continue
		}
		child.Model, child.Table = tm.Name, tm.Table
		if dec == traverse {
			d.planDescend(spec, child, tm, path.Child(rel.Name), rel.Inverse, true, seen, maxDepth)
		}
		node.Children = append(node.Children, child)
	}
}

func (d *Dumper) planDescend(spec *rootSpec, node *PlanNode, m *schema.Model, path AssociationPath, inverse string, limitable bool, seen map[string]bool, maxDepth int) {
	if seen[m.Name] {
		node.Status = StatusRepeat
		return
	}
	seen[m.Name] = true
	d.planChildren(spec, node, m, path, inverse, limitable, seen, maxDepth)
	delete(seen, m.Name)
}
