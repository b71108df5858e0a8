package dumper

import (
	"context"
	"fmt"

	"github.com/dbsmedya/goseed/internal/config"
	"github.com/dbsmedya/goseed/internal/logger"
	"github.com/dbsmedya/goseed/internal/pattern"
	"github.com/dbsmedya/goseed/internal/schema"
)

type inclusion struct {
	patterns pattern.Set
	where    string
}

type associationLimit struct {
	patterns pattern.Set
	limit    int
}

// rootSpec is a configured root with its patterns compiled. It does not
// change during a run.
type rootSpec struct {
	cfg         *config.RootConfig
	model       *schema.Model
	exclude     pattern.Set
	include     []inclusion
	limits      []associationLimit
	dontNullify bool
}

func compileRoot(cfg *config.Config, i int, cat schema.Catalog) (*rootSpec, error) {
	rc := &cfg.Roots[i]
	m, err := cat.Model(rc.Model)
	if err != nil {
		return nil, fmt.Errorf("roots[%d]: %w", i, err)
	}

	spec := &rootSpec{cfg: rc, model: m, dontNullify: cfg.DontNullify(rc)}
	if spec.exclude, err = pattern.Compile(rc.Exclude, pattern.AnyParent); err != nil {
		return nil, fmt.Errorf("roots[%d].exclude: %w", i, err)
	}
	for j, inc := range rc.Include {
		set, err := pattern.Compile(inc.Pattern, pattern.AnyParent)
		if err != nil {
			return nil, fmt.Errorf("roots[%d].include[%d]: %w", i, j, err)
		}
		spec.include = append(spec.include, inclusion{patterns: set, where: inc.Where})
	}
	for j, al := range rc.AssociationLimits {
		set, err := pattern.Compile(al.Pattern, pattern.AnyParent)
		if err != nil {
			return nil, fmt.Errorf("roots[%d].association_limits[%d]: %w", i, j, err)
		}
		spec.limits = append(spec.limits, associationLimit{patterns: set, limit: al.Limit})
	}
	return spec, nil
}

func (s *rootSpec) included(path string) bool {
	for _, inc := range s.include {
		if inc.patterns.Match(path) {
			return true
		}
	}
	return false
}

// excluded reports whether path is cut off. An inclusion wins over any
// exclusion.
func (s *rootSpec) excluded(path string) bool {
	return s.exclude.Match(path) && !s.included(path)
}

// includeScopes returns the where clauses of the inclusions matching path.
func (s *rootSpec) includeScopes(path string) []string {
	var out []string
	for _, inc := range s.include {
		if inc.where != "" && inc.patterns.Match(path) {
			out = append(out, inc.where)
		}
	}
	return out
}

func (s *rootSpec) atDepthLimit(p AssociationPath) bool {
	return s.cfg.DeepLimit != nil && p.Depth() >= *s.cfg.DeepLimit
}

// decision is what a walker does with one association.
type decision int

const (
	traverse decision = iota
	skipInverse
	skipExcluded
	skipOptional
	skipPolymorphic
	skipDepth
	skipHasRelations
	skipNoPrimaryKey
)

var decisionNames = map[decision]string{
	traverse:         "traverse",
	skipInverse:      "inverse",
	skipExcluded:     "excluded",
	skipOptional:     "optional",
	skipPolymorphic:  "polymorphic",
	skipDepth:        "depth",
	skipHasRelations: "has-excluded",
	skipNoPrimaryKey: "no-primary-key",
}

func (d decision) String() string { return decisionNames[d] }

// belongsToDecision decides a belongs-to of the walker at path. inverse is
// the association that leads back to the walker's parent.
func (s *rootSpec) belongsToDecision(path AssociationPath, rel *schema.Relationship, inverse string) decision {
	child := path.Child(rel.Name).String()
	switch {
	case inverse != "" && rel.Name == inverse:
		return skipInverse
	case s.excluded(child):
		return skipExcluded
	case rel.Optional && s.cfg.ExcludeOptionalBelongsTo && !s.included(child):
		return skipOptional
	case rel.Polymorphic && !s.included(child):
		return skipPolymorphic
	case s.atDepthLimit(path):
		return skipDepth
	}
	return traverse
}

// nullifies reports whether the foreign key of a skipped belongs-to is
// cleared in the dumped row.
func (s *rootSpec) nullifies(d decision) bool {
	switch d {
	case skipExcluded, skipOptional, skipDepth:
		return !s.dontNullify
	}
	return false
}

func (s *rootSpec) hasDecision(path AssociationPath, owner *schema.Model, rel *schema.Relationship) decision {
	child := path.Child(rel.Name).String()
	switch {
	case owner.PrimaryKey == "" || rel.PrimaryKey == "":
		return skipNoPrimaryKey
	case s.excluded(child):
		return skipExcluded
	case s.cfg.ExcludeHasRelations && !s.included(child):
		return skipHasRelations
	case s.atDepthLimit(path):
		return skipDepth
	}
	return traverse
}

// rootDumper runs one root. It owns the quotas of that root.
type rootDumper struct {
	*rootSpec
	d      *Dumper
	state  *State
	total  int // remaining; negative means unlimited
	quotas []int
	logger *logger.Logger
}

func newRootDumper(d *Dumper, spec *rootSpec, state *State) *rootDumper {
	r := &rootDumper{
		rootSpec: spec,
		d:        d,
		state:    state,
		total:    -1,
		logger:   d.logger.WithRoot(spec.model.Name),
	}
	if spec.cfg.TotalLimit != nil {
		r.total = *spec.cfg.TotalLimit
	}
	for _, l := range spec.limits {
		r.quotas = append(r.quotas, l.limit)
	}
	return r
}

// checkLimits admits one limitable row at path. The row is accepted only
// when the total quota and every matching association quota have room; all
// of them are then charged together.
func (r *rootDumper) checkLimits(path string) bool {
	if r.total == 0 {
		return false
	}
	var matched []int
	for i, l := range r.limits {
		if l.patterns.Match(path) {
			if r.quotas[i] <= 0 {
				return false
			}
			matched = append(matched, i)
		}
	}
	if r.total > 0 {
		r.total--
	}
	for _, i := range matched {
		r.quotas[i]--
	}
	return true
}

func (r *rootDumper) totalExhausted() bool {
	return r.total == 0
}

func (r *rootDumper) dump(ctx context.Context) ([]*segment, error) {
	rel := r.d.baseRelation(r.model)
	rel.where(r.cfg.Where, r.cfg.Args...)
	rel.order = r.cfg.Order
	rel.limit = r.cfg.Limit

	w := newWalker(r, r.model, rel, RootPath(r.model.Singular), walkOptions{})
	return w.run(ctx)
}
