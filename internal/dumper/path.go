package dumper

import "strings"

// AssociationPath is the dotted chain of association names from a root
// model's singular name down to the current walker, e.g.
// "forum.questions.answers".
type AssociationPath struct {
	segments []string
}

// RootPath starts a path at a model's singular name.
func RootPath(singular string) AssociationPath {
	return AssociationPath{segments: []string{singular}}
}

// Child returns the path one association below p.
func (p AssociationPath) Child(name string) AssociationPath {
	segs := make([]string, len(p.segments), len(p.segments)+1)
	copy(segs, p.segments)
	return AssociationPath{segments: append(segs, name)}
}

// Depth is the number of association hops below the root.
func (p AssociationPath) Depth() int {
	if len(p.segments) == 0 {
		return 0
	}
	return len(p.segments) - 1
}

// Equal reports whether both paths have the same segments.
func (p AssociationPath) Equal(o AssociationPath) bool {
	if len(p.segments) != len(o.segments) {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != o.segments[i] {
			return false
		}
	}
	return true
}

func (p AssociationPath) String() string {
	return strings.Join(p.segments, ".")
}
