// Package schema describes the models the dumper walks: their tables,
// primary keys, columns and associations.
//
// A catalog is assembled once before a run from any mix of providers
// (configuration, database foreign keys, GORM structs) and never changes
// afterwards.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownModel is returned when a model name is not in the catalog.
var ErrUnknownModel = errors.New("unknown model")

// Kind is the association kind.
type Kind string

const (
	BelongsTo Kind = "belongs_to"
	HasOne    Kind = "has_one"
	HasMany   Kind = "has_many"
)

// Column is one table column.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Relationship is one association of a model.
//
// For belongs-to, ForeignKey is a column of the owner and PrimaryKey the
// referenced column of the target. For has-one/has-many, ForeignKey is a
// column of the target and PrimaryKey the referenced column of the owner.
type Relationship struct {
	Name       string
	Kind       Kind
	Model      string // owner
	Target     string // empty for polymorphic belongs-to
	ForeignKey string
	PrimaryKey string

	// Inverse names the belongs-to on the target that points back at the
	// owner of a has-relation.
	Inverse string

	Polymorphic bool
	TypeColumn  string            // belongs-to: on owner, has-relation: on target
	TypeValue   string            // has-relation: value stored in the target's type column
	Targets     map[string]string // belongs-to: type value -> model

	Scope    string // extra condition on the target, raw SQL
	Order    string
	Optional bool
}

// IsHas reports whether the relationship is a has-one or has-many.
func (r *Relationship) IsHas() bool {
	return r.Kind == HasOne || r.Kind == HasMany
}

// Model is one table and its associations.
type Model struct {
	Name         string
	Table        string
	Singular     string
	PrimaryKey   string // empty when the table has no single-column key
	DefaultScope string
	Columns      []Column
	BelongsTo    []*Relationship
	HasRelations []*Relationship // has_one and has_many in declaration order
}

// Column returns the column called name.
func (m *Model) Column(name string) (Column, bool) {
	for _, c := range m.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnType returns the database type of column name, or "" when unknown.
func (m *Model) ColumnType(name string) string {
	c, _ := m.Column(name)
	return c.Type
}

// ColumnNames returns the column names minus ignored ones, in table order.
func (m *Model) ColumnNames(ignored ...string) []string {
	skip := make(map[string]bool, len(ignored))
	for _, c := range ignored {
		skip[c] = true
	}
	names := make([]string, 0, len(m.Columns))
	for _, c := range m.Columns {
		if !skip[c.Name] {
			names = append(names, c.Name)
		}
	}
	return names
}

// Relationship returns the association called name.
func (m *Model) Relationship(name string) (*Relationship, bool) {
	for _, r := range m.BelongsTo {
		if r.Name == name {
			return r, true
		}
	}
	for _, r := range m.HasRelations {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// Catalog is the read-only view of the schema used during a run.
type Catalog interface {
	Model(name string) (*Model, error)
	Models() []*Model
	PrimaryKey(model string) (string, error)
	Columns(model string) ([]Column, error)
	BelongsTo(model string) ([]*Relationship, error)
	HasRelations(model string) ([]*Relationship, error)
}

// Registry is the in-memory Catalog.
type Registry struct {
	models  []*Model
	byName  map[string]*Model
	byTable map[string]*Model
}

// NewRegistry indexes models, fills defaults and resolves every association
// target. It fails on duplicate names and on associations that point at
// models outside the set.
func NewRegistry(models []*Model) (*Registry, error) {
	r := &Registry{
		byName:  make(map[string]*Model, len(models)),
		byTable: make(map[string]*Model, len(models)),
	}

	for _, m := range models {
		if m.Name == "" {
			return nil, fmt.Errorf("model without a name (table %q)", m.Table)
		}
		if _, dup := r.byName[m.Name]; dup {
			return nil, fmt.Errorf("model %q is defined twice", m.Name)
		}
		if m.Table == "" {
			m.Table = tableName(m.Name)
		}
		if m.Singular == "" {
			m.Singular = singular(snake(m.Name))
		}
		r.models = append(r.models, m)
		r.byName[m.Name] = m
		if _, taken := r.byTable[m.Table]; !taken {
			r.byTable[m.Table] = m
		}
	}

	for _, m := range r.models {
		for _, rel := range m.BelongsTo {
			if err := r.resolveBelongsTo(m, rel); err != nil {
				return nil, err
			}
		}
	}
	for _, m := range r.models {
		for _, rel := range m.HasRelations {
			if err := r.resolveHas(m, rel); err != nil {
				return nil, err
			}
		}
	}

	return r, nil
}

func (r *Registry) resolveBelongsTo(owner *Model, rel *Relationship) error {
	rel.Kind = BelongsTo
	rel.Model = owner.Name
	if rel.ForeignKey == "" {
		rel.ForeignKey = rel.Name + "_id"
	}

	if rel.Polymorphic {
		if rel.TypeColumn == "" {
			rel.TypeColumn = rel.Name + "_type"
		}
		if len(rel.Targets) == 0 {
			return fmt.Errorf("%s.%s: polymorphic association has no targets", owner.Name, rel.Name)
		}
		for typ, target := range rel.Targets {
			if _, ok := r.byName[target]; !ok {
				return fmt.Errorf("%s.%s: target %q for type %q: %w", owner.Name, rel.Name, target, typ, ErrUnknownModel)
			}
		}
		return nil
	}

	if rel.Target == "" {
		rel.Target = r.guessTarget(rel.Name, false)
	}
	target, ok := r.byName[rel.Target]
	if !ok {
		return fmt.Errorf("%s.%s: target %q: %w", owner.Name, rel.Name, rel.Target, ErrUnknownModel)
	}
	if rel.PrimaryKey == "" {
		rel.PrimaryKey = target.PrimaryKey
	}
	if rel.PrimaryKey == "" {
		return fmt.Errorf("%s.%s: target %s has no primary key", owner.Name, rel.Name, target.Name)
	}
	return nil
}

func (r *Registry) resolveHas(owner *Model, rel *Relationship) error {
	if rel.Kind == "" {
		rel.Kind = HasMany
	}
	rel.Model = owner.Name

	if rel.Target == "" {
		rel.Target = r.guessTarget(rel.Name, rel.Kind == HasMany)
	}
	target, ok := r.byName[rel.Target]
	if !ok {
		return fmt.Errorf("%s.%s: target %q: %w", owner.Name, rel.Name, rel.Target, ErrUnknownModel)
	}

	if rel.ForeignKey == "" {
		rel.ForeignKey = owner.Singular + "_id"
	}
	if rel.PrimaryKey == "" {
		rel.PrimaryKey = owner.PrimaryKey
	}
	if rel.Polymorphic && rel.TypeValue == "" {
		rel.TypeValue = owner.Name
	}

	if rel.Inverse == "" {
		for _, back := range target.BelongsTo {
			if back.ForeignKey != rel.ForeignKey {
				continue
			}
			if back.Target == owner.Name || (back.Polymorphic && back.Targets[rel.TypeValue] == owner.Name) {
				rel.Inverse = back.Name
				break
			}
		}
	} else if back, ok := target.Relationship(rel.Inverse); !ok || back.Kind != BelongsTo {
		return fmt.Errorf("%s.%s: inverse %q is not a belongs_to of %s", owner.Name, rel.Name, rel.Inverse, target.Name)
	}
	return nil
}

// guessTarget maps an association name to a model: "author" finds a model
// whose singular is "author", "questions" a model with table "questions".
func (r *Registry) guessTarget(name string, plural bool) string {
	if plural {
		if m, ok := r.byTable[name]; ok {
			return m.Name
		}
		name = singular(name)
	}
	for _, m := range r.models {
		if m.Singular == name {
			return m.Name
		}
	}
	for _, m := range r.models {
		if strings.EqualFold(m.Name, name) {
			return m.Name
		}
	}
	return name
}

// Model returns the model called name.
func (r *Registry) Model(name string) (*Model, error) {
	m, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return m, nil
}

// Models returns every model in registration order.
func (r *Registry) Models() []*Model {
	out := make([]*Model, len(r.models))
	copy(out, r.models)
	return out
}

// PrimaryKey returns the primary key column of model.
func (r *Registry) PrimaryKey(model string) (string, error) {
	m, err := r.Model(model)
	if err != nil {
		return "", err
	}
	return m.PrimaryKey, nil
}

// Columns returns the columns of model.
func (r *Registry) Columns(model string) ([]Column, error) {
	m, err := r.Model(model)
	if err != nil {
		return nil, err
	}
	return m.Columns, nil
}

// BelongsTo returns the belongs-to associations of model.
func (r *Registry) BelongsTo(model string) ([]*Relationship, error) {
	m, err := r.Model(model)
	if err != nil {
		return nil, err
	}
	return m.BelongsTo, nil
}

// HasRelations returns the has-one and has-many associations of model.
func (r *Registry) HasRelations(model string) ([]*Relationship, error) {
	m, err := r.Model(model)
	if err != nil {
		return nil, err
	}
	return m.HasRelations, nil
}
