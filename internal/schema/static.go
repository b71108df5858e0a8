package schema

import (
	"github.com/dbsmedya/goseed/internal/config"
)

// NoPrimaryKey declares a model whose table has no single-column key.
const NoPrimaryKey = "-"

// NewStatic builds models from configuration declarations. Omitted fields
// follow naming conventions and are resolved by NewRegistry.
func NewStatic(models []config.ModelConfig) []*Model {
	out := make([]*Model, 0, len(models))
	for _, mc := range models {
		m := &Model{
			Name:         mc.Name,
			Table:        mc.Table,
			Singular:     mc.Singular,
			PrimaryKey:   mc.PrimaryKey,
			DefaultScope: mc.DefaultScope,
		}
		switch m.PrimaryKey {
		case "":
			m.PrimaryKey = "id"
		case NoPrimaryKey:
			m.PrimaryKey = ""
		}
		for _, cc := range mc.Columns {
			m.Columns = append(m.Columns, Column{Name: cc.Name, Type: cc.Type, Nullable: cc.Nullable})
		}
		for _, rc := range mc.BelongsTo {
			m.BelongsTo = append(m.BelongsTo, relationFromConfig(BelongsTo, rc))
		}
		for _, rc := range mc.HasMany {
			m.HasRelations = append(m.HasRelations, relationFromConfig(HasMany, rc))
		}
		for _, rc := range mc.HasOne {
			m.HasRelations = append(m.HasRelations, relationFromConfig(HasOne, rc))
		}
		out = append(out, m)
	}
	return out
}

func relationFromConfig(kind Kind, rc config.RelationConfig) *Relationship {
	rel := &Relationship{
		Name:        rc.Name,
		Kind:        kind,
		Target:      rc.Model,
		ForeignKey:  rc.ForeignKey,
		PrimaryKey:  rc.PrimaryKey,
		Inverse:     rc.InverseOf,
		Polymorphic: rc.Polymorphic,
		TypeColumn:  rc.ForeignType,
		Scope:       rc.Scope,
		Order:       rc.Order,
		Optional:    rc.Optional,
	}

	if kind == BelongsTo && rc.Polymorphic {
		rel.Targets = make(map[string]string, len(rc.Targets))
		for _, t := range rc.Targets {
			rel.Targets[t.Type] = t.Model
		}
	}

	if kind != BelongsTo && rc.As != "" {
		rel.Polymorphic = true
		if rel.ForeignKey == "" {
			rel.ForeignKey = rc.As + "_id"
		}
		if rel.TypeColumn == "" {
			rel.TypeColumn = rc.As + "_type"
		}
		if rel.Inverse == "" {
			rel.Inverse = rc.As
		}
	}
	return rel
}
