package schema

import (
	"fmt"
	"sync"

	gormschema "gorm.io/gorm/schema"
)

// FromGORM reflects GORM model structs into models. Every struct referenced
// by an association must be passed as well; many-to-many associations are
// not followed.
func FromGORM(values ...interface{}) ([]*Model, error) {
	cache := &sync.Map{}
	models := make([]*Model, 0, len(values))

	for _, v := range values {
		s, err := gormschema.Parse(v, cache, namer)
		if err != nil {
			return nil, fmt.Errorf("failed to parse gorm model %T: %w", v, err)
		}

		m := &Model{
			Name:     s.Name,
			Table:    s.Table,
			Singular: snake(s.Name),
		}
		if s.PrioritizedPrimaryField != nil {
			m.PrimaryKey = s.PrioritizedPrimaryField.DBName
		}
		for _, f := range s.Fields {
			if f.DBName == "" {
				continue
			}
			m.Columns = append(m.Columns, Column{
				Name:     f.DBName,
				Type:     string(f.DataType),
				Nullable: !f.NotNull && !f.PrimaryKey,
			})
		}

		for _, rel := range s.Relationships.BelongsTo {
			if r := gormBelongsTo(rel); r != nil {
				m.BelongsTo = append(m.BelongsTo, r)
			}
		}
		for _, rel := range s.Relationships.HasOne {
			if r := gormHas(HasOne, rel); r != nil {
				m.HasRelations = append(m.HasRelations, r)
			}
		}
		for _, rel := range s.Relationships.HasMany {
			if r := gormHas(HasMany, rel); r != nil {
				m.HasRelations = append(m.HasRelations, r)
			}
		}

		models = append(models, m)
	}
	return models, nil
}

func gormBelongsTo(rel *gormschema.Relationship) *Relationship {
	for _, ref := range rel.References {
		if ref.PrimaryKey == nil || ref.ForeignKey == nil {
			continue
		}
		return &Relationship{
			Name:       snake(rel.Name),
			Kind:       BelongsTo,
			Target:     rel.FieldSchema.Name,
			ForeignKey: ref.ForeignKey.DBName,
			PrimaryKey: ref.PrimaryKey.DBName,
			Optional:   !ref.ForeignKey.NotNull,
		}
	}
	return nil
}

func gormHas(kind Kind, rel *gormschema.Relationship) *Relationship {
	r := &Relationship{
		Name:   snake(rel.Name),
		Kind:   kind,
		Target: rel.FieldSchema.Name,
	}
	for _, ref := range rel.References {
		if ref.OwnPrimaryKey && ref.PrimaryKey != nil && ref.ForeignKey != nil {
			r.ForeignKey = ref.ForeignKey.DBName
			r.PrimaryKey = ref.PrimaryKey.DBName
		}
	}
	if r.ForeignKey == "" {
		return nil
	}
	if rel.Polymorphic != nil {
		r.Polymorphic = true
		r.TypeColumn = rel.Polymorphic.PolymorphicType.DBName
		r.TypeValue = rel.Polymorphic.Value
	}
	return r
}
