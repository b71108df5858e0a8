// Package transform rewrites fetched rows before they are written: raw
// customizations, field anonymization and column nullification, registered
// per model and applied in registration order.
package transform

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dbsmedya/goseed/internal/config"
	"github.com/dbsmedya/goseed/internal/schema"
	"github.com/dbsmedya/goseed/internal/types"
)

var (
	// ErrUnknownGenerator is returned for an anonymizer kind that does not exist.
	ErrUnknownGenerator = errors.New("unknown generator")
	// ErrUnknownField is returned when a transform names a column the model lacks.
	ErrUnknownField = errors.New("unknown field")
)

// Customizer mutates a record in place.
type Customizer interface {
	Apply(r *types.Record) error
}

// Func adapts a plain function to Customizer.
type Func func(r *types.Record) error

// Apply calls f(r).
func (f Func) Apply(r *types.Record) error { return f(r) }

type fieldCustomizer struct {
	field string
	gen   Generator
}

// Apply replaces the field with the generated value. Fields the record does
// not carry (ignored columns) are left out.
func (c fieldCustomizer) Apply(r *types.Record) error {
	current, ok := r.Get(c.field)
	if !ok {
		return nil
	}
	v, err := c.gen(current)
	if err != nil {
		return fmt.Errorf("field %s: %w", c.field, err)
	}
	r.Set(c.field, v)
	return nil
}

// Pipeline holds the customizers of every model.
type Pipeline struct {
	byModel map[string][]Customizer
	fields  map[string][]string
	order   []string
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		byModel: make(map[string][]Customizer),
		fields:  make(map[string][]string),
	}
}

func (p *Pipeline) add(model string, c Customizer, fields ...string) {
	if _, seen := p.byModel[model]; !seen {
		p.order = append(p.order, model)
	}
	p.byModel[model] = append(p.byModel[model], c)
	p.fields[model] = append(p.fields[model], fields...)
}

// Customize registers a raw mutation of the whole record.
func (p *Pipeline) Customize(model string, fn func(r *types.Record) error) error {
	if model == "" {
		return fmt.Errorf("customizer needs a model")
	}
	if fn == nil {
		return fmt.Errorf("customizer for %s is nil", model)
	}
	p.add(model, Func(fn))
	return nil
}

// Anonymize registers a generator for one field of model.
func (p *Pipeline) Anonymize(model, field string, gen Generator) error {
	if model == "" || field == "" {
		return fmt.Errorf("anonymizer needs a model and a field")
	}
	if gen == nil {
		return fmt.Errorf("anonymizer for %s.%s is nil", model, field)
	}
	p.add(model, fieldCustomizer{field: field, gen: gen}, field)
	return nil
}

// Has reports whether any customizer is registered for model.
func (p *Pipeline) Has(model string) bool {
	return len(p.byModel[model]) > 0
}

// Models returns the models with customizers in registration order.
func (p *Pipeline) Models() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Apply runs the customizers of model over a copy of r. Without customizers
// r is returned as is.
func (p *Pipeline) Apply(model string, r *types.Record) (*types.Record, error) {
	customizers := p.byModel[model]
	if len(customizers) == 0 {
		return r, nil
	}
	out := r.Copy()
	for _, c := range customizers {
		if err := c.Apply(out); err != nil {
			return nil, fmt.Errorf("transform %s: %w", model, err)
		}
	}
	return out, nil
}

// Validate checks that every model is in the catalog and every anonymized
// field is one of its columns.
func (p *Pipeline) Validate(cat schema.Catalog) error {
	for _, model := range p.order {
		m, err := cat.Model(model)
		if err != nil {
			return fmt.Errorf("transform: %w", err)
		}
		if len(m.Columns) == 0 {
			continue
		}
		for _, field := range p.fields[model] {
			if _, ok := m.Column(field); !ok {
				return fmt.Errorf("transform %s.%s: %w", model, field, ErrUnknownField)
			}
		}
	}
	return nil
}

// FromConfig builds a pipeline from the transforms section. Entries run in
// list order; within a set block columns are assigned in name order.
func FromConfig(entries []config.TransformConfig) (*Pipeline, error) {
	p := NewPipeline()
	for i, e := range entries {
		if len(e.Set) > 0 {
			columns := make([]string, 0, len(e.Set))
			for col := range e.Set {
				columns = append(columns, col)
			}
			sort.Strings(columns)
			for _, col := range columns {
				if err := p.Anonymize(e.Model, col, Fixed(e.Set[col])); err != nil {
					return nil, fmt.Errorf("transforms[%d]: %w", i, err)
				}
			}
		}
		for _, col := range e.Nullify {
			if err := p.Anonymize(e.Model, col, Null()); err != nil {
				return nil, fmt.Errorf("transforms[%d]: %w", i, err)
			}
		}
		for j, a := range e.Anonymize {
			gen, err := NewGenerator(a)
			if err != nil {
				return nil, fmt.Errorf("transforms[%d].anonymize[%d]: %w", i, j, err)
			}
			if err := p.Anonymize(e.Model, a.Field, gen); err != nil {
				return nil, fmt.Errorf("transforms[%d].anonymize[%d]: %w", i, j, err)
			}
		}
	}
	return p, nil
}
