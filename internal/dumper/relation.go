package dumper

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/goseed/internal/dialect"
	"github.com/dbsmedya/goseed/internal/schema"
)

// condition is one WHERE term. render receives the number of the first
// placeholder the term may use.
type condition struct {
	render func(next int) string
	args   []interface{}
}

// raw is a condition written by the user. Its placeholders are already in
// the text, so args only advance the placeholder counter.
func raw(sql string, args ...interface{}) condition {
	return condition{render: func(int) string { return sql }, args: args}
}

// relation is a SELECT over one model, assembled from scopes.
type relation struct {
	d          dialect.Dialect
	model      *schema.Model
	columns    []string // nil selects every column
	conditions []condition
	order      string
	limit      int
}

func newRelation(d dialect.Dialect, m *schema.Model, columns []string) *relation {
	return &relation{d: d, model: m, columns: columns}
}

// where adds a raw condition. Empty conditions are ignored.
func (r *relation) where(sql string, args ...interface{}) *relation {
	if strings.TrimSpace(sql) == "" {
		return r
	}
	r.conditions = append(r.conditions, raw(sql, args...))
	return r
}

// whereEq adds column = value with a generated placeholder.
func (r *relation) whereEq(column string, value interface{}) *relation {
	col := r.d.QuoteIdentifier(column)
	d := r.d
	r.conditions = append(r.conditions, condition{
		render: func(next int) string { return col + " = " + d.Placeholder(next) },
		args:   []interface{}{value},
	})
	return r
}

// in is column IN (values...).
func (r *relation) in(column string, values []interface{}) condition {
	col := r.d.QuoteIdentifier(column)
	d := r.d
	return condition{
		render: func(next int) string { return col + " IN (" + dialect.Placeholders(d, next, len(values)) + ")" },
		args:   values,
	}
}

// after is column > value, the keyset paging condition.
func (r *relation) after(column string, value interface{}) condition {
	col := r.d.QuoteIdentifier(column)
	d := r.d
	return condition{
		render: func(next int) string { return col + " > " + d.Placeholder(next) },
		args:   []interface{}{value},
	}
}

// defaultOrder is the ORDER BY used when paging: the relation's own order,
// then the primary key so pages are stable.
func (r *relation) defaultOrder() string {
	pk := r.model.PrimaryKey
	switch {
	case r.order != "" && pk != "":
		return r.order + ", " + r.d.QuoteIdentifier(pk)
	case r.order != "":
		return r.order
	case pk != "":
		return r.d.QuoteIdentifier(pk)
	case len(r.columns) > 0:
		pos := make([]string, len(r.columns))
		for i := range pos {
			pos[i] = fmt.Sprintf("%d", i+1)
		}
		return strings.Join(pos, ", ")
	default:
		return ""
	}
}

func (r *relation) selectList() (string, error) {
	if len(r.columns) == 0 {
		return "*", nil
	}
	quoted := make([]string, len(r.columns))
	for i, c := range r.columns {
		q, err := dialect.QuoteIdentifierSafe(r.d, c)
		if err != nil {
			return "", err
		}
		quoted[i] = q
	}
	return strings.Join(quoted, ", "), nil
}

// toSQL renders the relation with extra conditions appended.
func (r *relation) toSQL(order string, limit, offset int, extra ...condition) (string, []interface{}, error) {
	cols, err := r.selectList()
	if err != nil {
		return "", nil, fmt.Errorf("model %s: %w", r.model.Name, err)
	}
	return r.render("SELECT "+cols, order, limit, offset, extra...)
}

// countSQL renders SELECT COUNT(*) over the relation.
func (r *relation) countSQL(extra ...condition) (string, []interface{}, error) {
	return r.render("SELECT COUNT(*)", "", 0, 0, extra...)
}

func (r *relation) render(head, order string, limit, offset int, extra ...condition) (string, []interface{}, error) {
	table, err := dialect.QuoteIdentifierSafe(r.d, r.model.Table)
	if err != nil {
		return "", nil, fmt.Errorf("model %s: %w", r.model.Name, err)
	}

	var b strings.Builder
	b.WriteString(head)
	b.WriteString(" FROM ")
	b.WriteString(table)

	all := make([]condition, 0, len(r.conditions)+len(extra))
	all = append(all, r.conditions...)
	all = append(all, extra...)

	var args []interface{}
	for i, c := range all {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString("(" + c.render(len(args)+1) + ")")
		args = append(args, c.args...)
	}

	if order != "" {
		b.WriteString(" ORDER BY " + order)
	}
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	if offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", offset)
	}
	return b.String(), args, nil
}
