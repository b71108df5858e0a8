package dumper

import (
	"fmt"
	"io"
	"strings"

	"github.com/dbsmedya/goseed/internal/dialect"
	"github.com/dbsmedya/goseed/internal/schema"
	"github.com/dbsmedya/goseed/internal/types"
)

// insertWriter formats the rows of one walker as multi-row INSERT
// statements preceded by a "-- <path>" line.
type insertWriter struct {
	out       io.Writer
	d         dialect.Dialect
	model     *schema.Model
	path      string
	batchSize int

	// columns are fixed by the first row when the model has none declared.
	columns []string
	ignored map[string]bool
	head    string

	started bool
	tuples  int
}

func newInsertWriter(out io.Writer, d dialect.Dialect, m *schema.Model, columns []string, ignored []string, path string, batchSize int) *insertWriter {
	if batchSize <= 0 {
		batchSize = 1000
	}
	skip := make(map[string]bool, len(ignored))
	for _, c := range ignored {
		skip[c] = true
	}
	return &insertWriter{
		out:       out,
		d:         d,
		model:     m,
		path:      path,
		batchSize: batchSize,
		columns:   columns,
		ignored:   skip,
	}
}

func (w *insertWriter) prepare(r *types.Record) error {
	if len(w.columns) == 0 {
		for _, c := range r.Columns() {
			if !w.ignored[c] {
				w.columns = append(w.columns, c)
			}
		}
	}
	table, err := dialect.QuoteIdentifierSafe(w.d, w.model.Table)
	if err != nil {
		return err
	}
	cols := make([]string, len(w.columns))
	for i, c := range w.columns {
		q, err := dialect.QuoteIdentifierSafe(w.d, c)
		if err != nil {
			return err
		}
		cols[i] = q
	}
	w.head = fmt.Sprintf("INSERT INTO %s (%s) VALUES\n", table, strings.Join(cols, ", "))
	if _, err := fmt.Fprintf(w.out, "-- %s\n", w.path); err != nil {
		return err
	}
	w.started = true
	return nil
}

// write appends one row, closing the statement every batchSize tuples.
func (w *insertWriter) write(r *types.Record) error {
	if !w.started {
		if err := w.prepare(r); err != nil {
			return fmt.Errorf("table %s: %w", w.model.Table, err)
		}
	}

	values := make([]string, len(w.columns))
	for i, c := range w.columns {
		lit, err := w.d.Encode(w.model.ColumnType(c), r.Value(c))
		if err != nil {
			return fmt.Errorf("encode %s.%s: %w", w.model.Table, c, err)
		}
		values[i] = lit
	}

	var b strings.Builder
	if w.tuples == 0 {
		b.WriteString(w.head)
	} else {
		b.WriteString(",\n")
	}
	b.WriteString("  (" + strings.Join(values, ", ") + ")")
	w.tuples++
	if w.tuples == w.batchSize {
		b.WriteString(";\n\n")
		w.tuples = 0
	}
	_, err := io.WriteString(w.out, b.String())
	return err
}

// finish terminates an open statement.
func (w *insertWriter) finish() error {
	if w.tuples == 0 {
		return nil
	}
	w.tuples = 0
	_, err := io.WriteString(w.out, ";\n\n")
	return err
}
