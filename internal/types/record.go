// Package types contains shared types used across multiple packages to avoid import cycles.
package types

import (
	"github.com/elliotchance/orderedmap/v2"
)

// Record is one fetched row: column name -> value, in select order.
// It is a plain attribute map, never bound to a live connection.
type Record struct {
	attrs *orderedmap.OrderedMap[string, interface{}]
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{attrs: orderedmap.NewOrderedMap[string, interface{}]()}
}

// RecordFromRow builds a record from parallel column and value slices.
func RecordFromRow(columns []string, values []interface{}) *Record {
	r := NewRecord()
	for i, col := range columns {
		r.attrs.Set(col, values[i])
	}
	return r
}

// Get returns the value of column and whether the column exists.
func (r *Record) Get(column string) (interface{}, bool) {
	return r.attrs.Get(column)
}

// Value returns the value of column or nil when the column is absent.
func (r *Record) Value(column string) interface{} {
	v, _ := r.attrs.Get(column)
	return v
}

// Has reports whether the record carries column.
func (r *Record) Has(column string) bool {
	_, ok := r.attrs.Get(column)
	return ok
}

// Set assigns a column. New columns are appended after existing ones.
func (r *Record) Set(column string, value interface{}) {
	r.attrs.Set(column, value)
}

// Columns returns column names in order.
func (r *Record) Columns() []string {
	return r.attrs.Keys()
}

// Len returns the number of columns.
func (r *Record) Len() int {
	return r.attrs.Len()
}

// Copy returns a deep copy. Byte slices are cloned so mutations of the copy
// never leak into the fetched row.
func (r *Record) Copy() *Record {
	c := NewRecord()
	for el := r.attrs.Front(); el != nil; el = el.Next() {
		c.attrs.Set(el.Key, copyValue(el.Value))
	}
	return c
}

func copyValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		if b == nil {
			return b
		}
		dup := make([]byte, len(b))
		copy(dup, b)
		return dup
	}
	return v
}
