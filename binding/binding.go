// Package binding resolves template fields to row values through a
// user-declared field to column mapping.
//
// Resolution never fails: an unmapped field, a mapping that names a column no
// longer present in the headers, a short row, and a nil cell all resolve to
// the empty string.
package binding

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/lvillar/pdfmerge/placeholder"
)

// Mapping associates placeholder field names with dataset column headers.
type Mapping map[string]string

// Column returns the column mapped to field.
func (m Mapping) Column(field string) (string, bool) {
	col, ok := m[field]
	return col, ok
}

// Resolve returns the value of field for one row. headers gives the column
// order the row is aligned to.
func Resolve(field string, mapping Mapping, row []any, headers []string) string {
	col, ok := mapping.Column(field)
	if !ok {
		return ""
	}
	idx := indexOf(headers, col)
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return Stringify(row[idx])
}

// Stringify converts a cell value to the text substituted into a template.
// nil becomes "" rather than "null" or "<nil>".
func Stringify(v any) string {
	if v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

func indexOf(headers []string, col string) int {
	for i, h := range headers {
		if h == col {
			return i
		}
	}
	return -1
}

// Record binds a mapping to one positional row.
type Record struct {
	mapping Mapping
	index   map[string]int
	row     []any
}

var _ placeholder.Binder = (*Record)(nil)

// ForRecord returns a binder for row, whose cells are aligned by index to
// headers. The header index is built once so repeated lookups stay cheap.
func ForRecord(mapping Mapping, headers []string, row []any) *Record {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	return &Record{mapping: mapping, index: index, row: row}
}

// Resolve implements placeholder.Binder.
func (r *Record) Resolve(field string) string {
	col, ok := r.mapping.Column(field)
	if !ok {
		return ""
	}
	idx, ok := r.index[col]
	if !ok || idx >= len(r.row) {
		return ""
	}
	return Stringify(r.row[idx])
}

// Values binds a mapping to a row already keyed by column name.
type Values struct {
	mapping Mapping
	values  map[string]any
}

var _ placeholder.Binder = (*Values)(nil)

// ForValues returns a binder over a column-keyed row.
func ForValues(mapping Mapping, values map[string]any) *Values {
	return &Values{mapping: mapping, values: values}
}

// Resolve implements placeholder.Binder.
func (v *Values) Resolve(field string) string {
	col, ok := v.mapping.Column(field)
	if !ok {
		return ""
	}
	return Stringify(v.values[col])
}

// RowValues turns a positional row into a column-keyed map. Cells beyond the
// headers are dropped; missing cells are absent from the map.
func RowValues(headers []string, row []any) map[string]any {
	m := make(map[string]any, len(headers))
	for i, h := range headers {
		if i >= len(row) {
			break
		}
		if _, dup := m[h]; dup {
			continue
		}
		m[h] = row[i]
	}
	return m
}

// Identity maps every header to itself. It is the default when a caller
// names placeholders after the dataset columns.
func Identity(headers []string) Mapping {
	m := make(Mapping, len(headers))
	for _, h := range headers {
		m[h] = h
	}
	return m
}
