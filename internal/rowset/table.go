// Package rowset holds the tabular model every pipeline stage consumes and
// produces: an ordered set of typed, nullable columns of equal length.
//
// Tables are values. No exported method mutates its receiver; each
// transformation returns a new Table that may share Value slices with its
// input only where they are never written again.
package rowset

import (
	"fmt"
	"slices"
)

// Column is a named, typed run of cells.
type Column struct {
	Name   string
	Kind   Kind
	Values []Value
}

// Table is an ordered collection of equal-length columns.
type Table struct {
	cols  []Column
	index map[string]int
	rows  int
}

// New builds a table from columns. It panics if column lengths differ,
// which is always a programming error inside the pipeline.
func New(cols ...Column) *Table {
	t := &Table{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if i == 0 {
			t.rows = len(c.Values)
		} else if len(c.Values) != t.rows {
			panic(fmt.Sprintf("rowset: column %q has %d values, want %d", c.Name, len(c.Values), t.rows))
		}
		if j, dup := t.index[c.Name]; dup {
			// last definition wins, keeping the first position
			t.cols[j] = c
			continue
		}
		t.index[c.Name] = len(t.cols)
		t.cols = append(t.cols, c)
	}
	return t
}

// Empty returns a zero-row table with the given text columns.
func Empty(names ...string) *Table {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Kind: KindText}
	}
	return New(cols...)
}

// FromRecords builds an all-text table from a header and string records.
// Short records are padded with nulls.
func FromRecords(header []string, records [][]string) *Table {
	cols := make([]Column, len(header))
	for j, h := range header {
		vals := make([]Value, len(records))
		for i, rec := range records {
			if j < len(rec) {
				vals[i] = TextValue(rec[j])
			} else {
				vals[i] = NullValue(KindText)
			}
		}
		cols[j] = Column{Name: h, Kind: KindText, Values: vals}
	}
	t := New(cols...)
	if len(header) == 0 {
		t.rows = len(records)
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Kind returns the kind of a column.
func (t *Table) Kind(name string) (Kind, bool) {
	i, ok := t.index[name]
	if !ok {
		return KindText, false
	}
	return t.cols[i].Kind, true
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	c := t.cols[i]
	c.Values = slices.Clone(c.Values)
	return c, true
}

// At returns the cell at row i of the named column. A missing column reads
// as null text.
func (t *Table) At(i int, name string) Value {
	j, ok := t.index[name]
	if !ok {
		return NullValue(KindText)
	}
	return t.cols[j].Values[i]
}

// Text renders the cell at row i as text ("" for null or missing).
func (t *Table) Text(i int, name string) string {
	return t.At(i, name).String()
}

// Strings renders a whole column as text. A missing column yields nil.
func (t *Table) Strings(name string) []string {
	j, ok := t.index[name]
	if !ok {
		return nil
	}
	out := make([]string, t.rows)
	for i, v := range t.cols[j].Values {
		out[i] = v.String()
	}
	return out
}

// Select keeps the named columns in the given order. Names that are not
// present are skipped.
func (t *Table) Select(names ...string) *Table {
	cols := make([]Column, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if i, ok := t.index[n]; ok && !seen[n] {
			seen[n] = true
			cols = append(cols, t.cols[i])
		}
	}
	out := New(cols...)
	out.rows = t.rows
	return out
}

// Drop removes the named columns if present.
func (t *Table) Drop(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	cols := make([]Column, 0, len(t.cols))
	for _, c := range t.cols {
		if !drop[c.Name] {
			cols = append(cols, c)
		}
	}
	out := New(cols...)
	out.rows = t.rows
	return out
}

// Rename renames columns per the old→new map. Unknown names are ignored.
func (t *Table) Rename(m map[string]string) *Table {
	cols := make([]Column, len(t.cols))
	for i, c := range t.cols {
		if n, ok := m[c.Name]; ok {
			c.Name = n
		}
		cols[i] = c
	}
	out := New(cols...)
	out.rows = t.rows
	return out
}

// Take returns the rows at the given indices, in that order.
func (t *Table) Take(idx []int) *Table {
	cols := make([]Column, len(t.cols))
	for j, c := range t.cols {
		vals := make([]Value, len(idx))
		for k, i := range idx {
			vals[k] = c.Values[i]
		}
		cols[j] = Column{Name: c.Name, Kind: c.Kind, Values: vals}
	}
	out := New(cols...)
	out.rows = len(idx)
	return out
}

// Filter keeps rows for which keep returns true, preserving order.
func (t *Table) Filter(keep func(i int) bool) *Table {
	idx := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return t.Take(idx)
}

// WithColumn replaces the column of the same name in place, or appends it.
func (t *Table) WithColumn(c Column) *Table {
	if len(c.Values) != t.rows {
		panic(fmt.Sprintf("rowset: column %q has %d values, want %d", c.Name, len(c.Values), t.rows))
	}
	cols := slices.Clone(t.cols)
	if i, ok := t.index[c.Name]; ok {
		cols[i] = c
	} else {
		cols = append(cols, c)
	}
	out := New(cols...)
	out.rows = t.rows
	return out
}

// Derive computes a new column row by row and attaches it via WithColumn.
func (t *Table) Derive(name string, kind Kind, fn func(i int) Value) *Table {
	vals := make([]Value, t.rows)
	for i := range vals {
		vals[i] = fn(i)
	}
	return t.WithColumn(Column{Name: name, Kind: kind, Values: vals})
}

// Concat stacks tables vertically with column-union semantics: the result
// has every column of every input in first-seen order, and rows coming from
// a table without a column are null there. Columns whose kinds disagree
// across inputs become text.
func Concat(tables ...*Table) *Table {
	var names []string
	kinds := make(map[string]Kind)
	total := 0
	for _, t := range tables {
		total += t.rows
		for _, c := range t.cols {
			k, seen := kinds[c.Name]
			switch {
			case !seen:
				names = append(names, c.Name)
				kinds[c.Name] = c.Kind
			case k != c.Kind:
				kinds[c.Name] = KindText
			}
		}
	}

	cols := make([]Column, len(names))
	for j, n := range names {
		kind := kinds[n]
		vals := make([]Value, 0, total)
		for _, t := range tables {
			if i, ok := t.index[n]; ok {
				for _, v := range t.cols[i].Values {
					vals = append(vals, v.As(kind))
				}
				continue
			}
			for range t.rows {
				vals = append(vals, NullValue(kind))
			}
		}
		cols[j] = Column{Name: n, Kind: kind, Values: vals}
	}
	out := New(cols...)
	out.rows = total
	return out
}

// Widen places tables side by side. All inputs must have the same row
// count; a later column with an existing name replaces the earlier one.
func Widen(tables ...*Table) *Table {
	var cols []Column
	rows := 0
	for i, t := range tables {
		if i == 0 {
			rows = t.rows
		} else if t.rows != rows {
			panic(fmt.Sprintf("rowset: widen with %d rows, want %d", t.rows, rows))
		}
		cols = append(cols, t.cols...)
	}
	out := New(cols...)
	out.rows = rows
	return out
}
