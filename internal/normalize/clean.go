package normalize

import (
	"trialjoin/internal/rowset"
)

// Options controls one Clean pass.
type Options struct {
	// Fields limits the pass to these columns. Nil means every column.
	// Names that are not present are ignored.
	Fields []string

	ReplaceNullStrings bool
	ReplaceNullNumbers bool
	TrimSpace          bool
	CollapseSpace      bool
	Case               CaseMode

	// DropRows removes rows whose selected cells are all empty.
	DropRows bool
	// DropColumns removes selected columns that are entirely null.
	DropColumns bool
}

// Clean applies opts to t and returns the cleaned table. Numeric and bool
// columns only get null filling, time columns are left alone, and text
// columns get the full text pipeline.
func Clean(t *rowset.Table, opts Options) *rowset.Table {
	present := presentFields(t, opts.Fields)
	out := t

	for _, name := range present {
		col, _ := out.Column(name)
		switch col.Kind {
		case rowset.KindNumber, rowset.KindInt, rowset.KindBool:
			if !opts.ReplaceNullNumbers {
				continue
			}
			for i, v := range col.Values {
				if v.IsNull() {
					col.Values[i] = zero(col.Kind)
				}
			}
		case rowset.KindText:
			for i, v := range col.Values {
				if v.IsNull() {
					if opts.ReplaceNullStrings {
						col.Values[i] = rowset.TextValue("")
					}
					continue
				}
				col.Values[i] = rowset.TextValue(CleanText(v.Str(), opts.TrimSpace, opts.CollapseSpace, opts.Case))
			}
		default:
			continue
		}
		out = out.WithColumn(col)
	}

	if opts.DropRows && len(present) > 0 {
		out = out.Filter(func(i int) bool {
			for _, name := range present {
				if !isEmpty(out.At(i, name)) {
					return true
				}
			}
			return false
		})
	}

	if opts.DropColumns && len(present) > 0 && out.Len() > 0 {
		var drop []string
		for _, name := range present {
			if allNull(out, name) {
				drop = append(drop, name)
			}
		}
		out = out.Drop(drop...)
	}
	return out
}

func presentFields(t *rowset.Table, fields []string) []string {
	if fields == nil {
		return t.Columns()
	}
	present := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if t.Has(f) && !seen[f] {
			seen[f] = true
			present = append(present, f)
		}
	}
	return present
}

func zero(k rowset.Kind) rowset.Value {
	switch k {
	case rowset.KindInt:
		return rowset.IntValue(0)
	case rowset.KindBool:
		return rowset.BoolValue(false)
	}
	return rowset.NumberValue(0)
}

// isEmpty treats a text cell as empty when it is null or "", and any other
// cell as empty only when it is null. Zero is not empty.
func isEmpty(v rowset.Value) bool {
	if v.IsNull() {
		return true
	}
	return v.Kind() == rowset.KindText && v.Str() == ""
}

func allNull(t *rowset.Table, name string) bool {
	for i := 0; i < t.Len(); i++ {
		if !t.At(i, name).IsNull() {
			return false
		}
	}
	return true
}
