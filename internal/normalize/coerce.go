package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"trialjoin/internal/rowset"
)

// ParseTime parses a free-form date. Unparseable input yields ok=false.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ToTimes converts the named columns to time. Cells that cannot be parsed
// become null. Missing columns are skipped.
func ToTimes(t *rowset.Table, cols ...string) *rowset.Table {
	for _, name := range cols {
		col, ok := t.Column(name)
		if !ok || col.Kind == rowset.KindTime {
			continue
		}
		for i, v := range col.Values {
			col.Values[i] = toTime(v)
		}
		col.Kind = rowset.KindTime
		t = t.WithColumn(col)
	}
	return t
}

func toTime(v rowset.Value) rowset.Value {
	if v.IsNull() {
		return rowset.NullValue(rowset.KindTime)
	}
	if v.Kind() == rowset.KindTime {
		return v
	}
	if ts, ok := ParseTime(v.String()); ok {
		return rowset.TimeValue(ts)
	}
	return rowset.NullValue(rowset.KindTime)
}

// ToInts converts the named columns to nullable integers. Non-integral or
// unparseable cells become null. Missing columns are skipped.
func ToInts(t *rowset.Table, cols ...string) *rowset.Table {
	for _, name := range cols {
		col, ok := t.Column(name)
		if !ok || col.Kind == rowset.KindInt {
			continue
		}
		for i, v := range col.Values {
			col.Values[i] = toInt(v)
		}
		col.Kind = rowset.KindInt
		t = t.WithColumn(col)
	}
	return t
}

func toInt(v rowset.Value) rowset.Value {
	if v.IsNull() {
		return rowset.NullValue(rowset.KindInt)
	}
	switch v.Kind() {
	case rowset.KindInt:
		return v
	case rowset.KindNumber:
		return v.As(rowset.KindInt)
	case rowset.KindText:
		s := strings.TrimSpace(v.Str())
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return rowset.IntValue(n)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return rowset.NumberValue(f).As(rowset.KindInt)
		}
	}
	return rowset.NullValue(rowset.KindInt)
}

// StripPunctuation removes punctuation from the named columns, or from
// every text column when none are named. It returns a new table.
func StripPunctuation(t *rowset.Table, cols ...string) *rowset.Table {
	if len(cols) == 0 {
		for _, name := range t.Columns() {
			if k, _ := t.Kind(name); k == rowset.KindText {
				cols = append(cols, name)
			}
		}
	}
	for _, name := range cols {
		col, ok := t.Column(name)
		if !ok {
			continue
		}
		for i, v := range col.Values {
			if v.IsNull() {
				continue
			}
			col.Values[i] = rowset.TextValue(StripPunct(v.String()))
		}
		col.Kind = rowset.KindText
		t = t.WithColumn(col)
	}
	return t
}
