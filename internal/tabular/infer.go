package tabular

import (
	"strconv"
	"strings"

	"trialjoin/internal/rowset"
)

// FromStrings builds a table from a header and raw string records,
// inferring one kind per column. Empty cells are null. A column whose
// non-empty cells all parse as integers is Int, as numbers is Number, as
// true/false is Bool; anything else is Text.
func FromStrings(header []string, records [][]string) *rowset.Table {
	header = dedupeHeader(header)
	cols := make([]rowset.Column, len(header))
	for j, name := range header {
		raw := make([]string, len(records))
		for i, rec := range records {
			if j < len(rec) {
				raw[i] = rec[j]
			}
		}
		cols[j] = inferColumn(name, raw)
	}
	return rowset.New(cols...)
}

func inferColumn(name string, raw []string) rowset.Column {
	kind := inferKind(raw)
	vals := make([]rowset.Value, len(raw))
	for i, s := range raw {
		vals[i] = parseCell(s, kind)
	}
	return rowset.Column{Name: name, Kind: kind, Values: vals}
}

func inferKind(raw []string) rowset.Kind {
	isInt, isNum, isBool := true, true, true
	seen := false
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		seen = true
		if isInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				isInt = false
			}
		}
		if isNum {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				isNum = false
			}
		}
		if isBool {
			if _, ok := parseBool(s); !ok {
				isBool = false
			}
		}
		if !isInt && !isNum && !isBool {
			break
		}
	}
	switch {
	case !seen:
		return rowset.KindText
	case isInt:
		return rowset.KindInt
	case isNum:
		return rowset.KindNumber
	case isBool:
		return rowset.KindBool
	}
	return rowset.KindText
}

func parseCell(s string, kind rowset.Kind) rowset.Value {
	if kind == rowset.KindText {
		if s == "" {
			return rowset.NullValue(kind)
		}
		return rowset.TextValue(s)
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return rowset.NullValue(kind)
	}
	switch kind {
	case rowset.KindInt:
		n, _ := strconv.ParseInt(trimmed, 10, 64)
		return rowset.IntValue(n)
	case rowset.KindNumber:
		f, _ := strconv.ParseFloat(trimmed, 64)
		return rowset.NumberValue(f)
	case rowset.KindBool:
		b, _ := parseBool(trimmed)
		return rowset.BoolValue(b)
	}
	return rowset.TextValue(s)
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// dedupeHeader suffixes repeated names with .1, .2 and so on, and names
// blank headers "Unnamed: N".
func dedupeHeader(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for n := 1; used[name]; n++ {
			name = h + "." + strconv.Itoa(n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}
