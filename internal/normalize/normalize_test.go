package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialjoin/internal/rowset"
)

func text(vals ...any) []rowset.Value {
	out := make([]rowset.Value, len(vals))
	for i, v := range vals {
		if v == nil {
			out[i] = rowset.NullValue(rowset.KindText)
			continue
		}
		out[i] = rowset.TextValue(v.(string))
	}
	return out
}

func TestTitle(t *testing.T) {
	cases := map[string]string{
		"o'neil phase ii":   "O'Neil Phase Ii",
		"PFIZER INC":        "Pfizer Inc",
		"2nd line":          "2Nd Line",
		"already Title Yes": "Already Title Yes",
		"":                  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Title(in), "Title(%q)", in)
		assert.Equal(t, want, Title(Title(in)), "Title is idempotent for %q", in)
	}
}

func TestCleanText(t *testing.T) {
	got := CleanText("  multi\t\tline\r\nvalue   here ", true, true, CaseUpper)
	assert.Equal(t, "MULTI LINE VALUE HERE", got)

	got = CleanText("  keep\tspacing ", true, false, CaseMode("shouting"))
	assert.Equal(t, "keep\tspacing", got, "unknown mode applies no case transform")
}

func TestFirstSegment(t *testing.T) {
	assert.Equal(t, "Pfizer", FirstSegment(" Pfizer, Inc\nMerck"))
	assert.Equal(t, "Industry", FirstSegment("Industry\r\nAcademic, Other"))
	assert.Equal(t, "", FirstSegment(""))
}

func TestCleanFillsAndDrops(t *testing.T) {
	in := rowset.New(
		rowset.Column{Name: "name", Kind: rowset.KindText, Values: text(" a  b ", nil, "c")},
		rowset.Column{Name: "n", Kind: rowset.KindInt, Values: []rowset.Value{rowset.NullValue(rowset.KindInt), rowset.NullValue(rowset.KindInt), rowset.IntValue(5)}},
		rowset.Column{Name: "when", Kind: rowset.KindTime, Values: []rowset.Value{rowset.NullValue(rowset.KindTime), rowset.NullValue(rowset.KindTime), rowset.NullValue(rowset.KindTime)}},
	)
	out := Clean(in, Options{
		ReplaceNullStrings: true,
		ReplaceNullNumbers: true,
		TrimSpace:          true,
		CollapseSpace:      true,
		Case:               CaseTitle,
		DropRows:           true,
		DropColumns:        true,
	})

	require.Equal(t, []string{"name", "n"}, out.Columns(), "all-null time column is dropped")
	require.Equal(t, 3, out.Len(), "zero is not empty, so no row is dropped")
	assert.Equal(t, []string{"A B", "", "C"}, out.Strings("name"))
	assert.Equal(t, []string{"0", "0", "5"}, out.Strings("n"))
	for i := 0; i < out.Len(); i++ {
		assert.False(t, out.At(i, "name").IsNull())
	}
	assert.Equal(t, 3, in.Len(), "input is untouched")
	assert.True(t, in.At(1, "name").IsNull(), "input is untouched")
}

func TestCleanDropsEmptyRows(t *testing.T) {
	in := rowset.New(
		rowset.Column{Name: "a", Kind: rowset.KindText, Values: text("x", "  ", nil)},
		rowset.Column{Name: "b", Kind: rowset.KindText, Values: text("", "", nil)},
	)
	out := Clean(in, Options{ReplaceNullStrings: true, TrimSpace: true, DropRows: true})
	assert.Equal(t, []string{"x"}, out.Strings("a"))
}

func TestCleanRespectsFieldSubset(t *testing.T) {
	in := rowset.New(
		rowset.Column{Name: "a", Kind: rowset.KindText, Values: text(" x ")},
		rowset.Column{Name: "b", Kind: rowset.KindText, Values: text(" y ")},
	)
	out := Clean(in, Options{Fields: []string{"b", "missing"}, TrimSpace: true, Case: CaseUpper})
	assert.Equal(t, " x ", out.Text(0, "a"))
	assert.Equal(t, "Y", out.Text(0, "b"))
}

func TestCleanKeepsSchemaOfEmptyTable(t *testing.T) {
	in := rowset.Empty("a", "b")
	out := Clean(in, Options{DropColumns: true, DropRows: true})
	assert.Equal(t, []string{"a", "b"}, out.Columns())
}

func TestCleanIsIdempotent(t *testing.T) {
	in := rowset.New(
		rowset.Column{Name: "a", Kind: rowset.KindText, Values: text("  mixed   CASE\tvalue", nil, "o'brien")},
		rowset.Column{Name: "n", Kind: rowset.KindNumber, Values: []rowset.Value{rowset.NumberValue(1.5), rowset.NullValue(rowset.KindNumber), rowset.NumberValue(2)}},
	)
	opts := Options{
		ReplaceNullStrings: true, ReplaceNullNumbers: true,
		TrimSpace: true, CollapseSpace: true, Case: CaseTitle,
		DropRows: true, DropColumns: true,
	}
	once := Clean(in, opts)
	twice := Clean(once, opts)
	require.Equal(t, once.Columns(), twice.Columns())
	for _, c := range once.Columns() {
		assert.Equal(t, once.Strings(c), twice.Strings(c), c)
	}
}

func TestStripPunctuationIsPure(t *testing.T) {
	in := rowset.New(
		rowset.Column{Name: "a", Kind: rowset.KindText, Values: text("Drug: X-1 (oral);", nil)},
		rowset.Column{Name: "n", Kind: rowset.KindNumber, Values: []rowset.Value{rowset.NumberValue(1.5), rowset.NumberValue(2)}},
	)
	out := StripPunctuation(in)
	assert.Equal(t, "Drug X1 oral", out.Text(0, "a"))
	assert.True(t, out.At(1, "a").IsNull())
	assert.Equal(t, "1.5", out.Text(0, "n"))
	assert.Equal(t, "Drug: X-1 (oral);", in.Text(0, "a"))
}

func TestToTimesAndInts(t *testing.T) {
	in := rowset.New(
		rowset.Column{Name: "d", Kind: rowset.KindText, Values: text("2023-02-15", "not a date", nil)},
		rowset.Column{Name: "id", Kind: rowset.KindText, Values: text("42", "4.5", "x")},
		rowset.Column{Name: "Trial ID", Kind: rowset.KindText, Values: text("1e20", "99999999999999999999", "1.2e3")},
	)
	out := ToInts(ToTimes(in, "d", "missing"), "id", "Trial ID")

	k, _ := out.Kind("d")
	require.Equal(t, rowset.KindTime, k)
	assert.Equal(t, time.Date(2023, 2, 15, 0, 0, 0, 0, time.UTC), out.At(0, "d").Time())
	assert.True(t, out.At(1, "d").IsNull())
	assert.True(t, out.At(2, "d").IsNull())

	assert.Equal(t, int64(42), out.At(0, "id").Int())
	assert.True(t, out.At(1, "id").IsNull())
	assert.True(t, out.At(2, "id").IsNull())

	assert.True(t, out.At(0, "Trial ID").IsNull(), "out of int64 range")
	assert.True(t, out.At(1, "Trial ID").IsNull(), "out of int64 range")
	assert.Equal(t, int64(1200), out.At(2, "Trial ID").Int())
}
