package tabular

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"trialjoin/internal/rowset"
)

// DefaultSheet is the sheet name used when writing workbooks.
const DefaultSheet = "Sheet1"

// resolveSheet picks a sheet by name, or by zero-based index when the
// selector is numeric. An empty selector means the first sheet.
func resolveSheet(names []string, sel string) (string, error) {
	if len(names) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return names[0], nil
	}
	for _, n := range names {
		if n == sel {
			return n, nil
		}
	}
	if idx, err := strconv.Atoi(sel); err == nil && idx >= 0 && idx < len(names) {
		return names[idx], nil
	}
	return "", fmt.Errorf("sheet %q not found (have %s)", sel, strings.Join(names, ", "))
}

// ReadXLSX loads one sheet of an Office Open XML workbook. The first row is
// the header.
func ReadXLSX(path, sheet string) (*rowset.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	name, err := resolveSheet(f.GetSheetList(), sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", name, path, err)
	}
	if len(rows) == 0 {
		return rowset.Empty(), nil
	}
	return FromStrings(rows[0], rows[1:]), nil
}

// WriteXLSX writes t to a single-sheet workbook through the stream writer.
func WriteXLSX(path string, t *rowset.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(DefaultSheet)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}

	cols := t.Columns()
	header := make([]interface{}, len(cols))
	for j, c := range cols {
		header[j] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]interface{}, len(cols))
	for i := 0; i < t.Len(); i++ {
		for j, c := range cols {
			row[j] = cellValue(t.At(i, c))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func cellValue(v rowset.Value) interface{} {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case rowset.KindNumber:
		return v.Float()
	case rowset.KindInt:
		return v.Int()
	case rowset.KindBool:
		return v.Bool()
	}
	return v.String()
}
