package tabular

import (
	"fmt"

	"github.com/extrame/xls"

	"trialjoin/internal/rowset"
)

// ReadXLS loads one sheet of a legacy BIFF workbook. The first row is the
// header.
func ReadXLS(path, sheet string) (*rowset.Table, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open legacy workbook %s: %w", path, err)
	}

	names := make([]string, wb.NumSheets())
	for i := range names {
		if s := wb.GetSheet(i); s != nil {
			names[i] = s.Name
		}
	}
	name, err := resolveSheet(names, sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var ws *xls.WorkSheet
	for i, n := range names {
		if n == name {
			ws = wb.GetSheet(i)
			break
		}
	}
	if ws == nil {
		return nil, fmt.Errorf("%s: sheet %q is unreadable", path, name)
	}

	var rows [][]string
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := xlsRow(ws, i)
		if row == nil {
			continue
		}
		cells := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return rowset.Empty(), nil
	}
	return FromStrings(rows[0], rows[1:]), nil
}

// xlsRow returns row i or nil. WorkSheet.Row panics on rows the sheet never
// stored.
func xlsRow(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}
