package tabular

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"trialjoin/internal/rowset"
)

// Key/value metadata written alongside every parquet output. Parquet groups
// order their fields by name, so the column order and kinds are kept here.
const (
	metaColumns = "trialjoin.columns"
	metaKinds   = "trialjoin.kinds"
)

const parquetFlushInterval = 100_000

func parquetNode(k rowset.Kind) parquet.Node {
	switch k {
	case rowset.KindNumber:
		return parquet.Optional(parquet.Leaf(parquet.DoubleType))
	case rowset.KindInt:
		return parquet.Optional(parquet.Int(64))
	case rowset.KindBool:
		return parquet.Optional(parquet.Leaf(parquet.BooleanType))
	case rowset.KindTime:
		return parquet.Optional(parquet.Timestamp(parquet.Microsecond))
	}
	return parquet.Optional(parquet.String())
}

func parquetValue(v rowset.Value, col int) parquet.Value {
	if v.IsNull() {
		return parquet.NullValue().Level(0, 0, col)
	}
	var pv parquet.Value
	switch v.Kind() {
	case rowset.KindNumber:
		pv = parquet.DoubleValue(v.Float())
	case rowset.KindInt:
		pv = parquet.Int64Value(v.Int())
	case rowset.KindBool:
		pv = parquet.BooleanValue(v.Bool())
	case rowset.KindTime:
		pv = parquet.Int64Value(v.Time().UnixMicro())
	default:
		pv = parquet.ByteArrayValue([]byte(v.String()))
	}
	return pv.Level(0, 1, col)
}

// WriteParquet writes t as a flat, all-optional, zstd-compressed file.
func WriteParquet(path string, t *rowset.Table) error {
	cols := t.Columns()
	group := make(parquet.Group, len(cols))
	kinds := make(map[string]string, len(cols))
	for _, c := range cols {
		k, _ := t.Kind(c)
		group[c] = parquetNode(k)
		kinds[c] = k.String()
	}
	schema := parquet.NewSchema("trialjoin", group)

	order := make([]int, len(cols))
	for j, c := range cols {
		leaf, ok := schema.Lookup(c)
		if !ok {
			return fmt.Errorf("parquet schema lost column %q", c)
		}
		order[j] = leaf.ColumnIndex
	}

	colsJSON, err := json.Marshal(cols)
	if err != nil {
		return err
	}
	kindsJSON, err := json.Marshal(kinds)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}
	writer := parquet.NewWriter(file,
		schema,
		parquet.Compression(&parquet.Zstd),
		parquet.KeyValueMetadata(metaColumns, string(colsJSON)),
		parquet.KeyValueMetadata(metaKinds, string(kindsJSON)),
	)

	row := make(parquet.Row, len(cols))
	for i := 0; i < t.Len(); i++ {
		for j, c := range cols {
			row[order[j]] = parquetValue(t.At(i, c), order[j])
		}
		if _, err := writer.WriteRows([]parquet.Row{row}); err != nil {
			file.Close()
			return fmt.Errorf("write parquet row %d: %w", i, err)
		}
		if (i+1)%parquetFlushInterval == 0 {
			if err := writer.Flush(); err != nil {
				file.Close()
				return fmt.Errorf("flush parquet row group: %w", err)
			}
		}
	}

	if err := writer.Close(); err != nil {
		file.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return file.Close()
}

// ReadParquet loads a flat parquet file. Files written by WriteParquet get
// their column order and kinds back; other files use schema order and the
// physical type of each leaf.
func ReadParquet(path string) (*rowset.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	schema := pf.Schema()

	var names []string
	if s, ok := pf.Lookup(metaColumns); ok {
		if err := json.Unmarshal([]byte(s), &names); err != nil {
			return nil, fmt.Errorf("%s: bad %s metadata: %w", path, metaColumns, err)
		}
	} else {
		for _, p := range schema.Columns() {
			if len(p) == 1 {
				names = append(names, p[0])
			}
		}
	}
	savedKinds := map[string]string{}
	if s, ok := pf.Lookup(metaKinds); ok {
		if err := json.Unmarshal([]byte(s), &savedKinds); err != nil {
			return nil, fmt.Errorf("%s: bad %s metadata: %w", path, metaKinds, err)
		}
	}

	kinds := make([]rowset.Kind, len(names))
	byLeaf := make(map[int]int, len(names))
	for j, n := range names {
		leaf, ok := schema.Lookup(n)
		if !ok {
			return nil, fmt.Errorf("%s: column %q missing from schema", path, n)
		}
		byLeaf[leaf.ColumnIndex] = j
		kinds[j] = leafKind(leaf.Node.Type().Kind())
		if s, ok := savedKinds[n]; ok {
			kinds[j] = kindFromString(s, kinds[j])
		}
	}

	vals := make([][]rowset.Value, len(names))
	buf := make([]parquet.Row, 256)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, r := range buf[:n] {
				cells := make([]rowset.Value, len(names))
				for j, k := range kinds {
					cells[j] = rowset.NullValue(k)
				}
				for _, v := range r {
					j, ok := byLeaf[v.Column()]
					if !ok {
						continue
					}
					cells[j] = fromParquet(v, kinds[j])
				}
				for j := range names {
					vals[j] = append(vals[j], cells[j])
				}
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("read parquet rows %s: %w", path, err)
			}
		}
		rows.Close()
	}

	cols := make([]rowset.Column, len(names))
	for j, n := range names {
		v := vals[j]
		if v == nil {
			v = []rowset.Value{}
		}
		cols[j] = rowset.Column{Name: n, Kind: kinds[j], Values: v}
	}
	return rowset.New(cols...), nil
}

func leafKind(k parquet.Kind) rowset.Kind {
	switch k {
	case parquet.Boolean:
		return rowset.KindBool
	case parquet.Int32, parquet.Int64:
		return rowset.KindInt
	case parquet.Float, parquet.Double:
		return rowset.KindNumber
	}
	return rowset.KindText
}

func kindFromString(s string, fallback rowset.Kind) rowset.Kind {
	for _, k := range []rowset.Kind{rowset.KindText, rowset.KindNumber, rowset.KindInt, rowset.KindBool, rowset.KindTime} {
		if k.String() == s {
			return k
		}
	}
	return fallback
}

func fromParquet(v parquet.Value, k rowset.Kind) rowset.Value {
	if v.IsNull() {
		return rowset.NullValue(k)
	}
	switch k {
	case rowset.KindBool:
		return rowset.BoolValue(v.Boolean())
	case rowset.KindInt:
		if v.Kind() == parquet.Int32 {
			return rowset.IntValue(int64(v.Int32()))
		}
		return rowset.IntValue(v.Int64())
	case rowset.KindNumber:
		if v.Kind() == parquet.Float {
			return rowset.NumberValue(float64(v.Float()))
		}
		return rowset.NumberValue(v.Double())
	case rowset.KindTime:
		return rowset.TimeValue(time.UnixMicro(v.Int64()).UTC())
	}
	return rowset.TextValue(string(v.ByteArray()))
}
