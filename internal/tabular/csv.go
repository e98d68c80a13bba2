package tabular

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"trialjoin/internal/rowset"
)

// ReadCSV loads a whole CSV file. The first record is the header; a UTF-8
// BOM is skipped and ragged rows are tolerated.
func ReadCSV(path string) (*rowset.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	t, err := DecodeCSV(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// DecodeCSV reads CSV from r.
func DecodeCSV(r io.Reader) (*rowset.Table, error) {
	bufReader := bufio.NewReaderSize(r, 256*1024)

	// Skip UTF-8 BOM if present
	bom, err := bufReader.Peek(3)
	if err == nil && len(bom) >= 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		bufReader.Discard(3)
	}

	reader := csv.NewReader(bufReader)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return rowset.Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header row: %w", err)
	}

	var records [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(records)+2, err)
		}
		records = append(records, rec)
	}
	return FromStrings(header, records), nil
}

// WriteCSV writes t with a header row. Nulls are written as empty fields.
func WriteCSV(path string, t *rowset.Table) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := EncodeCSV(file, t); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

// EncodeCSV writes t to w.
func EncodeCSV(w io.Writer, t *rowset.Table) error {
	bw := bufio.NewWriterSize(w, 256*1024)
	cw := csv.NewWriter(bw)
	cols := t.Columns()
	if err := cw.Write(cols); err != nil {
		return err
	}
	rec := make([]string, len(cols))
	for i := 0; i < t.Len(); i++ {
		for j, c := range cols {
			rec[j] = t.Text(i, c)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}
