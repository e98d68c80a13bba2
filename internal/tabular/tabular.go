// Package tabular reads and writes rowsets as CSV, XLSX, legacy XLS and
// Parquet files.
package tabular

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"trialjoin/internal/rowset"
)

// Format is a file format recognized by Read and Save.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatXLS     Format = "xls"
	FormatParquet Format = "parquet"
)

// FormatOf maps a file extension to a format.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, true
	case ".xlsx", ".xlsm":
		return FormatXLSX, true
	case ".xls":
		return FormatXLS, true
	case ".parquet":
		return FormatParquet, true
	}
	return "", false
}

var (
	magicZip     = []byte("PK\x03\x04")
	magicOLE2    = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	magicParquet = []byte("PAR1")
)

// Sniff guesses the format of a file from its leading bytes. Anything that
// is not a zip container, an OLE2 compound file or parquet is taken to be
// CSV.
func Sniff(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 8)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	head = head[:n]
	switch {
	case bytes.HasPrefix(head, magicZip):
		return FormatXLSX, nil
	case bytes.HasPrefix(head, magicOLE2):
		return FormatXLS, nil
	case bytes.HasPrefix(head, magicParquet):
		return FormatParquet, nil
	}
	return FormatCSV, nil
}

// ReadFormat loads path as format. sheet selects a workbook sheet and is
// ignored by the other formats.
func ReadFormat(path string, format Format, sheet string) (*rowset.Table, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(path)
	case FormatXLSX:
		return ReadXLSX(path, sheet)
	case FormatXLS:
		return ReadXLS(path, sheet)
	case FormatParquet:
		return ReadParquet(path)
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// Read loads path by extension, sniffing the content when the extension is
// not recognized.
func Read(path, sheet string) (*rowset.Table, error) {
	format, ok := FormatOf(path)
	if !ok {
		var err error
		if format, err = Sniff(path); err != nil {
			return nil, err
		}
	}
	return ReadFormat(path, format, sheet)
}

// Save writes t by extension, creating parent directories. Legacy XLS is
// read-only.
func Save(path string, t *rowset.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	format, _ := FormatOf(path)
	switch format {
	case FormatCSV:
		return WriteCSV(path, t)
	case FormatXLSX:
		return WriteXLSX(path, t)
	case FormatParquet:
		return WriteParquet(path, t)
	}
	return fmt.Errorf("unsupported extension %q (use .csv, .xlsx, .parquet)", filepath.Ext(path))
}

// SaveWithFallback sanitizes t and saves it to path. When that fails it
// writes a CSV next to path instead and logs a warning. It returns the path
// actually written; an error is returned only when the fallback fails too.
func SaveWithFallback(path string, t *rowset.Table, log *zap.Logger) (string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	safe := Sanitize(t)
	err := Save(path, safe)
	if err == nil {
		return path, nil
	}

	alt := strings.TrimSuffix(path, filepath.Ext(path)) + ".csv"
	if alt == path {
		log.Warn("skipping output", zap.String("path", path), zap.Error(err))
		return "", err
	}
	if cerr := Save(alt, safe); cerr != nil {
		log.Warn("skipping output",
			zap.String("path", path),
			zap.NamedError("primary", err),
			zap.NamedError("fallback", cerr))
		return "", fmt.Errorf("save %s: %w; csv fallback: %w", path, err, cerr)
	}
	log.Warn("wrote CSV fallback",
		zap.String("path", path),
		zap.String("fallback", alt),
		zap.Error(err))
	return alt, nil
}

// MaxCellChars is the longest text a spreadsheet cell accepts, with margin.
const MaxCellChars = 32760

var controlChars = regexp.MustCompile(`[\x00-\x08\x0B-\x0C\x0E-\x1F]`)

// SanitizeText strips control characters spreadsheets reject and truncates
// to MaxCellChars characters.
func SanitizeText(s string) string {
	s = controlChars.ReplaceAllString(s, "")
	if utf8.RuneCountInString(s) <= MaxCellChars {
		return s
	}
	n := 0
	for i := range s {
		if n == MaxCellChars {
			return s[:i]
		}
		n++
	}
	return s
}

// Sanitize applies SanitizeText to every text column.
func Sanitize(t *rowset.Table) *rowset.Table {
	for _, name := range t.Columns() {
		col, _ := t.Column(name)
		if col.Kind != rowset.KindText {
			continue
		}
		changed := false
		for i, v := range col.Values {
			if v.IsNull() {
				continue
			}
			if s := SanitizeText(v.Str()); s != v.Str() {
				col.Values[i] = rowset.TextValue(s)
				changed = true
			}
		}
		if changed {
			t = t.WithColumn(col)
		}
	}
	return t
}
