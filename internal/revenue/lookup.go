package revenue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"trialjoin/internal/rowset"
	"trialjoin/internal/tabular"
)

// ErrLookupNotFound is returned when a lookup file does not exist.
var ErrLookupNotFound = errors.New("lookup file not found")

// Strategy is one way of reading a lookup workbook.
type Strategy struct {
	Name string
	Read func(path, sheet string) (*rowset.Table, error)
}

// DefaultStrategies are tried in order until one succeeds.
var DefaultStrategies = []Strategy{
	{Name: "native", Read: tabular.ReadXLSX},
	{Name: "autodetect", Read: readSniffed},
	{Name: "legacy", Read: tabular.ReadXLS},
}

func readSniffed(path, sheet string) (*rowset.Table, error) {
	format, err := tabular.Sniff(path)
	if err != nil {
		return nil, err
	}
	return tabular.ReadFormat(path, format, sheet)
}

// StrategyError is the failure of one strategy.
type StrategyError struct {
	Strategy string
	Err      error
}

func (e *StrategyError) Error() string { return e.Strategy + ": " + e.Err.Error() }
func (e *StrategyError) Unwrap() error { return e.Err }

// LookupReadError reports a lookup file that no strategy could read.
type LookupReadError struct {
	Path     string
	Sheet    string
	Failures []*StrategyError
}

func (e *LookupReadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to read lookup %q (sheet %q)", e.Path, e.Sheet)
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "\n - %s", f.Error())
	}
	b.WriteString("\ncheck that the file is a real workbook (.xlsx/.xls) and that the sheet exists")
	return b.String()
}

// Unwrap exposes every strategy failure to errors.Is and errors.As.
func (e *LookupReadError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// LoadLookup reads a lookup table. CSV files are read directly; anything
// else goes through the strategies in order and fails only when all of
// them fail.
func LoadLookup(ctx context.Context, path, sheet string) (*rowset.Table, error) {
	return LoadLookupWith(ctx, path, sheet, DefaultStrategies)
}

// LoadLookupWith is LoadLookup with an explicit strategy list.
func LoadLookupWith(ctx context.Context, path, sheet string, strategies []Strategy) (*rowset.Table, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrLookupNotFound, path)
		}
		return nil, fmt.Errorf("stat lookup %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return tabular.ReadCSV(path)
	}

	rerr := &LookupReadError{Path: path, Sheet: sheet}
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := s.Read(path, sheet)
		if err == nil {
			return t, nil
		}
		rerr.Failures = append(rerr.Failures, &StrategyError{Strategy: s.Name, Err: err})
	}
	return nil, rerr
}
