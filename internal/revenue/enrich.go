// Package revenue appends standard sponsor names and revenue segmentation
// to the reconciled trials through normalized-key lookups.
package revenue

import (
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"trialjoin/internal/normalize"
	"trialjoin/internal/rowset"
	"trialjoin/internal/sponsor"
)

// Output columns.
const (
	ColStandardName = "EP Standard Name"
	ColUSSegment    = "US company segmentation"
	ColWWSegment    = "WW company segmentation"

	// FallbackSegment fills segmentation cells that found no match.
	FallbackSegment = "Others"
)

// Mapping describes one lookup join.
type Mapping struct {
	Name     string
	LeftKey  string
	RightKey string
	Add      []string
	// Fallback replaces empty or null Add cells after the join when set.
	Fallback string
}

// Lookups holds the three lookup tables of a run.
type Lookups struct {
	Sponsor *rowset.Table
	US      *rowset.Table
	WW      *rowset.Table
}

// Options configures Enrich.
type Options struct {
	// Cleanse runs the lookup text pipeline (fill, trim, collapse).
	Cleanse    bool
	TitleCase  bool
	StripPunct bool
}

// DefaultOptions mirrors the standard workbook preparation.
func DefaultOptions() Options {
	return Options{Cleanse: true, TitleCase: true, StripPunct: true}
}

// StandardMappings returns the sponsor, US and WW mappings in run order.
func StandardMappings() [3]Mapping {
	return [3]Mapping{
		{Name: "sponsor", LeftKey: sponsor.ColLeadSponsor, RightKey: sponsor.ColLeadSponsor, Add: []string{ColStandardName}},
		{Name: "us", LeftKey: ColStandardName, RightKey: ColStandardName, Add: []string{ColUSSegment}, Fallback: FallbackSegment},
		{Name: "ww", LeftKey: ColStandardName, RightKey: ColStandardName, Add: []string{ColWWSegment}, Fallback: FallbackSegment},
	}
}

// Enrich runs the three standard mappings over base.
func Enrich(base *rowset.Table, lookups Lookups, opts Options, log *zap.Logger) *rowset.Table {
	if log == nil {
		log = zap.NewNop()
	}
	m := StandardMappings()
	tables := [3]*rowset.Table{lookups.Sponsor, lookups.US, lookups.WW}
	out := base
	for i, mp := range m {
		lk := tables[i]
		if lk == nil {
			lk = rowset.Empty(append([]string{mp.RightKey}, mp.Add...)...)
		}
		if opts.Cleanse {
			lk = CleanLookup(lk, opts.TitleCase, opts.StripPunct)
		}
		out = Apply(out, lk, mp, log)
	}
	return out
}

// NormKey is the join form of a key cell: NFC, lower-cased, stripped of
// punctuation, then trimmed and collapsed so "A & B" meets "A B".
func NormKey(s string) string {
	s = norm.NFC.String(s)
	s = normalize.StripPunct(normalize.CleanText(s, true, true, normalize.CaseLower))
	return normalize.CleanText(s, true, true, normalize.CaseNone)
}

// CleanLookup prepares a lookup table: nulls filled, text trimmed and
// collapsed, optionally title-cased and stripped of punctuation.
func CleanLookup(t *rowset.Table, titleCase, stripPunct bool) *rowset.Table {
	mode := normalize.CaseNone
	if titleCase {
		mode = normalize.CaseTitle
	}
	out := normalize.Clean(t, normalize.Options{
		ReplaceNullStrings: true,
		ReplaceNullNumbers: true,
		TrimSpace:          true,
		CollapseSpace:      true,
		Case:               mode,
	})
	if stripPunct {
		out = normalize.StripPunctuation(out)
	}
	return out
}

// Apply left-joins lookup onto base by normalized key and appends the Add
// columns. Lookup rows are deduplicated by key, first row wins, so base
// rows never fan out. Empty keys never match. Row order is preserved.
func Apply(base, lookup *rowset.Table, m Mapping, log *zap.Logger) *rowset.Table {
	if log == nil {
		log = zap.NewNop()
	}

	first := make(map[string]int)
	dups := 0
	if lookup.Has(m.RightKey) {
		for j := 0; j < lookup.Len(); j++ {
			v := lookup.At(j, m.RightKey)
			if v.IsNull() {
				continue
			}
			k := NormKey(v.String())
			if k == "" {
				continue
			}
			if _, seen := first[k]; seen {
				dups++
				continue
			}
			first[k] = j
		}
	}
	if dups > 0 {
		log.Info("duplicate lookup keys ignored",
			zap.String("mapping", m.Name),
			zap.String("key", m.RightKey),
			zap.Int("duplicates", dups))
	}

	hits := make([]int, base.Len())
	matched := 0
	for i := range hits {
		hits[i] = -1
		v := base.At(i, m.LeftKey)
		if v.IsNull() {
			continue
		}
		k := NormKey(v.String())
		if k == "" {
			continue
		}
		if j, ok := first[k]; ok {
			hits[i] = j
			matched++
		}
	}

	out := base
	for _, col := range m.Add {
		kind, ok := lookup.Kind(col)
		if !ok {
			kind = rowset.KindText
		}
		if m.Fallback != "" {
			kind = rowset.KindText
		}
		vals := make([]rowset.Value, base.Len())
		filled := 0
		for i, j := range hits {
			v := rowset.NullValue(kind)
			if j >= 0 && ok {
				v = lookup.At(j, col).As(kind)
			}
			if m.Fallback != "" && v.String() == "" {
				v = rowset.TextValue(m.Fallback)
				filled++
			}
			vals[i] = v
		}
		out = out.WithColumn(rowset.Column{Name: col, Kind: kind, Values: vals})
		if m.Fallback != "" {
			log.Debug("fallback applied", zap.String("mapping", m.Name), zap.String("column", col), zap.Int("rows", filled))
		}
	}
	log.Debug("lookup applied",
		zap.String("mapping", m.Name),
		zap.Int("rows", base.Len()),
		zap.Int("matched", matched))
	return out
}
