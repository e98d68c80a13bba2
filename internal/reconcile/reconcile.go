package reconcile

import (
	"strings"

	"trialjoin/internal/normalize"
	"trialjoin/internal/registry"
	"trialjoin/internal/rowset"
)

// Output columns.
const (
	ColSponsorType       = "Bain_Cleaned Sponsor/Collaborator Type"
	ColSponsorTypeTagged = "Bain_Cleaned Sponsor/Collaborator Type_tagged"
	ColStudyType         = "Bain_StudyType"
)

// Free-text fields scanned for design signals.
var blobColumns = []string{"TT_Study Design", "Treatment Plan", "Study Keywords"}

// Options configures Run. The zero value uses the default right columns
// and suffix and switches every refinement off.
type Options struct {
	RightColumns []string
	Suffix       string

	Interventional Tri
	Observational  Tri

	Industry Tri
	Academic Tri
	Others   Tri
}

// Result carries the reconciled row-sets.
type Result struct {
	// Left is the refined commercial-only bucket.
	Left *rowset.Table
	// Join is the matched bucket.
	Join *rowset.Table
	// Union is Left followed by Join with column-union semantics.
	Union *rowset.Table
	// RightOnly is the public-only bucket.
	RightOnly *rowset.Table
}

// Run joins a and b, refines the commercial-only bucket and unions it with
// the matched rows.
func Run(a, b *rowset.Table, opts Options) Result {
	p := Join(a, b, opts.RightColumns, opts.Suffix)
	left := Refine(p.LeftOnly, opts)
	return Result{
		Left:      left,
		Join:      p.Matched,
		Union:     rowset.Concat(left, p.Matched),
		RightOnly: p.RightOnly,
	}
}

// Refine applies the rescue path to commercial-only rows: only rows that
// never had an extractable identifier survive, they get a sponsor-type tag,
// and they are narrowed by the sponsor selectors and the design heuristics.
func Refine(leftOnly *rowset.Table, opts Options) *rowset.Table {
	t := leftOnly.Filter(func(i int) bool {
		return registry.IsNoNCTCode(leftOnly.Text(i, registry.ColNCTID))
	})

	t = t.Derive(ColSponsorType, rowset.KindText, func(i int) rowset.Value {
		return rowset.TextValue(normalize.Title(normalize.FirstSegment(t.Text(i, "Sponsor/Collaborator Type"))))
	})
	cleaned := t.Strings(ColSponsorType)
	t = t.Derive(ColSponsorTypeTagged, rowset.KindText, func(i int) rowset.Value {
		return rowset.TextValue(ClassifySponsor(cleaned[i]).String())
	})

	selected := make(map[SponsorClass]bool)
	if opts.Industry.On() {
		selected[Industry] = true
	}
	if opts.Academic.On() {
		selected[Academic] = true
	}
	if opts.Others.On() {
		selected[Others] = true
	}
	if len(selected) > 0 {
		t = t.Filter(func(i int) bool { return selected[ClassifySponsor(cleaned[i])] })
	}

	t = BaseFilter(t)
	return RefineByStudyType(t, opts.Interventional, opts.Observational)
}

// Blob concatenates the design fields of row i, upper-cased. Missing
// columns and nulls contribute "".
func Blob(t *rowset.Table, i int) string {
	parts := make([]string, len(blobColumns))
	for j, c := range blobColumns {
		parts[j] = t.Text(i, c)
	}
	return strings.ToUpper(strings.Join(parts, " "))
}

// BaseFilter keeps rows whose design blob carries an interventional signal.
func BaseFilter(t *rowset.Table) *rowset.Table {
	return t.Filter(func(i int) bool {
		return interventionalPattern.MatchString(Blob(t, i))
	})
}

// RefineByStudyType labels rows and keeps the selected study types. When
// neither selector is on the table passes through untouched. Ambiguous rows
// are kept only when both selectors are on.
func RefineByStudyType(t *rowset.Table, interventional, observational Tri) *rowset.Table {
	if !interventional.On() && !observational.On() {
		return t
	}
	types := make([]StudyType, t.Len())
	t = t.Derive(ColStudyType, rowset.KindText, func(i int) rowset.Value {
		types[i] = ClassifyStudy(Blob(t, i))
		return rowset.TextValue(types[i].String())
	})
	return t.Filter(func(i int) bool {
		switch types[i] {
		case Interventional:
			return interventional.On()
		case Observational:
			return observational.On()
		case Ambiguous:
			return interventional.On() && observational.On()
		case Unknown:
			return false
		}
		return false
	})
}
