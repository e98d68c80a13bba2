// Package sponsor derives a canonical lead sponsor name from free-text
// sponsor fields.
package sponsor

import (
	"trialjoin/internal/normalize"
	"trialjoin/internal/rowset"
)

// ColLeadSponsor is the derived column.
const ColLeadSponsor = "Bain_Lead Sponsor"

// Sources are consulted in order; the first non-null cell wins per row.
var Sources = []string{"TT_Sponsor/Collaborator", "Sponsor/Collaborator"}

// Lead reduces a sponsor field to its first named sponsor.
func Lead(s string) string {
	return normalize.Title(normalize.FirstSegment(s))
}

// AddLeadSponsor appends ColLeadSponsor to t. Rows with no source value get
// an empty name.
func AddLeadSponsor(t *rowset.Table) *rowset.Table {
	return t.Derive(ColLeadSponsor, rowset.KindText, func(i int) rowset.Value {
		for _, c := range Sources {
			if v := t.At(i, c); !v.IsNull() {
				return rowset.TextValue(Lead(v.String()))
			}
		}
		return rowset.TextValue("")
	})
}
