// Package reconcile joins the commercial and public registries on NCT ID,
// partitions the outcome, and rescues unmatched commercial records through
// text heuristics.
package reconcile

import (
	"trialjoin/internal/registry"
	"trialjoin/internal/rowset"
)

// DefaultRightColumns are carried over from the public registry.
var DefaultRightColumns = []string{registry.ColNCTID, "study title", "study status", "interventions", "condition"}

// DefaultSuffix marks public-registry columns in joined output.
const DefaultSuffix = "_CT"

// Partitions is the three-way split of a full outer join.
type Partitions struct {
	// Matched holds every left column followed by the suffixed right columns.
	Matched *rowset.Table
	// LeftOnly has exactly the left table's columns.
	LeftOnly *rowset.Table
	// RightOnly has exactly the suffixed right columns plus the key.
	RightOnly *rowset.Table
}

// Join full-outer-joins a and b on NCT ID. Only the keep columns of b are
// carried, renamed with suffix except for the key. Matched rows follow a's
// order, each left row fanning out over its right matches in b's order.
// Null keys match only null keys.
func Join(a, b *rowset.Table, keep []string, suffix string) Partitions {
	const key = registry.ColNCTID
	if keep == nil {
		keep = DefaultRightColumns
	}
	if suffix == "" {
		suffix = DefaultSuffix
	}

	right := b.Select(rightColumns(b, keep)...)
	renames := make(map[string]string)
	for _, c := range right.Columns() {
		if c == key {
			continue
		}
		name := c + suffix
		for a.Has(name) {
			name += suffix
		}
		renames[c] = name
	}
	right = right.Rename(renames)

	if !a.Has(key) || !b.Has(key) {
		return Partitions{
			Matched:   rowset.Widen(a.Take(nil), right.Drop(key).Take(nil)),
			LeftOnly:  a,
			RightOnly: right,
		}
	}

	index := make(map[string][]int)
	var nullRows []int
	for j := 0; j < right.Len(); j++ {
		v := right.At(j, key)
		if v.IsNull() {
			nullRows = append(nullRows, j)
			continue
		}
		k := v.String()
		index[k] = append(index[k], j)
	}

	var leftIdx, rightIdx, leftOnly []int
	matched := make([]bool, right.Len())
	for i := 0; i < a.Len(); i++ {
		v := a.At(i, key)
		hits := nullRows
		if !v.IsNull() {
			hits = index[v.String()]
		}
		if len(hits) == 0 {
			leftOnly = append(leftOnly, i)
			continue
		}
		for _, j := range hits {
			leftIdx = append(leftIdx, i)
			rightIdx = append(rightIdx, j)
			matched[j] = true
		}
	}

	var rightOnly []int
	for j, ok := range matched {
		if !ok {
			rightOnly = append(rightOnly, j)
		}
	}

	return Partitions{
		Matched:   rowset.Widen(a.Take(leftIdx), right.Drop(key).Take(rightIdx)),
		LeftOnly:  a.Take(leftOnly),
		RightOnly: right.Take(rightOnly),
	}
}

// rightColumns is keep ∩ columns(b) in keep order, with the key first when
// keep does not name it.
func rightColumns(b *rowset.Table, keep []string) []string {
	cols := make([]string, 0, len(keep)+1)
	hasKey := false
	for _, c := range keep {
		if c == registry.ColNCTID {
			hasKey = true
		}
	}
	if !hasKey {
		cols = append(cols, registry.ColNCTID)
	}
	for _, c := range keep {
		if b.Has(c) {
			cols = append(cols, c)
		}
	}
	return cols
}
