package reconcile

import (
	"fmt"
	"regexp"
	"strings"
)

// StudyType is the text-derived design of a trial with no registry match.
type StudyType uint8

const (
	Unknown StudyType = iota
	Interventional
	Observational
	Ambiguous
)

func (s StudyType) String() string {
	switch s {
	case Unknown:
		return "Unknown"
	case Interventional:
		return "Interventional"
	case Observational:
		return "Observational"
	case Ambiguous:
		return "Ambiguous"
	}
	panic(fmt.Sprintf("reconcile: invalid StudyType %d", uint8(s)))
}

var (
	interventionalPattern = regexp.MustCompile(`(RANDOM|CONTROL|DOUBLE[\s-]?BLIND|PLACEBO|INTERVENTION)`)
	observationalPattern  = regexp.MustCompile(`(OBSERVATION|NON[\s-]?INTERVENTIONAL)`)
)

// ClassifyStudy labels an upper-cased design blob.
func ClassifyStudy(blob string) StudyType {
	inter := interventionalPattern.MatchString(blob)
	obs := observationalPattern.MatchString(blob)
	switch {
	case inter && obs:
		return Ambiguous
	case inter:
		return Interventional
	case obs:
		return Observational
	}
	return Unknown
}

// SponsorClass is the coarse tag of a cleaned sponsor type.
type SponsorClass uint8

const (
	Others SponsorClass = iota
	Industry
	Academic
)

func (c SponsorClass) String() string {
	switch c {
	case Others:
		return "Others"
	case Industry:
		return "Industry"
	case Academic:
		return "Academic"
	}
	panic(fmt.Sprintf("reconcile: invalid SponsorClass %d", uint8(c)))
}

// ClassifySponsor tags a cleaned sponsor type, ignoring case.
func ClassifySponsor(cleaned string) SponsorClass {
	s := strings.TrimSpace(cleaned)
	switch {
	case strings.EqualFold(s, "industry"):
		return Industry
	case strings.EqualFold(s, "academic"):
		return Academic
	}
	return Others
}

// Tri is an optional boolean selector. Only Include selects anything;
// Unset and Exclude both leave a refinement switched off.
type Tri uint8

const (
	Unset Tri = iota
	Include
	Exclude
)

// TriOf maps an optional bool onto a Tri.
func TriOf(b *bool) Tri {
	switch {
	case b == nil:
		return Unset
	case *b:
		return Include
	}
	return Exclude
}

func (t Tri) On() bool { return t == Include }

func (t Tri) String() string {
	switch t {
	case Unset:
		return "unset"
	case Include:
		return "include"
	case Exclude:
		return "exclude"
	}
	return fmt.Sprintf("tri(%d)", uint8(t))
}
