// Package normalize cleans the text, number and date columns of a rowset
// before the registries are reconciled.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CaseMode selects the case transform applied to text cells.
type CaseMode string

const (
	CaseNone  CaseMode = "none"
	CaseUpper CaseMode = "upper"
	CaseLower CaseMode = "lower"
	CaseTitle CaseMode = "title"
)

var (
	lineBreaks  = regexp.MustCompile(`[\t\r\n]+`)
	multiSpace  = regexp.MustCompile(`\s{2,}`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

	upper = cases.Upper(language.Und)
	lower = cases.Lower(language.Und)
)

// Collapse turns tabs and line breaks into spaces and squeezes runs of
// whitespace to a single space.
func Collapse(s string) string {
	s = lineBreaks.ReplaceAllString(s, " ")
	return multiSpace.ReplaceAllString(s, " ")
}

// StripPunct removes every character that is neither a word character nor
// whitespace.
func StripPunct(s string) string {
	return punctuation.ReplaceAllString(s, "")
}

// Title upper-cases every letter that follows a non-letter and lower-cases
// the rest, so "o'neil phase ii" becomes "O'Neil Phase Ii".
func Title(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		isLetter := unicode.IsLetter(r)
		switch {
		case isLetter && !prevLetter:
			b.WriteRune(unicode.ToTitle(r))
		case isLetter:
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
		prevLetter = isLetter
	}
	return b.String()
}

// ApplyCase applies mode to s. Unknown modes leave s unchanged.
func ApplyCase(s string, mode CaseMode) string {
	switch mode {
	case CaseUpper:
		return upper.String(s)
	case CaseLower:
		return lower.String(s)
	case CaseTitle:
		return Title(s)
	}
	return s
}

// CleanText runs the per-cell text pipeline: trim, collapse, case.
func CleanText(s string, trim, collapse bool, mode CaseMode) string {
	if trim {
		s = strings.TrimSpace(s)
	}
	if collapse {
		s = Collapse(s)
	}
	return ApplyCase(s, mode)
}

// FirstSegment keeps the first line of s, then the text before its first
// comma, trimmed. Sponsor and sponsor-type fields are reduced this way.
func FirstSegment(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
