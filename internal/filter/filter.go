// Package filter derives the analyst columns of the enriched trial set and
// applies the configured date, status, phase, therapeutic area, sponsor and
// region selections.
package filter

import (
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"trialjoin/internal/normalize"
	"trialjoin/internal/reconcile"
	"trialjoin/internal/registry"
	"trialjoin/internal/rowset"
	"trialjoin/internal/sponsor"
)

// Derived columns.
const (
	ColStartYear      = "Bain_Start Year"
	ColStartMonth     = "Bain_Start Month"
	ColTherapeutic    = "Bain_Therapeutic Area"
	ColCovidTag       = "Bain_Covid Tag"
	ColPhase          = "Bain_Phase"
	ColRegion         = "Bain_Trial Region"
	ColHealthyPatient = "Bain_Healthy Patient"
)

// Source columns.
const (
	colStatus       = "TT_Trial Status"
	colStartDate    = "Start Date"
	colLastModified = "Last Modified Date"
	colTherapeutic  = "Therapeutic Area"
	colTitle        = "Trial Title"
	colDisease      = "Disease"
	colPhase        = "Trial Phase"
	colRegion       = "Trial Region"
	colKeywords     = "Study Keywords"
	colDesign       = "TT_Study Design"
)

const (
	planned        = "Planned"
	multipleAreas  = "Multiple"
	vaccines       = "Vaccines"
	covidTag       = "Covid - Recommend Exclude"
	excludedPhase  = "Recommend Exclude"
	healthyYes     = "Yes"
	healthyNo      = "No"
	sponsorAllTags = "ALL SPONSORS INCLUDED"
)

var therapeuticWhitelist = setOf(
	"Oncology",
	"Cns",
	"Unassigned",
	"Metabolic/Endocrinology",
	"Autoimmune/Inflammation",
	"Infectious Disease",
	"Cardiovascular",
	"Infectious Disease; Vaccines (Infectious Disease)",
	"Genitourinary",
	"Ophthalmology",
	"Vaccines (Infectious Disease)",
)

var vaccineVariants = setOf(
	"Infectious Disease; Vaccines (Infectious Disease)",
	"Vaccines (Infectious Disease)",
)

var covidTokens = []string{
	"COVID-19",
	"COVID",
	"2019-NCOV",
	"SARS-COV-2",
	"WUHAN CORONAVIRUS",
	"NCOV-19",
	"NCOV-2019",
	"2019 NOVEL CORONAVIRUS",
	"SEVERE ACUTE RESPIRATORY SYNDROME CORONAVIRUS 2",
}

var phaseMap = map[string]string{
	"I/II":   "II",
	"II/III": "III",
	"III/IV": "III",
	"I":      "I",
	"II":     "II",
	"III":    "III",
	"IV":     "IV",
}

var healthyPattern = regexp.MustCompile(`HEALTHY|BIOEQUIVALENCE|BIOAVAILABILITY`)

var (
	defaultSentinels = []string{"ALL", sponsorAllTags, "ANY"}
	typeSentinels    = []string{"ALL", "ANY"}
)

// Criteria is the bound set of analyst selections.
type Criteria struct {
	StartYear  int
	StartMonth int
	EndYear    int
	EndMonth   int

	RegionEnabled bool
	Region        string

	Phases           []string
	Statuses         []string
	TherapeuticAreas []string
	SponsorTypes     []string
	Sponsors         []string
}

// DefaultCriteria is the window from January 2015 up to two months before
// now, open/closed trials of phases I to IV led by industry.
func DefaultCriteria(now time.Time) Criteria {
	endYear, endMonth := now.Year(), int(now.Month())-2
	if now.Month() <= 2 {
		endYear, endMonth = now.Year()-1, 12
	}
	return Criteria{
		StartYear:    2015,
		StartMonth:   1,
		EndYear:      endYear,
		EndMonth:     endMonth,
		Region:       "global",
		Phases:       []string{"I", "I/II", "II", "II/III", "III", "III/IV", "IV"},
		Statuses:     []string{"Open", "Closed", "Temporarily Closed"},
		SponsorTypes: []string{"Industry"},
		Sponsors:     []string{"All Sponsors included"},
	}
}

// Window returns the [from, until) bounds of the start date window.
func (c Criteria) Window() (from, until time.Time) {
	return monthStart(c.StartYear, c.StartMonth), monthStart(c.EndYear, c.EndMonth)
}

func monthStart(year, month int) time.Time {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}

// Apply derives the analyst columns and keeps the rows matching c, in
// their original order. Missing source columns read as empty.
func Apply(t *rowset.Table, c Criteria, log *zap.Logger) (*rowset.Table, error) {
	if log == nil {
		log = zap.NewNop()
	}
	bucket, allRegions, err := ParseRegion(c.Region)
	if err != nil && c.RegionEnabled {
		return nil, err
	}

	in := t.Len()
	hadStart := t.Has(colStartDate)
	hadModified := t.Has(colLastModified)

	if t.Has(colStatus) {
		t = t.Filter(func(i int) bool { return t.Text(i, colStatus) != planned })
	}

	t = normalize.ToTimes(t, colStartDate, colLastModified)
	t = withStartParts(t)

	if hadStart {
		from, until := c.Window()
		t = t.Filter(func(i int) bool {
			v := t.At(i, colStartDate)
			if v.IsNull() {
				return false
			}
			ts := v.Time()
			return !ts.Before(from) && ts.Before(until)
		})
	}

	t = Derive(t)

	if hadStart && hadModified {
		t = t.Filter(func(i int) bool {
			s, m := t.At(i, colStartDate), t.At(i, colLastModified)
			return !s.IsNull() && !m.IsNull() && !s.Time().After(m.Time())
		})
	}

	t = withHealthyPatient(t)

	if t.Has(colStatus) {
		t = keepIn(t, colStatus, c.Statuses, defaultSentinels)
	}
	t = keepIn(t, ColPhase, c.Phases, defaultSentinels)
	t = keepIn(t, ColTherapeutic, c.TherapeuticAreas, defaultSentinels)
	if t.Has(reconcile.ColSponsorType) {
		t = keepIn(t, reconcile.ColSponsorType, c.SponsorTypes, typeSentinels)
	}
	if t.Has(sponsor.ColLeadSponsor) {
		t = keepIn(t, sponsor.ColLeadSponsor, c.Sponsors, defaultSentinels)
	}
	if c.RegionEnabled && !allRegions {
		label := bucket.String()
		t = t.Filter(func(i int) bool { return t.Text(i, ColRegion) == label })
	}

	log.Info("filter applied",
		zap.Int("rows_in", in),
		zap.Int("rows_out", t.Len()),
		zap.Bool("region", c.RegionEnabled && !allRegions))
	return t, nil
}

// Derive adds the therapeutic area, COVID tag, phase and region columns.
func Derive(t *rowset.Table) *rowset.Table {
	t = t.Derive(ColTherapeutic, rowset.KindText, func(i int) rowset.Value {
		return rowset.TextValue(TherapeuticArea(t.Text(i, colTherapeutic)))
	})
	t = t.Derive(ColCovidTag, rowset.KindText, func(i int) rowset.Value {
		return rowset.TextValue(CovidTag(t.Text(i, colTitle), t.Text(i, colDisease)))
	})
	t = t.Derive(ColPhase, rowset.KindText, func(i int) rowset.Value {
		return rowset.TextValue(Phase(t.Text(i, colPhase)))
	})
	t = t.Derive(ColRegion, rowset.KindText, func(i int) rowset.Value {
		return rowset.TextValue(ClassifyRegion(t.Text(i, colRegion)).String())
	})
	return t
}

func withStartParts(t *rowset.Table) *rowset.Table {
	part := func(fn func(time.Time) int) func(i int) rowset.Value {
		return func(i int) rowset.Value {
			v := t.At(i, colStartDate)
			if v.IsNull() || v.Kind() != rowset.KindTime {
				return rowset.NullValue(rowset.KindInt)
			}
			return rowset.IntValue(int64(fn(v.Time())))
		}
	}
	t = t.Derive(ColStartYear, rowset.KindInt, part(func(ts time.Time) int { return ts.Year() }))
	return t.Derive(ColStartMonth, rowset.KindInt, part(func(ts time.Time) int { return int(ts.Month()) }))
}

func withHealthyPatient(t *rowset.Table) *rowset.Table {
	return t.Derive(ColHealthyPatient, rowset.KindText, func(i int) rowset.Value {
		if HealthyPatient(t.Text(i, registry.ColNCTID), t.Text(i, colTitle), t.Text(i, colKeywords), t.Text(i, colDesign)) {
			return rowset.TextValue(healthyYes)
		}
		return rowset.TextValue(healthyNo)
	})
}

// TherapeuticArea keeps whitelisted areas, folds the vaccine variants into
// "Vaccines" and reports everything else as "Multiple".
func TherapeuticArea(area string) string {
	switch {
	case vaccineVariants[area]:
		return vaccines
	case therapeuticWhitelist[area]:
		return area
	}
	return multipleAreas
}

// CovidTag flags titles or diseases mentioning a COVID-19 token.
func CovidTag(title, disease string) string {
	text := strings.ToUpper(title) + " " + strings.ToUpper(disease)
	for _, tok := range covidTokens {
		if strings.Contains(text, tok) {
			return covidTag
		}
	}
	return ""
}

// Phase maps a raw trial phase to I, II, III or IV. Combined phases count
// as the later one, except III/IV which counts as III.
func Phase(raw string) string {
	if p, ok := phaseMap[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return p
	}
	return excludedPhase
}

// HealthyPatient reports a healthy-volunteer study: one without an NCT code
// whose title, keywords or design mention healthy subjects or bio studies.
func HealthyPatient(nctID, title, keywords, design string) bool {
	if !registry.IsNoNCTCode(nctID) {
		return false
	}
	for _, s := range []string{title, keywords, design} {
		if healthyPattern.MatchString(strings.ToUpper(s)) {
			return true
		}
	}
	return false
}

// Effective reports whether a selection list constrains anything: it is
// non-empty and holds none of the "all" sentinels.
func Effective(list []string, sentinels ...string) bool {
	if len(list) == 0 {
		return false
	}
	if len(sentinels) == 0 {
		sentinels = defaultSentinels
	}
	for _, v := range list {
		v = strings.ToUpper(strings.TrimSpace(v))
		for _, s := range sentinels {
			if v == s {
				return false
			}
		}
	}
	return true
}

func setOf(vals ...string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}

func keepIn(t *rowset.Table, col string, list, sentinels []string) *rowset.Table {
	if !Effective(list, sentinels...) {
		return t
	}
	set := setOf(list...)
	return t.Filter(func(i int) bool {
		v := t.At(i, col)
		return !v.IsNull() && set[v.String()]
	})
}
