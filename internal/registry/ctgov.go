package registry

import (
	"regexp"

	"trialjoin/internal/normalize"
	"trialjoin/internal/rowset"
)

// ClinicalTrialsDates are coerced to time before cleaning.
var ClinicalTrialsDates = []string{"start_date", "primary_completion_date", "completion_date"}

// ClinicalTrialsRenames aligns the public export with the shared key.
var ClinicalTrialsRenames = map[string]string{
	"NCT id": ColNCTID,
	"sex":    "Patient Gender",
}

// sexLabels is applied to the upper-cased sex column.
var sexLabels = map[string]string{"ALL": "BOTH"}

var drugOrBiological = regexp.MustCompile(`(?i)DRUG|BIOLOGICAL`)

// ClinicalTrialsOptions toggles the optional passes of LoadClinicalTrials.
type ClinicalTrialsOptions struct {
	Clean            bool
	StripPunctuation bool
}

// DefaultClinicalTrialsOptions enables both passes.
func DefaultClinicalTrialsOptions() ClinicalTrialsOptions {
	return ClinicalTrialsOptions{Clean: true, StripPunctuation: true}
}

// LoadClinicalTrials cleans a raw public-registry export and keeps only
// rows whose interventions mention a drug or a biological.
func LoadClinicalTrials(raw *rowset.Table, opts ClinicalTrialsOptions) *rowset.Table {
	t := normalize.ToTimes(raw, ClinicalTrialsDates...)

	if opts.Clean {
		t = normalize.Clean(t, normalize.Options{
			ReplaceNullStrings: true,
			ReplaceNullNumbers: true,
			TrimSpace:          true,
			Case:               normalize.CaseUpper,
			DropRows:           true,
			DropColumns:        true,
		})
		if opts.StripPunctuation {
			t = normalize.StripPunctuation(t)
		}
	}

	if sex, ok := t.Column("sex"); ok {
		for i, v := range sex.Values {
			if to, hit := sexLabels[v.String()]; hit && !v.IsNull() {
				sex.Values[i] = rowset.TextValue(to)
			}
		}
		t = t.WithColumn(sex)
	}
	t = t.Rename(ClinicalTrialsRenames)

	if !t.Has("interventions") {
		return t.Take(nil)
	}
	return t.Filter(func(i int) bool {
		v := t.At(i, "interventions")
		return !v.IsNull() && drugOrBiological.MatchString(v.String())
	})
}
