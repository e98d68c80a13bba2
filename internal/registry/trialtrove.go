// Package registry turns the two raw registry exports into cleaned rowsets
// that share the "NCT ID" key.
package registry

import (
	"regexp"
	"strings"

	"trialjoin/internal/normalize"
	"trialjoin/internal/rowset"
)

// Shared column names.
const (
	ColNCTID    = "NCT ID"
	NoNCTCode   = "No NCT Code"
	colProtocol = "Protocol_Trial_ID"
	colAgeGroup = "Patient Age Group"
)

// TrialTroveColumns is the allow-list of the commercial export, in output
// order.
var TrialTroveColumns = []string{
	"Trial ID", "Protocol/Trial ID", "Trial Title", "Trial Phase", "Trial Status",
	"Therapeutic Area", "Disease", "MeSH Term", "Sponsor/Collaborator",
	"Sponsor/Collaborator Type", "Sponsor/Collaborator: Parent HQ Country",
	"Primary Tested Drug", "Primary Tested Drug: Mechanism Of Action",
	"Primary Tested Drug: Target", "Primary Tested Drug: Therapeutic Class", "Primary Tested Drug: Drug Type",
	"Other Tested Drug", "Other Tested Drug: Mechanism Of Action",
	"Other Tested Drug: Target", "Other Tested Drug: Therapeutic Class", "Other Tested Drug: Drug Type",
	"Oncology Biomarker", "Oncology Biomarker Common Use(s)",
	"Primary Endpoint", "Primary Endpoint Group",
	"Primary Endpoint Details", "Secondary/Other Endpoint",
	"Secondary/Other Endpoint Group", "Secondary/Other Endpoint Details",
	"Start Date", "Treatment Duration (Mos.)",
	"Primary Completion Date", "Primary Completion Date Type", "Full Completion Date", "Primary Endpoints Reported Date",
	"Primary Endpoints Reported Date Type", "Pts/Site/Mo", "Patient Gender", "Patient Age Group", "Min Patient Age", "Min Patient Age Unit",
	"Max Patient Age", "Max Patient Age Unit", "Target Accrual", "Actual Accrual (No. of patients)", "Actual Accrual (% of Target)",
	"Reported Sites", "Identified Sites", "Trial Region", "Countries", "Countries Count", "ClinicalTrials.gov Location Country",
	"ClinicalTrials.gov Sites Count", "Prior/Concurrent Therapy", "Treatment Plan", "Study Keywords", "Study Design",
	"Decentralized (DCT) Attributes", "Associated CRO", "Last Modified Date",
}

// TrialTroveRenames disambiguates truncated fields and namespaces the
// sponsor and status fields.
var TrialTroveRenames = map[string]string{
	"Trial Status":                           "TT_Trial Status",
	"Protocol/Trial ID":                      "Protocol_Trial_ID",
	"Sponsor/Collaborator":                   "TT_Sponsor/Collaborator",
	"Primary Tested Drug: Target":            "Primary Tested Drug: Target_truncated",
	"Other Tested Drug: Mechanism Of Action": "Other Tested Drug: Mechanism Of Action_truncated",
	"Other Tested Drug: Target":              "Other Tested Drug: Target_truncated",
	"Other Tested Drug: Therapeutic Class":   "Other Tested Drug: Therapeutic Class_truncated",
	"Primary Endpoint Group":                 "Primary Endpoint Group_truncated",
	"Primary Endpoint Details":               "Primary Endpoint Details_truncated",
	"Secondary/Other Endpoint Group":         "Secondary/Other Endpoint Group_truncated",
	"Secondary/Other Endpoint Details":       "Secondary/Other Endpoint Details_truncated",
	"Prior/Concurrent Therapy":               "Prior/Concurrent Therapy_truncated",
	"Study Design":                           "TT_Study Design",
}

// TrialTroveDates are coerced to time before cleaning.
var TrialTroveDates = []string{
	"Start Date",
	"Primary Completion Date",
	"Full Completion Date",
	"Primary Endpoints Reported Date",
	"Last Modified Date",
}

// trialTroveCleanse is the subset that gets the title-case cleaning pass.
var trialTroveCleanse = []string{
	"Trial ID", "Protocol_Trial_ID", "Trial Title", "Trial Phase",
	"Therapeutic Area", "Disease", "Primary Tested Drug", "Primary Tested Drug: Mechanism Of Action",
	"Primary Tested Drug: Target_truncated", "Primary Tested Drug: Therapeutic Class",
	"Other Tested Drug", "Other Tested Drug: Mechanism Of Action_truncated",
	"Other Tested Drug: Target_truncated", "Other Tested Drug: Therapeutic Class_truncated",
	"Oncology Biomarker", "Oncology Biomarker Common Use(s)",
	"Primary Endpoint", "Primary Endpoint Group_truncated",
	"Primary Endpoint Details_truncated", "Secondary/Other Endpoint",
	"Secondary/Other Endpoint Group_truncated", "Secondary/Other Endpoint Details_truncated",
	"Start Date", "Primary Completion Date", "Primary Completion Date Type", "Primary Endpoints Reported Date",
	"Primary Endpoints Reported Date Type", "Patient Gender", "Patient Age Group", "Min Patient Age", "Min Patient Age Unit",
	"Max Patient Age", "Max Patient Age Unit", "Target Accrual", "Actual Accrual (No. of patients)", "Actual Accrual (% of Target)",
	"Reported Sites", "Identified Sites", "Trial Region", "Countries", "ClinicalTrials.gov Location Country",
	"ClinicalTrials.gov Sites Count", "Prior/Concurrent Therapy_truncated", "Study Keywords", "Associated CRO", "Last Modified Date",
}

var (
	nctCode     = regexp.MustCompile(`(?i)NCT\d{8}`)
	ageChildren = regexp.MustCompile(`(?i)\bChildren\b`)
	ageAdults   = regexp.MustCompile(`(?i)\bAdults\b`)
	ageOlder    = regexp.MustCompile(`(?i)\bOlder Adults\b`)
)

// ExtractNCTID returns the first NCT code in a protocol field as written,
// or NoNCTCode when there is none.
func ExtractNCTID(protocol string) string {
	if !strings.Contains(strings.ToUpper(protocol), "NCT") {
		return NoNCTCode
	}
	m := nctCode.FindString(protocol)
	if m == "" {
		return NoNCTCode
	}
	return m
}

// IsNoNCTCode reports whether id is the sentinel, ignoring case and
// surrounding space.
func IsNoNCTCode(id string) bool {
	return strings.EqualFold(strings.TrimSpace(id), NoNCTCode)
}

// LoadTrialTrove cleans a raw commercial export. Absent columns are
// skipped; the result always carries NCT ID and the three age flags.
func LoadTrialTrove(raw *rowset.Table) *rowset.Table {
	t := raw.Select(TrialTroveColumns...).Rename(TrialTroveRenames)
	t = normalize.ToTimes(t, TrialTroveDates...)
	t = normalize.ToInts(t, "Trial ID")
	selected := t.Columns()

	t = normalize.Clean(t, normalize.Options{
		Fields:             trialTroveCleanse,
		ReplaceNullStrings: true,
		ReplaceNullNumbers: true,
		TrimSpace:          true,
		CollapseSpace:      true,
		Case:               normalize.CaseTitle,
		DropRows:           true,
		DropColumns:        true,
	})
	t = t.Select(selected...)
	base := t.Columns()

	protocol := t.Strings(colProtocol)
	ages := t.Strings(colAgeGroup)
	at := func(vals []string, i int) string {
		if vals == nil {
			return ""
		}
		return vals[i]
	}
	t = t.Derive(ColNCTID, rowset.KindText, func(i int) rowset.Value {
		return rowset.TextValue(ExtractNCTID(at(protocol, i)))
	})
	t = t.Derive("child", rowset.KindBool, func(i int) rowset.Value {
		return rowset.BoolValue(ageChildren.MatchString(at(ages, i)))
	})
	t = t.Derive("adult", rowset.KindBool, func(i int) rowset.Value {
		return rowset.BoolValue(ageAdults.MatchString(at(ages, i)))
	})
	t = t.Derive("older_adults", rowset.KindBool, func(i int) rowset.Value {
		return rowset.BoolValue(ageOlder.MatchString(at(ages, i)))
	})

	t = normalize.Clean(t, normalize.Options{
		Fields:             []string{ColNCTID},
		ReplaceNullStrings: true,
		ReplaceNullNumbers: true,
		TrimSpace:          true,
		Case:               normalize.CaseUpper,
	})

	return t.Select(append(base, ColNCTID, "child", "adult", "older_adults")...)
}
