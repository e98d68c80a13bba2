package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialjoin/internal/rowset"
)

func TestExtractNCTID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Study NCT01234567 Phase2", "NCT01234567"},
		{"XYZ-001", NoNCTCode},
		{"nct01234567; EudraCT 2020-1", "nct01234567"},
		{"NCT123", NoNCTCode},
		{"", NoNCTCode},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractNCTID(tt.in), tt.in)
	}
}

func TestLoadTrialTrove(t *testing.T) {
	raw := rowset.FromRecords(
		[]string{"Trial ID", "Protocol/Trial ID", "Trial Title", "Trial Status", "Sponsor/Collaborator", "Patient Age Group", "Start Date", "Unlisted Column"},
		[][]string{
			{"101", "Study nct01234567 Phase2", "  a  STUDY\tof things ", "Open", "Pfizer, Inc", "Adults, Older Adults", "2023-02-15", "x"},
			{"102", "XYZ-001", "another", "Planned", "", "Children", "garbage", "y"},
			{"", "", "", "", "", "", "", ""},
		},
	)

	out := LoadTrialTrove(raw)

	require.Equal(t, []string{
		"Trial ID", "Protocol_Trial_ID", "Trial Title", "TT_Trial Status", "TT_Sponsor/Collaborator",
		"Start Date", "Patient Age Group", ColNCTID, "child", "adult", "older_adults",
	}, out.Columns())

	// the third row is all-empty across the cleansed fields except Trial ID,
	// which is filled with zero and therefore survives
	require.Equal(t, 3, out.Len())

	// the identifier pass upper-cases, sentinel included
	assert.Equal(t, []string{"NCT01234567", "NO NCT CODE", "NO NCT CODE"}, out.Strings(ColNCTID))
	assert.True(t, IsNoNCTCode(out.Text(1, ColNCTID)))
	assert.Equal(t, "A Study Of Things", out.Text(0, "Trial Title"))
	assert.Equal(t, "Study Nct01234567 Phase2", out.Text(0, "Protocol_Trial_ID"))
	assert.Equal(t, []string{"101", "102", "0"}, out.Strings("Trial ID"))

	assert.Equal(t, []string{"False", "True", "False"}, out.Strings("child"))
	assert.Equal(t, []string{"True", "False", "False"}, out.Strings("adult"))
	assert.Equal(t, []string{"True", "False", "False"}, out.Strings("older_adults"))

	k, _ := out.Kind("Start Date")
	assert.Equal(t, rowset.KindTime, k)
	assert.True(t, out.At(1, "Start Date").IsNull(), "unparseable dates become null")

	for _, c := range []string{"Trial Title", "Protocol_Trial_ID", "Patient Age Group"} {
		for i := 0; i < out.Len(); i++ {
			assert.False(t, out.At(i, c).IsNull(), "%s row %d", c, i)
		}
	}
}

func TestLoadTrialTroveWithoutProtocol(t *testing.T) {
	raw := rowset.FromRecords([]string{"Trial Title"}, [][]string{{"x"}})
	out := LoadTrialTrove(raw)
	assert.True(t, IsNoNCTCode(out.Text(0, ColNCTID)))
	assert.Equal(t, []string{"False"}, out.Strings("adult"))
}

func TestLoadClinicalTrials(t *testing.T) {
	raw := rowset.FromRecords(
		[]string{"NCT id", "study title", "sex", "interventions", "start_date"},
		[][]string{
			{"NCT00000001", "Aspirin, for pain!", "ALL", "Drug: Aspirin", "2020-01-01"},
			{"NCT00000002", "Device trial", "FEMALE", "Device: Stent", "2020-01-01"},
			{"NCT00000003", "Vaccine", "male", "BIOLOGICAL: mRNA-1273|Other", ""},
			{"NCT00000004", "No interventions", "ALL", "", ""},
		},
	)
	out := LoadClinicalTrials(raw, DefaultClinicalTrialsOptions())

	require.True(t, out.Has(ColNCTID))
	require.True(t, out.Has("Patient Gender"))
	assert.False(t, out.Has("NCT id"))
	assert.False(t, out.Has("sex"))

	assert.Equal(t, []string{"NCT00000001", "NCT00000003"}, out.Strings(ColNCTID))
	assert.Equal(t, []string{"BOTH", "MALE"}, out.Strings("Patient Gender"))
	assert.Equal(t, "ASPIRIN FOR PAIN", out.Text(0, "study title"))
	assert.Equal(t, "BIOLOGICAL MRNA1273OTHER", out.Text(1, "interventions"))
}

func TestLoadClinicalTrialsWithoutInterventions(t *testing.T) {
	raw := rowset.FromRecords([]string{"NCT id", "sex"}, [][]string{{"NCT00000001", "ALL"}})
	out := LoadClinicalTrials(raw, DefaultClinicalTrialsOptions())
	assert.Equal(t, 0, out.Len())
	assert.True(t, out.Has(ColNCTID))
}
