package sponsor

import (
	"testing"

	"trialjoin/internal/rowset"
)

func TestLead(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"PFIZER INC, BioNTech", "Pfizer Inc"},
		{"  merck sharp & dohme\nAstraZeneca", "Merck Sharp & Dohme"},
		{"Novartis\r\n, Roche", "Novartis"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Lead(tt.in); got != tt.want {
			t.Errorf("Lead(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAddLeadSponsorCoalesces(t *testing.T) {
	null := rowset.NullValue(rowset.KindText)
	in := rowset.New(
		rowset.Column{Name: "TT_Sponsor/Collaborator", Kind: rowset.KindText, Values: []rowset.Value{
			rowset.TextValue("Pfizer, BioNTech"), null, null,
		}},
		rowset.Column{Name: "Sponsor/Collaborator", Kind: rowset.KindText, Values: []rowset.Value{
			rowset.TextValue("ignored"), rowset.TextValue("GSK plc"), null,
		}},
	)
	out := AddLeadSponsor(in)
	want := []string{"Pfizer", "Gsk Plc", ""}
	got := out.Strings(ColLeadSponsor)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d: got %q, want %q", i, got[i], want[i])
		}
	}
	if in.Has(ColLeadSponsor) {
		t.Error("input was modified")
	}
}

func TestAddLeadSponsorWithoutSources(t *testing.T) {
	in := rowset.FromRecords([]string{"x"}, [][]string{{"1"}, {"2"}})
	out := AddLeadSponsor(in)
	for i, s := range out.Strings(ColLeadSponsor) {
		if s != "" {
			t.Errorf("row %d: got %q, want empty", i, s)
		}
	}
}
