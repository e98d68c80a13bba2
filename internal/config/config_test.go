package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialjoin/internal/reconcile"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trialjoin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "output", cfg.Outputs.Dir)
	assert.Equal(t, "xlsx", cfg.Outputs.Format)
	assert.Equal(t, "Results", cfg.Inputs.TrialTroveSheet)
	assert.Equal(t, "_CT", cfg.Reconcile.Suffix)
	assert.True(t, cfg.Revenue.Cleanse)
	assert.Equal(t, 2015, cfg.Filter.StartYear)
	assert.Equal(t, "global", cfg.Filter.Region)
	assert.Equal(t, filepath.Join("output", "union.xlsx"), cfg.OutputPath("union"))
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
inputs:
  trialtrove: data/tt.xlsx
  clinicaltrials: data/ctgov.csv
  sponsor_lookup: data/sponsors.xlsx
outputs:
  dir: out
  format: .Parquet
  skip: [ctgov_clean]
reconcile:
  interventional: true
  observational: false
revenue:
  title_case: false
filter:
  enabled: true
  start_year: 2023
  start_month: 1
  end_year: 2023
  end_month: 3
  region_enabled: true
  region: naeu
  phases: [II, III]
log:
  level: debug
  format: console
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "data/tt.xlsx", cfg.Inputs.TrialTrove)
	assert.Equal(t, "parquet", cfg.Outputs.Format)
	assert.True(t, cfg.Skipped("ctgov_clean"))
	assert.False(t, cfg.Skipped("union"))
	assert.False(t, cfg.Revenue.TitleCase)
	assert.True(t, cfg.Revenue.StripPunct, "unset keys keep their defaults")

	opts := cfg.ReconcileOptions()
	assert.Equal(t, reconcile.Include, opts.Interventional)
	assert.Equal(t, reconcile.Exclude, opts.Observational)
	assert.Equal(t, reconcile.Unset, opts.Industry)

	c := cfg.Criteria()
	assert.Equal(t, []string{"II", "III"}, c.Phases)
	assert.Equal(t, 3, c.EndMonth)
	assert.True(t, c.RegionEnabled)
	require.NoError(t, cfg.RequireInputs())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "outputs:\n  dir: from-file\n")
	t.Setenv("TRIALJOIN_OUTPUTS_DIR", "from-env")
	t.Setenv("TRIALJOIN_POSTGRES_MAX_CONNS", "8")
	t.Setenv("TRIALJOIN_INPUTS_SPONSOR_LOOKUP", "lk.xlsx")
	t.Setenv("TRIALJOIN_RECONCILE_INDUSTRY", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Outputs.Dir)
	assert.Equal(t, int32(8), cfg.Postgres.MaxConns)
	assert.Equal(t, "lk.xlsx", cfg.Inputs.SponsorLookup)
	assert.Equal(t, reconcile.Include, cfg.ReconcileOptions().Industry)
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"format": "outputs:\n  format: xls\n",
		"log":    "log:\n  format: xml\n",
		"month":  "filter:\n  start_year: 2020\n  start_month: 13\n  end_year: 2021\n  end_month: 1\n",
		"region": "filter:\n  region_enabled: true\n  region: mars\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadRejectsLargeFile(t *testing.T) {
	path := writeConfig(t, "# "+strings.Repeat("x", maxConfigFileSize)+"\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRequireInputs(t *testing.T) {
	cfg := Default()
	err := cfg.RequireInputs()
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "inputs.trialtrove")
	assert.Contains(t, err.Error(), "inputs.clinicaltrials")
}

func TestApplyDefaultsWindow(t *testing.T) {
	cfg := Default()
	applyDefaults(&cfg, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2015, cfg.Filter.StartYear)
	assert.Equal(t, 1, cfg.Filter.StartMonth)
	assert.Equal(t, 2026, cfg.Filter.EndYear)
	assert.Equal(t, 8, cfg.Filter.EndMonth)
}
