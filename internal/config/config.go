// Package config loads trialjoin configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"trialjoin/internal/filter"
	"trialjoin/internal/reconcile"
	"trialjoin/internal/revenue"
	"trialjoin/internal/tabular"
)

const (
	// EnvPrefix marks the environment variables read by Load.
	EnvPrefix = "TRIALJOIN_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full trialjoin configuration.
type Config struct {
	Inputs    Inputs    `koanf:"inputs"`
	Outputs   Outputs   `koanf:"outputs"`
	Reconcile Reconcile `koanf:"reconcile"`
	Revenue   Revenue   `koanf:"revenue"`
	Filter    Filter    `koanf:"filter"`
	Postgres  Postgres  `koanf:"postgres"`
	Ledger    Ledger    `koanf:"ledger"`
	Log       Log       `koanf:"log"`
}

// Inputs names the source files and their sheets.
type Inputs struct {
	TrialTrove      string `koanf:"trialtrove"`
	TrialTroveSheet string `koanf:"trialtrove_sheet"`
	ClinicalTrials  string `koanf:"clinicaltrials"`

	SponsorLookup string `koanf:"sponsor_lookup"`
	SponsorSheet  string `koanf:"sponsor_sheet"`
	USLookup      string `koanf:"us_lookup"`
	USSheet       string `koanf:"us_sheet"`
	WWLookup      string `koanf:"ww_lookup"`
	WWSheet       string `koanf:"ww_sheet"`
}

// Outputs places the written row-sets.
type Outputs struct {
	Dir    string `koanf:"dir"`
	Format string `koanf:"format"`
	// Skip lists output names that are not written.
	Skip []string `koanf:"skip"`
}

// Reconcile configures the registry join and the rescue path. Unset
// selectors leave the refinement off.
type Reconcile struct {
	RightColumns []string `koanf:"right_columns"`
	Suffix       string   `koanf:"suffix"`

	Interventional *bool `koanf:"interventional"`
	Observational  *bool `koanf:"observational"`
	Industry       *bool `koanf:"industry"`
	Academic       *bool `koanf:"academic"`
	Others         *bool `koanf:"others"`
}

// Revenue configures lookup preparation.
type Revenue struct {
	Cleanse    bool `koanf:"cleanse"`
	TitleCase  bool `koanf:"title_case"`
	StripPunct bool `koanf:"strip_punct"`
}

// Filter holds the analyst selections. Enabled adds the filtered output.
type Filter struct {
	Enabled    bool `koanf:"enabled"`
	StartYear  int  `koanf:"start_year"`
	StartMonth int  `koanf:"start_month"`
	EndYear    int  `koanf:"end_year"`
	EndMonth   int  `koanf:"end_month"`

	RegionEnabled bool   `koanf:"region_enabled"`
	Region        string `koanf:"region"`

	Phases           []string `koanf:"phases"`
	Statuses         []string `koanf:"statuses"`
	TherapeuticAreas []string `koanf:"therapeutic_areas"`
	SponsorTypes     []string `koanf:"sponsor_types"`
	Sponsors         []string `koanf:"sponsors"`
}

// Postgres configures the optional database sink. An empty DSN disables it.
type Postgres struct {
	DSN      string `koanf:"dsn"`
	Schema   string `koanf:"schema"`
	MaxConns int32  `koanf:"max_conns"`
	Replace  bool   `koanf:"replace"`
}

// Ledger configures the run ledger. An empty path disables it.
type Ledger struct {
	Path string `koanf:"path"`
}

// Log configures logging.
type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	d := revenue.DefaultOptions()
	return Config{
		Inputs:    Inputs{TrialTroveSheet: "Results"},
		Outputs:   Outputs{Dir: "output", Format: string(tabular.FormatXLSX)},
		Reconcile: Reconcile{Suffix: reconcile.DefaultSuffix},
		Revenue:   Revenue{Cleanse: d.Cleanse, TitleCase: d.TitleCase, StripPunct: d.StripPunct},
		Log:       Log{Level: "info", Format: "json"},
	}
}

// Load reads the YAML file at path, when non-empty, then overrides it with
// TRIALJOIN_SECTION_FIELD environment variables.
//
//	TRIALJOIN_INPUTS_TRIALTROVE -> inputs.trialtrove
//	TRIALJOIN_POSTGRES_MAX_CONNS -> postgres.max_conns
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg, time.Now())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps TRIALJOIN_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrInvalid, path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("%w: config file too large: %d bytes (max %d)", ErrInvalid, info.Size(), maxConfigFileSize)
	}
	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

func applyDefaults(cfg *Config, now time.Time) {
	def := Default()
	if cfg.Outputs.Dir == "" {
		cfg.Outputs.Dir = def.Outputs.Dir
	}
	if cfg.Outputs.Format == "" {
		cfg.Outputs.Format = def.Outputs.Format
	}
	cfg.Outputs.Format = strings.ToLower(strings.TrimPrefix(cfg.Outputs.Format, "."))
	if cfg.Inputs.TrialTroveSheet == "" {
		cfg.Inputs.TrialTroveSheet = def.Inputs.TrialTroveSheet
	}
	if cfg.Reconcile.Suffix == "" {
		cfg.Reconcile.Suffix = def.Reconcile.Suffix
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}

	// Filter window defaults only when no bound is configured.
	f := &cfg.Filter
	if f.StartYear == 0 && f.StartMonth == 0 && f.EndYear == 0 && f.EndMonth == 0 {
		c := filter.DefaultCriteria(now)
		f.StartYear, f.StartMonth, f.EndYear, f.EndMonth = c.StartYear, c.StartMonth, c.EndYear, c.EndMonth
	}
	if f.Region == "" {
		f.Region = "global"
	}
}

// Validate reports the first invalid setting, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	switch tabular.Format(c.Outputs.Format) {
	case tabular.FormatCSV, tabular.FormatXLSX, tabular.FormatParquet:
	default:
		return fmt.Errorf("%w: outputs.format %q (use csv, xlsx or parquet)", ErrInvalid, c.Outputs.Format)
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: log.format %q (use json or console)", ErrInvalid, c.Log.Format)
	}

	f := c.Filter
	for _, m := range []struct {
		name  string
		value int
	}{{"filter.start_month", f.StartMonth}, {"filter.end_month", f.EndMonth}} {
		if m.value < 1 || m.value > 12 {
			return fmt.Errorf("%w: %s %d (must be 1-12)", ErrInvalid, m.name, m.value)
		}
	}
	if f.RegionEnabled {
		if _, _, err := filter.ParseRegion(f.Region); err != nil {
			return fmt.Errorf("%w: filter.region: %v", ErrInvalid, err)
		}
	}

	if c.Postgres.MaxConns < 0 {
		return fmt.Errorf("%w: postgres.max_conns %d", ErrInvalid, c.Postgres.MaxConns)
	}
	return nil
}

// RequireInputs reports missing registry inputs of a full run.
func (c *Config) RequireInputs() error {
	var missing []string
	if c.Inputs.TrialTrove == "" {
		missing = append(missing, "inputs.trialtrove")
	}
	if c.Inputs.ClinicalTrials == "" {
		missing = append(missing, "inputs.clinicaltrials")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}

// OutputPath is the file an output named name is written to.
func (c *Config) OutputPath(name string) string {
	return filepath.Join(c.Outputs.Dir, name+"."+c.Outputs.Format)
}

// Skipped reports whether output name is disabled.
func (c *Config) Skipped(name string) bool {
	for _, s := range c.Outputs.Skip {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return true
		}
	}
	return false
}

// ReconcileOptions converts the reconcile section.
func (c *Config) ReconcileOptions() reconcile.Options {
	r := c.Reconcile
	return reconcile.Options{
		RightColumns:   r.RightColumns,
		Suffix:         r.Suffix,
		Interventional: reconcile.TriOf(r.Interventional),
		Observational:  reconcile.TriOf(r.Observational),
		Industry:       reconcile.TriOf(r.Industry),
		Academic:       reconcile.TriOf(r.Academic),
		Others:         reconcile.TriOf(r.Others),
	}
}

// RevenueOptions converts the revenue section.
func (c *Config) RevenueOptions() revenue.Options {
	return revenue.Options{
		Cleanse:    c.Revenue.Cleanse,
		TitleCase:  c.Revenue.TitleCase,
		StripPunct: c.Revenue.StripPunct,
	}
}

// Criteria converts the filter section.
func (c *Config) Criteria() filter.Criteria {
	f := c.Filter
	return filter.Criteria{
		StartYear:        f.StartYear,
		StartMonth:       f.StartMonth,
		EndYear:          f.EndYear,
		EndMonth:         f.EndMonth,
		RegionEnabled:    f.RegionEnabled,
		Region:           f.Region,
		Phases:           f.Phases,
		Statuses:         f.Statuses,
		TherapeuticAreas: f.TherapeuticAreas,
		SponsorTypes:     f.SponsorTypes,
		Sponsors:         f.Sponsors,
	}
}
