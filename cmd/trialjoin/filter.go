package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"trialjoin/internal/filter"
	"trialjoin/internal/logging"
	"trialjoin/internal/tabular"
)

var (
	filterOut    string
	filterSheet  string
	filterRegion string
)

func init() {
	filterCmd.Flags().StringVarP(&filterOut, "output", "o", "", "filtered file (default: <input>_filtered.<format>)")
	filterCmd.Flags().StringVar(&filterSheet, "sheet", "", "sheet of a workbook input")
	filterCmd.Flags().StringVar(&filterRegion, "region", "", "region code (global, na, eu, apac, naeu, naapac, euapac); enables the region filter")

	rootCmd.AddCommand(filterCmd)
}

var filterCmd = &cobra.Command{
	Use:   "filter <enriched-file>",
	Short: "Filter an enriched trial file",
	Long: `Filter derives the analyst columns (therapeutic area, COVID tag, phase,
region, healthy patient) of an enriched file and keeps the trials matching
the filter section of the configuration.

Examples:
  # Filter the revenue output of a previous run
  trialjoin filter -c trialjoin.yaml output/revenue.xlsx

  # Restrict to trials in North America and Europe
  trialjoin filter --region naeu output/revenue.parquet -o na_eu.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runFilter,
}

func runFilter(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync(log)

	criteria := cfg.Criteria()
	if filterRegion != "" {
		criteria.RegionEnabled = true
		criteria.Region = filterRegion
	}

	in := args[0]
	t, err := tabular.Read(in, filterSheet)
	if err != nil {
		return fmt.Errorf("read %s: %w", in, err)
	}
	out, err := filter.Apply(t, criteria, log.Named("filter"))
	if err != nil {
		return err
	}

	dst := filterOut
	if dst == "" {
		base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
		dst = filepath.Join(cfg.Outputs.Dir, base+"_filtered."+cfg.Outputs.Format)
	}
	written, err := tabular.SaveWithFallback(dst, out, log)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Filtered %d of %d rows into %s\n", out.Len(), t.Len(), written)
	return nil
}
