package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trialjoin/internal/config"
	"trialjoin/internal/logging"
	"trialjoin/internal/pipeline"
	"trialjoin/internal/store"
)

var (
	trialTrovePath     string
	clinicalTrialsPath string
	sponsorLookupPath  string
	usLookupPath       string
	wwLookupPath       string
	withFilter         bool
)

func init() {
	runCmd.Flags().StringVar(&trialTrovePath, "trialtrove", "", "commercial registry export (xlsx or csv)")
	runCmd.Flags().StringVar(&clinicalTrialsPath, "ctgov", "", "ClinicalTrials.gov export (csv)")
	runCmd.Flags().StringVar(&sponsorLookupPath, "sponsor-lookup", "", "sponsor to standard name workbook")
	runCmd.Flags().StringVar(&usLookupPath, "us-lookup", "", "US segmentation workbook")
	runCmd.Flags().StringVar(&wwLookupPath, "ww-lookup", "", "WW segmentation workbook")
	runCmd.Flags().BoolVar(&withFilter, "filter", false, "also write the filtered output")

	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full reconciliation and enrichment pipeline",
	Long: `Run loads both registries and the lookup workbooks, reconciles and enriches
the trials and writes every output to the output directory. When configured,
outputs are also copied to PostgreSQL and the run is recorded in the ledger.

Examples:
  # Run with a config file
  trialjoin run -c trialjoin.yaml

  # Override inputs and write parquet
  trialjoin run --trialtrove tt.xlsx --ctgov ctgov.csv --format parquet`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

func applyRunFlags(cfg *config.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Inputs.TrialTrove, trialTrovePath)
	set(&cfg.Inputs.ClinicalTrials, clinicalTrialsPath)
	set(&cfg.Inputs.SponsorLookup, sponsorLookupPath)
	set(&cfg.Inputs.USLookup, usLookupPath)
	set(&cfg.Inputs.WWLookup, wwLookupPath)
	if withFilter {
		cfg.Filter.Enabled = true
	}
}

func runPipeline(cmd *cobra.Command, args []string) (err error) {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync(log)

	applyRunFlags(cfg)
	if err := cfg.RequireInputs(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(cfg, log)

	if cfg.Postgres.DSN != "" {
		pg, err := openPostgres(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer pg.Close()
		p.Sink = pg
	}
	if cfg.Ledger.Path != "" {
		ledger, err := store.OpenLedger(cfg.Ledger.Path)
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, ledger.Close()) }()
		p.Ledger = ledger
	}

	res, err := p.Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:     %s\n", res.RunID)
	fmt.Fprintf(out, "Inputs:  %s\n", res.InputKey)
	names := make([]string, 0, len(res.Written))
	for name := range res.Written {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-17s %6d rows  %s\n", name, res.Output(name).Len(), res.Written[name])
	}
	return nil
}

func openPostgres(ctx context.Context, cfg *config.Config, log *zap.Logger) (*store.Postgres, error) {
	pg, err := store.OpenPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, log.Named("postgres"))
	if err != nil {
		return nil, err
	}
	pg.Schema = cfg.Postgres.Schema
	pg.Replace = cfg.Postgres.Replace
	return pg, nil
}
