// Package main implements the trialjoin CLI: it reconciles the commercial
// and public trial registries, enriches the result with sponsor revenue
// segments and writes the row-sets to files, PostgreSQL and a run ledger.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trialjoin/internal/config"
	"trialjoin/internal/logging"
)

var (
	// configPath is the YAML configuration file
	configPath string
	// logLevel overrides log.level when set
	logLevel string
	// outDir overrides outputs.dir when set
	outDir string
	// outFormat overrides outputs.format when set
	outFormat string

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "trialjoin",
	Short: "Reconcile and enrich clinical trial registries",
	Long: `trialjoin joins a commercial trial export with a ClinicalTrials.gov export,
rescues commercial-only trials without an NCT code, resolves lead sponsors and
maps them to revenue segments.

Configuration is read from --config and overridden by TRIALJOIN_* variables,
e.g. TRIALJOIN_INPUTS_TRIALTROVE or TRIALJOIN_POSTGRES_DSN.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&outDir, "out", "", "output directory")
	rootCmd.PersistentFlags().StringVar(&outFormat, "format", "", "output format (csv, xlsx, parquet)")
}

// setup loads the configuration, applies the global flag overrides and
// builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if outDir != "" {
		cfg.Outputs.Dir = outDir
	}
	if outFormat != "" {
		cfg.Outputs.Format = outFormat
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}
