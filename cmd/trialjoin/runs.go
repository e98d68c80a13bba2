package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"trialjoin/internal/config"
	"trialjoin/internal/store"
)

var runsLimit int

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 10, "number of runs to list")
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs from the ledger",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Ledger.Path == "" {
		return fmt.Errorf("no ledger configured (set ledger.path or TRIALJOIN_LEDGER_PATH)")
	}
	ledger, err := store.OpenLedger(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer ledger.Close()

	runs, err := ledger.Recent(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tOUTPUTS\tERROR")
	for _, r := range runs {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return fmt.Errorf("run %q: %w", r.ID, err)
		}
		outs, err := ledger.Outputs(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.StartedAt, r.Status, len(outs), r.Error)
	}
	return w.Flush()
}
