package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evsim/app/plugins"
	"github.com/kilianp07/evsim/config"
	"github.com/kilianp07/evsim/core/runlog"
	"github.com/kilianp07/evsim/pkg/export"
)

var (
	runsStatus    string
	runsAlgorithm string
	runsScenario  string
	runsHistory   bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Run ledger commands",
}

var runsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List runs recorded in the ledger",
	RunE:  runRunsLs,
}

func init() {
	runsLsCmd.Flags().StringVar(&runsStatus, "status", "", "only runs whose current status matches")
	runsLsCmd.Flags().StringVar(&runsAlgorithm, "algorithm", "", "only runs of this algorithm")
	runsLsCmd.Flags().StringVar(&runsScenario, "scenario", "", "only runs of this scenario")
	runsLsCmd.Flags().BoolVar(&runsHistory, "history", false, "show every transition instead of the latest per run")
	runsCmd.AddCommand(runsLsCmd)
	rootCmd.AddCommand(runsCmd)
}

func runRunsLs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ledger, err := plugins.NewLedger(cfg.Ledger)
	if err != nil {
		return err
	}
	defer ledger.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	recs, err := ledger.Query(ctx, runlog.Query{Algorithm: runsAlgorithm, Scenario: runsScenario})
	if err != nil {
		return err
	}
	if !runsHistory {
		recs = runlog.Latest(recs)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderRecords(filterStatus(recs, runsStatus)))
	return nil
}

func filterStatus(recs []runlog.Record, status string) []runlog.Record {
	if status == "" {
		return recs
	}
	out := recs[:0]
	for _, r := range recs {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

func renderRecords(recs []runlog.Record) string {
	cells := make([][]string, len(recs))
	for i, r := range recs {
		dur := ""
		if r.DurationSeconds > 0 {
			dur = strconv.FormatFloat(r.DurationSeconds, 'f', 1, 64) + "s"
		}
		cells[i] = []string{
			r.Timestamp.Format(time.RFC3339), r.RunID, r.Algorithm, r.Window, r.Scenario, r.Status, dur, r.Error,
		}
	}
	return export.RenderGrid([]string{"timestamp", "run_id", "algorithm", "window", "scenario", "status", "duration", "error"}, cells, -1)
}
