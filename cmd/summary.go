package cmd

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evsim/core/experiment"
	"github.com/kilianp07/evsim/infra/kpi"
	"github.com/kilianp07/evsim/infra/logger"
	"github.com/kilianp07/evsim/internal/atomicfile"
	"github.com/kilianp07/evsim/pkg/export"
)

var (
	summaryFormat string
	summaryOut    string
	summaryMean   bool
	summaryDB     string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Aggregate the metrics of every planned run",
	RunE:  runSummary,
}

func init() {
	summaryCmd.Flags().StringVarP(&summaryFormat, "format", "f", "table", "output format: table, csv, json, xlsx or parquet")
	summaryCmd.Flags().StringVarP(&summaryOut, "out", "o", "", "output file (stdout when empty)")
	summaryCmd.Flags().BoolVar(&summaryMean, "mean", false, "average rows per algorithm")
	summaryCmd.Flags().StringVar(&summaryDB, "db", "", "also upsert the rows into this SQLite database")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(summaryFormat)
	if err != nil {
		return err
	}
	if format.Binary() && summaryOut == "" {
		return fmt.Errorf("--out is required for %s output", format)
	}

	svc, plan, closeSvc, err := setup()
	if err != nil {
		return err
	}
	defer closeSvc()

	sum := svc.Aggregator().Summarize(plan)
	rows := sum.Rows
	if summaryMean {
		rows = sum.MeanByAlgorithm()
	}
	for _, m := range sum.Missing {
		fmt.Fprintf(cmd.ErrOrStderr(), "missing: %v\n", m)
	}
	if summaryDB != "" {
		if err := storeSummary(cmd.Context(), summaryDB, sum.Rows); err != nil {
			return err
		}
	}

	if summaryOut == "" {
		return export.Write(cmd.OutOrStdout(), format, rows)
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, format, rows); err != nil {
		return err
	}
	if err := atomicfile.WriteFile(summaryOut, buf.Bytes()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", len(rows), summaryOut)
	return nil
}

func storeSummary(ctx context.Context, path string, rows []experiment.Row) error {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := kpi.NewSQLiteStore(path)
	if err != nil {
		return fmt.Errorf("open summary db: %w", err)
	}
	defer store.Close()
	n, err := store.Upsert(ctx, rows)
	if err != nil {
		return err
	}
	logger.New("summary").Infof("stored %d rows in %s", n, path)
	return nil
}
