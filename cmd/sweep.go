package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kilianp07/evsim/core/experiment"
)

var quiet bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run every window, scenario and algorithm of the plan",
	RunE:  runSweep,
}

func init() {
	sweepCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	rootCmd.AddCommand(sweepCmd)
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("sweep"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, plan, closeSvc, err := setup()
	if err != nil {
		return err
	}
	defer closeSvc()

	var onProgress func(experiment.Progress)
	if !quiet {
		bar := newProgressBar(len(plan.Runs()))
		defer func() { _ = bar.Finish() }()
		onProgress = func(p experiment.Progress) {
			bar.Describe(fmt.Sprintf("%s %s", p.Key.Algorithm, p.Status))
			_ = bar.Add(1)
		}
	}

	rep, err := svc.RunSweep(ctx, plan, onProgress)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d runs: %d completed, %d skipped, %d failed\n", rep.Total, rep.Completed, rep.Skipped, len(rep.Failed))
	for _, f := range rep.Failed {
		fmt.Fprintf(out, "  failed %s: %v\n", f.Key, f.Err)
	}
	if err != nil {
		return err
	}
	if len(rep.Failed) > 0 {
		return fmt.Errorf("%d runs failed", len(rep.Failed))
	}
	return nil
}
