package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evsim/pkg/export"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Event queue commands",
}

var eventsBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build or load the event queue of every window and scenario of the plan",
	RunE:  runEventsBuild,
}

func init() {
	eventsCmd.AddCommand(eventsBuildCmd)
	rootCmd.AddCommand(eventsCmd)
}

func runEventsBuild(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, plan, closeSvc, err := setup()
	if err != nil {
		return err
	}
	defer closeSvc()

	infos, err := svc.Sweep(plan).BuildEvents(ctx)
	if err != nil {
		return err
	}
	cells := make([][]string, 0, len(infos))
	failed := 0
	for _, info := range infos {
		status := string(info.Lookup)
		if info.Err != nil {
			failed++
			status = "error: " + info.Err.Error()
		}
		cells = append(cells, []string{info.Window.Label(), info.Scenario, info.Key, strconv.Itoa(info.Events), status})
	}
	fmt.Fprintln(cmd.OutOrStdout(), export.RenderGrid([]string{"window", "scenario", "key", "events", "lookup"}, cells, -1))
	if failed > 0 {
		return fmt.Errorf("%d of %d event queues failed", failed, len(infos))
	}
	return nil
}
