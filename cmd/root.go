package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evsim/app"
	"github.com/kilianp07/evsim/config"
	"github.com/kilianp07/evsim/core/experiment"
	"github.com/kilianp07/evsim/core/monitoring"
	"github.com/kilianp07/evsim/infra/logger"
)

var (
	cfgPath  string
	planPath string
)

var rootCmd = &cobra.Command{
	Use:          "evsim",
	Short:        "EV charging event synthesis and simulation sweeps",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVarP(&planPath, "plan", "p", "plan.yaml", "experiment plan")
}

// Execute runs the CLI. A panic is reported to the configured monitor
// before it propagates.
func Execute() error {
	defer monitoring.Recover()
	return rootCmd.Execute()
}

// setup loads the configuration and the plan and builds the service. The
// returned close function logs close errors.
func setup() (*app.Service, *experiment.Plan, func(), error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	plan, err := experiment.LoadPlan(planPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load plan: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return svc, plan, func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}, nil
}
