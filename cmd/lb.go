package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/composureai/perfectstorm/internal/executor"
	"github.com/composureai/perfectstorm/internal/lbreconciler"
	"github.com/composureai/perfectstorm/pkg/logging"
)

// newLBCmd builds the `lb` subcommand: the LoadBalancer Reconciler
// executor (spec.md §4.6), driven by the Monitor Executor over the
// applications collection rather than group membership polling.
func newLBCmd() *cobra.Command {
	flags := &commonFlags{}

	cmd := &cobra.Command{
		Use:   "lb",
		Short: "Run the HAProxy load-balancer reconciler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireNodesPool(flags); err != nil {
				return err
			}
			logging.Init(flags.logLevelValue(), cmd.OutOrStderr())

			client, driver := flags.newClient()
			manager := lbreconciler.New(client, driver, flags.nodesPool)
			monitor := executor.NewApplicationsMonitor(client.Apps)

			shutdownMetrics := serveMetrics(flags.metricsAddr)
			defer shutdownMetrics(cmd.Context())

			exec := executor.NewMonitorExecutor(monitor, manager, nil, time.Duration(flags.pollInterval)*time.Second)

			ctx, cancel := setupSignalContext()
			defer cancel()

			return runExecutor(ctx, exec.Run)
		},
	}

	addCommonFlags(cmd, flags)

	return cmd
}
