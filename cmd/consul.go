package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/composureai/perfectstorm/internal/consulreconciler"
	"github.com/composureai/perfectstorm/internal/executor"
	"github.com/composureai/perfectstorm/pkg/logging"
)

// newConsulCmd builds the `consul` subcommand: the Consul Reconciler
// executor (spec.md §4.5).
func newConsulCmd() *cobra.Command {
	flags := &commonFlags{}
	var federate []string

	cmd := &cobra.Command{
		Use:   "consul",
		Short: "Run the Consul cluster reconciler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireNodesPool(flags); err != nil {
				return err
			}
			logging.Init(flags.logLevelValue(), cmd.OutOrStderr())

			client, driver := flags.newClient()
			manager := consulreconciler.New(client, driver, flags.nodesPool, federate)
			names := consulreconciler.DeriveGroupNames(flags.nodesPool)
			watchedGroups := []string{names.NodesGroup, names.ServerGroup, names.ServerNodes, names.ClientsGroup}

			shutdownMetrics := serveMetrics(flags.metricsAddr)
			defer shutdownMetrics(cmd.Context())

			exec := executor.New(client.Groups, watchedGroups, manager, manager.Setup, time.Duration(flags.pollInterval)*time.Second)

			ctx, cancel := setupSignalContext()
			defer cancel()

			return runExecutor(ctx, exec.Run)
		},
	}

	addCommonFlags(cmd, flags)
	cmd.Flags().StringArrayVarP(&federate, "federate", "f", nil, "remote nodes pool to WAN-federate with (repeatable)")

	return cmd
}
