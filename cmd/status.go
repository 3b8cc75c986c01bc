package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/composureai/perfectstorm/internal/consulreconciler"
	"github.com/composureai/perfectstorm/internal/psapi"
)

// newStatusCmd builds the `status` subcommand: a read-only snapshot of a
// nodes pool's derived groups, for operators checking a reconciler between
// ticks. It never submits triggers or mutates state.
func newStatusCmd() *cobra.Command {
	flags := &commonFlags{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the membership of a nodes pool's derived groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireNodesPool(flags); err != nil {
				return err
			}

			client := psapi.New(psapi.Config{ServerURL: flags.server})
			names := consulreconciler.DeriveGroupNames(flags.nodesPool)
			groups := []string{names.NodesGroup, names.ServerGroup, names.ServerNodes, names.ClientsGroup}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Group", "Node", "Status"})

			ctx := cmd.Context()
			for _, group := range groups {
				members, err := client.Groups.Members(ctx, group, nil)
				if err != nil {
					tw.AppendRow(table.Row{group, "-", fmt.Sprintf("error: %v", err)})
					continue
				}
				if len(members) == 0 {
					tw.AppendRow(table.Row{group, "-", "(empty)"})
					continue
				}
				for _, node := range members {
					tw.AppendRow(table.Row{group, node.CloudID, node.Status})
				}
			}

			tw.Render()
			return nil
		},
	}

	addCommonFlags(cmd, flags)
	cmd.Flags().MarkHidden("metrics-addr")
	cmd.Flags().MarkHidden("poll-interval")
	cmd.Flags().MarkHidden("log-level")

	return cmd
}
