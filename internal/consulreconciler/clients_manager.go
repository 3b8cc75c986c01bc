package consulreconciler

import (
	"context"
	"fmt"

	"github.com/composureai/perfectstorm/internal/psapi"
	"github.com/composureai/perfectstorm/internal/trigger"
	"github.com/composureai/perfectstorm/pkg/logging"
)

// ClientsManager fans a Consul client container out to every UP node in
// the pool that does not already run one (spec.md §4.5.2).
type ClientsManager struct {
	client    *psapi.Client
	shortcuts *psapi.Shortcuts
	driver    *trigger.Driver
	names     GroupNames
}

// Reconcile computes `have` (nodes already running a client, plus the
// server's own node) and `missing` (UP pool nodes not in `have`), then
// submits a consul-client trigger for each missing node.
func (m *ClientsManager) Reconcile(ctx context.Context, serverNode psapi.Node) error {
	poolNodes, err := m.client.Groups.Members(ctx, m.names.NodesGroup, nil)
	if err != nil {
		return fmt.Errorf("listing %s members: %w", m.names.NodesGroup, err)
	}

	clientMembers, err := m.client.Groups.Members(ctx, m.names.ClientsGroup, nil)
	if err != nil {
		return fmt.Errorf("listing %s members: %w", m.names.ClientsGroup, err)
	}

	have := make(map[string]bool, len(clientMembers)+1)
	have[serverNode.CloudID] = true
	for _, container := range clientMembers {
		node, err := m.shortcuts.GetNodeFor(ctx, container, poolNodes)
		if err != nil {
			logging.Warn("ClientsManager", "resolving host node for client container %s: %v", container.CloudID, err)
			continue
		}
		have[node.CloudID] = true
	}

	serverAddr, err := m.shortcuts.GetAddressFor(ctx, serverNode)
	if err != nil {
		return fmt.Errorf("resolving server address: %w", err)
	}

	for _, node := range poolNodes {
		if node.Status != psapi.NodeStatusUp || have[node.CloudID] {
			continue
		}

		clientAddr, err := m.shortcuts.GetAddressFor(ctx, node)
		if err != nil {
			logging.Warn("ClientsManager", "resolving address for %s: %v", node.CloudID, err)
			continue
		}

		params := map[string]string{
			"DATACENTER":     m.names.NodesGroup,
			"SERVER_ADDRESS": serverAddr,
			"CLIENT_ADDRESS": clientAddr,
		}
		if _, err := m.driver.SubmitRecipe(ctx, trigger.RecipeArgs{
			Recipe: RecipeConsulClient,
			Params: params,
			AddTo:  m.names.ClientsGroup,
		}); err != nil {
			logging.Warn("ClientsManager", "consul-client recipe failed for %s: %v", node.CloudID, err)
		}
	}

	return nil
}
