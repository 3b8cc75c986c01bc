package consulreconciler

import (
	"context"
	"fmt"

	"github.com/composureai/perfectstorm/internal/psapi"
	"github.com/composureai/perfectstorm/internal/trigger"
	"github.com/composureai/perfectstorm/pkg/logging"
)

// ServerManager elects and starts the single Consul server container for
// a pool (spec.md §4.5.1).
type ServerManager struct {
	client    *psapi.Client
	shortcuts *psapi.Shortcuts
	driver    *trigger.Driver
	names     GroupNames
}

// Reconcile returns the node hosting the UP Consul server, electing and
// starting one first if none is currently UP. On failure it returns a nil
// node and an error describing why no server is available this tick.
func (m *ServerManager) Reconcile(ctx context.Context) (*psapi.Node, error) {
	serverMembers, err := m.client.Groups.Members(ctx, m.names.ServerGroup, nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s members: %w", m.names.ServerGroup, err)
	}

	if up := firstUp(serverMembers); up != nil {
		return up, nil
	}

	candidate, err := m.electCandidate(ctx)
	if err != nil {
		return nil, err
	}

	if err := m.client.Groups.AddMembers(ctx, m.names.ServerNodes, []string{candidate.CloudID}); err != nil {
		return nil, fmt.Errorf("adding %s to %s: %w", candidate.CloudID, m.names.ServerNodes, err)
	}

	addr, err := m.shortcuts.GetAddressFor(ctx, *candidate)
	if err != nil {
		return nil, fmt.Errorf("resolving candidate server address: %w", err)
	}

	params := map[string]string{
		"DATACENTER":     m.names.NodesGroup,
		"SERVER_ADDRESS": addr,
		"CLIENT_ADDRESS": addr,
	}
	if _, err := m.driver.SubmitRecipe(ctx, trigger.RecipeArgs{
		Recipe: RecipeConsulServer,
		Params: params,
		AddTo:  m.names.ServerGroup,
	}); err != nil {
		logging.Warn("ServerManager", "consul-server recipe failed for %s: %v", candidate.CloudID, err)
		return nil, fmt.Errorf("starting consul server on %s: %w", candidate.CloudID, err)
	}

	return candidate, nil
}

// electCandidate prefers an UP member of server_nodes_group, falling back
// to a uniform-random UP member of the full nodes pool (spec.md §4.5.1).
func (m *ServerManager) electCandidate(ctx context.Context) (*psapi.Node, error) {
	serverNodes, err := m.client.Groups.Members(ctx, m.names.ServerNodes, nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s members: %w", m.names.ServerNodes, err)
	}
	if up := firstUp(serverNodes); up != nil {
		return up, nil
	}

	poolNodes, err := m.client.Groups.Members(ctx, m.names.NodesGroup, nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s members: %w", m.names.NodesGroup, err)
	}
	candidate := randomUp(poolNodes)
	if candidate == nil {
		return nil, fmt.Errorf("no UP node available in pool %s to host a Consul server", m.names.NodesGroup)
	}
	return candidate, nil
}
